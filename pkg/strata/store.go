package strata

import (
	"fmt"
	"strconv"

	"github.com/strata-dev/strata/pkg/statepath"
)

// reservedProps is the store's API surface from the consuming binding
// layer's point of view. These names are read-only as top-level path
// segments so user data can never shadow or clobber the façade.
var reservedProps = map[string]bool{
	"$get":       true,
	"$set":       true,
	"$subscribe": true,
	"$data":      true,
	"$state":     true,
	"$name":      true,
}

// Store is the public façade over a reactive wrapper tree: it binds a name
// to the tree and exposes path-based access and subscription.
//
// A Store constructed from another Store (or from a nested wrapper of one)
// shares that store's state and subscription manager by reference —
// composition, not copying. Both stores then observe and mutate the same
// data, and subscribers on either fire for mutations from both.
type Store struct {
	name  string
	state *Node
	mgr   *Manager
}

// Option configures a freshly-constructed Store.
type Option func(*storeOptions)

type storeOptions struct {
	instruments []Instrument
}

// WithInstrument attaches an Instrument to the store's subscription manager.
// Ignored when composing over an existing store, which already has a manager.
func WithInstrument(in Instrument) Option {
	return func(o *storeOptions) {
		o.instruments = append(o.instruments, in)
	}
}

// New creates a Store named name over initial state.
//
// The initial state may be:
//   - nil — an empty object;
//   - a composite value (string-keyed map, slice, ordered map, time.Time) —
//     deep-copied and wrapped, with a fresh subscription manager;
//   - another *Store — the new store shares its wrapper tree and manager;
//   - a *Node from another store (e.g. store.State().Get("user")) — the new
//     store is scoped to that subtree: its root path "" addresses the
//     subtree, while the manager stays shared with the wider store. Ancestor
//     notifications above the scoping point remain visible to the wider
//     store only.
//
// An empty name fails with ErrInvalidName; a non-composite initial value
// fails with ErrInvalidPath.
func New(name string, initial any, opts ...Option) (*Store, error) {
	if name == "" {
		return nil, ErrInvalidName
	}

	switch src := initial.(type) {
	case *Store:
		return &Store{name: name, state: src.state, mgr: src.mgr}, nil
	case *Node:
		mgr := src.manager()
		if mgr == nil {
			mgr = NewManager()
			src.Root().mgr = mgr
		}
		return &Store{name: name, state: src, mgr: mgr}, nil
	}

	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}

	if initial == nil {
		initial = map[string]any{}
	}
	normalized := normalize(initial)
	if !isComposite(normalized) {
		return nil, fmt.Errorf("%w: initial state must be a composite value", ErrInvalidPath)
	}

	mgr := NewManager(o.instruments...)
	return &Store{name: name, state: newRoot(normalized, mgr), mgr: mgr}, nil
}

// Name returns the store's name.
func (s *Store) Name() string { return s.name }

// State returns the live wrapper tree (the store's scope node), for
// composition and direct structural mutation.
func (s *Store) State() *Node { return s.state }

// Data returns a read-only deep snapshot of the current state with every
// function-valued property removed: array slots that held a function become
// nil to preserve indices, object and map keys that held one are omitted.
func (s *Store) Data() any { return s.state.Snapshot() }

// Get resolves path and returns the current value: raw values for leaves,
// nil for absent data, and the live *Node wrapper for composites. The empty
// path returns the store's root wrapper. Malformed paths fail with
// ErrInvalidPath; missing data never does.
func (s *Store) Get(path string) (any, error) {
	segs, err := statepath.Split(path)
	if err != nil {
		return nil, err
	}

	if len(segs) > 0 && reservedProps[segs[0]] {
		if len(segs) > 1 {
			return nil, nil
		}
		switch segs[0] {
		case "$name":
			return s.name, nil
		case "$data":
			return s.Data(), nil
		case "$state":
			return s.state, nil
		default:
			// $get/$set/$subscribe are operations, not data.
			return nil, nil
		}
	}

	value, err := s.state.Resolve(path)
	if err != nil {
		return nil, err
	}
	switch v := value.(type) {
	case StateValue:
		if v.Absent {
			return nil, nil
		}
		return v.Value, nil
	default:
		return v, nil
	}
}

// Set assigns value at path, creating intermediate plain objects for missing
// segments. Only the final assignment notifies; observers of intermediates
// are reached by the ancestor/descendant fan-out.
//
// Array indices must lie in 0..len (len appends); anything else fails with
// ErrInvalidIndex — unlike direct SetIndex on a live wrapper, which
// auto-grows. Assigning a map's "size", a reserved "$" property or the root
// itself fails with ErrReadOnly.
func (s *Store) Set(path string, value any) error {
	segs, err := statepath.Split(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%w: the root wrapper cannot be replaced", ErrReadOnly)
	}
	if reservedProps[segs[0]] {
		return fmt.Errorf("%w: %s", ErrReadOnly, segs[0])
	}

	parent, err := s.walkToParent(segs)
	if err != nil {
		return err
	}

	final := segs[len(segs)-1]
	switch parent.kind {
	case KindObject:
		return parent.Set(final, value)
	case KindArray:
		if final == "length" {
			length, convErr := toInt(value)
			if convErr != nil {
				return ErrInvalidIndex
			}
			return parent.SetLength(length)
		}
		idx, convErr := strconv.Atoi(final)
		if convErr != nil || idx < 0 || idx > parent.Len() {
			return fmt.Errorf("%w: %q", ErrInvalidIndex, final)
		}
		return parent.SetIndex(idx, value)
	case KindMap:
		if final == "size" {
			return fmt.Errorf("%w: size", ErrReadOnly)
		}
		parent.MapSet(final, value)
		return nil
	default:
		return fmt.Errorf("%w: %q is not addressable", ErrInvalidPath, path)
	}
}

// Delete removes the value at path. Deleting missing data is a no-op; a
// key that existed notifies its exact path with an absent StateValue. Map
// entries are removed through the map's own delete semantics. Reserved
// properties and the derived length/size keys fail with ErrReadOnly.
func (s *Store) Delete(path string) error {
	segs, err := statepath.Split(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%w: the root wrapper cannot be deleted", ErrReadOnly)
	}
	if reservedProps[segs[0]] {
		return fmt.Errorf("%w: %s", ErrReadOnly, segs[0])
	}

	parent, ok := s.findParent(segs)
	if !ok {
		return nil
	}

	final := segs[len(segs)-1]
	switch parent.kind {
	case KindArray:
		if final == "length" {
			return fmt.Errorf("%w: length", ErrReadOnly)
		}
		return parent.Delete(final)
	case KindMap:
		if final == "size" {
			return fmt.Errorf("%w: size", ErrReadOnly)
		}
		parent.MapDelete(final)
		return nil
	default:
		return parent.Delete(final)
	}
}

// Subscribe registers cb for changes at path (relative to the store's scope)
// and returns an idempotent unsubscribe function. Subscribing to "" observes
// the store's whole subtree.
func (s *Store) Subscribe(path string, cb Callback) (func(), error) {
	if err := statepath.Validate(path); err != nil {
		return nil, err
	}

	base := s.state.Path()
	full := path
	switch {
	case base == "":
	case path == "":
		full = base
	default:
		full = base + "." + path
	}
	return s.mgr.Subscribe(full, cb)
}

// walkToParent descends to the parent node of the final segment, creating
// empty object nodes (silently, without notification) for missing or leaf
// intermediates.
func (s *Store) walkToParent(segs []string) (*Node, error) {
	cur := s.state
	for _, seg := range segs[:len(segs)-1] {
		next, err := cur.ensureChild(seg)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// findParent descends to the parent node of the final segment without
// creating anything; ok is false when the walk dead-ends.
func (s *Store) findParent(segs []string) (*Node, bool) {
	cur := s.state
	for _, seg := range segs[:len(segs)-1] {
		child := cur.Get(seg)
		node, isNode := child.(*Node)
		if !isNode {
			return nil, false
		}
		cur = node
	}
	return cur, true
}

// ensureChild returns the composite child at seg, silently materializing an
// empty object when the slot is missing or holds a leaf. Array slots must be
// in range; dates have no addressable children.
func (n *Node) ensureChild(seg string) (*Node, error) {
	switch n.kind {
	case KindObject:
		n.mu.Lock()
		defer n.mu.Unlock()
		if node, ok := n.obj[seg].(*Node); ok {
			return node, nil
		}
		node := newComposite(map[string]any{}, statepath.Join(n.path, seg), n.Root())
		n.obj[seg] = node
		return node, nil
	case KindArray:
		idx, err := strconv.Atoi(seg)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIndex, seg)
		}
		n.mu.Lock()
		defer n.mu.Unlock()
		if idx < 0 || idx >= len(n.arr) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIndex, seg)
		}
		if node, ok := n.arr[idx].(*Node); ok {
			return node, nil
		}
		node := newComposite(map[string]any{}, statepath.Index(n.path, idx), n.Root())
		n.arr[idx] = node
		return node, nil
	case KindMap:
		n.mu.Lock()
		defer n.mu.Unlock()
		if child, ok := n.entries.Get(seg); ok {
			if node, isNode := child.(*Node); isNode {
				return node, nil
			}
		}
		node := newComposite(map[string]any{}, statepath.Entry(n.path, seg), n.Root())
		n.entries.Set(seg, node)
		return node, nil
	default:
		return nil, fmt.Errorf("%w: %q is not addressable", ErrInvalidPath, seg)
	}
}
