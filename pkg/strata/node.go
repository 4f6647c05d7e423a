package strata

import (
	"reflect"
	"strconv"
	"sync"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/strata-dev/strata/pkg/statepath"
)

// Kind tags the shape of a wrapped node. It is decided once at wrap time and
// drives mutation semantics: plain objects, arrays, insertion-ordered
// map-like collections and dates each intercept differently.
type Kind int

const (
	// KindLeaf marks a non-composite value. Leaves are never held as Node
	// instances; they surface as StateValue records.
	KindLeaf Kind = iota

	// KindObject is a plain string-keyed object.
	KindObject

	// KindArray is an ordered, index-addressed list.
	KindArray

	// KindMap is an insertion-ordered map-like collection mutated through
	// MapSet/MapDelete/Clear rather than property assignment.
	KindMap

	// KindDate wraps a point in time.
	KindDate
)

// String returns the kind name for labels and debug output.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindDate:
		return "date"
	default:
		return "leaf"
	}
}

// Node is the reactive wrapper around one composite value in the state tree.
// It holds a deep copy of the source value (callers can never mutate state
// behind the wrapper's back), the absolute path it lives at, and a reference
// to the root wrapper used to resolve paths during notification.
//
// Composite children are held as further *Node instances, created once at
// wrap time; leaf children are held raw and surface as StateValue records.
type Node struct {
	kind Kind
	path string

	// root is the tree's root wrapper; nil on the root itself.
	root *Node

	// mgr is set on the root only; children reach it through root.
	mgr *Manager

	mu sync.RWMutex

	obj     map[string]any
	arr     []any
	entries *orderedmap.OrderedMap[string, any]
	date    time.Time

	// props holds direct property assignments onto a map kind. Such writes
	// deliberately bypass the collection's own set semantics; see Set.
	props map[string]any
}

// Kind returns the node's shape tag.
func (n *Node) Kind() Kind { return n.kind }

// Path returns the node's absolute path from the root ("" for the root).
func (n *Node) Path() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.path
}

// Root returns the root wrapper of the tree this node belongs to.
func (n *Node) Root() *Node {
	if n.root == nil {
		return n
	}
	return n.root
}

// manager returns the subscription manager attached to the tree's root,
// or nil for a detached node.
func (n *Node) manager() *Manager {
	return n.Root().mgr
}

// notify routes a change notification through the tree's manager, if any.
func (n *Node) notify(path string, change any) {
	if m := n.manager(); m != nil {
		m.Notify(n.Root(), path, change)
	}
}

// observeMutation reports a mutation to any attached instruments.
func (n *Node) observeMutation(path string) {
	if m := n.manager(); m != nil {
		m.observeMutation(path, n.kind)
	}
}

// newRoot wraps an already-normalized composite value as a tree root bound
// to the given manager.
func newRoot(value any, mgr *Manager) *Node {
	n := newComposite(value, "", nil)
	n.mgr = mgr
	return n
}

// wrap turns value into its reactive form at path: composites become child
// *Node instances threaded onto root, leaves pass through raw.
//
// Wrapping is idempotent: a *Node already wrapped at the same path within
// the same tree is returned unchanged. A node wrapped elsewhere is cloned
// from its raw snapshot so no node ever lives at two paths.
func wrap(value any, path string, root *Node) any {
	value = normalize(value)

	if n, ok := value.(*Node); ok {
		if n.Path() == path && (root == nil || n.Root() == root.Root()) {
			return n
		}
		return wrap(n.Raw(), path, root)
	}

	if !isComposite(value) {
		return value
	}
	return newComposite(value, path, root)
}

// newComposite builds the Node for a normalized composite value, deep-copying
// the source and recursively wrapping every child.
func newComposite(value any, path string, root *Node) *Node {
	n := &Node{path: path, root: root}
	owner := n.Root()

	switch v := value.(type) {
	case map[string]any:
		n.kind = KindObject
		n.obj = make(map[string]any, len(v))
		for key, child := range v {
			n.obj[key] = wrap(child, statepath.Join(path, key), owner)
		}
	case []any:
		n.kind = KindArray
		n.arr = make([]any, len(v))
		for i, child := range v {
			n.arr[i] = wrap(child, statepath.Index(path, i), owner)
		}
	case *orderedmap.OrderedMap[string, any]:
		n.kind = KindMap
		n.entries = orderedmap.New[string, any]()
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			n.entries.Set(pair.Key, wrap(pair.Value, statepath.Entry(path, pair.Key), owner))
		}
	case time.Time:
		n.kind = KindDate
		n.date = v
	}
	return n
}

// normalize coerces value into the canonical tree shape: string-keyed maps
// become map[string]any, slices and arrays become []any, ordered maps, times
// and nodes pass through, everything else is a leaf.
func normalize(value any) any {
	switch value.(type) {
	case nil, *Node, map[string]any, []any, *orderedmap.OrderedMap[string, any], time.Time:
		return value
	case StateValue:
		return normalize(value.(StateValue).Value)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return value
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = rv.Index(i).Interface()
		}
		return out
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return value
	default:
		return value
	}
}

// isComposite reports whether a normalized value wraps as a Node.
func isComposite(value any) bool {
	switch value.(type) {
	case map[string]any, []any, *orderedmap.OrderedMap[string, any], time.Time, *Node:
		return true
	}
	return false
}

// isFunc reports whether a leaf holds a function value. Function leaves are
// stored but excluded from Snapshot output.
func isFunc(value any) bool {
	if value == nil {
		return false
	}
	return reflect.TypeOf(value).Kind() == reflect.Func
}

// Get reads the property named key. Composite children return their wrapper
// (the same instance across repeated reads); leaf and missing children return
// a StateValue carrying the absolute path they were read through.
//
// Arrays resolve the derived "length" key and maps the derived "size" key as
// leaf StateValues. Reading a map's key consults its entries first, then any
// directly-assigned properties.
func (n *Node) Get(key string) any {
	n.mu.RLock()
	defer n.mu.RUnlock()

	switch n.kind {
	case KindObject:
		child, ok := n.obj[key]
		if !ok {
			return absentValue(statepath.Join(n.path, key), n.Root())
		}
		return n.childValue(child, statepath.Join(n.path, key))
	case KindArray:
		if key == "length" {
			return leafValue(len(n.arr), statepath.Join(n.path, key), n.Root())
		}
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || idx >= len(n.arr) {
			return absentValue(statepath.Join(n.path, key), n.Root())
		}
		return n.childValue(n.arr[idx], statepath.Index(n.path, idx))
	case KindMap:
		if key == "size" {
			return leafValue(n.entries.Len(), statepath.Join(n.path, key), n.Root())
		}
		if child, ok := n.entries.Get(key); ok {
			return n.childValue(child, statepath.Entry(n.path, key))
		}
		if prop, ok := n.props[key]; ok {
			return leafValue(prop, statepath.Join(n.path, key), n.Root())
		}
		return absentValue(statepath.Entry(n.path, key), n.Root())
	default:
		return absentValue(statepath.Join(n.path, key), n.Root())
	}
}

// childValue shapes a stored child for return from Get.
func (n *Node) childValue(child any, path string) any {
	if node, ok := child.(*Node); ok {
		return node
	}
	return leafValue(child, path, n.Root())
}

// Set assigns value to the property named key and notifies subscribers.
//
// Objects notify the exact path once. Arrays grow when key addresses an index
// at or past the end (intervening slots fill with nil) and then notify both
// the element and the array; assigning "length" resizes (see SetLength).
// Negative array indices fail with ErrInvalidIndex.
//
// On a map kind this is the deliberately surprising edge case preserved from
// the source design: the write lands on a side property table, never on the
// collection's entries, and notifies the property path with the raw value
// followed by the map's own path.
func (n *Node) Set(key string, value any) error {
	switch n.kind {
	case KindObject:
		path := statepath.Join(n.path, key)
		wrapped := wrap(value, path, n.Root())

		n.mu.Lock()
		n.obj[key] = wrapped
		n.mu.Unlock()

		n.observeMutation(path)
		n.notify(path, n.payload(wrapped, path))
		return nil
	case KindArray:
		if key == "length" {
			newLen, err := toInt(value)
			if err != nil || newLen < 0 {
				return ErrInvalidIndex
			}
			return n.SetLength(newLen)
		}
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return ErrInvalidIndex
		}
		return n.SetIndex(idx, value)
	case KindMap:
		path := statepath.Join(n.path, key)
		raw := normalize(value)
		if node, ok := raw.(*Node); ok {
			raw = node.Raw()
		}

		n.mu.Lock()
		if n.props == nil {
			n.props = make(map[string]any)
		}
		n.props[key] = raw
		mapPath := n.path
		n.mu.Unlock()

		n.observeMutation(path)
		n.notify(path, leafValue(raw, path, n.Root()))
		n.notify(mapPath, n)
		return nil
	default:
		return ErrReadOnly
	}
}

// Delete removes the property named key. If the key existed, subscribers of
// the exact path are notified with an absent StateValue; deleting a missing
// key notifies nobody. Array deletion leaves a nil hole to preserve indices.
func (n *Node) Delete(key string) error {
	switch n.kind {
	case KindObject:
		path := statepath.Join(n.path, key)

		n.mu.Lock()
		_, existed := n.obj[key]
		if existed {
			delete(n.obj, key)
		}
		n.mu.Unlock()

		if existed {
			n.observeMutation(path)
			n.notify(path, absentValue(path, n.Root()))
		}
		return nil
	case KindArray:
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil
		}

		n.mu.Lock()
		existed := idx >= 0 && idx < len(n.arr) && n.arr[idx] != nil
		var path string
		if existed {
			n.arr[idx] = nil
			path = statepath.Index(n.path, idx)
		}
		n.mu.Unlock()

		if existed {
			n.observeMutation(path)
			n.notify(path, absentValue(path, n.Root()))
		}
		return nil
	case KindMap:
		path := statepath.Join(n.path, key)

		n.mu.Lock()
		_, existed := n.props[key]
		if existed {
			delete(n.props, key)
		}
		n.mu.Unlock()

		if existed {
			n.observeMutation(path)
			n.notify(path, absentValue(path, n.Root()))
		}
		return nil
	default:
		return nil
	}
}

// Len returns the number of children: array length, map size, or object key
// count. Dates have no children.
func (n *Node) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()

	switch n.kind {
	case KindObject:
		return len(n.obj)
	case KindArray:
		return len(n.arr)
	case KindMap:
		return n.entries.Len()
	default:
		return 0
	}
}

// Resolve walks a relative path from this node through the wrapper tree and
// returns the current value: a *Node for composites, a StateValue for leaves,
// or nil when any segment is missing. Only malformed syntax errors.
func (n *Node) Resolve(path string) (any, error) {
	segs, err := statepath.Split(path)
	if err != nil {
		return nil, err
	}

	var cur any = n
	for _, seg := range segs {
		node, ok := cur.(*Node)
		if !ok {
			return nil, nil
		}
		cur = node.Get(seg)
		if sv, isLeaf := cur.(StateValue); isLeaf && sv.Absent {
			return nil, nil
		}
	}
	return cur, nil
}

// Raw returns a plain, fully-unwrapped deep snapshot of the node: objects as
// map[string]any, arrays as []any, maps as fresh ordered maps, dates as
// time.Time. Mutating the snapshot never affects the store.
func (n *Node) Raw() any {
	return n.snapshot(false)
}

// Snapshot returns a deep, function-free snapshot: array slots that held a
// function become nil to preserve indices, object and map keys that held a
// function are omitted entirely.
func (n *Node) Snapshot() any {
	return n.snapshot(true)
}

func (n *Node) snapshot(dropFuncs bool) any {
	n.mu.RLock()
	defer n.mu.RUnlock()

	switch n.kind {
	case KindObject:
		out := make(map[string]any, len(n.obj))
		for key, child := range n.obj {
			value, keep := snapshotChild(child, dropFuncs)
			if keep {
				out[key] = value
			}
		}
		return out
	case KindArray:
		out := make([]any, len(n.arr))
		for i, child := range n.arr {
			value, keep := snapshotChild(child, dropFuncs)
			if keep {
				out[i] = value
			}
			// Dropped slots stay nil to preserve indices.
		}
		return out
	case KindMap:
		out := orderedmap.New[string, any]()
		for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
			value, keep := snapshotChild(pair.Value, dropFuncs)
			if keep {
				out.Set(pair.Key, value)
			}
		}
		return out
	case KindDate:
		return n.date
	default:
		return nil
	}
}

func snapshotChild(child any, dropFuncs bool) (any, bool) {
	if node, ok := child.(*Node); ok {
		if dropFuncs {
			return node.Snapshot(), true
		}
		return node.Raw(), true
	}
	if dropFuncs && isFunc(child) {
		return nil, false
	}
	return child, true
}

// payload shapes a freshly-stored child as a notification payload.
func (n *Node) payload(wrapped any, path string) any {
	if node, ok := wrapped.(*Node); ok {
		return node
	}
	return leafValue(wrapped, path, n.Root())
}

// rebase rewrites the node's path and, recursively, every composite child's
// path. Used after index-shifting array mutations so recorded paths keep
// matching positions. Callers must not hold n.mu.
func (n *Node) rebase(path string) {
	n.mu.Lock()
	n.path = path

	type move struct {
		child *Node
		path  string
	}
	var moves []move

	switch n.kind {
	case KindObject:
		for key, child := range n.obj {
			if node, ok := child.(*Node); ok {
				moves = append(moves, move{node, statepath.Join(path, key)})
			}
		}
	case KindArray:
		for i, child := range n.arr {
			if node, ok := child.(*Node); ok {
				moves = append(moves, move{node, statepath.Index(path, i)})
			}
		}
	case KindMap:
		for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
			if node, ok := pair.Value.(*Node); ok {
				moves = append(moves, move{node, statepath.Entry(path, pair.Key)})
			}
		}
	}
	n.mu.Unlock()

	for _, m := range moves {
		m.child.rebase(m.path)
	}
}

// toInt coerces the value assigned to an array's "length" property.
func toInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case StateValue:
		return toInt(v.Value)
	default:
		return 0, ErrInvalidIndex
	}
}
