package strata

import (
	"sort"
	"sync"
	"time"

	"github.com/strata-dev/strata/pkg/statepath"
)

// Callback receives change notifications. The payload is a StateValue for
// leaf changes, a *Node for composite/root changes, or plain nil when a
// separately-subscribed path no longer resolves (its parent was deleted).
// Subscribers must handle all three shapes.
type Callback func(change any)

// Manager maintains path→listener registrations and performs the four-tier
// notification fan-out. One Manager serves one wrapper tree; composed stores
// share a single Manager by reference.
//
// Notification is synchronous: a mutation returns only after every matching
// subscriber has run. Callbacks run outside the Manager's lock and may
// themselves mutate the store, triggering nested notification; the design
// does not guard against notification cycles — that is the caller's
// responsibility.
type Manager struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]Callback
	active int

	instruments []Instrument
}

// NewManager creates an empty subscription manager with optional instruments.
func NewManager(instruments ...Instrument) *Manager {
	return &Manager{
		subs:        make(map[string]map[uint64]Callback),
		instruments: instruments,
	}
}

// Subscribe registers cb for changes at path and returns an idempotent
// unsubscribe closure. Multiple subscriptions to the same path are all
// invoked and unsubscribe independently; a path's entry is removed entirely
// once its last callback is gone.
func (m *Manager) Subscribe(path string, cb Callback) (func(), error) {
	if err := statepath.Validate(path); err != nil {
		return nil, err
	}

	id := nextID()

	m.mu.Lock()
	set, ok := m.subs[path]
	if !ok {
		set = make(map[uint64]Callback)
		m.subs[path] = set
	}
	set[id] = cb
	m.active++
	active := m.active
	m.mu.Unlock()

	for _, in := range m.instruments {
		in.SubscriptionAdded(path, active)
	}

	return func() {
		m.mu.Lock()
		set, ok := m.subs[path]
		if ok {
			if _, present := set[id]; present {
				delete(set, id)
				m.active--
				if len(set) == 0 {
					delete(m.subs, path)
				}
			} else {
				ok = false
			}
		}
		active := m.active
		m.mu.Unlock()

		if ok {
			for _, in := range m.instruments {
				in.SubscriptionRemoved(path, active)
			}
		}
	}, nil
}

// Notify fans a change at path out to the registered listeners in four tiers,
// strictly in order:
//
//  1. root listeners (path "") — always invoked with the full root wrapper;
//  2. exact-path listeners — invoked with the change payload itself;
//  3. descendant listeners — every registered strict descendant of path,
//     invoked with its current value resolved through the wrapper tree (nil
//     when it no longer resolves);
//  4. ancestor listeners — every registered prefix of path, shortest first,
//     invoked with its current resolved value.
//
// The fan-out makes subscriptions compositional: a listener on "user" fires
// when "user.name" changes, and a listener on "user.name" fires when "user"
// is replaced wholesale.
func (m *Manager) Notify(root *Node, path string, change any) {
	start := time.Now()

	m.mu.RLock()
	rootCbs := collect(m.subs[""])
	var exactCbs []Callback
	if path != "" {
		exactCbs = collect(m.subs[path])
	}

	var descendants []string
	for registered := range m.subs {
		if statepath.Descends(registered, path) {
			descendants = append(descendants, registered)
		}
	}
	sort.Strings(descendants)
	descendantCbs := make([][]Callback, len(descendants))
	for i, registered := range descendants {
		descendantCbs[i] = collect(m.subs[registered])
	}

	prefixes := statepath.Prefixes(path)
	ancestorCbs := make([][]Callback, len(prefixes))
	for i, prefix := range prefixes {
		ancestorCbs[i] = collect(m.subs[prefix])
	}
	m.mu.RUnlock()

	delivered := 0

	for _, cb := range rootCbs {
		cb(root)
		delivered++
	}
	for _, cb := range exactCbs {
		cb(change)
		delivered++
	}
	for i, registered := range descendants {
		if len(descendantCbs[i]) == 0 {
			continue
		}
		value := resolveCurrent(root, registered)
		for _, cb := range descendantCbs[i] {
			cb(value)
			delivered++
		}
	}
	for i, prefix := range prefixes {
		if len(ancestorCbs[i]) == 0 {
			continue
		}
		value := resolveCurrent(root, prefix)
		for _, cb := range ancestorCbs[i] {
			cb(value)
			delivered++
		}
	}

	for _, in := range m.instruments {
		in.NotifyCompleted(path, delivered, time.Since(start))
	}
}

// observeMutation reports a mutation to the attached instruments.
func (m *Manager) observeMutation(path string, kind Kind) {
	for _, in := range m.instruments {
		in.MutationObserved(path, kind)
	}
}

// collect snapshots a subscriber set so callbacks run without the lock held.
func collect(set map[uint64]Callback) []Callback {
	if len(set) == 0 {
		return nil
	}
	out := make([]Callback, 0, len(set))
	for _, cb := range set {
		out = append(out, cb)
	}
	return out
}

// resolveCurrent resolves a registered path against the root wrapper for
// descendant/ancestor delivery. A path that no longer resolves — for example
// because an ancestor of it was deleted — yields plain nil, not a StateValue:
// there is no longer a parent to resolve a path through.
func resolveCurrent(root *Node, path string) any {
	value, err := root.Resolve(path)
	if err != nil {
		return nil
	}
	return value
}
