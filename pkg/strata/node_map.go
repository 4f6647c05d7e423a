package strata

import (
	"time"

	"github.com/strata-dev/strata/pkg/statepath"
)

// Map operations. These are the natural mutation path for KindMap nodes;
// property assignment via Set deliberately bypasses them (see Set).
// Entry paths use bracket notation: "userMap[u1]".

// MapGet reads the entry for key: the stored child wrapper for composites
// (never re-wrapped, so repeated reads return the same instance) or a
// StateValue for leaves. A missing key resolves to an absent StateValue.
func (n *Node) MapGet(key string) any {
	if n.kind != KindMap {
		return absentValue(statepath.Entry(n.path, key), n.Root())
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	child, ok := n.entries.Get(key)
	if !ok {
		return absentValue(statepath.Entry(n.path, key), n.Root())
	}
	return n.childValue(child, statepath.Entry(n.path, key))
}

// MapSet stores value under key, wrapping composites, and notifies the entry
// path followed by the map's own path.
func (n *Node) MapSet(key string, value any) {
	if n.kind != KindMap {
		return
	}

	path := statepath.Entry(n.path, key)
	wrapped := wrap(value, path, n.Root())

	n.mu.Lock()
	n.entries.Set(key, wrapped)
	n.mu.Unlock()

	n.observeMutation(path)
	n.notify(path, n.payload(wrapped, path))
	n.notify(n.path, n)
}

// MapDelete removes the entry for key. If the key existed, the entry path is
// notified with an absent StateValue and the map path with the updated map,
// and MapDelete reports true. Deleting a missing key notifies neither.
func (n *Node) MapDelete(key string) bool {
	if n.kind != KindMap {
		return false
	}

	path := statepath.Entry(n.path, key)

	n.mu.Lock()
	_, existed := n.entries.Delete(key)
	n.mu.Unlock()

	if !existed {
		return false
	}

	n.observeMutation(path)
	n.notify(path, absentValue(path, n.Root()))
	n.notify(n.path, n)
	return true
}

// Clear removes every entry, notifying each existing entry path with an
// absent StateValue and then the map path exactly once.
func (n *Node) Clear() {
	if n.kind != KindMap {
		return
	}

	n.mu.Lock()
	keys := make([]string, 0, n.entries.Len())
	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	for _, key := range keys {
		n.entries.Delete(key)
	}
	n.mu.Unlock()

	n.observeMutation(n.path)
	for _, key := range keys {
		path := statepath.Entry(n.path, key)
		n.notify(path, absentValue(path, n.Root()))
	}
	n.notify(n.path, n)
}

// MapHas reports whether an entry exists for key.
func (n *Node) MapHas(key string) bool {
	if n.kind != KindMap {
		return false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.entries.Get(key)
	return ok
}

// Size returns the entry count.
func (n *Node) Size() int {
	if n.kind != KindMap {
		return 0
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.entries.Len()
}

// MapKeys returns the keys in insertion order.
func (n *Node) MapKeys() []string {
	if n.kind != KindMap {
		return nil
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	keys := make([]string, 0, n.entries.Len())
	for pair := n.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Time returns the wrapped time of a KindDate node (zero otherwise).
func (n *Node) Time() time.Time {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.date
}

// SetTime replaces the wrapped time and notifies the node's own path.
func (n *Node) SetTime(t time.Time) {
	if n.kind != KindDate {
		return
	}

	n.mu.Lock()
	n.date = t
	n.mu.Unlock()

	n.observeMutation(n.path)
	n.notify(n.path, n)
}
