package strata

// StateValue is the immutable record produced whenever a leaf (non-composite)
// property is read or changed. It carries the raw value together with the
// absolute path it was read through and the owning root wrapper, so that
// "no value" and path-resolution context survive outside the wrapper boundary.
//
// Composite properties are returned as *Node, never as a StateValue; a
// subscriber must handle both shapes.
type StateValue struct {
	// Value is the raw leaf value. It is nil when Absent is true.
	Value any

	// Key is the absolute path this value was read through, e.g. "user.name".
	Key string

	// Root is the root wrapper of the tree the value belongs to.
	Root *Node

	// Absent marks a key that does not exist (or was just deleted).
	Absent bool
}

// Path returns the absolute path the value was read through.
func (v StateValue) Path() string {
	return v.Key
}

// IsAbsent reports whether the addressed key does not exist.
func (v StateValue) IsAbsent() bool {
	return v.Absent
}

// leafValue builds the StateValue for a present leaf.
func leafValue(value any, key string, root *Node) StateValue {
	return StateValue{Value: value, Key: key, Root: root}
}

// absentValue builds the StateValue for a missing or deleted key.
func absentValue(key string, root *Node) StateValue {
	return StateValue{Key: key, Root: root, Absent: true}
}
