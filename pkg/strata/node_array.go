package strata

import (
	"sort"
	"strconv"

	"github.com/strata-dev/strata/pkg/statepath"
)

// Array mutators. All of them are valid on KindArray nodes only and follow
// the same granularity contract: elements introduced by the call are wrapped
// before the underlying slice is touched, and the array's own path is
// notified exactly once per call regardless of how many elements changed.
// Bulk operations are deliberately coarse.

// At reads the element at index i; see Get.
func (n *Node) At(i int) any {
	return n.Get(strconv.Itoa(i))
}

// SetIndex assigns the element at index i, auto-growing the array when i is
// at or past the end (intervening slots fill with nil). Growth notifies both
// the element and the array; an in-range assignment notifies the element
// only. Negative indices fail with ErrInvalidIndex.
//
// Note the asymmetry with the store's validated path API, which rejects
// out-of-range indices instead of growing.
func (n *Node) SetIndex(i int, value any) error {
	if n.kind != KindArray || i < 0 {
		return ErrInvalidIndex
	}

	path := statepath.Index(n.path, i)
	wrapped := wrap(value, path, n.Root())

	n.mu.Lock()
	grew := false
	for i >= len(n.arr) {
		n.arr = append(n.arr, nil)
		grew = true
	}
	n.arr[i] = wrapped
	n.mu.Unlock()

	n.observeMutation(path)
	n.notify(path, n.payload(wrapped, path))
	if grew {
		n.notify(n.path, n)
	}
	return nil
}

// SetLength resizes the array. Shrinking notifies one absent StateValue per
// removed trailing element; growing fills with nil. Either way the array's
// own path is notified once afterwards.
func (n *Node) SetLength(length int) error {
	if n.kind != KindArray || length < 0 {
		return ErrInvalidIndex
	}

	n.mu.Lock()
	var removed []string
	if length < len(n.arr) {
		for i := length; i < len(n.arr); i++ {
			removed = append(removed, statepath.Index(n.path, i))
		}
		n.arr = n.arr[:length]
	} else {
		for len(n.arr) < length {
			n.arr = append(n.arr, nil)
		}
	}
	n.mu.Unlock()

	n.observeMutation(statepath.Join(n.path, "length"))
	for _, path := range removed {
		n.notify(path, absentValue(path, n.Root()))
	}
	n.notify(n.path, n)
	return nil
}

// Push appends items and returns the new length.
func (n *Node) Push(items ...any) int {
	if n.kind != KindArray {
		return 0
	}

	n.mu.Lock()
	for _, item := range items {
		n.arr = append(n.arr, wrap(item, statepath.Index(n.path, len(n.arr)), n.Root()))
	}
	length := len(n.arr)
	n.mu.Unlock()

	n.observeMutation(n.path)
	n.notify(n.path, n)
	return length
}

// Pop removes and returns the last element (nil on an empty array).
func (n *Node) Pop() any {
	if n.kind != KindArray {
		return nil
	}

	n.mu.Lock()
	var out any
	if len(n.arr) > 0 {
		out = n.arr[len(n.arr)-1]
		n.arr = n.arr[:len(n.arr)-1]
	}
	n.mu.Unlock()

	n.observeMutation(n.path)
	n.notify(n.path, n)
	return out
}

// Shift removes and returns the first element, shifting the rest down.
func (n *Node) Shift() any {
	if n.kind != KindArray {
		return nil
	}

	n.mu.Lock()
	var out any
	if len(n.arr) > 0 {
		out = n.arr[0]
		n.arr = append([]any{}, n.arr[1:]...)
	}
	rest := append([]any{}, n.arr...)
	n.mu.Unlock()

	n.reindex(rest)
	n.observeMutation(n.path)
	n.notify(n.path, n)
	return out
}

// Unshift prepends items and returns the new length.
func (n *Node) Unshift(items ...any) int {
	if n.kind != KindArray {
		return 0
	}

	n.mu.Lock()
	head := make([]any, len(items))
	for i, item := range items {
		head[i] = wrap(item, statepath.Index(n.path, i), n.Root())
	}
	n.arr = append(head, n.arr...)
	length := len(n.arr)
	all := append([]any{}, n.arr...)
	n.mu.Unlock()

	n.reindex(all)
	n.observeMutation(n.path)
	n.notify(n.path, n)
	return length
}

// Splice removes deleteCount elements starting at start, inserts items in
// their place, and returns the removed elements. Negative start counts from
// the end; start and deleteCount are clamped to the array bounds.
func (n *Node) Splice(start, deleteCount int, items ...any) []any {
	if n.kind != KindArray {
		return nil
	}

	n.mu.Lock()
	length := len(n.arr)
	if start < 0 {
		start = length + start
	}
	if start < 0 {
		start = 0
	}
	if start > length {
		start = length
	}
	if deleteCount < 0 {
		deleteCount = 0
	}
	if deleteCount > length-start {
		deleteCount = length - start
	}

	removed := append([]any{}, n.arr[start:start+deleteCount]...)

	inserted := make([]any, len(items))
	for i, item := range items {
		inserted[i] = wrap(item, statepath.Index(n.path, start+i), n.Root())
	}

	next := make([]any, 0, length-deleteCount+len(items))
	next = append(next, n.arr[:start]...)
	next = append(next, inserted...)
	next = append(next, n.arr[start+deleteCount:]...)
	n.arr = next
	all := append([]any{}, n.arr...)
	n.mu.Unlock()

	n.reindex(all)
	n.observeMutation(n.path)
	n.notify(n.path, n)
	return removed
}

// Fill assigns value to every slot in [start, end). Negative bounds count
// from the end; each slot receives its own wrapped copy of value.
func (n *Node) Fill(value any, start, end int) {
	if n.kind != KindArray {
		return
	}

	n.mu.Lock()
	length := len(n.arr)
	start, end = clampRange(start, end, length)
	for i := start; i < end; i++ {
		n.arr[i] = wrap(value, statepath.Index(n.path, i), n.Root())
	}
	n.mu.Unlock()

	n.observeMutation(n.path)
	n.notify(n.path, n)
}

// SortFunc sorts the array in place using less over raw element snapshots.
// The sort is stable.
func (n *Node) SortFunc(less func(a, b any) bool) {
	if n.kind != KindArray {
		return
	}

	n.mu.Lock()
	sort.SliceStable(n.arr, func(i, j int) bool {
		return less(rawElement(n.arr[i]), rawElement(n.arr[j]))
	})
	all := append([]any{}, n.arr...)
	n.mu.Unlock()

	n.reindex(all)
	n.observeMutation(n.path)
	n.notify(n.path, n)
}

// Reverse reverses the array in place.
func (n *Node) Reverse() {
	if n.kind != KindArray {
		return
	}

	n.mu.Lock()
	for i, j := 0, len(n.arr)-1; i < j; i, j = i+1, j-1 {
		n.arr[i], n.arr[j] = n.arr[j], n.arr[i]
	}
	all := append([]any{}, n.arr...)
	n.mu.Unlock()

	n.reindex(all)
	n.observeMutation(n.path)
	n.notify(n.path, n)
}

// Concat returns a plain slice holding this array's raw elements followed by
// items, with slice arguments flattened one level. The receiver is not
// modified, but its path is still notified once — preserved behavior of the
// interception layer this design descends from.
func (n *Node) Concat(items ...any) []any {
	if n.kind != KindArray {
		return nil
	}

	out := n.Raw().([]any)
	for _, item := range items {
		switch v := normalize(item).(type) {
		case []any:
			out = append(out, v...)
		case *Node:
			if v.kind == KindArray {
				out = append(out, v.Raw().([]any)...)
			} else {
				out = append(out, v.Raw())
			}
		default:
			out = append(out, v)
		}
	}

	n.notify(n.path, n)
	return out
}

// CopyWithin copies the elements in [start, end) to the region beginning at
// target, in place. Negative bounds count from the end. Copied composites are
// re-wrapped at their destination paths.
func (n *Node) CopyWithin(target, start, end int) {
	if n.kind != KindArray {
		return
	}

	n.mu.Lock()
	length := len(n.arr)
	if target < 0 {
		target = length + target
	}
	if target < 0 {
		target = 0
	}
	if target > length {
		target = length
	}
	start, end = clampRange(start, end, length)

	for i := start; i < end && target < length; i, target = i+1, target+1 {
		n.arr[target] = wrap(rawElement(n.arr[i]), statepath.Index(n.path, target), n.Root())
	}
	n.mu.Unlock()

	n.observeMutation(n.path)
	n.notify(n.path, n)
}

// reindex re-bases every composite element to the path of its current index.
func (n *Node) reindex(elements []any) {
	for i, element := range elements {
		if node, ok := element.(*Node); ok {
			node.rebase(statepath.Index(n.path, i))
		}
	}
}

// rawElement unwraps a stored element to its plain form.
func rawElement(element any) any {
	if node, ok := element.(*Node); ok {
		return node.Raw()
	}
	return element
}

// clampRange normalizes a [start, end) pair against length, with negative
// values counting from the end.
func clampRange(start, end, length int) (int, int) {
	if start < 0 {
		start = length + start
	}
	if start < 0 {
		start = 0
	}
	if start > length {
		start = length
	}
	if end < 0 {
		end = length + end
	}
	if end < start {
		end = start
	}
	if end > length {
		end = length
	}
	return start, end
}
