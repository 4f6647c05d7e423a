// Package statepath parses and resolves the dotted/bracketed path strings
// used to address locations in a state tree (e.g. "user.items[2].name").
//
// A path is a sequence of segments: a leading identifier followed by
// ".identifier" or "[key]" steps. Dot segments may be purely numeric, so
// "a.0" and "a[0]" address the same slot. The empty path addresses the root.
package statepath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path errors.
var (
	ErrInvalidPath  = errors.New("statepath: invalid path")
	ErrInvalidIndex = errors.New("statepath: invalid array index")
)

// Validate checks a path against the grammar.
//
// Rules:
//   - the empty path is valid (it addresses the root)
//   - the first character must be a letter, underscore or "$"
//   - dot segments are one or more of [A-Za-z0-9_$] (leading digits allowed)
//   - bracket segments are non-empty and may contain any character except
//     "[" and "]"
//   - consecutive dots, trailing dots, empty brackets and unterminated
//     brackets are rejected
func Validate(path string) error {
	_, err := Split(path)
	return err
}

// Split breaks a path into its ordered segments, with bracket delimiters
// stripped: "a.b[2].c" yields ["a", "b", "2", "c"].
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	var segs []string
	i := 0
	n := len(path)

	// Leading identifier.
	if !isIdentStart(path[0]) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for i < n && isIdentPart(path[i]) {
		i++
	}
	segs = append(segs, path[:i])

	for i < n {
		switch path[i] {
		case '.':
			i++
			start := i
			for i < n && isIdentPart(path[i]) {
				i++
			}
			if i == start {
				// Consecutive or trailing dot, or an illegal character
				// such as "-" right after the dot.
				return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
			}
			segs = append(segs, path[start:i])
		case '[':
			i++
			start := i
			for i < n && path[i] != ']' && path[i] != '[' {
				i++
			}
			if i == n || path[i] != ']' || i == start {
				return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
			}
			segs = append(segs, path[start:i])
			i++
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// Prefixes returns the strict ancestor paths of path, shortest first:
// "a.b[2].c" yields ["a", "a.b", "a.b[2]"]. The root path has no prefixes
// (the root tier of notification handles it separately).
func Prefixes(path string) []string {
	var prefixes []string
	depth := 0
	for i := 0; i < len(path); i++ {
		switch path[i] {
		case '[':
			if depth == 0 && i > 0 {
				prefixes = append(prefixes, path[:i])
			}
			depth++
		case ']':
			depth--
		case '.':
			if depth == 0 {
				prefixes = append(prefixes, path[:i])
			}
		}
	}
	return prefixes
}

// Descends reports whether candidate strictly descends from base.
// Every non-root path descends from the root path "".
func Descends(candidate, base string) bool {
	if candidate == base {
		return false
	}
	if base == "" {
		return candidate != ""
	}
	return strings.HasPrefix(candidate, base+".") || strings.HasPrefix(candidate, base+"[")
}

// Join appends a key segment to base using dot notation.
func Join(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

// Index appends an array index segment to base using bracket notation.
func Index(base string, i int) string {
	return base + "[" + strconv.Itoa(i) + "]"
}

// Entry appends a map entry segment to base using bracket notation.
func Entry(base, key string) string {
	return base + "[" + key + "]"
}

// Get resolves path against a plain tree of map[string]any and []any nodes
// via plain property access. Missing data resolves to nil rather than an
// error; only malformed syntax fails.
func Get(root any, path string) (any, error) {
	segs, err := Split(path)
	if err != nil {
		return nil, err
	}

	cur := root
	for _, seg := range segs {
		switch node := cur.(type) {
		case map[string]any:
			cur = node[seg]
		case []any:
			if seg == "length" {
				cur = len(node)
				continue
			}
			idx, convErr := strconv.Atoi(seg)
			if convErr != nil || idx < 0 || idx >= len(node) {
				return nil, nil
			}
			cur = node[idx]
		default:
			return nil, nil
		}
	}
	return cur, nil
}

// Set assigns value at path, creating intermediate plain objects for any
// missing segment. Slices along the way are addressed by in-range index;
// anything else out of range fails with ErrInvalidIndex. Array growth and
// map semantics live in the reactive layer, not here.
func Set(root map[string]any, path string, value any) error {
	segs, err := Split(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("%w: cannot assign the root", ErrInvalidPath)
	}

	var cur any = root
	for _, seg := range segs[:len(segs)-1] {
		switch node := cur.(type) {
		case map[string]any:
			child, ok := node[seg]
			switch child.(type) {
			case map[string]any, []any:
			default:
				ok = false
			}
			if !ok {
				child = map[string]any{}
				node[seg] = child
			}
			cur = child
		case []any:
			idx, convErr := strconv.Atoi(seg)
			if convErr != nil || idx < 0 || idx >= len(node) {
				return fmt.Errorf("%w: %q", ErrInvalidIndex, seg)
			}
			switch node[idx].(type) {
			case map[string]any, []any:
			default:
				node[idx] = map[string]any{}
			}
			cur = node[idx]
		default:
			return fmt.Errorf("%w: %q is not addressable", ErrInvalidPath, seg)
		}
	}

	last := segs[len(segs)-1]
	switch node := cur.(type) {
	case map[string]any:
		node[last] = value
	case []any:
		idx, convErr := strconv.Atoi(last)
		if convErr != nil || idx < 0 || idx >= len(node) {
			return fmt.Errorf("%w: %q", ErrInvalidIndex, last)
		}
		node[idx] = value
	default:
		return fmt.Errorf("%w: %q is not addressable", ErrInvalidPath, last)
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
