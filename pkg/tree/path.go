package tree

import (
	"strconv"
	"strings"
)

// Path locates a node by the child index taken at every level, starting
// below the root. The empty path addresses the root itself.
//
// A Path is computed from the current structure. Inserting or removing a
// sibling shifts the indices of the nodes after it, so a Path must be
// recomputed after a structural mutation.
//
// Indices are as wide as arena indices, so any child position a tree can
// hold is addressable.
type Path []uint32

// Child returns a new path addressing the i-th child of p.
func (p Path) Child(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = uint32(i)
	return out
}

// Parent returns the path of the parent of p.
// It reports false for the root path.
func (p Path) Parent() (Path, bool) {
	if len(p) == 0 {
		return nil, false
	}
	return p[:len(p)-1:len(p)-1], true
}

// Last returns the index of p within its parent.
func (p Path) Last() (int, bool) {
	if len(p) == 0 {
		return 0, false
	}
	return int(p[len(p)-1]), true
}

// Equal reports whether both paths address the same position.
func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor of (or equal to) p.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Compare orders paths in pre-order: ancestors sort before descendants and
// earlier siblings before later ones.
func (p Path) Compare(o Path) int {
	for i := 0; i < len(p) && i < len(o); i++ {
		switch {
		case p[i] < o[i]:
			return -1
		case p[i] > o[i]:
			return 1
		}
	}
	switch {
	case len(p) < len(o):
		return -1
	case len(p) > len(o):
		return 1
	}
	return 0
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(int(idx))
	}
	return "[" + strings.Join(parts, ".") + "]"
}

// ParsePath parses a path written as indices separated by '.' or '/'.
// Brackets are optional, so both "[0.2]" and "0/2" are accepted.
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.Trim(s, "/.")
	if s == "" {
		return Path{}, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '/' })
	out := make(Path, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, &PathError{Path: s, Err: err}
		}
		out = append(out, uint32(n))
	}
	return out, nil
}
