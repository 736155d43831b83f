package value

import (
	"strconv"
	"strings"
)

// Segment is one step of a Path: a field name or a list index.
type Segment struct {
	Name    string
	Index   int
	IsIndex bool
}

// Key returns a field segment.
func Key(name string) Segment { return Segment{Name: name} }

// At returns an index segment.
func At(i int) Segment { return Segment{Index: i, IsIndex: true} }

func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Name
}

// Path is a sequence of segments resolved left to right, such as
// `user.tags.0`.
type Path []Segment

// ParsePath splits a dotted path. Segments made only of digits are indices.
// Bracketed indices (`items[2]`) are accepted as well.
func ParsePath(s string) Path {
	s = strings.NewReplacer("[", ".", "]", "").Replace(s)
	var out Path
	for _, part := range strings.Split(s, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if i, err := strconv.Atoi(part); err == nil && i >= 0 {
			out = append(out, At(i))
			continue
		}
		out = append(out, Key(part))
	}
	return out
}

// Append returns a new path with segs added.
func (p Path) Append(segs ...Segment) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Lookup resolves p inside v. Missing fields and out-of-range indices
// yield Null, which propagates through the remaining segments.
func (v Value) Lookup(p Path) Value {
	current := v
	for _, seg := range p {
		if seg.IsIndex {
			current = current.Index(seg.Index)
		} else {
			current = current.Field(seg.Name)
		}
	}
	return current
}
