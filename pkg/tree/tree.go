// Package tree implements an ordered tree of values stored in a generational
// arena and addressed either by stable node keys or by Path.
package tree

import (
	"errors"
	"fmt"

	"github.com/aretw0/arbor/pkg/arena"
)

var (
	// ErrPathNotFound is returned when a path descends past the existing children.
	ErrPathNotFound = errors.New("path not found")

	// ErrNodeNotFound is returned when a node key is stale.
	ErrNodeNotFound = errors.New("node not found")
)

// PathError reports a failed lookup by path.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("tree path %s: %v", e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// RemoveFunc is invoked for every node removed from the tree, children before
// their parent.
type RemoveFunc[V any] func(id arena.Key, value V)

type node[V any] struct {
	value    V
	parent   arena.Key
	children []arena.Key
}

// Tree is an ordered tree of V. The root is implicit: nodes appended with a
// zero parent key are its children.
//
// A Tree is not safe for concurrent use.
type Tree[V any] struct {
	nodes *arena.Arena[*node[V]]
	roots []arena.Key
}

// New creates an empty tree.
func New[V any]() *Tree[V] {
	return &Tree[V]{nodes: arena.New[*node[V]]()}
}

// Len returns the number of nodes in the tree.
func (t *Tree[V]) Len() int { return t.nodes.Len() }

func (t *Tree[V]) node(id arena.Key) *node[V] {
	n, ok := t.nodes.Get(id)
	if !ok {
		return nil
	}
	return n
}

// Contains reports whether id addresses a live node.
func (t *Tree[V]) Contains(id arena.Key) bool {
	return t.nodes.Contains(id)
}

// Get returns the value stored under id.
func (t *Tree[V]) Get(id arena.Key) (V, bool) {
	n := t.node(id)
	if n == nil {
		var zero V
		return zero, false
	}
	return n.value, true
}

// Set overwrites the value stored under id.
func (t *Tree[V]) Set(id arena.Key, v V) bool {
	n := t.node(id)
	if n == nil {
		return false
	}
	n.value = v
	return true
}

// Update calls fn with a pointer to the value stored under id.
// The pointer must not be retained after fn returns.
func (t *Tree[V]) Update(id arena.Key, fn func(*V)) bool {
	n := t.node(id)
	if n == nil {
		return false
	}
	fn(&n.value)
	return true
}

// children returns the child list of id, the root when id is zero.
func (t *Tree[V]) children(id arena.Key) (*[]arena.Key, error) {
	if id.IsZero() {
		return &t.roots, nil
	}
	n := t.node(id)
	if n == nil {
		return nil, ErrNodeNotFound
	}
	return &n.children, nil
}

// Children returns a copy of the child keys of id. A zero id lists the
// top-level nodes.
func (t *Tree[V]) Children(id arena.Key) []arena.Key {
	list, err := t.children(id)
	if err != nil {
		return nil
	}
	out := make([]arena.Key, len(*list))
	copy(out, *list)
	return out
}

// ChildCount returns the number of children of id.
func (t *Tree[V]) ChildCount(id arena.Key) int {
	list, err := t.children(id)
	if err != nil {
		return 0
	}
	return len(*list)
}

// Parent returns the parent of id. The key is zero for top-level nodes.
func (t *Tree[V]) Parent(id arena.Key) (arena.Key, bool) {
	n := t.node(id)
	if n == nil {
		return arena.Key{}, false
	}
	return n.parent, true
}

// Append adds v as the last child of parent.
func (t *Tree[V]) Append(parent arena.Key, v V) (arena.Key, error) {
	list, err := t.children(parent)
	if err != nil {
		return arena.Key{}, err
	}
	return t.insertAt(parent, list, len(*list), v)
}

// InsertChild adds v as the index-th child of parent, shifting later
// siblings right. index may equal the child count.
func (t *Tree[V]) InsertChild(parent arena.Key, index int, v V) (arena.Key, error) {
	list, err := t.children(parent)
	if err != nil {
		return arena.Key{}, err
	}
	if index < 0 || index > len(*list) {
		return arena.Key{}, ErrPathNotFound
	}
	return t.insertAt(parent, list, index, v)
}

func (t *Tree[V]) insertAt(parent arena.Key, list *[]arena.Key, index int, v V) (arena.Key, error) {
	id := t.nodes.Insert(&node[V]{value: v, parent: parent})
	*list = append(*list, arena.Key{})
	copy((*list)[index+1:], (*list)[index:])
	(*list)[index] = id
	return id, nil
}

// Insert adds v so that it lives at path afterwards. The last segment may
// equal the child count of the parent to append.
func (t *Tree[V]) Insert(path Path, v V) (arena.Key, error) {
	parentPath, ok := path.Parent()
	if !ok {
		return arena.Key{}, &PathError{Path: path.String(), Err: ErrPathNotFound}
	}
	parent, err := t.ID(parentPath)
	if err != nil {
		return arena.Key{}, err
	}
	idx, _ := path.Last()
	id, err := t.InsertChild(parent, idx, v)
	if err != nil {
		return arena.Key{}, &PathError{Path: path.String(), Err: err}
	}
	return id, nil
}

// ID returns the key of the node at path. The empty path yields the zero
// key, which addresses the implicit root.
func (t *Tree[V]) ID(path Path) (arena.Key, error) {
	current := arena.Key{}
	for _, idx := range path {
		list, err := t.children(current)
		if err != nil {
			return arena.Key{}, &PathError{Path: path.String(), Err: err}
		}
		if int(idx) >= len(*list) {
			return arena.Key{}, &PathError{Path: path.String(), Err: ErrPathNotFound}
		}
		current = (*list)[idx]
	}
	return current, nil
}

// PathOf computes the current path of id from the parent links.
func (t *Tree[V]) PathOf(id arena.Key) (Path, bool) {
	var rev []uint32
	current := id
	for !current.IsZero() {
		n := t.node(current)
		if n == nil {
			return nil, false
		}
		list, err := t.children(n.parent)
		if err != nil {
			return nil, false
		}
		idx := indexOf(*list, current)
		if idx < 0 {
			return nil, false
		}
		rev = append(rev, uint32(idx))
		current = n.parent
	}
	out := make(Path, len(rev))
	for i := range rev {
		out[i] = rev[len(rev)-1-i]
	}
	return out, true
}

// Depth returns the number of ancestors of id below the root.
func (t *Tree[V]) Depth(id arena.Key) int {
	depth := -1
	for current := id; !current.IsZero(); depth++ {
		n := t.node(current)
		if n == nil {
			return -1
		}
		current = n.parent
	}
	return depth
}

func indexOf(list []arena.Key, id arena.Key) int {
	for i, k := range list {
		if k == id {
			return i
		}
	}
	return -1
}

// Remove detaches the node at path together with its subtree.
func (t *Tree[V]) Remove(path Path, onRemove RemoveFunc[V]) error {
	if len(path) == 0 {
		return &PathError{Path: path.String(), Err: ErrPathNotFound}
	}
	id, err := t.ID(path)
	if err != nil {
		return err
	}
	t.RemoveID(id, onRemove)
	return nil
}

// RemoveID detaches id and its subtree. Later siblings shift left; all other
// nodes keep their paths. It reports false when id is stale.
func (t *Tree[V]) RemoveID(id arena.Key, onRemove RemoveFunc[V]) bool {
	n := t.node(id)
	if n == nil {
		return false
	}
	if list, err := t.children(n.parent); err == nil {
		if idx := indexOf(*list, id); idx >= 0 {
			*list = append((*list)[:idx], (*list)[idx+1:]...)
		}
	}
	t.drop(id, onRemove)
	return true
}

// RemoveChildren removes every child subtree of id, keeping id itself.
func (t *Tree[V]) RemoveChildren(id arena.Key, onRemove RemoveFunc[V]) {
	list, err := t.children(id)
	if err != nil {
		return
	}
	kids := *list
	*list = nil
	for _, child := range kids {
		t.drop(child, onRemove)
	}
}

// drop frees id and its descendants without touching the parent's child list.
func (t *Tree[V]) drop(id arena.Key, onRemove RemoveFunc[V]) {
	n := t.node(id)
	if n == nil {
		return
	}
	for _, child := range n.children {
		t.drop(child, onRemove)
	}
	t.nodes.Remove(id)
	if onRemove != nil {
		onRemove(id, n.value)
	}
}

// WalkFunc is called for every visited node. Returning false skips the
// node's children.
type WalkFunc[V any] func(id arena.Key, path Path, value V) bool

// Walk visits every node depth-first in pre-order.
func (t *Tree[V]) Walk(fn WalkFunc[V]) {
	for i, id := range t.roots {
		t.walk(id, Path{uint32(i)}, fn)
	}
}

// WalkFrom visits id and its descendants in pre-order.
func (t *Tree[V]) WalkFrom(id arena.Key, fn WalkFunc[V]) {
	path, ok := t.PathOf(id)
	if !ok {
		return
	}
	t.walk(id, path, fn)
}

func (t *Tree[V]) walk(id arena.Key, path Path, fn WalkFunc[V]) {
	n := t.node(id)
	if n == nil {
		return
	}
	if !fn(id, path, n.value) {
		return
	}
	for i, child := range n.children {
		t.walk(child, path.Child(i), fn)
	}
}
