package domain

// NodeSnapshot is a serialisable copy of one generated node and its subtree.
type NodeSnapshot struct {
	ID         string         `json:"id"`
	Path       string         `json:"path"`
	Kind       string         `json:"kind"`
	Ident      string         `json:"ident,omitempty"`
	Text       string         `json:"text,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Children   []NodeSnapshot `json:"children,omitempty"`
}

// Count returns the number of nodes in the snapshot forest.
func Count(nodes []NodeSnapshot) int {
	n := 0
	for _, node := range nodes {
		n += 1 + Count(node.Children)
	}
	return n
}
