package domain

import (
	"reflect"
)

// Change operations reported by Diff.
const (
	ChangeAdded   = "added"
	ChangeRemoved = "removed"
	ChangeUpdated = "updated"
)

// TreeChange describes one difference between two snapshots of the node tree.
// It is designed to be serialized to JSON for partial updates on a client.
type TreeChange struct {
	Op   string `json:"op"`
	Path string `json:"path"`

	// Node is the new version for added/updated nodes, and the old one for removed nodes.
	Node NodeSnapshot `json:"node"`

	// Fields lists which properties changed for updated nodes.
	Fields []string `json:"fields,omitempty"`
}

// Diff compares two snapshots position by position.
// If oldNodes is nil, every node in newNodes is reported as added (initial load).
// Children of added or removed nodes are not reported separately.
func Diff(oldNodes, newNodes []NodeSnapshot) []TreeChange {
	var changes []TreeChange
	diffLevel(oldNodes, newNodes, &changes)
	return changes
}

func diffLevel(oldNodes, newNodes []NodeSnapshot, out *[]TreeChange) {
	for i := 0; i < len(oldNodes) || i < len(newNodes); i++ {
		switch {
		case i >= len(oldNodes):
			*out = append(*out, TreeChange{Op: ChangeAdded, Path: newNodes[i].Path, Node: shallow(newNodes[i])})
		case i >= len(newNodes):
			*out = append(*out, TreeChange{Op: ChangeRemoved, Path: oldNodes[i].Path, Node: shallow(oldNodes[i])})
		default:
			oldNode, newNode := oldNodes[i], newNodes[i]
			if oldNode.Kind != newNode.Kind || oldNode.Ident != newNode.Ident {
				// A different node now lives at this position.
				*out = append(*out, TreeChange{Op: ChangeRemoved, Path: oldNode.Path, Node: shallow(oldNode)})
				*out = append(*out, TreeChange{Op: ChangeAdded, Path: newNode.Path, Node: shallow(newNode)})
				continue
			}
			if fields := diffFields(oldNode, newNode); len(fields) > 0 {
				*out = append(*out, TreeChange{Op: ChangeUpdated, Path: newNode.Path, Node: shallow(newNode), Fields: fields})
			}
			diffLevel(oldNode.Children, newNode.Children, out)
		}
	}
}

func diffFields(oldNode, newNode NodeSnapshot) []string {
	var fields []string
	if oldNode.Text != newNode.Text {
		fields = append(fields, "text")
	}
	// Treat nil and empty attribute maps the same.
	if (len(oldNode.Attributes) > 0 || len(newNode.Attributes) > 0) &&
		!reflect.DeepEqual(oldNode.Attributes, newNode.Attributes) {
		fields = append(fields, "attributes")
	}
	return fields
}

func shallow(n NodeSnapshot) NodeSnapshot {
	n.Children = nil
	return n
}
