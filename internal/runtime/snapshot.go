package runtime

import (
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/tree"
)

// Snapshot copies the generated tree into plain data.
func (g *Generator) Snapshot() []domain.NodeSnapshot {
	return g.snapshot(domain.NodeID{}, nil)
}

// SnapshotAt copies the subtree rooted at path.
func (g *Generator) SnapshotAt(path tree.Path) (domain.NodeSnapshot, error) {
	id, err := g.tree.ID(path)
	if err != nil {
		return domain.NodeSnapshot{}, err
	}
	n, _ := g.tree.Get(id)
	return g.snapshotNode(id, path, n), nil
}

func (g *Generator) snapshot(parent domain.NodeID, path tree.Path) []domain.NodeSnapshot {
	kids := g.tree.Children(parent)
	if len(kids) == 0 {
		return nil
	}
	out := make([]domain.NodeSnapshot, 0, len(kids))
	for i, id := range kids {
		n, _ := g.tree.Get(id)
		out = append(out, g.snapshotNode(id, path.Child(i), n))
	}
	return out
}

func (g *Generator) snapshotNode(id domain.NodeID, path tree.Path, n Node) domain.NodeSnapshot {
	s := domain.NodeSnapshot{
		ID:       id.String(),
		Path:     path.String(),
		Kind:     n.Kind.String(),
		Ident:    n.Ident,
		Text:     n.Text.String(),
		Children: g.snapshot(id, path),
	}
	if len(n.Attributes) > 0 {
		s.Attributes = make(map[string]any, len(n.Attributes))
		for k, v := range n.Attributes {
			s.Attributes[k] = v.Any()
		}
	}
	return s
}

// Measure sizes the whole tree. Top-level nodes are measured under c and
// combined by l as children of an implicit root.
func (g *Generator) Measure(l ports.Layout, c ports.Constraints) ports.Size {
	root := ports.LayoutNode{Kind: "root"}
	return g.measureChildren(l, domain.NodeID{}, root, c)
}

// MeasureAt sizes the node at path. Constraints are narrowed by the
// implicit root and every ancestor on the way down, as they would be during
// a full Measure.
func (g *Generator) MeasureAt(l ports.Layout, path tree.Path, c ports.Constraints) (ports.Size, error) {
	c = l.Constrain(ports.LayoutNode{Kind: "root"}, c)
	return tree.Find[Node, ports.Size](g.tree, path, &measureFinder{g: g, layout: l, c: c})
}

type measureFinder struct {
	g      *Generator
	layout ports.Layout
	c      ports.Constraints
}

func (f *measureFinder) Parent(n *Node, _ tree.Path) {
	f.c = f.layout.Constrain(n.layoutNode(), f.c)
}

func (f *measureFinder) Apply(n *Node, path tree.Path, t *tree.Tree[Node]) ports.Size {
	id, err := t.ID(path)
	if err != nil {
		return ports.Size{}
	}
	return f.g.measureChildren(f.layout, id, n.layoutNode(), f.c)
}

func (g *Generator) measureChildren(l ports.Layout, id domain.NodeID, node ports.LayoutNode, c ports.Constraints) ports.Size {
	inner := l.Constrain(node, c)
	kids := g.tree.Children(id)
	sizes := make([]ports.Size, 0, len(kids))
	for _, kid := range kids {
		n, _ := g.tree.Get(kid)
		sizes = append(sizes, g.measureChildren(l, kid, n.layoutNode(), inner))
	}
	return l.Measure(node, sizes, c)
}
