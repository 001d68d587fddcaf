package lang

import "testing"

func TestTopoSortLinear(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "a", Type: NodeConstant, Value: Int(1)},
			{ID: "b", Type: NodeOperation, Op: "Identity", Inputs: []string{"a"}},
			{ID: "c", Type: NodeOperation, Op: "Identity", Inputs: []string{"b"}},
		},
		Outputs: []string{"c"},
	}

	sorted, err := g.TopoSort()
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}

	pos := make(map[string]int, len(sorted))
	for i, n := range sorted {
		pos[n.ID] = i
	}
	if pos["a"] >= pos["b"] || pos["b"] >= pos["c"] {
		t.Fatalf("topo order violated dependency edges: %v", pos)
	}
}

func TestTopoSortDetectsCycle(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "a", Type: NodeOperation, Op: "Identity", Inputs: []string{"b"}},
			{ID: "b", Type: NodeOperation, Op: "Identity", Inputs: []string{"a"}},
		},
		Outputs: []string{"a"},
	}

	_, err := g.TopoSort()
	if err == nil {
		t.Fatal("expected cycle error")
	}
	cycleErr, ok := err.(*ErrCycle)
	if !ok {
		t.Fatalf("expected *ErrCycle, got %T", err)
	}
	if len(cycleErr.Cycle) == 0 {
		t.Fatal("expected non-empty cycle path")
	}
}

func TestTopoSortUnknownInput(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "a", Type: NodeOperation, Op: "Identity", Inputs: []string{"missing"}},
		},
		Outputs: []string{"a"},
	}

	_, err := g.TopoSort()
	if err == nil {
		t.Fatal("expected error for reference to unknown node")
	}
}

func TestTopoSortDuplicateID(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "a", Type: NodeConstant, Value: Int(1)},
			{ID: "a", Type: NodeConstant, Value: Int(2)},
		},
		Outputs: []string{"a"},
	}

	_, err := g.TopoSort()
	if err == nil {
		t.Fatal("expected error for duplicate node id")
	}
}

func TestGraphGetNode(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "a", Type: NodeConstant, Value: Int(1)},
		},
	}
	n, ok := g.GetNode("a")
	if !ok || n.ID != "a" {
		t.Fatalf("GetNode(a) = (%v, %v), want a node", n, ok)
	}
	if _, ok := g.GetNode("missing"); ok {
		t.Fatal("GetNode should report ok=false for unknown id")
	}
}

func TestGraphContentHashStableAndSensitive(t *testing.T) {
	g1 := &Graph{Name: "g", Version: 1, Nodes: []Node{{ID: "a", Type: NodeConstant, Value: Int(1)}}}
	g2 := &Graph{Name: "g", Version: 1, Nodes: []Node{{ID: "a", Type: NodeConstant, Value: Int(1)}}}

	h1, err := g1.ContentHash()
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	h2, err := g2.ContentHash()
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	if h1 != h2 {
		t.Fatal("identical graphs should hash identically")
	}

	g2.Nodes[0].Value = Int(2)
	h3, err := g2.ContentHash()
	if err != nil {
		t.Fatalf("ContentHash: %v", err)
	}
	if h1 == h3 {
		t.Fatal("changing a node value should change the content hash")
	}
}

func TestTopoSortDottedInputReference(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{ID: "a", Type: NodeConstant, Value: Map(map[string]Value{"x": Int(1)})},
			{ID: "b", Type: NodeOperation, Op: "Identity", Inputs: []string{"a.x"}},
		},
		Outputs: []string{"b"},
	}
	sorted, err := g.TopoSort()
	if err != nil {
		t.Fatalf("TopoSort: %v", err)
	}
	if len(sorted) != 2 || sorted[0].ID != "a" || sorted[1].ID != "b" {
		t.Fatalf("unexpected sort order: %v", sorted)
	}
}
