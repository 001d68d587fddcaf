package skill

import (
	"testing"

	"github.com/rakunlabs/pcgate/internal/lang"
)

func greetGraph() *Graph {
	return &Graph{
		Graph: lang.Graph{
			Name: "greet",
			Nodes: []lang.Node{
				{ID: "in", Type: lang.NodeExternal, URI: "input://name"},
				{ID: "greeting", Type: lang.NodeOperation, Op: "Concat", Inputs: []string{"in"}},
			},
			Outputs: []string{"greeting"},
		},
	}
}

func shoutGraph() *Graph {
	return &Graph{
		Graph: lang.Graph{
			Name: "shout",
			Nodes: []lang.Node{
				{ID: "in", Type: lang.NodeExternal, URI: "input://text"},
				{ID: "upper", Type: lang.NodeOperation, Op: "ToUpper", Inputs: []string{"in"}},
			},
			Outputs: []string{"upper"},
		},
	}
}

func TestComposeSingleSkill(t *testing.T) {
	c := NewComposer()
	hash, err := c.AddSkill(greetGraph())
	if err != nil {
		t.Fatalf("add skill: %v", err)
	}

	composed, err := c.Compose("greet-only")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(composed.Graph.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(composed.Graph.Nodes))
	}
	if len(composed.Graph.Outputs) != 1 {
		t.Fatalf("expected 1 output, got %d", len(composed.Graph.Outputs))
	}
	if len(composed.SourceSkills) != 1 || composed.SourceSkills[0] != hash {
		t.Fatalf("expected source skills to contain the one added hash")
	}
}

func TestComposeWithConnectionInsertsBridge(t *testing.T) {
	c := NewComposer()
	greet, err := c.AddSkill(greetGraph())
	if err != nil {
		t.Fatalf("add greet: %v", err)
	}
	shout, err := c.AddSkill(shoutGraph())
	if err != nil {
		t.Fatalf("add shout: %v", err)
	}
	c.Connect(greet, "greeting", shout, "text")

	composed, err := c.Compose("greet-then-shout")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	foundBridge := false
	for _, n := range composed.Graph.Nodes {
		if n.ID == "bridge_0" {
			foundBridge = true
			if len(n.Inputs) != 1 {
				t.Fatalf("expected bridge node to have exactly one input")
			}
		}
	}
	if !foundBridge {
		t.Fatalf("expected a bridge_0 node to be inserted")
	}

	// Only shout's output should surface, since greet now has an outgoing
	// connection and is no longer a terminal skill.
	if len(composed.Graph.Outputs) != 1 {
		t.Fatalf("expected 1 composed output, got %d: %v", len(composed.Graph.Outputs), composed.Graph.Outputs)
	}
}

func TestComposeDetectsCycle(t *testing.T) {
	c := NewComposer()
	greet, err := c.AddSkill(greetGraph())
	if err != nil {
		t.Fatalf("add greet: %v", err)
	}
	shout, err := c.AddSkill(shoutGraph())
	if err != nil {
		t.Fatalf("add shout: %v", err)
	}
	c.Connect(greet, "greeting", shout, "text")
	c.Connect(shout, "upper", greet, "name")

	_, err = c.Compose("cyclic")
	if err == nil {
		t.Fatalf("expected cycle detection to fail composition")
	}
	ce, ok := err.(*ErrCompose)
	if !ok || ce.Kind != "cycle" {
		t.Fatalf("expected cycle ErrCompose, got %v", err)
	}
}

func TestComposeRejectsUnknownOutput(t *testing.T) {
	c := NewComposer()
	greet, err := c.AddSkill(greetGraph())
	if err != nil {
		t.Fatalf("add greet: %v", err)
	}
	shout, err := c.AddSkill(shoutGraph())
	if err != nil {
		t.Fatalf("add shout: %v", err)
	}
	c.Connect(greet, "does-not-exist", shout, "text")

	_, err = c.Compose("bad")
	if err == nil {
		t.Fatalf("expected unknown output to fail composition")
	}
	ce, ok := err.(*ErrCompose)
	if !ok || ce.Kind != "output_not_found" {
		t.Fatalf("expected output_not_found ErrCompose, got %v", err)
	}
}

func TestComposeEmptyFails(t *testing.T) {
	c := NewComposer()
	_, err := c.Compose("empty")
	if err == nil {
		t.Fatalf("expected empty composer to fail")
	}
	ce, ok := err.(*ErrCompose)
	if !ok || ce.Kind != "empty" {
		t.Fatalf("expected empty ErrCompose, got %v", err)
	}
}

func TestCombineProofsFloorsAndAnds(t *testing.T) {
	c := NewComposer()
	g1 := greetGraph()
	g1.Proof = &SafetyProof{MaxSteps: 500, FuelBudget: 5000, MemoryBound: 512, HaltingProven: true}
	g2 := shoutGraph()
	g2.Proof = &SafetyProof{MaxSteps: 800, FuelBudget: 6000, MemoryBound: 256, HaltingProven: false}

	if _, err := c.AddSkill(g1); err != nil {
		t.Fatalf("add g1: %v", err)
	}
	if _, err := c.AddSkill(g2); err != nil {
		t.Fatalf("add g2: %v", err)
	}

	composed, err := c.Compose("combined")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if composed.Graph.Proof.HaltingProven {
		t.Fatalf("expected HaltingProven to be false when any source skill is unproven")
	}
	if composed.Graph.Proof.MaxSteps < 1000 {
		t.Fatalf("expected MaxSteps floor of 1000, got %d", composed.Graph.Proof.MaxSteps)
	}
}

func TestSkillAndConnectionCount(t *testing.T) {
	c := NewComposer()
	greet, _ := c.AddSkill(greetGraph())
	shout, _ := c.AddSkill(shoutGraph())
	c.Connect(greet, "greeting", shout, "text")

	if c.SkillCount() != 2 {
		t.Fatalf("expected 2 skills, got %d", c.SkillCount())
	}
	if c.ConnectionCount() != 1 {
		t.Fatalf("expected 1 connection, got %d", c.ConnectionCount())
	}
}
