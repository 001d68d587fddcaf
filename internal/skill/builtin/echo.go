// Package builtin provides the gateway's bundled skills: echo, search,
// browser, and calendar. Every skill here is installed into the registry
// as a builtin at startup, so Registry.Install skips verification for them
// (they're shipped, not user-submitted) but they are still written to pass
// Verify on their own merits.
package builtin

import (
	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/skill"
)

// Echo creates the simplest possible skill: it echoes its message input
// back out with a fixed prefix, useful for testing and as a template for
// new skills.
func Echo() *skill.Graph {
	return &skill.Graph{
		Graph: lang.Graph{
			Name:        "echo",
			Version:     1,
			Description: "Echoes input back to output",
			Nodes: []lang.Node{
				{ID: "message", Type: lang.NodeExternal, URI: "input://message"},
				{
					ID:     "format",
					Type:   lang.NodeOperation,
					Op:     "StringFormat",
					Inputs: []string{"message"},
					Params: map[string]any{"template": "Echo: {{.arg0}}"},
				},
				{ID: "output", Type: lang.NodeOperation, Op: "Identity", Inputs: []string{"format"}},
			},
			Outputs: []string{"output"},
		},
		Proof: &skill.SafetyProof{
			MaxSteps:      3,
			FuelBudget:    100,
			HaltingProven: true,
			MemoryBound:   1024,
		},
	}
}
