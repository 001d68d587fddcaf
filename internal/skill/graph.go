// Package skill implements the declarative skill graph type, its static
// safety verifier, a content-addressed registry, and a composer that fuses
// multiple skills into one unified graph.
package skill

import (
	"encoding/json"
	"strings"

	"github.com/rakunlabs/pcgate/internal/lang"
)

// SafetyProof is the conservative resource bound attached to a verified
// Graph: the maximum number of interpreter steps, a fuel budget (10x
// max_steps, matching the original estimator's headroom), an estimated
// memory bound, and whether halting was proven by static analysis.
type SafetyProof struct {
	MaxSteps      uint64 `json:"max_steps"`
	FuelBudget    uint64 `json:"fuel_budget"`
	HaltingProven bool   `json:"halting_proven"`
	MemoryBound   uint64 `json:"memory_bound"`
}

// DefaultSafetyProof matches the conservative defaults used before a graph
// has been through verification.
var DefaultSafetyProof = SafetyProof{
	MaxSteps:    1000,
	FuelBudget:  10000,
	MemoryBound: 1024 * 1024,
}

// Graph is a skill: a lang.Graph plus the declared permissions it needs and
// the safety proof produced by Verify. Unlike a bare lang.Graph (used for
// routing tables and internal plumbing), a skill Graph is content-addressed,
// installable, and composable.
type Graph struct {
	lang.Graph
	Permissions []string     `json:"permissions,omitempty"`
	Proof       *SafetyProof `json:"proof,omitempty"`
}

// HasInput reports whether the graph declares an External node reading the
// named input (uri "input://name"), the skill equivalent of a formal
// parameter.
func (g *Graph) HasInput(name string) bool {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Type == lang.NodeExternal && strings.TrimPrefix(n.URI, "input://") == name {
			return true
		}
	}
	return false
}

// HasOutput reports whether id is declared as one of the graph's outputs.
func (g *Graph) HasOutput(id string) bool {
	for _, o := range g.Outputs {
		if o == id {
			return true
		}
	}
	return false
}

// ExternalURIs returns the URI of every External node in the graph.
func (g *Graph) ExternalURIs() []string {
	var uris []string
	for i := range g.Nodes {
		if g.Nodes[i].Type == lang.NodeExternal {
			uris = append(uris, g.Nodes[i].URI)
		}
	}
	return uris
}

// HasPermission reports whether perm is among the graph's declared permissions.
func (g *Graph) HasPermission(perm string) bool {
	for _, p := range g.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// isNetworkCall matches the verifier's rule: only actual HTTP(S) traffic
// needs the "network" permission. Internal protocols like "calendar://" or
// "input://" don't.
func isNetworkCall(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// isNetworkOp reports whether op is one of the built-in ops that reaches
// outside the process.
func isNetworkOp(op string) bool {
	return op == "HttpGet" || op == "HttpPost"
}

// decodeSubGraph round-trips an arbitrary param value through JSON into a
// Graph, used by the halting-proof heuristic to recurse into a Map/Filter
// op's declared sub-graph body.
func decodeSubGraph(body any) (*Graph, bool) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, false
	}
	var g Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, false
	}
	return &g, true
}
