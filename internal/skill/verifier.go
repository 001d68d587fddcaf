package skill

import (
	"fmt"

	"github.com/rakunlabs/pcgate/internal/lang"
)

// VerificationWarning is a non-blocking observation about a graph.
type VerificationWarning struct {
	Kind    string // large_graph, external_call, deprecated_op
	Detail  string
	NodeID  string
}

func (w VerificationWarning) String() string {
	if w.NodeID != "" {
		return fmt.Sprintf("%s at %q: %s", w.Kind, w.NodeID, w.Detail)
	}
	return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
}

// VerificationError is a blocking safety failure.
type VerificationError struct {
	Kind   string // infinite_loop, missing_permission, invalid_reference, no_outputs, empty_graph
	Detail string
	NodeID string
}

func (e VerificationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s at %q: %s", e.Kind, e.NodeID, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// VerificationResult is the outcome of Verify.
type VerificationResult struct {
	Safe     bool
	Warnings []VerificationWarning
	Errors   []VerificationError
	Proof    *SafetyProof
}

func passResult() VerificationResult {
	return VerificationResult{Safe: true}
}

func (r *VerificationResult) addError(e VerificationError) {
	r.Safe = false
	r.Errors = append(r.Errors, e)
	r.Proof = nil
}

func (r *VerificationResult) addWarning(w VerificationWarning) {
	r.Warnings = append(r.Warnings, w)
}

// Verify performs static safety analysis on a skill graph: emptiness,
// outputs, permission discipline for network-reaching nodes, cycle
// detection, and (if everything else passes) a conservative SafetyProof
// estimate including a halting-proof heuristic.
func Verify(g *Graph) VerificationResult {
	result := passResult()

	if len(g.Nodes) == 0 {
		result.addError(VerificationError{Kind: "empty_graph", Detail: "graph has no nodes"})
		return result
	}

	if len(g.Outputs) == 0 {
		result.addError(VerificationError{Kind: "no_outputs", Detail: "graph declares no outputs"})
	}

	if len(g.Nodes) > 1000 {
		result.addWarning(VerificationWarning{Kind: "large_graph", Detail: fmt.Sprintf("%d nodes may be slow to execute", len(g.Nodes))})
	}

	nodeIDs := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		nodeIDs[g.Nodes[i].ID] = true
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if err := checkNodeSafety(n, g.Permissions); err != nil {
			result.addError(*err)
		}
		for _, ref := range n.Inputs {
			depID := ref
			if idx := indexOfDotSkill(ref); idx >= 0 {
				depID = ref[:idx]
			}
			if !nodeIDs[depID] {
				result.addError(VerificationError{
					Kind:   "invalid_reference",
					Detail: fmt.Sprintf("references unknown node %q", depID),
					NodeID: n.ID,
				})
			}
		}
	}

	if _, err := g.Graph.TopoSort(); err != nil {
		if cycleErr, ok := err.(*lang.ErrCycle); ok {
			result.addError(VerificationError{
				Kind:   "infinite_loop",
				Detail: fmt.Sprintf("cycle: %v", cycleErr.Cycle),
			})
		}
		// Unknown-reference errors from TopoSort are already reported above
		// by the explicit reference-validity loop; duplicate IDs are a
		// structural error the caller should have caught at load time.
	}

	for _, uri := range g.ExternalURIs() {
		if isNetworkCall(uri) {
			result.addWarning(VerificationWarning{Kind: "external_call", Detail: uri})
		}
	}

	if result.Safe {
		proof := buildSafetyProof(g)
		result.Proof = &proof
	}

	return result
}

// QuickCheck is a cheap sanity check without full verification: non-empty,
// has outputs, and under a hard size ceiling.
func QuickCheck(g *Graph) bool {
	return len(g.Nodes) > 0 && len(g.Outputs) > 0 && len(g.Nodes) < 10000
}

func checkNodeSafety(n *lang.Node, permissions []string) *VerificationError {
	hasNetwork := func() bool {
		for _, p := range permissions {
			if p == "network" {
				return true
			}
		}
		return false
	}

	switch n.Type {
	case lang.NodeExternal:
		if isNetworkCall(n.URI) && !hasNetwork() {
			return &VerificationError{
				Kind:   "missing_permission",
				Detail: fmt.Sprintf("external call to %s requires \"network\" permission", n.URI),
				NodeID: n.ID,
			}
		}
	case lang.NodeOperation:
		if isNetworkOp(n.Op) && !hasNetwork() {
			return &VerificationError{
				Kind:   "missing_permission",
				Detail: fmt.Sprintf("%s requires \"network\" permission", n.Op),
				NodeID: n.ID,
			}
		}
	}
	return nil
}

// buildSafetyProof estimates conservative resource bounds for a verified
// graph: 10 steps per node as a base, a 100x multiplier per node that
// iterates a sub-body (Map/Filter/Reduce-style ops), 1KB per node plus 1MB
// per external call for memory, and a halting-proof heuristic that recurses
// into any declared sub-graph body.
func buildSafetyProof(g *Graph) SafetyProof {
	maxSteps := estimateMaxSteps(g)
	return SafetyProof{
		MaxSteps:      maxSteps,
		FuelBudget:    maxSteps * 10,
		HaltingProven: proveHalting(g),
		MemoryBound:   estimateMemoryBound(g),
	}
}

func estimateMaxSteps(g *Graph) uint64 {
	base := uint64(len(g.Nodes)) * 10
	multiplier := uint64(1)
	for i := range g.Nodes {
		if g.Nodes[i].Type == lang.NodeOperation && isIteratingOp(g.Nodes[i].Op) {
			multiplier *= 100
		}
	}
	steps := base * multiplier
	if steps > 1_000_000 {
		steps = 1_000_000
	}
	return steps
}

func estimateMemoryBound(g *Graph) uint64 {
	base := uint64(len(g.Nodes)) * 1024
	var externalCount uint64
	for i := range g.Nodes {
		if g.Nodes[i].Type == lang.NodeExternal {
			externalCount++
		}
	}
	return base + externalCount*1024*1024
}

// proveHalting recurses into any Map/Filter-style op's declared sub-graph
// body (carried in Params["body"] as a serialized sub-graph, since the Go
// node model keeps operations flat rather than embedding nested graphs
// directly). A node with no such body is assumed bounded.
func proveHalting(g *Graph) bool {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Type != lang.NodeOperation || !isIteratingOp(n.Op) {
			continue
		}
		body, ok := n.Params["body"]
		if !ok {
			continue
		}
		sub, ok := decodeSubGraph(body)
		if !ok {
			continue
		}
		if !proveHalting(sub) {
			return false
		}
	}
	return true
}

func isIteratingOp(op string) bool {
	return op == "Map" || op == "Filter" || op == "Reduce"
}

func indexOfDotSkill(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
