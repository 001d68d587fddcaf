// Package proof generates and verifies Proof-Carrying Actions: the signed,
// auditable record of why the gateway decided to take a given action.
package proof

import "github.com/rakunlabs/pcgate/internal/lang"

// ExecutionTrace records which nodes a graph execution touched, in order,
// plus whether the result came from a cache instead of a fresh evaluation.
type ExecutionTrace struct {
	Nodes           []lang.Hash `json:"nodes"`
	Cached          bool        `json:"cached"`
	ExecutionTimeUs uint64      `json:"execution_time_us"`
}

// NewExecutionTrace returns an empty, non-cached trace.
func NewExecutionTrace() ExecutionTrace {
	return ExecutionTrace{}
}

// CachedExecutionTrace returns an empty trace flagged as cached, for route
// and proof results served without re-running the interpreter.
func CachedExecutionTrace() ExecutionTrace {
	return ExecutionTrace{Cached: true}
}

// AddNode appends hash to the trace.
func (t *ExecutionTrace) AddNode(hash lang.Hash) {
	t.Nodes = append(t.Nodes, hash)
}

// Len returns the number of recorded nodes.
func (t ExecutionTrace) Len() int { return len(t.Nodes) }

// IsEmpty reports whether the trace recorded no nodes.
func (t ExecutionTrace) IsEmpty() bool { return len(t.Nodes) == 0 }
