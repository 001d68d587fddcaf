package lang

import (
	"encoding/json"
	"fmt"
)

// NodeType discriminates the six node variants a Graph can contain.
type NodeType int

const (
	NodeExternal NodeType = iota
	NodeConstant
	NodeOperation
	NodeLookup
	NodeRoute
	NodePermission
)

func (t NodeType) String() string {
	switch t {
	case NodeExternal:
		return "external"
	case NodeConstant:
		return "constant"
	case NodeOperation:
		return "operation"
	case NodeLookup:
		return "lookup"
	case NodeRoute:
		return "route"
	case NodePermission:
		return "permission"
	default:
		return "unknown"
	}
}

// RouteCondition is one branch of a Route node: if Input's value matches
// (by exact string equality when MatchValue is set, by truthiness when
// Threshold > 0, or unconditionally when neither is set) execution routes
// to Target with the given Confidence.
type RouteCondition struct {
	Input      string  `json:"input"`
	MatchValue *string `json:"match_value,omitempty"`
	Threshold  float64 `json:"threshold,omitempty"`
	Target     string  `json:"target"`
	Confidence float64 `json:"confidence"`
}

// Node is a single vertex of a Graph. Exactly the fields relevant to Type
// are populated; the rest are left at zero value.
type Node struct {
	ID     string   `json:"id"`
	Type   NodeType `json:"type"`
	Inputs []string `json:"inputs,omitempty"`
	Params map[string]any `json:"params,omitempty"`

	// External
	URI string `json:"uri,omitempty"`

	// Constant
	Value Value `json:"value,omitempty"`

	// Operation
	Op string `json:"op,omitempty"`

	// Lookup
	Table   map[string]string `json:"table,omitempty"`
	Default *string           `json:"default,omitempty"`

	// Route
	Conditions []RouteCondition `json:"conditions,omitempty"`

	// Permission
	Action        string  `json:"action,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

// Graph is a content-addressable DAG of Nodes executed by Interpreter.Execute.
type Graph struct {
	Name        string         `json:"name"`
	Version     int            `json:"version"`
	Description string         `json:"description,omitempty"`
	Nodes       []Node         `json:"nodes"`
	Outputs     []string       `json:"outputs"`
	EntryPoint  string         `json:"entry_point,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// GetNode finds a node by ID, or reports ok=false.
func (g *Graph) GetNode(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// ContentHash hashes the graph's canonical JSON encoding, giving every
// installed skill and every routing table a stable content identity.
func (g *Graph) ContentHash() (Hash, error) {
	b, err := json.Marshal(g)
	if err != nil {
		return Hash{}, err
	}
	return HashBytes(b), nil
}

// ErrCycle is returned by TopoSort when the graph contains a dependency cycle.
type ErrCycle struct {
	Cycle []string
}

func (e *ErrCycle) Error() string {
	return fmt.Sprintf("lang: cycle detected in graph: %v", e.Cycle)
}

// TopoSort returns the nodes of g in an order consistent with their Inputs
// dependency edges, using Kahn's algorithm with a FIFO ready queue: nodes
// become ready in the order their last dependency resolves, and ties break
// in the order nodes were declared in the graph. Any valid topological
// order satisfies the interpreter's requirements; this uses the same
// FIFO-queue shape as the rest of the runtime's scheduling code rather
// than a LIFO stack, for predictable, declaration-order traces on graphs
// with no interesting partial-order ambiguity.
func (g *Graph) TopoSort() ([]*Node, error) {
	indegree := make(map[string]int, len(g.Nodes))
	dependents := make(map[string][]string, len(g.Nodes))
	index := make(map[string]*Node, len(g.Nodes))

	for i := range g.Nodes {
		n := &g.Nodes[i]
		if _, dup := index[n.ID]; dup {
			return nil, fmt.Errorf("lang: duplicate node id %q", n.ID)
		}
		index[n.ID] = n
		if _, ok := indegree[n.ID]; !ok {
			indegree[n.ID] = 0
		}
	}

	for i := range g.Nodes {
		n := &g.Nodes[i]
		for _, dep := range n.Inputs {
			depID := dep
			if idx := indexOfDot(dep); idx >= 0 {
				depID = dep[:idx]
			}
			if _, ok := index[depID]; !ok {
				return nil, fmt.Errorf("lang: node %q references unknown input %q", n.ID, dep)
			}
			indegree[n.ID]++
			dependents[depID] = append(dependents[depID], n.ID)
		}
	}

	queue := make([]string, 0, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	var sorted []*Node
	visited := make(map[string]bool, len(g.Nodes))

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		sorted = append(sorted, index[id])

		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(sorted) != len(g.Nodes) {
		cycle := findCycle(g, index)
		return nil, &ErrCycle{Cycle: cycle}
	}

	return sorted, nil
}

func indexOfDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// findCycle runs a plain DFS with a recursion stack to report one concrete
// cycle for error messages, after TopoSort has already determined one exists.
func findCycle(g *Graph, index map[string]*Node) []string {
	visited := map[string]bool{}
	onStack := map[string]bool{}
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		visited[id] = true
		onStack[id] = true
		path = append(path, id)

		n := index[id]
		if n != nil {
			for _, dep := range n.Inputs {
				depID := dep
				if idx := indexOfDot(dep); idx >= 0 {
					depID = dep[:idx]
				}
				if _, ok := index[depID]; !ok {
					continue
				}
				if onStack[depID] {
					start := 0
					for i, p := range path {
						if p == depID {
							start = i
							break
						}
					}
					cycle = append([]string{}, path[start:]...)
					return true
				}
				if !visited[depID] {
					if visit(depID) {
						return true
					}
				}
			}
		}

		path = path[:len(path)-1]
		onStack[id] = false
		return false
	}

	for i := range g.Nodes {
		if !visited[g.Nodes[i].ID] {
			if visit(g.Nodes[i].ID) {
				return cycle
			}
		}
	}
	return nil
}
