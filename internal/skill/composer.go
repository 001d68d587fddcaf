package skill

import (
	"fmt"

	"github.com/rakunlabs/pcgate/internal/lang"
)

// Connection wires one skill's output into another skill's input during
// composition.
type Connection struct {
	FromSkill  lang.Hash
	FromOutput string
	ToSkill    lang.Hash
	ToInput    string
}

// Composed is the result of Composer.Compose: a single fused graph plus the
// hashes of the skills it was built from.
type Composed struct {
	Graph           *Graph
	SourceSkills    []lang.Hash
	CompositionHash lang.Hash
}

// ErrCompose reports a structural problem found while composing skills.
type ErrCompose struct {
	Kind   string // skill_not_found, output_not_found, input_not_found, cycle, empty
	Detail string
}

func (e *ErrCompose) Error() string { return fmt.Sprintf("skill: compose: %s: %s", e.Kind, e.Detail) }

// Composer fuses multiple verified skill graphs into one, connecting named
// outputs of one skill to named inputs of another via bridge (Identity)
// nodes, and combining their safety proofs conservatively.
type Composer struct {
	skills      map[lang.Hash]*Graph
	connections []Connection
}

func NewComposer() *Composer {
	return &Composer{skills: make(map[lang.Hash]*Graph)}
}

// AddSkill registers g under its content hash for composition.
func (c *Composer) AddSkill(g *Graph) (lang.Hash, error) {
	hash, err := g.ContentHash()
	if err != nil {
		return lang.Hash{}, err
	}
	c.skills[hash] = g
	return hash, nil
}

// Connect declares that fromOutput of fromSkill feeds toInput of toSkill.
func (c *Composer) Connect(fromSkill lang.Hash, fromOutput string, toSkill lang.Hash, toInput string) {
	c.connections = append(c.connections, Connection{
		FromSkill: fromSkill, FromOutput: fromOutput,
		ToSkill: toSkill, ToInput: toInput,
	})
}

func (c *Composer) SkillCount() int      { return len(c.skills) }
func (c *Composer) ConnectionCount() int { return len(c.connections) }

// Compose validates connections, checks for cross-skill cycles, and builds
// a single graph with every node ID prefixed by its source skill's short
// hash, bridged by Identity nodes at each connection point.
func (c *Composer) Compose(name string) (*Composed, error) {
	if len(c.skills) == 0 {
		return nil, &ErrCompose{Kind: "empty", Detail: "no skills added"}
	}

	if err := c.validateConnections(); err != nil {
		return nil, err
	}
	if err := c.detectCycles(); err != nil {
		return nil, err
	}

	out := &Graph{
		Graph: lang.Graph{
			Name:        name,
			Version:     1,
			Description: fmt.Sprintf("Composed from %d skills", len(c.skills)),
		},
	}

	type nodeKey struct {
		skill lang.Hash
		id    string
	}
	mapping := make(map[nodeKey]string)

	for skillHash, g := range c.skills {
		prefix := skillHash.Hex()[:8]
		for i := range g.Nodes {
			n := g.Nodes[i]
			newID := prefix + "_" + n.ID
			mapping[nodeKey{skillHash, n.ID}] = newID
		}
		out.Permissions = append(out.Permissions, g.Permissions...)
	}

	for skillHash, g := range c.skills {
		prefix := skillHash.Hex()[:8]
		for i := range g.Nodes {
			n := g.Nodes[i]
			remapped := n
			remapped.ID = prefix + "_" + n.ID
			remapped.Inputs = make([]string, len(n.Inputs))
			for j, ref := range n.Inputs {
				depID, field := splitInputRef(ref)
				if mapped, ok := mapping[nodeKey{skillHash, depID}]; ok {
					if field != "" {
						remapped.Inputs[j] = mapped + "." + field
					} else {
						remapped.Inputs[j] = mapped
					}
				} else {
					remapped.Inputs[j] = prefix + "_" + ref
				}
			}
			out.Nodes = append(out.Nodes, remapped)
		}
	}

	for i, conn := range c.connections {
		fromPrefix := conn.FromSkill.Hex()[:8]
		fromID, ok := mapping[nodeKey{conn.FromSkill, conn.FromOutput}]
		if !ok {
			fromID = fromPrefix + "_" + conn.FromOutput
		}

		bridgeID := fmt.Sprintf("bridge_%d", i)
		out.Nodes = append(out.Nodes, lang.Node{
			ID:     bridgeID,
			Type:   lang.NodeOperation,
			Op:     "Identity",
			Inputs: []string{fromID},
		})

		mapping[nodeKey{conn.ToSkill, conn.ToInput}] = bridgeID
	}

	hasOutgoing := make(map[lang.Hash]bool)
	for _, conn := range c.connections {
		hasOutgoing[conn.FromSkill] = true
	}
	for skillHash, g := range c.skills {
		if hasOutgoing[skillHash] {
			continue
		}
		prefix := skillHash.Hex()[:8]
		for _, output := range g.Outputs {
			mapped, ok := mapping[nodeKey{skillHash, output}]
			if !ok {
				mapped = prefix + "_" + output
			}
			out.Outputs = append(out.Outputs, mapped)
		}
	}

	out.Proof = c.combineProofs()

	hash, err := out.ContentHash()
	if err != nil {
		return nil, err
	}

	sources := make([]lang.Hash, 0, len(c.skills))
	for h := range c.skills {
		sources = append(sources, h)
	}

	return &Composed{Graph: out, SourceSkills: sources, CompositionHash: hash}, nil
}

func (c *Composer) validateConnections() error {
	for _, conn := range c.connections {
		fromSkill, ok := c.skills[conn.FromSkill]
		if !ok {
			return &ErrCompose{Kind: "skill_not_found", Detail: conn.FromSkill.Hex()}
		}
		if !fromSkill.HasOutput(conn.FromOutput) {
			if _, ok := fromSkill.GetNode(conn.FromOutput); !ok {
				return &ErrCompose{Kind: "output_not_found", Detail: conn.FromOutput}
			}
		}

		toSkill, ok := c.skills[conn.ToSkill]
		if !ok {
			return &ErrCompose{Kind: "skill_not_found", Detail: conn.ToSkill.Hex()}
		}
		if !toSkill.HasInput(conn.ToInput) {
			return &ErrCompose{Kind: "input_not_found", Detail: conn.ToInput}
		}
	}
	return nil
}

// detectCycles runs Kahn's algorithm over the skill-level connection graph
// (skills as nodes, connections as edges), independent of the node-level
// TopoSort each skill's own graph already passed during verification.
func (c *Composer) detectCycles() error {
	indegree := make(map[lang.Hash]int, len(c.skills))
	adj := make(map[lang.Hash][]lang.Hash, len(c.skills))
	for h := range c.skills {
		indegree[h] = 0
	}
	for _, conn := range c.connections {
		adj[conn.FromSkill] = append(adj[conn.FromSkill], conn.ToSkill)
		indegree[conn.ToSkill]++
	}

	queue := make([]lang.Hash, 0, len(c.skills))
	for h, d := range indegree {
		if d == 0 {
			queue = append(queue, h)
		}
	}

	processed := 0
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range adj[h] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if processed != len(c.skills) {
		return &ErrCompose{Kind: "cycle", Detail: "cycle detected among composed skills"}
	}
	return nil
}

func (c *Composer) combineProofs() *SafetyProof {
	var totalSteps, totalFuel, totalMemory uint64
	allHalting := true
	any := false

	for _, g := range c.skills {
		if g.Proof == nil {
			continue
		}
		any = true
		totalSteps += g.Proof.MaxSteps
		totalFuel += g.Proof.FuelBudget
		totalMemory += g.Proof.MemoryBound
		allHalting = allHalting && g.Proof.HaltingProven
	}

	if !any {
		allHalting = false
	}

	if totalSteps < 1000 {
		totalSteps = 1000
	}
	if totalFuel < 10000 {
		totalFuel = 10000
	}
	if totalMemory < 1024*1024 {
		totalMemory = 1024 * 1024
	}

	return &SafetyProof{
		MaxSteps:      totalSteps,
		FuelBudget:    totalFuel,
		HaltingProven: allHalting,
		MemoryBound:   totalMemory,
	}
}

// splitInputRef splits a "nodeID.field" input reference into its node ID
// and field parts; field is empty when ref has no dot.
func splitInputRef(ref string) (id, field string) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '.' {
			return ref[:i], ref[i+1:]
		}
	}
	return ref, ""
}
