package builtin

import (
	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/skill"
)

// Search creates the web search skill: it calls a configured search API
// with the input query, parses the JSON response, and formats the result
// list. Requires the "network" permission since it reaches an https:// URI.
func Search() *skill.Graph {
	return &skill.Graph{
		Graph: lang.Graph{
			Name:        "search",
			Version:     1,
			Description: "Performs web search and returns results",
			Nodes: []lang.Node{
				{ID: "query", Type: lang.NodeExternal, URI: "input://query"},
				{ID: "search_api", Type: lang.NodeExternal, URI: "https://api.search.example/search", Inputs: []string{"query"}},
				{ID: "parse", Type: lang.NodeOperation, Op: "JsonParse", Inputs: []string{"search_api"}},
				{ID: "extract", Type: lang.NodeOperation, Op: "JsonGet", Inputs: []string{"parse"}, Params: map[string]any{"path": "results"}},
				{
					ID:     "format",
					Type:   lang.NodeOperation,
					Op:     "StringFormat",
					Inputs: []string{"extract"},
					Params: map[string]any{"template": "Search Results:\n{{.arg0}}"},
				},
			},
			Outputs: []string{"format"},
		},
		Permissions: []string{"network"},
		Proof: &skill.SafetyProof{
			MaxSteps:      50,
			FuelBudget:    1000,
			HaltingProven: true,
			MemoryBound:   1024 * 1024,
		},
	}
}
