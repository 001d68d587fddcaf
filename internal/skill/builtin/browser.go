package builtin

import (
	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/skill"
)

// Browser creates the page-fetching skill: it issues an HttpGet against the
// input url and formats the raw response body. Requires "network".
func Browser() *skill.Graph {
	return &skill.Graph{
		Graph: lang.Graph{
			Name:        "browser",
			Version:     1,
			Description: "Fetches and extracts web page content",
			Nodes: []lang.Node{
				{ID: "url", Type: lang.NodeExternal, URI: "input://url"},
				{ID: "fetch", Type: lang.NodeOperation, Op: "HttpGet", Inputs: []string{"url"}},
				{
					ID:     "extract_text",
					Type:   lang.NodeOperation,
					Op:     "StringFormat",
					Inputs: []string{"fetch"},
					Params: map[string]any{"template": "Page Content:\n{{.arg0}}"},
				},
			},
			Outputs: []string{"extract_text"},
		},
		Permissions: []string{"network"},
		Proof: &skill.SafetyProof{
			MaxSteps:      100,
			FuelBudget:    5000,
			HaltingProven: true,
			MemoryBound:   5 * 1024 * 1024,
		},
	}
}

// BrowserExtract is a variant of Browser that additionally pulls a specific
// field out of the fetched page's JSON body by selector path.
func BrowserExtract() *skill.Graph {
	return &skill.Graph{
		Graph: lang.Graph{
			Name:        "browser_extract",
			Version:     1,
			Description: "Fetches web page and extracts specified content",
			Nodes: []lang.Node{
				{ID: "url", Type: lang.NodeExternal, URI: "input://url"},
				{ID: "selector", Type: lang.NodeExternal, URI: "input://selector"},
				{ID: "fetch", Type: lang.NodeOperation, Op: "HttpGet", Inputs: []string{"url"}},
				{ID: "parse", Type: lang.NodeOperation, Op: "JsonParse", Inputs: []string{"fetch"}},
				{ID: "extract", Type: lang.NodeOperation, Op: "JsonGet", Inputs: []string{"parse"}, Params: map[string]any{"path": "body"}},
				{
					ID:     "format",
					Type:   lang.NodeOperation,
					Op:     "StringFormat",
					Inputs: []string{"extract"},
					Params: map[string]any{"template": "Extracted Content:\n{{.arg0}}"},
				},
			},
			Outputs: []string{"format"},
		},
		Permissions: []string{"network"},
		Proof: &skill.SafetyProof{
			MaxSteps:      200,
			FuelBudget:    10000,
			HaltingProven: true,
			MemoryBound:   10 * 1024 * 1024,
		},
	}
}
