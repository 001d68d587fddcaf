package builtin

import (
	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/skill"
)

// Calendar creates the event-listing skill: it reads events for the input
// date from the internal calendar service and formats them. The
// "calendar://" URI is an internal protocol, not network traffic, so no
// permission is declared — matching the verifier's isNetworkCall rule.
func Calendar() *skill.Graph {
	return &skill.Graph{
		Graph: lang.Graph{
			Name:        "calendar",
			Version:     1,
			Description: "Retrieves and formats calendar events",
			Nodes: []lang.Node{
				{ID: "date", Type: lang.NodeExternal, URI: "input://date"},
				{ID: "date_format", Type: lang.NodeConstant, Value: lang.String("YYYY-MM-DD")},
				{ID: "validate_date", Type: lang.NodeOperation, Op: "Identity", Inputs: []string{"date"}},
				{ID: "calendar_api", Type: lang.NodeExternal, URI: "calendar://events", Inputs: []string{"validate_date"}},
				{ID: "parse_events", Type: lang.NodeOperation, Op: "JsonParse", Inputs: []string{"calendar_api"}},
				{
					ID:     "format_events",
					Type:   lang.NodeOperation,
					Op:     "StringFormat",
					Inputs: []string{"date", "parse_events"},
					Params: map[string]any{"template": "Calendar Events for {{.arg0}}:\n{{.arg1}}"},
				},
			},
			Outputs: []string{"format_events"},
		},
		Proof: &skill.SafetyProof{
			MaxSteps:      50,
			FuelBudget:    1000,
			HaltingProven: true,
			MemoryBound:   512 * 1024,
		},
	}
}

// CalendarAdd creates a new calendar event from title/date/time/duration
// inputs and reports a human-readable confirmation.
func CalendarAdd() *skill.Graph {
	return &skill.Graph{
		Graph: lang.Graph{
			Name:        "calendar_add",
			Version:     1,
			Description: "Adds a new calendar event",
			Nodes: []lang.Node{
				{ID: "title", Type: lang.NodeExternal, URI: "input://title"},
				{ID: "date", Type: lang.NodeExternal, URI: "input://date"},
				{ID: "time", Type: lang.NodeExternal, URI: "input://time"},
				{ID: "duration", Type: lang.NodeExternal, URI: "input://duration"},
				{
					ID:     "build_event",
					Type:   lang.NodeOperation,
					Op:     "StringFormat",
					Inputs: []string{"title", "date", "time", "duration"},
					Params: map[string]any{"template": `{"title": "{{.arg0}}", "date": "{{.arg1}}", "time": "{{.arg2}}", "duration": "{{.arg3}}"}`},
				},
				{ID: "parse_event", Type: lang.NodeOperation, Op: "JsonParse", Inputs: []string{"build_event"}},
				{ID: "calendar_api", Type: lang.NodeExternal, URI: "calendar://events/add", Inputs: []string{"parse_event"}},
				{
					ID:     "format_result",
					Type:   lang.NodeOperation,
					Op:     "StringFormat",
					Inputs: []string{"title", "date", "time"},
					Params: map[string]any{"template": "Event '{{.arg0}}' added for {{.arg1}} at {{.arg2}}"},
				},
			},
			Outputs: []string{"format_result"},
		},
		Proof: &skill.SafetyProof{
			MaxSteps:      30,
			FuelBudget:    500,
			HaltingProven: true,
			MemoryBound:   256 * 1024,
		},
	}
}

// CalendarAvailability checks open slots in a date range.
func CalendarAvailability() *skill.Graph {
	return &skill.Graph{
		Graph: lang.Graph{
			Name:        "calendar_availability",
			Version:     1,
			Description: "Checks calendar availability for a time range",
			Nodes: []lang.Node{
				{ID: "start_date", Type: lang.NodeExternal, URI: "input://start_date"},
				{ID: "end_date", Type: lang.NodeExternal, URI: "input://end_date"},
				{ID: "calendar_api", Type: lang.NodeExternal, URI: "calendar://availability", Inputs: []string{"start_date", "end_date"}},
				{ID: "parse", Type: lang.NodeOperation, Op: "JsonParse", Inputs: []string{"calendar_api"}},
				{ID: "extract_slots", Type: lang.NodeOperation, Op: "JsonGet", Inputs: []string{"parse"}, Params: map[string]any{"path": "available_slots"}},
				{
					ID:     "format",
					Type:   lang.NodeOperation,
					Op:     "StringFormat",
					Inputs: []string{"start_date", "end_date", "extract_slots"},
					Params: map[string]any{"template": "Available slots from {{.arg0}} to {{.arg1}}:\n{{.arg2}}"},
				},
			},
			Outputs: []string{"format"},
		},
		Proof: &skill.SafetyProof{
			MaxSteps:      40,
			FuelBudget:    800,
			HaltingProven: true,
			MemoryBound:   512 * 1024,
		},
	}
}
