package builtin

import "github.com/rakunlabs/pcgate/internal/skill"

// Names lists the core bundled skill names, matching the original four
// built-in skills shipped with the platform.
func Names() []string {
	return []string{"echo", "search", "browser", "calendar"}
}

// All returns every bundled skill graph keyed by name, including the
// browser/calendar variants beyond the original four.
func All() map[string]*skill.Graph {
	return map[string]*skill.Graph{
		"echo":                  Echo(),
		"search":                Search(),
		"browser":               Browser(),
		"browser_extract":       BrowserExtract(),
		"calendar":              Calendar(),
		"calendar_add":          CalendarAdd(),
		"calendar_availability": CalendarAvailability(),
	}
}

// Get returns a single bundled skill by name, or ok=false if unknown.
func Get(name string) (*skill.Graph, bool) {
	g, ok := All()[name]
	return g, ok
}

// InstallAll installs every bundled skill into reg as a builtin entry.
func InstallAll(reg *skill.Registry) error {
	for name, g := range All() {
		if _, err := reg.Install(name, g, true); err != nil {
			return err
		}
	}
	return nil
}
