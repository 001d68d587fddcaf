package loader

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoaderBaseDir(t *testing.T) {
	l := New(Config{BaseDir: "/tmp/skills"})
	if l.BaseDir() != "/tmp/skills" {
		t.Errorf("BaseDir() = %q, want /tmp/skills", l.BaseDir())
	}
}

func TestLoadJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")
	content := `{
		"name": "test",
		"version": 1,
		"description": "Test skill",
		"nodes": [
			{"id": "input", "type": 0, "uri": "input://message"},
			{"id": "output", "type": 2, "op": "Identity", "inputs": ["input"]}
		],
		"outputs": ["output"],
		"permissions": []
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Config{BaseDir: dir})
	g, err := l.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if g.Name != "test" || len(g.Nodes) != 2 {
		t.Errorf("unexpected graph: name=%q nodes=%d", g.Name, len(g.Nodes))
	}
}

func TestParseZeroFormat(t *testing.T) {
	content := `
		# Test skill
		Graph {
			name: "test",
			version: 1,
			description: "A test skill",

			nodes: [
				{ id: "input", type: External, uri: "input://message" },
				{ id: "output", type: Operation, op: Identity, inputs: ["input"] },
			],

			outputs: ["output"],
		}
	`
	g, err := ParseZeroFormat(content)
	if err != nil {
		t.Fatalf("ParseZeroFormat: %v", err)
	}
	if g.Name != "test" {
		t.Errorf("name = %q, want test", g.Name)
	}
	if g.Description != "A test skill" {
		t.Errorf("description = %q, want %q", g.Description, "A test skill")
	}
	if len(g.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(g.Nodes))
	}
	if g.Nodes[0].URI != "input://message" {
		t.Errorf("nodes[0].URI = %q", g.Nodes[0].URI)
	}
	if g.Nodes[1].Op != "Identity" || len(g.Nodes[1].Inputs) != 1 || g.Nodes[1].Inputs[0] != "input" {
		t.Errorf("unexpected operation node: %+v", g.Nodes[1])
	}
	if len(g.Outputs) != 1 || g.Outputs[0] != "output" {
		t.Errorf("outputs = %v", g.Outputs)
	}
}

func TestParseZeroFormatWithParams(t *testing.T) {
	content := `Graph {
		name: "formatter",
		version: 1,
		nodes: [
			{ id: "msg", type: External, uri: "input://msg" },
			{ id: "fmt", type: Operation, op: StringFormat, inputs: ["msg"], template: "Hi {{.arg0}}" },
			{ id: "get", type: Operation, op: JsonGet, inputs: ["fmt"], path: "a.b" },
		],
		outputs: ["get"],
		permissions: ["network"],
	}`
	g, err := ParseZeroFormat(content)
	if err != nil {
		t.Fatalf("ParseZeroFormat: %v", err)
	}
	if g.Nodes[1].Params["template"] != "Hi {{.arg0}}" {
		t.Errorf("template param = %v", g.Nodes[1].Params["template"])
	}
	if g.Nodes[2].Params["path"] != "a.b" {
		t.Errorf("path param = %v", g.Nodes[2].Params["path"])
	}
	if !g.HasPermission("network") {
		t.Errorf("expected network permission")
	}
}

func TestParseZeroFormatConstantAndRoute(t *testing.T) {
	content := `Graph {
		name: "routed",
		nodes: [
			{ id: "threshold", type: Constant, value: 0.5 },
			{ id: "in", type: External, uri: "input://x" },
			{ id: "branch", type: Route, inputs: ["in"], conditions: [
				{ input: "in", target: "in", confidence: 0.9 },
			] },
		],
		outputs: ["branch"],
	}`
	g, err := ParseZeroFormat(content)
	if err != nil {
		t.Fatalf("ParseZeroFormat: %v", err)
	}
	if f, ok := g.Nodes[0].Value.AsFloat(); !ok || f != 0.5 {
		t.Errorf("constant value = %v", g.Nodes[0].Value)
	}
	if len(g.Nodes[2].Conditions) != 1 || g.Nodes[2].Conditions[0].Target != "in" {
		t.Errorf("unexpected route conditions: %+v", g.Nodes[2].Conditions)
	}
}

func TestLoaderCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cached.json")
	content := `{"name": "cached", "version": 1, "nodes": [{"id": "x", "type": 0, "uri": "input://x"}], "outputs": ["x"]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Config{BaseDir: dir})
	if _, err := l.LoadFile(path); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := l.LoadFile(path); err != nil {
		t.Fatalf("second (cached) load: %v", err)
	}
	l.ClearCache()
	if _, err := l.LoadFile(path); err != nil {
		t.Fatalf("load after clear: %v", err)
	}
}

func TestLoaderVerifiesByDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unsafe.json")
	// No outputs declared: fails verification.
	content := `{"name": "bad", "version": 1, "nodes": [{"id": "x", "type": 0, "uri": "input://x"}], "outputs": []}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Config{BaseDir: dir, VerifyOnLoad: true})
	if _, err := l.LoadFile(path); err == nil {
		t.Fatalf("expected verification failure")
	}
}

func TestListSkillFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.0", "b.json", "c.txt", "skip.yaml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir.0"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err := ListSkillFiles(dir, "")
	if err != nil {
		t.Fatalf("ListSkillFiles: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 skill files, got %v", names)
	}

	filtered, err := ListSkillFiles(dir, "a.*")
	if err != nil {
		t.Fatalf("ListSkillFiles filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0] != "a.0" {
		t.Errorf("filtered = %v", filtered)
	}
}

func TestLoadDirectorySkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	good := `{"name": "good", "version": 1, "nodes": [{"id": "x", "type": 0, "uri": "input://x"}], "outputs": ["x"]}`
	if err := os.WriteFile(filepath.Join(dir, "good.json"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := New(Config{BaseDir: dir})
	graphs, err := l.LoadDirectory(dir)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if len(graphs) != 1 || graphs[0].Name != "good" {
		t.Errorf("expected exactly the good graph, got %v", graphs)
	}
}
