package skill

import (
	"testing"

	"github.com/rakunlabs/pcgate/internal/lang"
)

func TestRegistryInstallIsIdempotent(t *testing.T) {
	r := NewRegistry()
	g := simpleGraph()

	h1, err := r.Install("echo", g, false)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	h2, err := r.Install("echo", g, false)
	if err != nil {
		t.Fatalf("reinstall: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected same content hash, got %v and %v", h1, h2)
	}
	if r.Count() != 1 {
		t.Fatalf("expected exactly one entry, got %d", r.Count())
	}
}

func TestRegistryInstallIsContentAddressed(t *testing.T) {
	r := NewRegistry()
	g1 := simpleGraph()
	g2 := simpleGraph()
	g2.Description = "a different description"

	h1, err := r.Install("a", g1, false)
	if err != nil {
		t.Fatalf("install g1: %v", err)
	}
	h2, err := r.Install("b", g2, false)
	if err != nil {
		t.Fatalf("install g2: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected distinct content hashes for distinct graphs")
	}
}

func TestRegistryNameCollisionWithDifferentContentFails(t *testing.T) {
	r := NewRegistry()
	g1 := simpleGraph()
	g2 := simpleGraph()
	g2.Description = "a different description"

	if _, err := r.Install("echo", g1, false); err != nil {
		t.Fatalf("install g1: %v", err)
	}
	_, err := r.Install("echo", g2, false)
	if err == nil {
		t.Fatalf("expected name collision error")
	}
	if _, ok := err.(*ErrAlreadyInstalled); !ok {
		t.Fatalf("expected *ErrAlreadyInstalled, got %T: %v", err, err)
	}
}

func TestRegistryRejectsUnsafeGraph(t *testing.T) {
	r := NewRegistry()
	_, err := r.Install("broken", &Graph{}, false)
	if err == nil {
		t.Fatalf("expected verification failure")
	}
	if _, ok := err.(*ErrVerificationFailed); !ok {
		t.Fatalf("expected *ErrVerificationFailed, got %T", err)
	}
}

func TestRegistryBuiltinSkipsVerification(t *testing.T) {
	r := NewRegistry()
	_, err := r.Install("broken-builtin", &Graph{}, true)
	if err != nil {
		t.Fatalf("expected builtin install to skip verification, got %v", err)
	}
}

func TestRegistryGetAndGetByName(t *testing.T) {
	r := NewRegistry()
	g := simpleGraph()
	hash, err := r.Install("echo", g, false)
	if err != nil {
		t.Fatalf("install: %v", err)
	}

	e, ok := r.Get(hash)
	if !ok || e.Metadata.Name != "echo" {
		t.Fatalf("expected Get to find the installed entry")
	}

	e2, ok := r.GetByName("echo")
	if !ok || e2.Hash != hash {
		t.Fatalf("expected GetByName to find the installed entry")
	}

	if _, ok := r.GetByName("nope"); ok {
		t.Fatalf("expected GetByName to miss an unknown name")
	}
}

func TestRegistryUninstallBuiltinIsImmutable(t *testing.T) {
	r := NewRegistry()
	hash, err := r.Install("builtin-echo", simpleGraph(), true)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := r.Uninstall(hash); err != ErrBuiltinImmutable {
		t.Fatalf("expected ErrBuiltinImmutable, got %v", err)
	}
}

func TestRegistryUninstallCustomSucceeds(t *testing.T) {
	r := NewRegistry()
	hash, err := r.Install("echo", simpleGraph(), false)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := r.Uninstall(hash); err != nil {
		t.Fatalf("uninstall: %v", err)
	}
	if r.IsInstalled(hash) {
		t.Fatalf("expected skill to be removed")
	}
	if r.IsInstalledByName("echo") {
		t.Fatalf("expected name index to be cleared")
	}
}

func TestRegistryUninstallUnknownFails(t *testing.T) {
	r := NewRegistry()
	err := r.Uninstall(lang.Hash{})
	if _, ok := err.(*ErrNotFound); !ok {
		t.Fatalf("expected *ErrNotFound, got %T", err)
	}
}

func TestRegistryListFiltersBuiltinAndCustom(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Install("builtin-one", simpleGraph(), true); err != nil {
		t.Fatalf("install builtin: %v", err)
	}
	custom := simpleGraph()
	custom.Description = "custom variant"
	if _, err := r.Install("custom-one", custom, false); err != nil {
		t.Fatalf("install custom: %v", err)
	}

	if len(r.ListBuiltin()) != 1 {
		t.Fatalf("expected 1 builtin entry, got %d", len(r.ListBuiltin()))
	}
	if len(r.ListCustom()) != 1 {
		t.Fatalf("expected 1 custom entry, got %d", len(r.ListCustom()))
	}
	if len(r.List()) != 2 {
		t.Fatalf("expected 2 total entries, got %d", len(r.List()))
	}
}

func TestExtractMetadataInputsAndOutputs(t *testing.T) {
	r := NewRegistry()
	hash, err := r.Install("echo", simpleGraph(), false)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	e, _ := r.Get(hash)
	if len(e.Metadata.Inputs) != 1 || e.Metadata.Inputs[0].Name != "message" {
		t.Fatalf("expected one input named message, got %v", e.Metadata.Inputs)
	}
	if len(e.Metadata.Outputs) != 1 || e.Metadata.Outputs[0].Name != "out" {
		t.Fatalf("expected one output named out, got %v", e.Metadata.Outputs)
	}
}
