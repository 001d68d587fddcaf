package skill

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rakunlabs/pcgate/internal/lang"
)

// Input describes a formal parameter of a skill, extracted from its
// External("input://name") nodes.
type Input struct {
	Name string `json:"name"`
}

// Output describes a named result a skill produces.
type Output struct {
	Name string `json:"name"`
}

// Metadata is the descriptive envelope extracted from a Graph at install time.
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Version     string   `json:"version"`
	Permissions []string `json:"permissions"`
	Inputs      []Input  `json:"inputs"`
	Outputs     []Output `json:"outputs"`
}

// Entry is one installed skill.
type Entry struct {
	Hash        lang.Hash
	Metadata    Metadata
	Graph       *Graph
	Verified    bool
	Builtin     bool
	InstalledAt time.Time
}

// ErrAlreadyInstalled is returned when a name is already bound to a
// different content hash.
type ErrAlreadyInstalled struct {
	Name string
}

func (e *ErrAlreadyInstalled) Error() string {
	return fmt.Sprintf("skill: %q already installed with different content", e.Name)
}

// ErrVerificationFailed wraps the verifier's blocking errors.
type ErrVerificationFailed struct {
	Errors []VerificationError
}

func (e *ErrVerificationFailed) Error() string {
	return fmt.Sprintf("skill: verification failed: %v", e.Errors)
}

// ErrNotFound is returned by Get/GetByName/Uninstall for an unknown skill.
type ErrNotFound struct {
	Ref string
}

func (e *ErrNotFound) Error() string { return fmt.Sprintf("skill: not found: %s", e.Ref) }

// ErrBuiltinImmutable is returned when Uninstall targets a builtin skill.
var ErrBuiltinImmutable = fmt.Errorf("skill: cannot uninstall a built-in skill")

// Registry is the content-addressed store of installed skills: every
// install is keyed by the graph's content hash, with a secondary name
// index for lookup by the router. Guarded by a single RWMutex, matching
// the in-memory store pattern used across the rest of this module.
type Registry struct {
	mu        sync.RWMutex
	skills    map[lang.Hash]Entry
	nameIndex map[string]lang.Hash
}

func NewRegistry() *Registry {
	return &Registry{
		skills:    make(map[lang.Hash]Entry),
		nameIndex: make(map[string]lang.Hash),
	}
}

// Install verifies (unless builtin) and installs a graph under name.
// Installing identical content under the same name twice is a no-op that
// returns the same hash. Installing a different graph under a name already
// bound to another hash is an error.
func (r *Registry) Install(name string, g *Graph, builtin bool) (lang.Hash, error) {
	hash, err := g.ContentHash()
	if err != nil {
		return lang.Hash{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.skills[hash]; ok {
		return hash, nil
	}

	if !builtin {
		result := Verify(g)
		if !result.Safe {
			return lang.Hash{}, &ErrVerificationFailed{Errors: result.Errors}
		}
		g.Proof = result.Proof
	}

	if existingHash, ok := r.nameIndex[name]; ok && existingHash != hash {
		return lang.Hash{}, &ErrAlreadyInstalled{Name: name}
	}

	entry := Entry{
		Hash:        hash,
		Metadata:    extractMetadata(g, name),
		Graph:       g,
		Verified:    true,
		Builtin:     builtin,
		InstalledAt: time.Now().UTC(),
	}

	r.skills[hash] = entry
	r.nameIndex[name] = hash
	return hash, nil
}

func (r *Registry) Get(hash lang.Hash) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.skills[hash]
	return e, ok
}

func (r *Registry) GetByName(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hash, ok := r.nameIndex[name]
	if !ok {
		return Entry{}, false
	}
	e, ok := r.skills[hash]
	return e, ok
}

func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.skills))
	for _, e := range r.skills {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.Metadata.Name < b.Metadata.Name:
			return -1
		case a.Metadata.Name > b.Metadata.Name:
			return 1
		default:
			return 0
		}
	})
	return out
}

func (r *Registry) ListBuiltin() []Entry {
	return r.listFiltered(func(e Entry) bool { return e.Builtin })
}

func (r *Registry) ListCustom() []Entry {
	return r.listFiltered(func(e Entry) bool { return !e.Builtin })
}

func (r *Registry) listFiltered(pred func(Entry) bool) []Entry {
	all := r.List()
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) IsInstalled(hash lang.Hash) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.skills[hash]
	return ok
}

func (r *Registry) IsInstalledByName(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.nameIndex[name]
	return ok
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

func (r *Registry) Uninstall(hash lang.Hash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.skills[hash]
	if !ok {
		return &ErrNotFound{Ref: hash.Hex()}
	}
	if entry.Builtin {
		return ErrBuiltinImmutable
	}
	delete(r.skills, hash)
	delete(r.nameIndex, entry.Metadata.Name)
	return nil
}

func (r *Registry) UninstallByName(name string) error {
	r.mu.RLock()
	hash, ok := r.nameIndex[name]
	r.mu.RUnlock()
	if !ok {
		return &ErrNotFound{Ref: name}
	}
	return r.Uninstall(hash)
}

func extractMetadata(g *Graph, name string) Metadata {
	m := Metadata{
		Name:        name,
		Description: g.Description,
		Version:     fmt.Sprintf("%d", g.Version),
		Permissions: g.Permissions,
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Type == lang.NodeExternal && strings.HasPrefix(n.URI, "input://") {
			m.Inputs = append(m.Inputs, Input{Name: strings.TrimPrefix(n.URI, "input://")})
		}
	}
	for _, o := range g.Outputs {
		m.Outputs = append(m.Outputs, Output{Name: o})
	}
	return m
}
