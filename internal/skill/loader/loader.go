// Package loader loads skill graphs from the filesystem, in either the
// plain JSON encoding skill.Graph already round-trips through, or the
// ".0" text format bundled skill files are historically authored in.
package loader

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rakunlabs/pcgate/internal/skill"
)

// ErrLoad wraps a failure to load a specific path.
type ErrLoad struct {
	Path string
	Err  error
}

func (e *ErrLoad) Error() string { return fmt.Sprintf("loader: %s: %v", e.Path, e.Err) }
func (e *ErrLoad) Unwrap() error { return e.Err }

// Config configures a Loader.
type Config struct {
	// BaseDir anchors relative paths passed to LoadFile/LoadDirectory.
	BaseDir string
	// VerifyOnLoad runs the static safety verifier on every loaded graph
	// and rejects any that comes back unsafe. Defaults to true via New.
	VerifyOnLoad bool
}

// Loader loads skill graphs from disk, caching by resolved path so a
// skill referenced from multiple routes or composed graphs is parsed once.
type Loader struct {
	mu      sync.RWMutex
	baseDir string
	verify  bool
	cache   map[string]*skill.Graph
}

func New(cfg Config) *Loader {
	return &Loader{
		baseDir: cfg.BaseDir,
		verify:  cfg.VerifyOnLoad,
		cache:   make(map[string]*skill.Graph),
	}
}

// BaseDir returns the loader's configured base directory.
func (l *Loader) BaseDir() string { return l.baseDir }

// ClearCache empties the load cache.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*skill.Graph)
}

func (l *Loader) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.baseDir, path)
}

// LoadFile loads a single skill graph from path, dispatching on its
// extension (".json" parses as JSON, ".0" as the text format, anything
// else is auto-detected), and verifies it unless verification is disabled.
func (l *Loader) LoadFile(path string) (*skill.Graph, error) {
	resolved := l.resolvePath(path)

	l.mu.RLock()
	if g, ok := l.cache[resolved]; ok {
		l.mu.RUnlock()
		return g, nil
	}
	l.mu.RUnlock()

	content, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &ErrLoad{Path: resolved, Err: err}
	}

	var g *skill.Graph
	switch strings.ToLower(filepath.Ext(resolved)) {
	case ".json":
		g, err = ParseJSON(content)
	case ".0":
		g, err = ParseZeroFormat(string(content))
	default:
		g, err = ParseAuto(content)
	}
	if err != nil {
		return nil, &ErrLoad{Path: resolved, Err: err}
	}

	if l.verify {
		result := skill.Verify(g)
		if !result.Safe {
			return nil, &ErrLoad{Path: resolved, Err: &skill.ErrVerificationFailed{Errors: result.Errors}}
		}
		g.Proof = result.Proof
	}

	l.mu.Lock()
	l.cache[resolved] = g
	l.mu.Unlock()
	return g, nil
}

// LoadDirectory loads every ".0" and ".json" file directly inside dir
// (non-recursive), skipping and logging any file that fails to parse or
// verify rather than aborting the whole batch.
func (l *Loader) LoadDirectory(dir string) ([]*skill.Graph, error) {
	resolved := l.resolvePath(dir)
	names, err := ListSkillFiles(resolved, "")
	if err != nil {
		return nil, &ErrLoad{Path: resolved, Err: err}
	}

	graphs := make([]*skill.Graph, 0, len(names))
	for _, name := range names {
		path := filepath.Join(resolved, name)
		g, err := l.LoadFile(path)
		if err != nil {
			slog.Warn("failed to load skill", "path", path, "error", err)
			continue
		}
		graphs = append(graphs, g)
	}
	slog.Info("loaded skills from directory", "count", len(graphs), "dir", resolved)
	return graphs, nil
}

// ListSkillFiles lists the ".0" and ".json" file names directly inside dir
// (no recursion, directories skipped), optionally narrowed to names
// matching a shell glob pattern (empty pattern matches everything).
//
// The original design called for github.com/rakunlabs/query to back this
// filter (see DESIGN.md), but no caller of that package exists anywhere in
// the retrieval pack to ground its actual filter API against, so this uses
// path/filepath.Match instead rather than guess at call signatures.
func ListSkillFiles(dir, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".0" && ext != ".json" {
			continue
		}
		if pattern != "" {
			ok, err := filepath.Match(pattern, entry.Name())
			if err != nil || !ok {
				continue
			}
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

// ParseJSON decodes the plain JSON encoding of a skill.Graph.
func ParseJSON(content []byte) (*skill.Graph, error) {
	var g skill.Graph
	if err := json.Unmarshal(content, &g); err != nil {
		return nil, fmt.Errorf("loader: json parse error: %w", err)
	}
	return &g, nil
}

// ParseAuto tries JSON first (content whose first non-space rune is '{'
// parses cleanly as a skill.Graph far more often than it parses as a
// coincidentally-valid .0 document) and falls back to the .0 tokenizer.
func ParseAuto(content []byte) (*skill.Graph, error) {
	trimmed := strings.TrimSpace(string(content))
	if strings.HasPrefix(trimmed, "{") {
		if g, err := ParseJSON(content); err == nil {
			return g, nil
		}
	}
	return ParseZeroFormat(string(content))
}
