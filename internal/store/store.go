// Package store persists the state a gateway instance must not lose across
// a restart: installed skill graphs, channel adapter credentials and
// allowlists, and control-plane API tokens. Sessions are deliberately never
// persisted here — they are a live conversational cache the session manager
// owns entirely in memory, rebuilt from the first message after a restart.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rakunlabs/pcgate/internal/config"
	atcrypto "github.com/rakunlabs/pcgate/internal/crypto"
	"github.com/rakunlabs/pcgate/internal/store/memory"
	"github.com/rakunlabs/pcgate/internal/store/postgres"
	"github.com/rakunlabs/pcgate/internal/store/sqlite3"
)

// SkillRecord is a persisted skill graph: enough to reinstall it into a
// registry on startup without re-verifying anything the registry's own
// Install call doesn't already check.
type SkillRecord struct {
	Name        string          `json:"name"`
	Hash        string          `json:"hash"`
	Graph       json.RawMessage `json:"graph"`
	Builtin     bool            `json:"builtin"`
	Verified    bool            `json:"verified"`
	InstalledAt string          `json:"installed_at"`
}

// ChannelRecord is a persisted channel adapter configuration: its
// credential (encrypted at rest when a store encryption key is configured)
// and allowlist, keyed by adapter name.
type ChannelRecord struct {
	Name      string   `json:"name"`
	Token     string   `json:"token"`
	Allowlist []string `json:"allowlist"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

// APIToken is a control-plane bearer token. Only the hash is ever
// persisted; TokenPrefix is the first few characters, kept in the clear so
// an operator can recognize a token in a listing without re-deriving it.
type APIToken struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TokenPrefix string `json:"token_prefix"`
	CreatedAt   string `json:"created_at"`
	LastUsedAt  string `json:"last_used_at"`
}

// Storer is the persistence surface every backend (memory, sqlite3,
// postgres) implements.
type Storer interface {
	ListSkills(ctx context.Context) ([]SkillRecord, error)
	GetSkillByName(ctx context.Context, name string) (*SkillRecord, error)
	UpsertSkill(ctx context.Context, rec SkillRecord) error
	DeleteSkillByName(ctx context.Context, name string) error

	ListChannels(ctx context.Context) ([]ChannelRecord, error)
	GetChannel(ctx context.Context, name string) (*ChannelRecord, error)
	UpsertChannel(ctx context.Context, rec ChannelRecord) error
	DeleteChannel(ctx context.Context, name string) error

	ListAPITokens(ctx context.Context) ([]APIToken, error)
	GetAPITokenByHash(ctx context.Context, hash string) (*APIToken, error)
	CreateAPIToken(ctx context.Context, tok APIToken, tokenHash string) (*APIToken, error)
	DeleteAPIToken(ctx context.Context, id string) error
	UpdateLastUsed(ctx context.Context, id string) error

	// RotateEncryptionKey re-encrypts every stored channel token with
	// newKey, committing atomically. Passing nil disables encryption.
	RotateEncryptionKey(ctx context.Context, newKey []byte) error
	// SetEncryptionKey swaps the in-memory key without touching rows, for
	// a peer instance that received a cluster-broadcast rotation.
	SetEncryptionKey(newKey []byte)
}

// StorerClose is a Storer that owns a connection to release on shutdown.
type StorerClose interface {
	Storer
	Close()
}

// New builds the configured backend: postgres if cfg.Postgres is set,
// sqlite3 if cfg.SQLite is set, otherwise the in-memory default.
func New(ctx context.Context, cfg config.Store) (StorerClose, error) {
	var encKey []byte
	if cfg.EncryptionKey != "" {
		key, err := atcrypto.DeriveKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("derive store encryption key: %w", err)
		}
		encKey = key
	}

	switch {
	case cfg.Postgres != nil:
		db, err := postgres.New(ctx, cfg.Postgres, encKey)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return db, nil
	case cfg.SQLite != nil:
		db, err := sqlite3.New(ctx, cfg.SQLite, encKey)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return db, nil
	default:
		return memory.New(encKey), nil
	}
}
