// Package config loads the gateway's configuration from file, environment,
// and (optionally) Consul/Vault, using github.com/rakunlabs/chu.
package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rakunlabs/alan"
	_ "github.com/rakunlabs/chu/loader/external/loaderconsul"
	_ "github.com/rakunlabs/chu/loader/external/loadervault"
	"github.com/rakunlabs/chu/loader/loaderenv"
	"github.com/rakunlabs/logi"

	mforwardauth "github.com/rakunlabs/ada/middleware/forwardauth"
	"github.com/rakunlabs/chu"
	"github.com/rakunlabs/tell"
)

var Service = "gatewayd"

// Config is the top-level configuration for the proof-carrying message
// gateway process.
type Config struct {
	LogLevel string `cfg:"log_level,no_prefix" default:"info"`

	Server  Server  `cfg:"server"`
	Store   Store   `cfg:"store"`
	Signing Signing `cfg:"signing"`
	Router  Router  `cfg:"router"`
	Session Session `cfg:"session"`

	// Channels configures the adapters that bridge external chat platforms
	// to the gateway. Keyed by adapter name ("discord", "telegram", "mail").
	Channels map[string]ChannelConfig `cfg:"channels"`

	// SkillsDir is a directory of ".0" skill graph source files loaded at
	// startup, in addition to the built-in skills.
	SkillsDir string `cfg:"skills_dir"`

	Telemetry tell.Config `cfg:"telemetry,noprefix"`
}

type Server struct {
	BasePath string `cfg:"base_path"`

	Port string `cfg:"port" default:"8080"`
	Host string `cfg:"host"`

	// ForwardAuth, if set, configures the control API to forward auth
	// requests to an external authentication service.
	ForwardAuth *mforwardauth.ForwardAuth `cfg:"forward_auth"`

	// AdminToken, if set, protects the /api/v1/admin/* endpoints with
	// bearer token authentication.
	AdminToken string `cfg:"admin_token" log:"-"`

	// Alan, if set, enables distributed clustering via UDP peer discovery
	// so that skill-registry writes and trigger-scheduler locks are
	// coordinated across gateway instances.
	Alan *alan.Config `cfg:"alan"`
}

type Store struct {
	Postgres *StorePostgres `cfg:"postgres"`
	SQLite   *StoreSQLite   `cfg:"sqlite"`

	// EncryptionKey, if set, enables AES-256-GCM encryption of channel
	// adapter credentials (bot tokens, SMTP passwords) at rest.
	EncryptionKey string `cfg:"encryption_key" log:"-"`
}

type StorePostgres struct {
	TablePrefix     *string        `cfg:"table_prefix"`
	Datasource      string         `cfg:"datasource" log:"-"`
	Schema          string         `cfg:"schema"`
	ConnMaxLifetime *time.Duration `cfg:"conn_max_lifetime"`
	MaxIdleConns    *int           `cfg:"max_idle_conns"`
	MaxOpenConns    *int           `cfg:"max_open_conns"`

	Migrate Migrate `cfg:"migrate"`
}

type StoreSQLite struct {
	TablePrefix *string `cfg:"table_prefix"`
	Datasource  string  `cfg:"datasource"`

	Migrate Migrate `cfg:"migrate"`
}

type Migrate struct {
	Datasource string            `cfg:"datasource" log:"-"`
	Schema     string            `cfg:"schema"`
	Table      string            `cfg:"table"`
	Values     map[string]string `cfg:"values"`
}

// Signing configures the Ed25519 keypair used to sign Proof-Carrying Actions.
type Signing struct {
	// KeyPath is the file the keypair is persisted to. If the file does not
	// exist, a new keypair is generated and written there on first start.
	KeyPath string `cfg:"key_path" default:"./gatewayd_signing.key"`
}

// Router configures the graph-driven message router.
type Router struct {
	// CachingEnabled toggles the command-token route cache.
	CachingEnabled bool `cfg:"caching_enabled" default:"true"`

	// DefaultSkill is the content hash (hex) or name of the skill used when
	// no route condition matches.
	DefaultSkill string `cfg:"default_skill"`
}

// Session configures the in-memory session manager.
type Session struct {
	// TimeoutSeconds is the idle duration after which a session expires.
	TimeoutSeconds uint64 `cfg:"timeout_seconds" default:"3600"`

	// InitialTrust is the trust score assigned to brand-new sessions.
	InitialTrust float64 `cfg:"initial_trust" default:"0.5"`
}

// ChannelConfig configures a single channel adapter instance.
type ChannelConfig struct {
	// Enabled toggles whether the adapter is started.
	Enabled bool `cfg:"enabled"`

	// Token is the adapter's credential (bot token, API key). Stored
	// encrypted at rest when store.encryption_key is set.
	Token string `cfg:"token" log:"-"`

	// Allowlist restricts which channel/user identifiers may interact
	// through this adapter. Empty means unrestricted.
	Allowlist []string `cfg:"allowlist"`

	// SMTP-specific fields, only meaningful for the "mail" adapter.
	SMTPHost string `cfg:"smtp_host"`
	SMTPPort int    `cfg:"smtp_port" default:"587"`
	SMTPUser string `cfg:"smtp_user"`
}

func Load(ctx context.Context, path string) (*Config, error) {
	var cfg Config
	if err := chu.Load(ctx, path, &cfg, chu.WithLoaderOption(loaderenv.New(loaderenv.WithPrefix("GATEWAYD_")))); err != nil {
		return nil, err
	}

	if err := logi.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("set log level %s: %w", cfg.LogLevel, err)
	}

	slog.Info("loaded configuration", "config", chu.MarshalMap(cfg))

	return &cfg, nil
}
