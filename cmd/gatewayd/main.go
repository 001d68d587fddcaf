package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"

	"github.com/rakunlabs/into"
	"github.com/rakunlabs/logi"

	"github.com/rakunlabs/pcgate/internal/channel"
	"github.com/rakunlabs/pcgate/internal/channel/discord"
	"github.com/rakunlabs/pcgate/internal/channel/mail"
	"github.com/rakunlabs/pcgate/internal/channel/telegram"
	"github.com/rakunlabs/pcgate/internal/cluster"
	"github.com/rakunlabs/pcgate/internal/config"
	"github.com/rakunlabs/pcgate/internal/gateway"
	"github.com/rakunlabs/pcgate/internal/gerr"
	"github.com/rakunlabs/pcgate/internal/proof"
	"github.com/rakunlabs/pcgate/internal/session"
	"github.com/rakunlabs/pcgate/internal/skill/loader"
	"github.com/rakunlabs/pcgate/internal/store"
)

var (
	name    = "gatewayd"
	version = "v0.0.0"
)

func main() {
	config.Service = name + "/" + version

	into.Init(run,
		into.WithLogger(logi.InitializeLog(logi.WithCaller(false))),
		into.WithMsgf("%s [%s]", name, version),
	)
}

// ///////////////////////////////////////////////////////////////////

func run(ctx context.Context) error {
	var configPath string
	flag.StringVar(&configPath, "config", "gatewayd.yml", "path to the gateway configuration file")
	flag.Parse()

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	generator, err := proof.LoadOrGenerate(cfg.Signing.KeyPath)
	if err != nil {
		return fmt.Errorf("failed to load or generate signing key: %w", err)
	}
	slog.Info("signing key ready", "public_key", hex.EncodeToString(generator.PublicKey()))

	db, err := store.New(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	gwCfg := buildGatewayConfig(*cfg)

	gw, err := gateway.New(gwCfg, generator)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	if err := loadSkills(ctx, gw, db, cfg.SkillsDir); err != nil {
		return fmt.Errorf("failed to load skills: %w", err)
	}

	channels, err := buildChannels(ctx, db, cfg.Channels)
	if err != nil {
		return fmt.Errorf("failed to build channel adapters: %w", err)
	}
	for _, a := range channels {
		gw.RegisterChannel(a)
	}

	var cl *cluster.Cluster
	if cfg.Server.Alan != nil {
		cl, err = cluster.New(cfg.Server.Alan)
		if err != nil {
			return fmt.Errorf("failed to build cluster: %w", err)
		}

		onNewKey := func(newKey []byte) { db.SetEncryptionKey(newKey) }
		onInvalidateSkill := func(skillHash string) {
			if err := reloadSkillByHash(ctx, gw, db, skillHash); err != nil {
				slog.Error("reload invalidated skill", "hash", skillHash, "error", err)
			}
		}
		if err := cl.Start(ctx, onNewKey, onInvalidateSkill); err != nil {
			return fmt.Errorf("failed to start cluster: %w", err)
		}
		defer cl.Stop()
	}

	if err := gw.Start(); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	defer gw.Stop()

	for _, a := range channels {
		go pumpChannel(ctx, gw, a)
	}

	server := gateway.NewServer(gw, cfg.Server)
	slog.Info("gateway control plane listening", "host", cfg.Server.Host, "port", cfg.Server.Port)
	return server.Start(ctx)
}

// buildGatewayConfig merges the file-level router/session settings onto the
// gateway's own defaults, which carry the bundled skill names (help/search)
// that buildGatewayConfig's callers don't otherwise have a place to set.
func buildGatewayConfig(cfg config.Config) gateway.Config {
	gwCfg := gateway.DefaultConfig()
	gwCfg.Router.CachingEnabled = cfg.Router.CachingEnabled
	if cfg.Router.DefaultSkill != "" {
		gwCfg.Router.DefaultCommand = cfg.Router.DefaultSkill
		gwCfg.Router.DefaultIntent = cfg.Router.DefaultSkill
	}
	gwCfg.Session = session.Config{
		TimeoutSeconds: int64(cfg.Session.TimeoutSeconds),
		MaxPerUser:     gwCfg.Session.MaxPerUser,
		InitialTrust:   cfg.Session.InitialTrust,
	}
	return gwCfg
}

// loadSkills installs every skill persisted in the store, then anything
// found under skillsDir, on top of the builtins gateway.New already
// installed. A skill already bound to its name from an earlier install is
// a no-op (see skill.Registry.Install).
func loadSkills(ctx context.Context, gw *gateway.Gateway, db store.Storer, skillsDir string) error {
	records, err := db.ListSkills(ctx)
	if err != nil {
		return fmt.Errorf("list skills from store: %w", err)
	}
	for _, rec := range records {
		g, err := loader.ParseJSON(rec.Graph)
		if err != nil {
			slog.Error("skip malformed stored skill", "name", rec.Name, "error", err)
			continue
		}
		if _, err := gw.Registry().Install(rec.Name, g, rec.Builtin); err != nil {
			slog.Error("install stored skill", "name", rec.Name, "error", err)
		}
	}

	if skillsDir == "" {
		return nil
	}

	ld := loader.New(loader.Config{BaseDir: skillsDir})
	graphs, err := ld.LoadDirectory(skillsDir)
	if err != nil {
		return fmt.Errorf("load skills directory %q: %w", skillsDir, err)
	}
	for _, g := range graphs {
		if _, err := gw.Registry().Install(g.Name, g, false); err != nil {
			slog.Error("install skill from directory", "name", g.Name, "error", err)
		}
	}
	return nil
}

// reloadSkillByHash is the onInvalidateSkill callback a cluster peer runs
// after another instance broadcasts that a skill hash is no longer valid:
// it re-reads the skill by name from the store and reinstalls it, so a
// stale cached verification result never lingers past a registry write
// made on a different node.
func reloadSkillByHash(ctx context.Context, gw *gateway.Gateway, db store.Storer, skillHash string) error {
	records, err := db.ListSkills(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.Hash != skillHash {
			continue
		}
		g, err := loader.ParseJSON(rec.Graph)
		if err != nil {
			return err
		}
		// A not-yet-installed skill is fine; Install below brings it in fresh.
		_ = gw.Registry().UninstallByName(rec.Name)
		_, err = gw.Registry().Install(rec.Name, g, rec.Builtin)
		return err
	}
	return nil
}

// buildChannels constructs one adapter per enabled entry of cfg, preferring
// the store's persisted credentials (which may have been rotated since the
// file was written) and falling back to the config file's own token when
// the store has no row for that channel yet.
func buildChannels(ctx context.Context, db store.Storer, cfg map[string]config.ChannelConfig) ([]channel.Adapter, error) {
	stored, err := db.ListChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels from store: %w", err)
	}
	byName := make(map[string]store.ChannelRecord, len(stored))
	for _, rec := range stored {
		byName[rec.Name] = rec
	}

	var adapters []channel.Adapter
	for name, c := range cfg {
		if !c.Enabled {
			continue
		}
		token := c.Token
		allowlist := c.Allowlist
		if rec, ok := byName[name]; ok {
			token = rec.Token
			allowlist = rec.Allowlist
		}

		a, err := newChannelAdapter(name, c, token, allowlist)
		if err != nil {
			return nil, fmt.Errorf("build %q channel: %w", name, err)
		}
		if a == nil {
			slog.Warn("unknown channel adapter configured, skipping", "name", name)
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}

func newChannelAdapter(name string, c config.ChannelConfig, token string, allowlist []string) (channel.Adapter, error) {
	switch name {
	case "discord":
		a, err := discord.New(discord.Config{BotToken: token, Allowlist: allowlist})
		if err != nil {
			return nil, err
		}
		if err := a.Open(); err != nil {
			return nil, err
		}
		return a, nil

	case "telegram":
		a, err := telegram.New(telegram.Config{BotToken: token, Allowlist: allowlist})
		if err != nil {
			return nil, err
		}
		if err := a.Open(); err != nil {
			return nil, err
		}
		return a, nil

	case "mail":
		return mail.New(mail.Config{
			Host:      c.SMTPHost,
			Port:      c.SMTPPort,
			Username:  c.SMTPUser,
			Password:  token,
			From:      c.SMTPUser,
			Allowlist: allowlist,
		}), nil

	default:
		return nil, nil
	}
}

// pumpChannel drains a.Receive in a loop, running every incoming message
// through the gateway pipeline and dispatching the resulting PCA back out,
// until ctx is cancelled or the adapter reports it is closed for good.
func pumpChannel(ctx context.Context, gw *gateway.Gateway, a channel.Adapter) {
	name := a.Name()
	for {
		if ctx.Err() != nil {
			return
		}
		msg, err := a.Receive(ctx)
		if err != nil {
			if errors.Is(err, gerr.ErrChannelClosed) || ctx.Err() != nil {
				slog.Info("channel closed, stopping pump", "channel", name)
				return
			}
			slog.Error("channel receive failed", "channel", name, "error", err)
			continue
		}

		pca, err := gw.ProcessMessage(ctx, msg)
		if err != nil {
			slog.Error("process message failed", "channel", name, "error", err)
			continue
		}
		if err := gw.ExecuteAction(ctx, pca); err != nil {
			slog.Error("execute action failed", "channel", name, "error", err, "pca", pcaSummary(pca))
		}
	}
}

func pcaSummary(pca proof.PCA) string {
	b, _ := json.Marshal(struct {
		Action string `json:"action"`
		Signed bool   `json:"signed"`
	}{Action: pca.Action.Kind, Signed: pca.IsSigned()})
	return string(b)
}
