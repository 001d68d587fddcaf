// Package gateway wires the router, session manager, skill registry, and
// proof generator into the single entry point a channel adapter calls for
// every incoming message: ProcessMessage. Grounded on the original
// gateway's own architecture diagram (Session/Router/Skill Registry feeding
// a Proof Generator) — the original's own Gateway type was never
// implemented beyond a `NotInitialized` stub, so the wiring below is new
// code built directly from the process_message/execute_action algorithm
// rather than a port.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rakunlabs/pcgate/internal/channel"
	"github.com/rakunlabs/pcgate/internal/eventbus"
	"github.com/rakunlabs/pcgate/internal/gerr"
	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/lang/ops"
	"github.com/rakunlabs/pcgate/internal/message"
	"github.com/rakunlabs/pcgate/internal/proof"
	"github.com/rakunlabs/pcgate/internal/router"
	"github.com/rakunlabs/pcgate/internal/session"
	"github.com/rakunlabs/pcgate/internal/skill"
	"github.com/rakunlabs/pcgate/internal/skill/builtin"
)

// Config configures a Gateway's components.
type Config struct {
	Lang    lang.Config
	Router  router.Config
	Session session.Config
}

// DefaultConfig wires the router's default command/intent tables to the
// bundled skill names so a fresh gateway answers messages out of the box.
func DefaultConfig() Config {
	rc := router.DefaultConfig()
	rc.Commands = router.CommandTable{"help": "echo", "search": "search"}
	rc.DefaultCommand = "echo"
	rc.DefaultIntent = "echo"

	return Config{
		Lang:    lang.DefaultConfig,
		Router:  rc,
		Session: session.DefaultConfig(),
	}
}

// Gateway is the central control plane: it owns the interpreter, router,
// session manager, skill registry, proof generator and event bus, and
// exposes ProcessMessage as the single pipeline every channel adapter
// drives.
type Gateway struct {
	interp    *lang.Interpreter
	registry  *skill.Registry
	router    *router.Router
	sessions  *session.Manager
	generator *proof.Generator
	bus       *eventbus.Bus

	// refHashes maps the content hash of every route target string (as
	// produced by router.Route's lang.HashString(target)) back to the
	// target string, so ProcessMessage can resolve a route decision to a
	// registry name. Built once at construction time from the router
	// config's command/intent tables and defaults.
	refHashes map[lang.Hash]string

	mu       sync.RWMutex
	channels map[string]channel.Adapter
	running  bool
}

// New builds a Gateway from config and a proof generator (already holding
// its signing key). The skill registry starts with the bundled builtins
// installed.
func New(config Config, generator *proof.Generator) (*Gateway, error) {
	interp := ops.Bootstrap(config.Lang)
	interp.Signer = generator.Signer
	interp.Verifier = generator.Verifier

	registry := skill.NewRegistry()
	if err := builtin.InstallAll(registry); err != nil {
		return nil, fmt.Errorf("gateway: install builtins: %w", err)
	}

	r := router.New(interp, config.Router)
	sessions := session.New(interp, config.Session)
	bus := eventbus.New()

	g := &Gateway{
		interp:    interp,
		registry:  registry,
		router:    r,
		sessions:  sessions,
		generator: generator,
		bus:       bus,
		refHashes: refHashesFromConfig(config.Router),
		channels:  make(map[string]channel.Adapter),
	}
	return g, nil
}

func refHashesFromConfig(cfg router.Config) map[lang.Hash]string {
	out := make(map[lang.Hash]string)
	add := func(ref string) {
		if ref == "" {
			return
		}
		out[lang.HashString(ref)] = ref
	}
	for _, ref := range cfg.Commands {
		add(ref)
	}
	for _, ref := range cfg.Intents {
		add(ref)
	}
	add(cfg.DefaultCommand)
	add(cfg.DefaultIntent)
	return out
}

// RegisterChannel attaches a channel adapter under its own name.
func (g *Gateway) RegisterChannel(a channel.Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels[a.Name()] = a
}

// Channel looks up a registered adapter by name.
func (g *Gateway) Channel(name string) (channel.Adapter, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.channels[name]
	return a, ok
}

// Registry exposes the skill registry for install-time administration
// (loading extra skills from disk, the control API).
func (g *Gateway) Registry() *skill.Registry { return g.registry }

// Bus exposes the event bus for subscribers (the control WebSocket).
func (g *Gateway) Bus() *eventbus.Bus { return g.bus }

// Start marks the gateway as running. Calling it twice is an error.
func (g *Gateway) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return gerr.ErrAlreadyRunning
	}
	g.running = true
	g.bus.Publish(eventbus.Event{Kind: eventbus.KindGatewayStarted})
	return nil
}

// Stop marks the gateway as no longer running.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return gerr.ErrNotInitialized
	}
	g.running = false
	g.bus.Publish(eventbus.Event{Kind: eventbus.KindGatewayStopped})
	return nil
}

// ProcessMessage runs the full pipeline for one incoming message: resolve
// session, route, execute the target skill, generate a signed proof,
// update the session, and publish the relevant events. The first fatal
// error anywhere in the pipeline short-circuits into a signed NoOp PCA
// carrying a diagnostic reason — the caller always gets a proof, even a
// proof of failure.
func (g *Gateway) ProcessMessage(ctx context.Context, msg message.IncomingMessage) (proof.PCA, error) {
	g.mu.RLock()
	running := g.running
	g.mu.RUnlock()
	if !running {
		return g.failClosed(ctx, msg, lang.Hash{}, gerr.ErrNotInitialized)
	}

	g.bus.Publish(eventbus.Event{
		Kind:        eventbus.KindMessageReceived,
		ChannelID:   msg.ChannelID,
		SenderID:    msg.SenderID,
		MessageHash: msg.ID,
	})

	sess := g.sessions.GetOrCreate(msg.ChannelID, msg.SenderID)
	g.bus.Publish(eventbus.Event{Kind: eventbus.KindSessionCreated, SessionID: sess.ID, TrustScore: sess.TrustScore.Value()})

	route, routeTrace, err := g.router.Route(ctx, msg)
	if err != nil {
		return g.failClosed(ctx, msg, sess.ID, &gerr.RouterError{Reason: err.Error()})
	}

	action, skillTrace, err := g.executeSkill(ctx, msg, route)
	if err != nil {
		return g.failClosed(ctx, msg, sess.ID, err)
	}

	pca, err := g.generator.Generate(action, sess.ID, msg.ID, []proof.ExecutionTrace{routeTrace, skillTrace})
	if err != nil {
		return g.failClosed(ctx, msg, sess.ID, &gerr.SigningFailed{Reason: err.Error()})
	}

	if updateErr := g.sessions.Update(ctx, sess.ID, msg.ID, route.Confidence); updateErr != nil {
		slog.Warn("gateway: session update failed", "session", sess.ID.Hex(), "error", updateErr)
	}

	g.bus.Publish(eventbus.Event{
		Kind:       eventbus.KindMessageProcessed,
		ChannelID:  msg.ChannelID,
		SkillHash:  route.SkillHash,
		Confidence: pca.Confidence,
	})
	g.bus.Publish(eventbus.Event{Kind: eventbus.KindSessionUpdated, SessionID: sess.ID, TrustScore: route.Confidence.Value()})

	return pca, nil
}

// failClosed builds and signs a NoOp PCA carrying cause's error message: a
// fatal error never produces silence, it produces a signed proof of
// failure.
func (g *Gateway) failClosed(ctx context.Context, msg message.IncomingMessage, sessionHash lang.Hash, cause error) (proof.PCA, error) {
	g.bus.Error("gateway", cause.Error())

	action := message.NoOp(cause.Error())
	pca, err := g.generator.Generate(action, sessionHash, msg.ID, nil)
	if err != nil {
		return proof.PCA{}, fmt.Errorf("gateway: sign failure proof: %w", err)
	}
	return pca, nil
}

// executeSkill resolves route.SkillHash back to a registry name (via
// refHashes, built from the router config) and, if installed, executes its
// graph against {message, sender, channel, query, params} inputs. A route
// target that isn't backed by an installed skill is a fatal SkillNotFound,
// which ProcessMessage turns into a signed NoOp PCA rather than silence.
func (g *Gateway) executeSkill(ctx context.Context, msg message.IncomingMessage, route router.RouteResult) (message.Action, proof.ExecutionTrace, error) {
	ref, ok := g.refHashes[route.SkillHash]
	if !ok {
		return message.Action{}, proof.ExecutionTrace{}, &gerr.SkillNotFound{Hash: route.SkillHash.Hex()}
	}

	entry, ok := g.registry.GetByName(ref)
	if !ok {
		return message.Action{}, proof.ExecutionTrace{}, &gerr.SkillNotFound{Hash: ref}
	}

	inputs := map[string]lang.Value{
		"message": lang.String(msg.Content),
		"query":   lang.String(msg.Content),
		"sender":  lang.String(msg.SenderID),
		"channel": lang.String(msg.ChannelID),
	}
	for k, v := range route.Params {
		inputs[k] = lang.String(v)
	}

	result, err := g.interp.Execute(ctx, &entry.Graph.Graph, inputs)
	if err != nil {
		return message.Action{}, proof.ExecutionTrace{}, &gerr.ExecutionError{Reason: err.Error()}
	}

	g.bus.Publish(eventbus.Event{Kind: eventbus.KindSkillInvoked, SkillHash: entry.Hash, SkillName: entry.Metadata.Name})

	trace := proof.NewExecutionTrace()
	for _, nodeID := range result.Trace {
		trace.AddNode(lang.HashString(nodeID))
	}

	return actionFromOutputs(entry.Graph, result.Outputs, msg), trace, nil
}

// actionFromOutputs converts a skill graph's declared outputs into a
// gateway Action: the first output with a string value becomes a reply
// sent back to the message's sender on the same channel. A skill with no
// string-valued output produces a diagnostic NoOp rather than silence.
func actionFromOutputs(g *skill.Graph, outputs map[string]lang.Value, msg message.IncomingMessage) message.Action {
	for _, outID := range g.Outputs {
		v, ok := outputs[outID]
		if !ok {
			continue
		}
		if s, ok := v.AsString(); ok {
			reply := message.NewOutgoingMessage(msg.ChannelID, msg.SenderID, s)
			return message.SendMessage(reply)
		}
	}
	return message.NoOp("skill produced no string output")
}

// ExecuteAction dispatches a generated PCA's action to the world: sending
// a message through the named channel, or applying a session update.
// Verification happens first and fails closed.
func (g *Gateway) ExecuteAction(ctx context.Context, pca proof.PCA) error {
	ok, err := g.generator.Verify(pca)
	if err != nil || !ok {
		return gerr.ErrInvalidSignature
	}

	switch pca.Action.Kind {
	case message.ActionSendMessage:
		if pca.Action.Message == nil {
			return gerr.ErrInvalidMessage
		}
		a, found := g.Channel(adapterName(pca.Action.Message.ChannelID))
		if !found {
			return &gerr.ChannelNotFound{ChannelID: pca.Action.Message.ChannelID}
		}
		_, err := a.Send(ctx, *pca.Action.Message)
		return err

	case message.ActionExecuteSkill:
		// Enqueuing a follow-up skill execution is left to the caller:
		// ProcessMessage already ran the skill that produced this PCA.
		// A composed/chained skill call would re-enter ProcessMessage's
		// executeSkill with pca.Action.Inputs, which the control API does
		// for explicit skill invocations.
		return nil

	case message.ActionUpdateSession:
		return g.sessions.SetContext(pca.Action.SessionHash, "last_update", pca.Action.Updates)

	case message.ActionNoOp:
		slog.Info("gateway: no-op action", "reason", pca.Action.Reason)
		return nil

	default:
		return &gerr.ExecutionError{Reason: "unknown action kind: " + pca.Action.Kind}
	}
}

// adapterName extracts the registered channel adapter name from a message's
// ChannelID. Adapters that scope their channel id by conversation (telegram's
// "telegram:<chat id>") separate the adapter name with a colon; adapters
// that don't (discord's bare "discord") are their own full id.
func adapterName(channelID string) string {
	if i := strings.IndexByte(channelID, ':'); i >= 0 {
		return channelID[:i]
	}
	return channelID
}
