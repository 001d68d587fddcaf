// Package router decides which skill handles an incoming message. Unlike
// the original priority-sorted rule list, routing decisions are themselves
// made by executing a graph through the same interpreter that runs skills,
// so the router's own logic is auditable by the same machinery it routes
// work into.
package router

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/message"
	"github.com/rakunlabs/pcgate/internal/proof"
)

// RouteResult is the outcome of routing a message to a skill.
type RouteResult struct {
	SkillHash  lang.Hash
	RouteName  string
	Confidence lang.Confidence
	Params     map[string]string
}

// CommandTable maps a leading "/command" token (without the slash) to the
// skill reference it targets.
type CommandTable map[string]string

// IntentTable maps a classified intent label to the skill reference it
// targets.
type IntentTable map[string]string

// IntentBuckets maps an intent label to the keywords that classify a
// message into it, per lang/ops.ClassifyIntent's params.
type IntentBuckets map[string][]string

// Config configures the default routing graph.
type Config struct {
	Commands        CommandTable
	Intents         IntentTable
	IntentBuckets   IntentBuckets
	IntentOrder     []string
	DefaultCommand  string // skill ref when no command entry matches
	DefaultIntent   string // skill ref when no intent entry matches
	CachingEnabled  bool
}

// DefaultConfig mirrors the original router's single built-in command and
// falls back to a generic chat skill for everything else.
func DefaultConfig() Config {
	return Config{
		Commands:       CommandTable{"help": "skill:help"},
		Intents:        IntentTable{},
		IntentBuckets:  IntentBuckets{},
		IntentOrder:    nil,
		DefaultCommand: "skill:unknown_command",
		DefaultIntent:  "skill:chat",
		CachingEnabled: true,
	}
}

// Router routes incoming messages to a skill by executing a small built-in
// graph (see buildDefaultGraph) through interp, caching results by a
// content hash of the routable part of the message.
type Router struct {
	interp *lang.Interpreter
	graph  *lang.Graph
	config Config

	mu    sync.Mutex
	cache map[lang.Hash]RouteResult
}

// New builds a Router backed by interp's op vocabulary.
func New(interp *lang.Interpreter, config Config) *Router {
	return &Router{
		interp: interp,
		graph:  buildDefaultGraph(config),
		config: config,
		cache:  make(map[lang.Hash]RouteResult),
	}
}

// buildDefaultGraph constructs the routing graph described by the design:
// a command check (StartsWith "/") feeding a static command lookup, run in
// parallel with intent classification feeding a static intent lookup, with
// an If node selecting between them and a Route node scoring the decision.
func buildDefaultGraph(cfg Config) *lang.Graph {
	commandTable := map[string]string{}
	for k, v := range cfg.Commands {
		commandTable[k] = v
	}
	defaultCommand := cfg.DefaultCommand

	intentTable := map[string]string{}
	for k, v := range cfg.Intents {
		intentTable[k] = v
	}
	defaultIntent := cfg.DefaultIntent

	buckets := map[string]any{}
	for k, v := range cfg.IntentBuckets {
		words := make([]any, 0, len(v))
		for _, w := range v {
			words = append(words, w)
		}
		buckets[k] = words
	}
	order := make([]any, 0, len(cfg.IntentOrder))
	for _, o := range cfg.IntentOrder {
		order = append(order, o)
	}

	return &lang.Graph{
		Name:    "default_router",
		Version: 1,
		Nodes: []lang.Node{
			{ID: "message", Type: lang.NodeExternal, URI: "input://message"},
			{ID: "sender", Type: lang.NodeExternal, URI: "input://sender"},
			{ID: "channel", Type: lang.NodeExternal, URI: "input://channel"},

			{ID: "is_command", Type: lang.NodeOperation, Op: "StartsWith",
				Inputs: []string{"message"}, Params: map[string]any{"prefix": "/"}},

			{ID: "first_word", Type: lang.NodeOperation, Op: "ExtractFirstWord",
				Inputs: []string{"message"}},

			{ID: "command_target", Type: lang.NodeLookup,
				Inputs: []string{"first_word"}, Table: commandTable, Default: &defaultCommand},

			{ID: "intent", Type: lang.NodeOperation, Op: "ClassifyIntent",
				Inputs: []string{"message"},
				Params: map[string]any{"buckets": buckets, "order": order}},

			{ID: "intent_target", Type: lang.NodeLookup,
				Inputs: []string{"intent.intent"}, Table: intentTable, Default: &defaultIntent},

			{ID: "skill_target", Type: lang.NodeOperation, Op: "If",
				Inputs: []string{"is_command", "command_target", "intent_target"}},

			{ID: "route_decision", Type: lang.NodeRoute,
				Inputs: []string{"is_command"},
				Conditions: []lang.RouteCondition{
					{Input: "is_command", Threshold: 1, Target: "command", Confidence: 0.95},
					{Input: "is_command", Target: "intent", Confidence: 0.5},
				}},
		},
		Outputs: []string{"skill_target", "route_decision"},
	}
}

// cacheKey matches the original's cache_key: commands (content starting with
// "/") cache on their leading token so repeated invocations of the same
// command reuse a decision, while everything else is keyed uniquely per
// message id so non-command content is effectively never served from cache.
func cacheKey(msg message.IncomingMessage) lang.Hash {
	content := strings.TrimSpace(msg.Content)
	if strings.HasPrefix(content, "/") {
		fields := strings.Fields(content)
		if len(fields) > 0 {
			return lang.HashString(fields[0])
		}
	}
	return lang.HashString("nocache:" + msg.ID.Hex())
}

// extractParams mirrors the original's extract_params: once a command token
// is known, everything after it in the message splits into positional
// arg0/arg1/... plus the raw remainder as "args".
func extractParams(content, prefix string) map[string]string {
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(content), prefix))
	params := map[string]string{"args": rest}
	if rest == "" {
		return params
	}
	for i, arg := range strings.Fields(rest) {
		params[fmt.Sprintf("arg%d", i)] = arg
	}
	return params
}

// Route decides which skill should handle msg, returning the decision and
// the trace of graph nodes that produced it.
func (r *Router) Route(ctx context.Context, msg message.IncomingMessage) (RouteResult, proof.ExecutionTrace, error) {
	key := cacheKey(msg)

	if r.config.CachingEnabled {
		r.mu.Lock()
		cached, ok := r.cache[key]
		r.mu.Unlock()
		if ok {
			return cached, proof.CachedExecutionTrace(), nil
		}
	}

	inputs := map[string]lang.Value{
		"message": lang.String(msg.Content),
		"sender":  lang.String(msg.SenderID),
		"channel": lang.String(msg.ChannelID),
	}

	result, err := r.interp.Execute(ctx, r.graph, inputs)
	if err != nil {
		return RouteResult{}, proof.ExecutionTrace{}, fmt.Errorf("router: %w", err)
	}

	targetVal, ok := result.Outputs["skill_target"]
	if !ok {
		return RouteResult{}, proof.ExecutionTrace{}, fmt.Errorf("router: routing graph produced no skill_target")
	}
	target, ok := targetVal.AsString()
	if !ok {
		return RouteResult{}, proof.ExecutionTrace{}, fmt.Errorf("router: skill_target is not a string")
	}

	routeName := "default"
	confidence := lang.NewConfidence(0.5)
	if decisionVal, ok := result.Outputs["route_decision"]; ok {
		if m, ok := decisionVal.AsMap(); ok {
			if s, ok := m["target"].AsString(); ok {
				routeName = s
			}
			if c, ok := m["confidence"].AsConfidence(); ok {
				confidence = c
			}
		}
	}

	params := map[string]string{}
	content := strings.TrimSpace(msg.Content)
	if routeName == "command" && strings.HasPrefix(content, "/") {
		fields := strings.Fields(content)
		if len(fields) > 0 {
			params = extractParams(content, fields[0])
		}
	}

	route := RouteResult{
		SkillHash:  lang.HashString(target),
		RouteName:  routeName,
		Confidence: confidence,
		Params:     params,
	}

	trace := proof.NewExecutionTrace()
	for _, nodeID := range result.Trace {
		trace.AddNode(lang.HashString(nodeID))
	}

	if r.config.CachingEnabled {
		r.mu.Lock()
		r.cache[key] = route
		r.mu.Unlock()
	}

	return route, trace, nil
}

// ClearCache empties the route cache.
func (r *Router) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[lang.Hash]RouteResult)
}

// CacheSize returns the number of cached route decisions.
func (r *Router) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

// SetCaching toggles whether Route consults and populates the cache.
func (r *Router) SetCaching(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.CachingEnabled = enabled
}
