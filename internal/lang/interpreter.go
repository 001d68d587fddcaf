package lang

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Op is a built-in operation: the fixed, auditable vocabulary every skill
// graph's Operation nodes are restricted to. Implementations must be pure
// functions of (inputs, params) except where the op's own contract says
// otherwise (Sign, Timestamp, LoadState/SaveState).
type Op interface {
	Name() string
	Execute(ctx context.Context, inputs []Value, params map[string]any) (Value, error)
}

// OpFunc adapts a plain function to the Op interface.
type OpFunc struct {
	OpName string
	Fn     func(ctx context.Context, inputs []Value, params map[string]any) (Value, error)
}

func (f OpFunc) Name() string { return f.OpName }
func (f OpFunc) Execute(ctx context.Context, inputs []Value, params map[string]any) (Value, error) {
	return f.Fn(ctx, inputs, params)
}

// Registry holds the built-in op vocabulary available to an Interpreter.
// It is populated once at startup (see ops.Register) and read concurrently
// by every graph execution thereafter, so no lock is needed post-construction.
type Registry struct {
	ops map[string]Op
}

func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Op)}
}

func (r *Registry) Register(op Op) {
	r.ops[op.Name()] = op
}

func (r *Registry) Get(name string) (Op, bool) {
	op, ok := r.ops[name]
	return op, ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for n := range r.ops {
		names = append(names, n)
	}
	return names
}

func (r *Registry) Len() int { return len(r.ops) }

// Config bounds a single graph execution.
type Config struct {
	// MaxSteps caps the number of nodes executed before ExecutionError.
	MaxSteps uint64
}

// DefaultConfig matches the safety proof's conservative default budget.
var DefaultConfig = Config{MaxSteps: 10000}

// ExecutionError reports a runtime failure within a single node's evaluation.
type ExecutionError struct {
	NodeID string
	Reason string
}

func (e *ExecutionError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("lang: execution error: %s", e.Reason)
	}
	return fmt.Sprintf("lang: execution error at node %q: %s", e.NodeID, e.Reason)
}

// Result is the outcome of executing a Graph.
type Result struct {
	Outputs    map[string]Value
	Trace      []string
	Hash       Hash
	Confidence Confidence
}

// Interpreter executes Graphs over a fixed builtin Op vocabulary. It also
// holds the cross-execution state store used by the LoadState/SaveState ops
// (session-scoped key/value memory, guarded by an RWMutex since reads vastly
// outnumber writes in the steady state).
type Interpreter struct {
	registry *Registry
	config   Config

	mu    sync.RWMutex
	state map[string]Value

	// Signer is invoked by the Sign builtin op. A nil Signer makes Sign a
	// hard error rather than a silent stub, per the design decision that
	// signing must never be faked.
	Signer func(message []byte) ([]byte, error)
	// Verifier is invoked by the Verify builtin op.
	Verifier func(message, signature, publicKey []byte) bool
}

func NewInterpreter(registry *Registry, config Config) *Interpreter {
	return &Interpreter{
		registry: registry,
		config:   config,
		state:    make(map[string]Value),
	}
}

func (in *Interpreter) Registry() *Registry { return in.registry }

// SetRegistry attaches r as in's op vocabulary. Used by ops.Bootstrap to
// break the construction cycle between Interpreter and Registry: the
// crypto/state ops need a live *Interpreter to bind against before the
// registry they belong to can be built.
func (in *Interpreter) SetRegistry(r *Registry) { in.registry = r }

// executionContext accumulates per-execution mutable state threaded through
// node evaluation: computed node values, the execution trace, and the
// running confidence score (starts at 1.0 and is multiplicatively reduced
// by Route and Permission nodes, mirroring how independent evidence combines).
type executionContext struct {
	nodeValues map[string]Value
	trace      []string
	confidence float64
	steps      uint64
}

// Execute runs graph to completion against the given named inputs.
func (in *Interpreter) Execute(ctx context.Context, graph *Graph, inputs map[string]Value) (*Result, error) {
	sorted, err := graph.TopoSort()
	if err != nil {
		return nil, err
	}

	ec := &executionContext{
		nodeValues: make(map[string]Value, len(graph.Nodes)),
		confidence: 1.0,
	}

	for _, node := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if ec.steps >= in.config.MaxSteps {
			return nil, &ExecutionError{Reason: "maximum execution steps exceeded"}
		}

		value, err := in.executeNode(ctx, node, inputs, ec)
		if err != nil {
			return nil, err
		}

		ec.nodeValues[node.ID] = value
		ec.trace = append(ec.trace, node.ID)
		ec.steps++
	}

	outputs := make(map[string]Value, len(graph.Outputs))
	for _, id := range graph.Outputs {
		if v, ok := ec.nodeValues[id]; ok {
			outputs[id] = v
		}
	}

	hash, err := in.computeExecutionHash(ec)
	if err != nil {
		return nil, err
	}

	return &Result{
		Outputs:    outputs,
		Trace:      ec.trace,
		Hash:       hash,
		Confidence: NewConfidence(ec.confidence),
	}, nil
}

func (in *Interpreter) executeNode(ctx context.Context, node *Node, inputs map[string]Value, ec *executionContext) (Value, error) {
	switch node.Type {
	case NodeExternal:
		key := strings.TrimPrefix(node.URI, "input://")
		if v, ok := inputs[key]; ok {
			return v, nil
		}
		return Null(), nil

	case NodeConstant:
		return node.Value, nil

	case NodeOperation:
		args, err := in.gatherInputs(node.Inputs, ec)
		if err != nil {
			return Null(), err
		}
		op, ok := in.registry.Get(node.Op)
		if !ok {
			return Null(), &ExecutionError{NodeID: node.ID, Reason: fmt.Sprintf("unknown operation %q", node.Op)}
		}
		v, err := op.Execute(ctx, args, node.Params)
		if err != nil {
			return Null(), &ExecutionError{NodeID: node.ID, Reason: err.Error()}
		}
		return v, nil

	case NodeLookup:
		args, err := in.gatherInputs(node.Inputs, ec)
		if err != nil {
			return Null(), err
		}
		key := ""
		if len(args) > 0 {
			if s, ok := args[0].AsString(); ok {
				key = s
			}
		}
		if v, ok := node.Table[key]; ok {
			return String(v), nil
		}
		if node.Default != nil {
			return String(*node.Default), nil
		}
		return String(""), nil

	case NodeRoute:
		return in.executeRoute(node, ec)

	case NodePermission:
		return in.executePermission(node, ec)

	default:
		return Null(), &ExecutionError{NodeID: node.ID, Reason: "unknown node type"}
	}
}

func (in *Interpreter) executeRoute(node *Node, ec *executionContext) (Value, error) {
	for _, cond := range node.Conditions {
		inputVal := ec.nodeValues[cond.Input]

		var matches bool
		switch {
		case cond.MatchValue != nil:
			s, ok := inputVal.AsString()
			matches = ok && s == *cond.MatchValue
		case cond.Threshold > 0:
			matches = inputVal.Truthy()
		default:
			matches = true
		}

		if matches {
			ec.confidence *= cond.Confidence
			return Map(map[string]Value{
				"target":        String(cond.Target),
				"confidence":    ConfidenceValue(NewConfidence(cond.Confidence)),
				"matched_input": String(cond.Input),
			}), nil
		}
	}

	// No condition matched: default route at neutral confidence rather
	// than Null, so routing always produces something a caller can act on.
	return Map(map[string]Value{
		"target":        String("default"),
		"confidence":    ConfidenceValue(NewConfidence(0.5)),
		"matched_input": String(""),
	}), nil
}

func (in *Interpreter) executePermission(node *Node, ec *executionContext) (Value, error) {
	senderConfidence := 0.5
	if v, ok := ec.nodeValues["sender_confidence"]; ok {
		if f, ok := v.AsFloat(); ok {
			senderConfidence = f
		}
	}

	granted := senderConfidence >= node.MinConfidence
	if granted {
		ec.confidence *= senderConfidence
	} else {
		ec.confidence *= 0.1
	}

	return Map(map[string]Value{
		"granted":    Bool(granted),
		"confidence": ConfidenceValue(NewConfidence(senderConfidence)),
		"action":     String(node.Action),
	}), nil
}

// gatherInputs resolves a node's Inputs references, where "node.field"
// extracts a field of a Map-valued node result and a bare "node" takes its
// whole value.
func (in *Interpreter) gatherInputs(refs []string, ec *executionContext) ([]Value, error) {
	values := make([]Value, 0, len(refs))
	for _, ref := range refs {
		if idx := strings.IndexByte(ref, '.'); idx >= 0 {
			nodeID, field := ref[:idx], ref[idx+1:]
			base, ok := ec.nodeValues[nodeID]
			if !ok {
				values = append(values, Null())
				continue
			}
			m, ok := base.AsMap()
			if !ok {
				values = append(values, Null())
				continue
			}
			if v, ok := m[field]; ok {
				values = append(values, v)
			} else {
				values = append(values, Null())
			}
			continue
		}
		if v, ok := ec.nodeValues[ref]; ok {
			values = append(values, v)
		} else {
			values = append(values, Null())
		}
	}
	return values, nil
}

// computeExecutionHash binds the trace and its computed values into a
// single content hash: callers can verify, after the fact, that a reported
// trace corresponds to this exact sequence of node outputs.
func (in *Interpreter) computeExecutionHash(ec *executionContext) (Hash, error) {
	h := sha256New()
	for _, id := range ec.trace {
		h.Write([]byte(id))
		if v, ok := ec.nodeValues[id]; ok {
			b, err := marshalValue(v)
			if err != nil {
				return Hash{}, err
			}
			h.Write(b)
		}
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out, nil
}

// LoadState reads the cross-execution value stored under key (e.g. a
// session ID), returning Null if absent.
func (in *Interpreter) LoadState(key string) Value {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if v, ok := in.state[key]; ok {
		return v
	}
	return Null()
}

// SaveState stores value under key for later LoadState calls.
func (in *Interpreter) SaveState(key string, value Value) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.state[key] = value
}
