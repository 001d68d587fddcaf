// Package ops implements the fixed builtin operation vocabulary the graph
// interpreter dispatches Operation nodes to. Every function here is
// registered by name in Register and is meant to be the one and only
// implementation of that operation — skill graphs can compose these, they
// cannot define new ones.
package ops

import (
	"context"
	"fmt"

	"github.com/rakunlabs/pcgate/internal/lang"
)

// arg0String returns the first input coerced to a string, or "" if absent
// or not a string.
func arg0String(inputs []lang.Value) string {
	if len(inputs) == 0 {
		return ""
	}
	s, _ := inputs[0].AsString()
	return s
}

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func paramFloat(params map[string]any, key string, fallback float64) float64 {
	if params == nil {
		return fallback
	}
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return fallback
}

func requireArgs(inputs []lang.Value, n int, op string) error {
	if len(inputs) < n {
		return fmt.Errorf("%s: requires %d input(s), got %d", op, n, len(inputs))
	}
	return nil
}

// simple wraps a function with no context/error concerns into an OpFunc.
func simple(name string, fn func(inputs []lang.Value, params map[string]any) (lang.Value, error)) lang.Op {
	return lang.OpFunc{
		OpName: name,
		Fn: func(_ context.Context, inputs []lang.Value, params map[string]any) (lang.Value, error) {
			return fn(inputs, params)
		},
	}
}
