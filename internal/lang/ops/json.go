package ops

import (
	"encoding/json"

	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/tidwall/gjson"
)

// registerJSON wires the JSON interop ops a handful of builtin skills need
// to talk to JSON-speaking external APIs (search, browser, calendar): parse
// a raw JSON string into the graph's own Value tree, and pull a single field
// out of a parsed value by dotted path.
func registerJSON(reg *lang.Registry) {
	reg.Register(simple("JsonParse", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		raw := arg0String(inputs)
		if raw == "" {
			return lang.Null(), nil
		}
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return lang.Null(), nil
		}
		return anyToValue(decoded), nil
	}))

	reg.Register(simple("JsonGet", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		if len(inputs) == 0 {
			return lang.Null(), nil
		}
		path := paramString(params, "path")
		// inputs[0] is already a decoded Value tree, not raw JSON text, so
		// convert it to plain JSON before handing it to gjson's path query.
		plain, err := json.Marshal(plainOf(inputs[0]))
		if err != nil {
			return lang.Null(), nil
		}
		result := gjson.GetBytes(plain, path)
		if !result.Exists() {
			return lang.Null(), nil
		}
		return anyToValue(result.Value()), nil
	}))
}

// plainOf converts a Value into ordinary Go data (map[string]any, []any,
// string, float64, bool, nil) suitable for gjson path queries, the inverse
// of anyToValue.
func plainOf(v lang.Value) any {
	switch v.Kind() {
	case lang.KindNull:
		return nil
	case lang.KindBool:
		b, _ := v.AsBool()
		return b
	case lang.KindInt:
		i, _ := v.AsInt()
		return i
	case lang.KindFloat:
		f, _ := v.AsFloat()
		return f
	case lang.KindString:
		s, _ := v.AsString()
		return s
	case lang.KindArray:
		a, _ := v.AsArray()
		out := make([]any, len(a))
		for i, el := range a {
			out[i] = plainOf(el)
		}
		return out
	case lang.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]any, len(m))
		for k, el := range m {
			out[k] = plainOf(el)
		}
		return out
	default:
		return nil
	}
}

// anyToValue converts decoded JSON (map[string]any/[]any/float64/string/
// bool/nil) into the graph's Value tree.
func anyToValue(v any) lang.Value {
	switch t := v.(type) {
	case nil:
		return lang.Null()
	case bool:
		return lang.Bool(t)
	case float64:
		return lang.Float(t)
	case string:
		return lang.String(t)
	case []any:
		out := make([]lang.Value, len(t))
		for i, el := range t {
			out[i] = anyToValue(el)
		}
		return lang.Array(out)
	case map[string]any:
		out := make(map[string]lang.Value, len(t))
		for k, el := range t {
			out[k] = anyToValue(el)
		}
		return lang.Map(out)
	default:
		return lang.Null()
	}
}
