package ops

import (
	"strconv"
	"strings"

	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/render"
)

func registerString(reg *lang.Registry) {
	reg.Register(simple("Identity", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		if len(inputs) == 0 {
			return lang.Null(), nil
		}
		return inputs[0], nil
	}))

	reg.Register(simple("StartsWith", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		return lang.Bool(strings.HasPrefix(arg0String(inputs), paramString(params, "prefix"))), nil
	}))

	reg.Register(simple("EndsWith", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		return lang.Bool(strings.HasSuffix(arg0String(inputs), paramString(params, "suffix"))), nil
	}))

	reg.Register(simple("Contains", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		return lang.Bool(strings.Contains(arg0String(inputs), paramString(params, "substring"))), nil
	}))

	reg.Register(simple("ExtractFirstWord", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		fields := strings.Fields(arg0String(inputs))
		if len(fields) == 0 {
			return lang.String(""), nil
		}
		return lang.String(fields[0]), nil
	}))

	reg.Register(simple("ExtractParams", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		prefix := paramString(params, "prefix")
		s := strings.TrimSpace(strings.TrimPrefix(arg0String(inputs), prefix))
		result := map[string]lang.Value{}
		if s != "" {
			result["args"] = lang.String(s)
			for i, arg := range strings.Fields(s) {
				result[argKey(i)] = lang.String(arg)
			}
		}
		return lang.Map(result), nil
	}))

	reg.Register(simple("Concat", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		var sb strings.Builder
		for _, v := range inputs {
			if s, ok := v.AsString(); ok {
				sb.WriteString(s)
			}
		}
		return lang.String(sb.String()), nil
	}))

	reg.Register(simple("Split", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		sep := paramString(params, "separator")
		if sep == "" {
			sep = " "
		}
		parts := strings.Split(arg0String(inputs), sep)
		vals := make([]lang.Value, len(parts))
		for i, p := range parts {
			vals[i] = lang.String(p)
		}
		return lang.Array(vals), nil
	}))

	reg.Register(simple("Trim", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		return lang.String(strings.TrimSpace(arg0String(inputs))), nil
	}))

	reg.Register(simple("ToLower", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		return lang.String(strings.ToLower(arg0String(inputs))), nil
	}))

	reg.Register(simple("ToUpper", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		return lang.String(strings.ToUpper(arg0String(inputs))), nil
	}))

	reg.Register(simple("Length", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		if len(inputs) == 0 {
			return lang.Int(0), nil
		}
		switch inputs[0].Kind() {
		case lang.KindString:
			s, _ := inputs[0].AsString()
			return lang.Int(int64(len(s))), nil
		case lang.KindArray:
			a, _ := inputs[0].AsArray()
			return lang.Int(int64(len(a))), nil
		case lang.KindMap:
			m, _ := inputs[0].AsMap()
			return lang.Int(int64(len(m))), nil
		case lang.KindBytes:
			b, _ := inputs[0].AsBytes()
			return lang.Int(int64(len(b))), nil
		default:
			return lang.Int(0), nil
		}
	}))

	reg.Register(simple("StringFormat", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		template := paramString(params, "template")
		data := map[string]any{}
		for i, v := range inputs {
			data[argKey(i)] = valueToAny(v)
		}
		out, err := render.ExecuteWithFuncs(template, data, nil)
		if err != nil {
			return lang.Null(), err
		}
		return lang.String(string(out)), nil
	}))
}

func argKey(i int) string {
	return "arg" + strconv.Itoa(i)
}

// valueToAny unwraps a lang.Value into a plain Go value suitable for text
// template rendering (StringFormat's mugo-backed template engine).
func valueToAny(v lang.Value) any {
	switch v.Kind() {
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
		for i, e := range a {
			out[i] = valueToAny(e)
		}
		return out
	case lang.KindMap:
		m, _ := v.AsMap()
		out := make(map[string]any, len(m))
		for k, e := range m {
			out[k] = valueToAny(e)
		}
		return out
	default:
		return nil
	}
}
