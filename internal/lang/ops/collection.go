package ops

import "github.com/rakunlabs/pcgate/internal/lang"

func registerCollection(reg *lang.Registry) {
	reg.Register(simple("GetField", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		if len(inputs) == 0 {
			return lang.Null(), nil
		}
		m, ok := inputs[0].AsMap()
		if !ok {
			return lang.Null(), nil
		}
		field := paramString(params, "field")
		if v, ok := m[field]; ok {
			return v, nil
		}
		return lang.Null(), nil
	}))

	reg.Register(simple("SetField", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		base := map[string]lang.Value{}
		if len(inputs) > 0 {
			if m, ok := inputs[0].AsMap(); ok {
				for k, v := range m {
					base[k] = v
				}
			}
		}
		field := paramString(params, "field")
		if len(inputs) > 1 {
			base[field] = inputs[1]
		}
		return lang.Map(base), nil
	}))

	reg.Register(simple("CreateMap", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		m := map[string]lang.Value{}
		keys, _ := params["keys"].([]any)
		for i, kv := range keys {
			k, ok := kv.(string)
			if !ok || i >= len(inputs) {
				continue
			}
			m[k] = inputs[i]
		}
		return lang.Map(m), nil
	}))

	reg.Register(simple("MergeMap", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		out := map[string]lang.Value{}
		for _, v := range inputs {
			if m, ok := v.AsMap(); ok {
				for k, fv := range m {
					out[k] = fv
				}
			}
		}
		return lang.Map(out), nil
	}))

	reg.Register(simple("ArrayPush", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		var arr []lang.Value
		if len(inputs) > 0 {
			if a, ok := inputs[0].AsArray(); ok {
				arr = append(arr, a...)
			}
		}
		if len(inputs) > 1 {
			arr = append(arr, inputs[1])
		}
		return lang.Array(arr), nil
	}))

	reg.Register(simple("ArrayGet", func(inputs []lang.Value, params map[string]any) (lang.Value, error) {
		if len(inputs) == 0 {
			return lang.Null(), nil
		}
		a, ok := inputs[0].AsArray()
		if !ok {
			return lang.Null(), nil
		}
		idx := int(paramFloat(params, "index", 0))
		if idx < 0 || idx >= len(a) {
			return lang.Null(), nil
		}
		return a[idx], nil
	}))
}
