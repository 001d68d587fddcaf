package ops

import "github.com/rakunlabs/pcgate/internal/lang"

func registerLogic(reg *lang.Registry) {
	reg.Register(simple("And", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		for _, v := range inputs {
			if !v.Truthy() {
				return lang.Bool(false), nil
			}
		}
		return lang.Bool(len(inputs) > 0), nil
	}))

	reg.Register(simple("Or", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		for _, v := range inputs {
			if v.Truthy() {
				return lang.Bool(true), nil
			}
		}
		return lang.Bool(false), nil
	}))

	reg.Register(simple("Not", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		if len(inputs) == 0 {
			return lang.Bool(true), nil
		}
		return lang.Bool(!inputs[0].Truthy()), nil
	}))

	reg.Register(simple("If", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		if err := requireArgs(inputs, 3, "If"); err != nil {
			return lang.Null(), err
		}
		if inputs[0].Truthy() {
			return inputs[1], nil
		}
		return inputs[2], nil
	}))
}
