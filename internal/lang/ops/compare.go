package ops

import "github.com/rakunlabs/pcgate/internal/lang"

func registerCompare(reg *lang.Registry) {
	reg.Register(simple("Equals", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		if len(inputs) < 2 {
			return lang.Bool(false), nil
		}
		return lang.Bool(inputs[0].Equal(inputs[1])), nil
	}))

	reg.Register(simple("NotEquals", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		if len(inputs) < 2 {
			return lang.Bool(true), nil
		}
		return lang.Bool(!inputs[0].Equal(inputs[1])), nil
	}))

	reg.Register(simple("GreaterThan", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		return lang.Bool(numArg(inputs, 0) > numArg(inputs, 1)), nil
	}))

	reg.Register(simple("LessThan", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		return lang.Bool(numArg(inputs, 0) < numArg(inputs, 1)), nil
	}))
}
