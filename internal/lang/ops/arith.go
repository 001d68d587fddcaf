package ops

import "github.com/rakunlabs/pcgate/internal/lang"

func registerArith(reg *lang.Registry) {
	reg.Register(simple("Add", binaryFloat(func(a, b float64) float64 { return a + b })))
	reg.Register(simple("Subtract", binaryFloat(func(a, b float64) float64 { return a - b })))
	reg.Register(simple("Multiply", binaryFloat(func(a, b float64) float64 { return a * b })))
	reg.Register(simple("Divide", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		a, b := numArg(inputs, 0), numArg(inputs, 1)
		if b == 0 {
			return lang.Float(0), nil
		}
		return lang.Float(a / b), nil
	}))
}

func numArg(inputs []lang.Value, i int) float64 {
	if i >= len(inputs) {
		return 0
	}
	f, _ := inputs[i].AsFloat()
	return f
}

func binaryFloat(fn func(a, b float64) float64) func([]lang.Value, map[string]any) (lang.Value, error) {
	return func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		return lang.Float(fn(numArg(inputs, 0), numArg(inputs, 1))), nil
	}
}
