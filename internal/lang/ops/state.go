package ops

import (
	"context"

	"github.com/rakunlabs/pcgate/internal/lang"
)

func registerState(reg *lang.Registry, interp *lang.Interpreter) {
	reg.Register(lang.OpFunc{
		OpName: "LoadState",
		Fn: func(_ context.Context, inputs []lang.Value, params map[string]any) (lang.Value, error) {
			key := stateKey(inputs, params)
			return interp.LoadState(key), nil
		},
	})

	reg.Register(lang.OpFunc{
		OpName: "SaveState",
		Fn: func(_ context.Context, inputs []lang.Value, params map[string]any) (lang.Value, error) {
			key := stateKey(inputs, params)
			var value lang.Value
			if len(inputs) > 1 {
				value = inputs[1]
			} else {
				value = lang.Null()
			}
			interp.SaveState(key, value)
			return value, nil
		},
	})
}

func stateKey(inputs []lang.Value, params map[string]any) string {
	if k := paramString(params, "key"); k != "" {
		return k
	}
	return arg0String(inputs)
}
