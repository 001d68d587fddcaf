package ops

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/rakunlabs/pcgate/internal/lang"
)

func registerCrypto(reg *lang.Registry, interp *lang.Interpreter) {
	reg.Register(simple("Hash", func(inputs []lang.Value, _ map[string]any) (lang.Value, error) {
		sum := sha256.Sum256(valueBytes(inputs))
		return lang.HashValue(lang.Hash(sum)), nil
	}))

	reg.Register(lang.OpFunc{
		OpName: "Sign",
		Fn: func(_ context.Context, inputs []lang.Value, _ map[string]any) (lang.Value, error) {
			if interp.Signer == nil {
				return lang.Null(), errors.New("Sign operation requires a configured signing key")
			}
			sig, err := interp.Signer(valueBytes(inputs))
			if err != nil {
				return lang.Null(), err
			}
			return lang.Bytes(sig), nil
		},
	})

	reg.Register(lang.OpFunc{
		OpName: "Verify",
		Fn: func(_ context.Context, inputs []lang.Value, _ map[string]any) (lang.Value, error) {
			if interp.Verifier == nil {
				return lang.Bool(false), errors.New("Verify operation requires a configured verifier")
			}
			if len(inputs) < 3 {
				return lang.Bool(false), errors.New("Verify: requires message, signature, public_key inputs")
			}
			msg, _ := inputs[0].AsBytes()
			sig, _ := inputs[1].AsBytes()
			key, _ := inputs[2].AsBytes()
			return lang.Bool(interp.Verifier(msg, sig, key)), nil
		},
	})
}

// valueBytes serializes a set of op inputs into a deterministic byte
// sequence for Hash/Sign, concatenating each input's canonical JSON.
func valueBytes(inputs []lang.Value) []byte {
	var out []byte
	for _, v := range inputs {
		b, err := v.MarshalJSON()
		if err != nil {
			continue
		}
		out = append(out, b...)
	}
	return out
}
