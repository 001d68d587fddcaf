package ops

import "github.com/rakunlabs/pcgate/internal/lang"

// Register populates a fresh Registry with the full builtin op vocabulary
// and binds it to interp for the ops (Sign, Verify, LoadState, SaveState)
// that need interpreter-scoped state or hooks.
func Register(interp *lang.Interpreter) *lang.Registry {
	reg := lang.NewRegistry()

	registerString(reg)
	registerArith(reg)
	registerCompare(reg)
	registerLogic(reg)
	registerCollection(reg)
	registerCrypto(reg, interp)
	registerTime(reg)
	registerClassify(reg)
	registerState(reg, interp)
	registerJSON(reg)
	registerHTTP(reg)

	return reg
}

// Bootstrap constructs an Interpreter with the full builtin vocabulary
// attached. Registry construction needs a live *Interpreter (Sign/Verify/
// LoadState/SaveState close over it), and Interpreter construction needs a
// *Registry, so this sequences the two: build the interpreter with an empty
// registry, build the real one against it, then attach it.
func Bootstrap(config lang.Config) *lang.Interpreter {
	interp := lang.NewInterpreter(lang.NewRegistry(), config)
	interp.SetRegistry(Register(interp))
	return interp
}
