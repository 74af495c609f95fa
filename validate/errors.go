// Package validate type-checks a single function body against its declared
// signature and the enclosing module's static shape, and re-emits it as a
// flat, jump-resolved bytecode stream the vm package can execute without
// re-decoding instruction immediates or re-discovering branch targets
// (spec §4.3, §4.4). It depends only on the types package, never on wasm,
// so the two packages can call into each other's domain (wasm calls
// validate.Function; validate reports back through ModuleContext) without
// an import cycle.
package validate

import "fmt"

// Error is returned for any static violation of the module's or function
// body's structure. wasm.Parse wraps it into a types.MalformedModuleError.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return e.Reason }

func errf(format string, args ...interface{}) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}
