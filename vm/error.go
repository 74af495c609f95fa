package vm

import (
	"github.com/sirupsen/logrus"

	"github.com/vertexdlt/wasmcore/types"
)

var log = logrus.WithField("component", "vm")

// ExecutionResult is the outcome of a successful Execute call.
type ExecutionResult struct {
	Results []types.Value
}

// trap raises a WebAssembly trap. It unwinds the Go call stack as a panic,
// caught by runProtected at the boundary of the originating Execute call,
// never visible to a caller of the public API as an actual Go panic.
func trap(code types.TrapCode) {
	panic(types.NewTrap(code))
}

// hostError wraps an error returned by a host import, so it unwinds through
// the interpreter loop the same way a trap does without being mistaken for
// one (a host failure isn't one of the named WebAssembly trap reasons).
type hostError struct{ err error }

func (h *hostError) Error() string { return h.err.Error() }
func (h *hostError) Unwrap() error { return h.err }

func abortHost(err error) {
	panic(&hostError{err})
}

// runProtected runs fn, converting a trap or host-import-error panic into a
// returned error. Any other panic is a genuine interpreter bug rather than
// a WebAssembly trap and is left to propagate.
func runProtected(fn func() ExecutionResult) (result ExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *types.Trap:
				log.WithField("code", e.Code).Debug("execution trapped")
				err = e
				return
			case *hostError:
				err = e
				return
			}
			panic(r)
		}
	}()
	result = fn()
	return result, nil
}
