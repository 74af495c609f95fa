package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMalformedModuleErrorFormatting(t *testing.T) {
	plain := NewMalformedModuleError("bad magic")
	assert.Equal(t, "malformed module: bad magic", plain.Error())

	wrapped := WrapMalformedModuleError("section size", errors.New("short read"))
	assert.Equal(t, "malformed module: section size: short read", wrapped.Error())
	assert.Equal(t, "short read", errors.Unwrap(wrapped).Error())
}

func TestInstantiationErrorFormatting(t *testing.T) {
	plain := NewInstantiationError("missing import")
	assert.Equal(t, "instantiation error: missing import", plain.Error())

	cause := NewTrap(TrapUnreachable)
	wrapped := WrapInstantiationError("start function trapped", cause)
	assert.Equal(t, "instantiation error: start function trapped: trap: unreachable", wrapped.Error())
	assert.Same(t, cause, errors.Unwrap(wrapped))
}

func TestTrapCodeString(t *testing.T) {
	cases := map[TrapCode]string{
		TrapUnreachable:                "unreachable",
		TrapIntegerDivideByZero:        "integer divide by zero",
		TrapIntegerOverflow:            "integer overflow",
		TrapInvalidConversionToInteger: "invalid conversion to integer",
		TrapOutOfBoundsMemoryAccess:    "out of bounds memory access",
		TrapOutOfBoundsTableAccess:     "out of bounds table access",
		TrapUninitializedElement:       "uninitialized element",
		TrapIndirectCallTypeMismatch:   "indirect call type mismatch",
		TrapCallStackExhausted:         "call stack exhausted",
		TrapOutOfGas:                   "out of gas",
	}
	for code, want := range cases {
		assert.Equal(t, want, code.String())
	}
}

func TestTrapErrorHasPrefix(t *testing.T) {
	tr := NewTrap(TrapIntegerDivideByZero)
	assert.Equal(t, "trap: integer divide by zero", tr.Error())
}
