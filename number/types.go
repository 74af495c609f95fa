// Package number holds the integer/float conversion-range checks and
// min/max bounds used by the interpreter's *.trunc_f* opcodes (spec §4.5).
// It works in terms of its own small Type enum rather than types.ValueType
// because it needs to distinguish signed and unsigned destinations, which
// WebAssembly's value types alone don't (i32/i64 cover both div_s/div_u).
package number

// Type distinguishes the signed-ness of a truncation destination alongside
// the WebAssembly source float types.
type Type int

const (
	I32 Type = iota
	I64
	U32
	U64
	F32
	F64
)

// TrapCode is the outcome of a float-to-int truncation attempt.
type TrapCode int

const (
	// NoTrap means the truncation succeeded.
	NoTrap TrapCode = iota
	// NanTrap means the source was NaN.
	NanTrap
	// ConvertTrap means the source was out of the destination's representable range.
	ConvertTrap
)
