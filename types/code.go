package types

// Code is one function body after validation: a self-contained bytecode
// stream with pre-decoded immediates, pre-resolved branch targets, and
// pre-computed stack-drop counts (spec §3 "Code entry"). The interpreter
// never re-parses LEB128 or looks up instruction types at runtime against
// this stream.
type Code struct {
	NumLocals      uint32 // parameters plus declared locals
	MaxStackHeight uint32 // maximum operand-stack height reached, validated
	Bytecode       []byte
}
