package vm

import "encoding/binary"

// Frame is one active call's execution cursor: its bytecode and the base
// index into the engine's shared Stack where its locals region begins.
// Grounded on the teacher's Frame (basePointer into a flat stack, an ip
// cursor into the function's code), generalized to the re-emitted
// jump-resolved bytecode so ip is always an absolute offset, never needing
// LEB128 decoding at execution time.
type Frame struct {
	funcIdx     uint32
	bytecode    []byte
	ip          int
	localsBase  int
	resultCount int
}

func (f *Frame) readByte() byte {
	b := f.bytecode[f.ip]
	f.ip++
	return b
}

func (f *Frame) readU32() uint32 {
	v := binary.LittleEndian.Uint32(f.bytecode[f.ip : f.ip+4])
	f.ip += 4
	return v
}

func (f *Frame) readU64() uint64 {
	v := binary.LittleEndian.Uint64(f.bytecode[f.ip : f.ip+8])
	f.ip += 8
	return v
}

func (f *Frame) jump(target uint32) { f.ip = int(target) }
