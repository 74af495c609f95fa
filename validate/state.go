package validate

import "github.com/vertexdlt/wasmcore/types"

// valUnknown is the polymorphic "⊥" operand type used within unreachable
// code: it unifies with any expected type and is never itself a type
// mismatch (WebAssembly validation appendix, "Algorithm" section).
const valUnknown = types.ValueType(0)

func isUnknown(t types.ValueType) bool { return t == valUnknown }

// opStack is the abstract operand-type stack threaded through one
// function body's validation pass.
type opStack struct {
	vals []types.ValueType
}

func (s *opStack) push(t types.ValueType) { s.vals = append(s.vals, t) }

func (s *opStack) len() int { return len(s.vals) }

func (s *opStack) truncate(n int) { s.vals = s.vals[:n] }

// ctrlFrame is one entry of the control-frame stack: one per open
// block/loop/if-else, plus the implicit outermost function frame.
type ctrlFrame struct {
	opcode      types.Opcode
	endTypes    []types.ValueType // the block's result type, 0 or 1 entries
	isLoop      bool
	height      int  // opStack length at frame entry
	unreachable bool

	// labelTarget is the bytecode offset of a loop's first instruction,
	// where every branch to a loop frame jumps; it is set when the loop
	// opens and unused for block/if, whose forward branches are recorded
	// in branchPatches and backpatched to the position past the matching
	// end when the frame closes.
	labelTarget int
	// branchPatches holds the bytecode offsets of the uint32 jump-target
	// placeholders emitted by br/br_if/br_table instructions that target
	// this frame, pending resolution when the frame closes.
	branchPatches []int
	// elsePatch is the bytecode offset of the `if` instruction's own
	// jump-target placeholder (where to go if the condition is false),
	// set only while the frame is an open `if` without an `else` yet
	// seen; it is -1 otherwise.
	elsePatch int
	sawElse   bool
}

// labelTypes returns the operand types a branch into this frame must carry.
// A loop's label is its entry (so branching there supplies no values in
// the WebAssembly 1.0 MVP, since loop block types never take params); a
// block/if's label is its result.
func (f *ctrlFrame) labelTypes() []types.ValueType {
	if f.isLoop {
		return nil
	}
	return f.endTypes
}

// ctrlStack is the stack of open control frames for one function body.
type ctrlStack struct {
	frames []*ctrlFrame
}

func (c *ctrlStack) push(f *ctrlFrame) { c.frames = append(c.frames, f) }

func (c *ctrlStack) pop() *ctrlFrame {
	n := len(c.frames)
	f := c.frames[n-1]
	c.frames = c.frames[:n-1]
	return f
}

func (c *ctrlStack) top() *ctrlFrame { return c.frames[len(c.frames)-1] }

func (c *ctrlStack) depth() int { return len(c.frames) }

// at returns the frame `depth` levels below the top (0 = innermost).
func (c *ctrlStack) at(depth int) (*ctrlFrame, bool) {
	idx := len(c.frames) - 1 - depth
	if idx < 0 {
		return nil, false
	}
	return c.frames[idx], true
}

// emitter accumulates the re-emitted bytecode stream for one function body.
type emitter struct {
	buf []byte
}

func (e *emitter) pos() int { return len(e.buf) }

func (e *emitter) byte(b byte) { e.buf = append(e.buf, b) }

func (e *emitter) u32(v uint32) {
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (e *emitter) i32(v int32) { e.u32(uint32(v)) }

func (e *emitter) u64(v uint64) {
	e.buf = append(e.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

func (e *emitter) i64(v int64) { e.u64(uint64(v)) }

// u32placeholder reserves 4 bytes for a value patched in later (a forward
// branch target) and returns the offset to patch.
func (e *emitter) u32Placeholder() int {
	p := e.pos()
	e.u32(0)
	return p
}

func (e *emitter) patchU32(offset int, v uint32) {
	e.buf[offset] = byte(v)
	e.buf[offset+1] = byte(v >> 8)
	e.buf[offset+2] = byte(v >> 16)
	e.buf[offset+3] = byte(v >> 24)
}
