package number

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func f32bits(v float32) uint64 { return uint64(math.Float32bits(v)) }
func f64bits(v float64) uint64 { return math.Float64bits(v) }

func TestFloatTruncateI32(t *testing.T) {
	r, trap := FloatTruncate(F64, I32, f64bits(42.9))
	assert.Equal(t, NoTrap, trap)
	assert.Equal(t, uint64(uint32(int32(42))), r)
}

func TestFloatTruncateNegative(t *testing.T) {
	r, trap := FloatTruncate(F64, I32, f64bits(-1.9))
	assert.Equal(t, NoTrap, trap)
	assert.Equal(t, int32(-1), int32(uint32(r)))
}

func TestFloatTruncateNaNTraps(t *testing.T) {
	_, trap := FloatTruncate(F64, I32, f64bits(math.NaN()))
	assert.Equal(t, NanTrap, trap)
}

func TestFloatTruncateOutOfRangeTraps(t *testing.T) {
	_, trap := FloatTruncate(F64, I32, f64bits(1e20))
	assert.Equal(t, ConvertTrap, trap)

	_, trap = FloatTruncate(F64, I32, f64bits(-1e20))
	assert.Equal(t, ConvertTrap, trap)
}

func TestFloatTruncateU32RejectsNegative(t *testing.T) {
	_, trap := FloatTruncate(F64, U32, f64bits(-0.5))
	assert.Equal(t, NoTrap, trap, "-0.5 truncates to 0, still in u32 range")

	_, trap = FloatTruncate(F64, U32, f64bits(-1.5))
	assert.Equal(t, ConvertTrap, trap)
}

func TestFloatTruncateF32Source(t *testing.T) {
	r, trap := FloatTruncate(F32, I64, f32bits(123.5))
	assert.Equal(t, NoTrap, trap)
	assert.Equal(t, uint64(123), r)
}

func TestCanTruncateBoundaries(t *testing.T) {
	assert.True(t, CanTruncate(F64, I32, float64(math.MinInt32)))
	assert.False(t, CanTruncate(F64, I32, float64(math.MaxInt32)+2))
}
