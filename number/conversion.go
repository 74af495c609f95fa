package number

import (
	"math"
)

// CanTruncate reports whether value, a float of kind from, sits inside the
// representable range of the destination integer kind to. It is the
// range check spec.md's *.trunc_f* opcodes run before committing to a
// truncation; a false result means the caller must trap instead.
func CanTruncate(from Type, to Type, value interface{}) bool {
	switch {
	case from == F32 && to == I32:
		v, ok := value.(float32)
		if !ok {
			panic("CanTruncate: f32 source expected")
		}
		return math.MinInt32 <= v && v < math.MaxInt32+1
	case from == F64 && to == I32:
		v, ok := value.(float64)
		if !ok {
			panic("CanTruncate: f64 source expected")
		}
		return math.MinInt32-1 < v && v < math.MaxInt32+1
	case from == F32 && to == U32:
		v, ok := value.(float32)
		if !ok {
			panic("CanTruncate: f32 source expected")
		}
		return -1 < v && v < math.MaxUint32+1
	case from == F64 && to == U32:
		v, ok := value.(float64)
		if !ok {
			panic("CanTruncate: f64 source expected")
		}
		return -1 < v && v < math.MaxUint32+1
	case from == F32 && to == I64:
		v, ok := value.(float32)
		if !ok {
			panic("CanTruncate: f32 source expected")
		}
		return math.MinInt64 <= v && v < math.MaxInt64+1
	case from == F64 && to == I64:
		v, ok := value.(float64)
		if !ok {
			panic("CanTruncate: f64 source expected")
		}
		return math.MinInt64 <= v && v < math.MaxInt64+1
	case from == F32 && to == U64:
		v, ok := value.(float32)
		if !ok {
			panic("CanTruncate: f32 source expected")
		}
		return -1 < v && v < math.MaxUint64+1
	case from == F64 && to == U64:
		v, ok := value.(float64)
		if !ok {
			panic("CanTruncate: f64 source expected")
		}
		return -1 < v && v < math.MaxUint64+1
	default:
		panic("CanTruncate: unsupported float-to-int conversion pair")
	}
}

// truncInt converts an in-range float f to the bit pattern of destination
// kind to. Callers must have already confirmed CanTruncate(f) for the same
// pair; this function assumes the value fits.
func truncInt(f float64, to Type) uint64 {
	switch to {
	case I32:
		return uint64(int32(f))
	case I64:
		return uint64(int64(f))
	case U32:
		return uint64(uint32(f))
	case U64:
		return uint64(f)
	default:
		panic("truncInt: destination must be an integer kind")
	}
}

// FloatTruncate implements the i32/i64.trunc_f32/f64(_s|_u) family: it
// truncates the float held in floatBits (toward zero) to the destination
// integer kind to, returning NanTrap on a NaN source and ConvertTrap with
// the destination's saturated min/max on an out-of-range source, matching
// spec.md §4.5's trap-on-invalid-conversion rule rather than wrapping or
// saturating silently.
func FloatTruncate(from Type, to Type, floatBits uint64) (uint64, TrapCode) {
	switch from {
	case F32:
		f := math.Float32frombits(uint32(floatBits))
		if math.IsNaN(float64(f)) {
			return 0, NanTrap
		}
		if !CanTruncate(from, to, f) {
			if math.Signbit(float64(f)) {
				return Min(to), ConvertTrap
			}
			return Max(to), ConvertTrap
		}
		return truncInt(float64(f), to), NoTrap
	case F64:
		f := math.Float64frombits(floatBits)
		if math.IsNaN(f) {
			return 0, NanTrap
		}
		if !CanTruncate(from, to, f) {
			if math.Signbit(f) {
				return Min(to), ConvertTrap
			}
			return Max(to), ConvertTrap
		}
		return truncInt(f, to), NoTrap
	default:
		panic("FloatTruncate: source must be a float kind")
	}
}
