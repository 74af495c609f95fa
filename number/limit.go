package number

import "math"

// Min returns the bit pattern FloatTruncate reports for to when the source
// float undershoots to's representable range (spec.md §4.5's ConvertTrap
// carries this value alongside the trap so callers that inspect the
// returned word, rather than just the trap code, see the saturated bound).
func Min(t Type) uint64 {
	switch t {
	case I32:
		v := int32(math.MinInt32)
		return uint64(v)
	case I64:
		v := int64(math.MinInt64)
		return uint64(v)
	case U32, U64:
		return 0
	default:
		panic("Min: destination must be an integer kind")
	}
}

// Max is Min's positive-overflow counterpart: the bit pattern reported
// alongside ConvertTrap when the source float overshoots to's range.
func Max(t Type) uint64 {
	switch t {
	case I32:
		return uint64(math.MaxInt32)
	case I64:
		return uint64(math.MaxInt64)
	case U32:
		return uint64(math.MaxUint32)
	case U64:
		return math.MaxUint64
	default:
		panic("Max: destination must be an integer kind")
	}
}
