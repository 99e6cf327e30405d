package pack

import "math"

// IntegerWidth picks the narrowest fixed-width integer able to hold the
// value with the given sign and magnitude. Non-negative values always use
// an unsigned width. ok is false when a negative magnitude exceeds the
// int64 range and the value needs a BigInt entry instead.
func IntegerWidth(negative bool, magnitude uint64) (bits int, signed bool, ok bool) {
	if !negative || magnitude == 0 {
		switch {
		case magnitude <= math.MaxUint8:
			return 8, false, true
		case magnitude <= math.MaxUint16:
			return 16, false, true
		case magnitude <= math.MaxUint32:
			return 32, false, true
		default:
			return 64, false, true
		}
	}

	switch {
	case magnitude <= -math.MinInt8:
		return 8, true, true
	case magnitude <= -math.MinInt16:
		return 16, true, true
	case magnitude <= -math.MinInt32:
		return 32, true, true
	case magnitude <= 1<<63:
		return 64, true, true
	default:
		return 0, false, false
	}
}

func widthOf(v int64) (bits int, signed bool) {
	if v < 0 {
		// -v overflows for MinInt64; uint64 negation covers it.
		bits, signed, _ = IntegerWidth(true, -uint64(v))
		return bits, signed
	}

	bits, signed, _ = IntegerWidth(false, uint64(v))

	return bits, signed
}
