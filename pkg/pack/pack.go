package pack

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"time"
)

const (
	countSize = 8

	invalidDate = "Invalid Date"
	// ISO-8601 with millisecond precision in UTC, e.g. 2024-05-01T12:00:00.000Z.
	dateLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Pack encodes values as a count-prefixed stream.
func Pack(values ...Value) ([]byte, error) {
	b := make([]byte, countSize, 64)
	binary.BigEndian.PutUint64(b, uint64(len(values)))

	for i, v := range values {
		var err error

		b, err = appendValue(b, v)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	return b, nil
}

// PackAny converts each argument with FromAny and packs the result.
func PackAny(args ...any) ([]byte, error) {
	values := make([]Value, len(args))

	for i, a := range args {
		v, err := FromAny(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}

		values[i] = v
	}

	return Pack(values...)
}

func appendValue(b []byte, v Value) ([]byte, error) {
	switch x := v.(type) {
	case nil, Null:
		return append(b, byte(TagNull)), nil
	case Undefined:
		return append(b, byte(TagUndefined)), nil
	case Bool:
		if x {
			return append(b, byte(TagTrue)), nil
		}
		return append(b, byte(TagFalse)), nil
	case Int:
		return appendInt(b, int64(x)), nil
	case Uint:
		return appendUint(b, uint64(x)), nil
	case Float:
		return appendFloat(b, float64(x)), nil
	case BigInt:
		return appendBigInt(b, x.V), nil
	case String:
		return appendText(append(b, byte(TagString)), string(x)), nil
	case Date:
		text := invalidDate
		if x.Valid {
			if y := x.Time.UTC().Year(); y < 0 || y > 9999 {
				return nil, fmt.Errorf("%w: date year %d out of range", ErrUnsupportedValue, y)
			}

			text = formatDate(x.Time)
		}
		return appendText(append(b, byte(TagDate)), text), nil
	case RegExp:
		b = append(b, byte(TagRegExp))
		b = binary.BigEndian.AppendUint64(b, uint64(len(x.Source)))
		b = append(b, byte(x.Flags))
		return append(b, x.Source...), nil
	case JSON:
		return appendText(append(b, byte(TagJSON)), string(x)), nil
	case Array[uint8]:
		return appendArray(b, TagUint8Array, x, func(b []byte, e uint8) []byte {
			return append(b, e)
		}), nil
	case Array[uint16]:
		return appendArray(b, TagUint16Array, x, binary.BigEndian.AppendUint16), nil
	case Array[uint32]:
		return appendArray(b, TagUint32Array, x, binary.BigEndian.AppendUint32), nil
	case Array[uint64]:
		return appendArray(b, TagUint64Array, x, binary.BigEndian.AppendUint64), nil
	case Array[int8]:
		return appendArray(b, TagInt8Array, x, func(b []byte, e int8) []byte {
			return append(b, byte(e))
		}), nil
	case Array[int16]:
		return appendArray(b, TagInt16Array, x, func(b []byte, e int16) []byte {
			return binary.BigEndian.AppendUint16(b, uint16(e))
		}), nil
	case Array[int32]:
		return appendArray(b, TagInt32Array, x, func(b []byte, e int32) []byte {
			return binary.BigEndian.AppendUint32(b, uint32(e))
		}), nil
	case Array[int64]:
		return appendArray(b, TagInt64Array, x, func(b []byte, e int64) []byte {
			return binary.BigEndian.AppendUint64(b, uint64(e))
		}), nil
	case Array[float32]:
		return appendArray(b, TagFloat32Array, x, func(b []byte, e float32) []byte {
			return binary.BigEndian.AppendUint32(b, math.Float32bits(e))
		}), nil
	case Array[float64]:
		return appendArray(b, TagFloat64Array, x, func(b []byte, e float64) []byte {
			return binary.BigEndian.AppendUint64(b, math.Float64bits(e))
		}), nil
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

func appendInt(b []byte, v int64) []byte {
	bits, signed := widthOf(v)
	b = append(b, byte(intTag(bits, signed)))

	return appendFixed(b, uint64(v), bits)
}

func appendUint(b []byte, v uint64) []byte {
	bits, _, _ := IntegerWidth(false, v)
	b = append(b, byte(intTag(bits, false)))

	return appendFixed(b, v, bits)
}

// appendFixed writes the low bits of v; two's complement truncation keeps
// negative values intact at any width that holds them.
func appendFixed(b []byte, v uint64, bits int) []byte {
	switch bits {
	case 8:
		return append(b, byte(v))
	case 16:
		return binary.BigEndian.AppendUint16(b, uint16(v))
	case 32:
		return binary.BigEndian.AppendUint32(b, uint32(v))
	default:
		return binary.BigEndian.AppendUint64(b, v)
	}
}

func appendFloat(b []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(b, byte(TagNaN))
	case math.IsInf(f, 1):
		return append(b, byte(TagPosInf))
	case math.IsInf(f, -1):
		return append(b, byte(TagNegInf))
	case f == 0 && math.Signbit(f):
		return append(b, byte(TagNegZero))
	}

	b = append(b, byte(TagFloat64))

	return binary.BigEndian.AppendUint64(b, math.Float64bits(f))
}

func appendBigInt(b []byte, v *big.Int) []byte {
	tag := TagBigIntPos

	var mag []byte
	if v != nil {
		if v.Sign() < 0 {
			tag = TagBigIntNeg
		}
		mag = v.Bytes()
	}

	if len(mag) == 0 {
		mag = []byte{0}
	}

	b = append(b, byte(tag))
	b = binary.BigEndian.AppendUint64(b, uint64(len(mag)))

	return append(b, mag...)
}

func appendText(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint64(b, uint64(len(s)))
	return append(b, s...)
}

func appendArray[T Number](b []byte, tag Tag, a Array[T], put func([]byte, T) []byte) []byte {
	b = append(b, byte(tag))
	b = binary.BigEndian.AppendUint64(b, uint64(len(a)))

	for _, e := range a {
		b = put(b, e)
	}

	return b
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}
