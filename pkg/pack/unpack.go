package pack

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
	"time"
	"unicode/utf8"
)

// Unpack decodes a stream produced by Pack. It fails without returning any
// values when the input is empty, truncated, or holds an unknown tag.
func Unpack(data []byte) ([]Value, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	d := decoder{data: data}

	count, err := d.uint64()
	if err != nil {
		return nil, err
	}

	// Every entry takes at least its tag byte.
	if count > uint64(d.remaining()) {
		return nil, fmt.Errorf("%w: %d entries declared, %d bytes left", ErrTruncated, count, d.remaining())
	}

	values := make([]Value, 0, count)

	for range count {
		v, err := d.value()
		if err != nil {
			return nil, err
		}

		values = append(values, v)
	}

	return values, nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) take(n uint64) ([]byte, error) {
	if n > uint64(d.remaining()) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, d.off, d.remaining())
	}

	b := d.data[d.off : d.off+int(n)]
	d.off += int(n)

	return b, nil
}

func (d *decoder) uint64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(b), nil
}

func (d *decoder) text() (string, error) {
	n, err := d.uint64()
	if err != nil {
		return "", err
	}

	b, err := d.take(n)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func (d *decoder) value() (Value, error) {
	at := d.off

	b, err := d.take(1)
	if err != nil {
		return nil, err
	}

	tag := Tag(b[0])

	switch tag {
	case TagUndefined:
		return Undefined{}, nil
	case TagNull:
		return Null{}, nil
	case TagNaN:
		return Float(math.NaN()), nil
	case TagTrue:
		return Bool(true), nil
	case TagFalse:
		return Bool(false), nil
	case TagPosInf:
		return Float(math.Inf(1)), nil
	case TagNegInf:
		return Float(math.Inf(-1)), nil
	case TagNegZero:
		return Float(math.Copysign(0, -1)), nil
	case TagUint8, TagUint16, TagUint32, TagUint64:
		v, err := d.fixed(1 << (tag - TagUint8))
		if err != nil {
			return nil, err
		}
		if v <= math.MaxInt64 {
			return Int(v), nil
		}
		return Uint(v), nil
	case TagInt8:
		v, err := d.fixed(1)
		return Int(int8(v)), err
	case TagInt16:
		v, err := d.fixed(2)
		return Int(int16(v)), err
	case TagInt32:
		v, err := d.fixed(4)
		return Int(int32(v)), err
	case TagInt64:
		v, err := d.fixed(8)
		return Int(int64(v)), err
	case TagUint8Array:
		return readArray(d, 1, func(p []byte) uint8 { return p[0] })
	case TagUint16Array:
		return readArray(d, 2, binary.BigEndian.Uint16)
	case TagUint32Array:
		return readArray(d, 4, binary.BigEndian.Uint32)
	case TagUint64Array:
		return readArray(d, 8, binary.BigEndian.Uint64)
	case TagInt8Array:
		return readArray(d, 1, func(p []byte) int8 { return int8(p[0]) })
	case TagInt16Array:
		return readArray(d, 2, func(p []byte) int16 { return int16(binary.BigEndian.Uint16(p)) })
	case TagInt32Array:
		return readArray(d, 4, func(p []byte) int32 { return int32(binary.BigEndian.Uint32(p)) })
	case TagInt64Array:
		return readArray(d, 8, func(p []byte) int64 { return int64(binary.BigEndian.Uint64(p)) })
	case TagFloat32Array:
		return readArray(d, 4, func(p []byte) float32 { return math.Float32frombits(binary.BigEndian.Uint32(p)) })
	case TagFloat64Array:
		return readArray(d, 8, func(p []byte) float64 { return math.Float64frombits(binary.BigEndian.Uint64(p)) })
	case TagFloat64:
		v, err := d.uint64()
		if err != nil {
			return nil, err
		}
		return Float(math.Float64frombits(v)), nil
	case TagBigIntPos, TagBigIntNeg:
		n, err := d.uint64()
		if err != nil {
			return nil, err
		}
		mag, err := d.take(n)
		if err != nil {
			return nil, err
		}
		v := new(big.Int).SetBytes(mag)
		if tag == TagBigIntNeg {
			v.Neg(v)
		}
		return BigInt{V: v}, nil
	case TagDate:
		s, err := d.text()
		if err != nil {
			return nil, err
		}
		return parseDate(s, at)
	case TagString:
		s, err := d.text()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case TagRegExp:
		n, err := d.uint64()
		if err != nil {
			return nil, err
		}
		flags, err := d.take(1)
		if err != nil {
			return nil, err
		}
		src, err := d.take(n)
		if err != nil {
			return nil, err
		}
		return RegExp{Source: string(src), Flags: RegExpFlag(flags[0])}, nil
	case TagJSON:
		s, err := d.text()
		if err != nil {
			return nil, err
		}
		return JSON(s), nil
	}

	return nil, &TagError{Tag: tag, Offset: at}
}

// fixed reads an unsigned big-endian integer of the given byte width.
func (d *decoder) fixed(width int) (uint64, error) {
	b, err := d.take(uint64(width))
	if err != nil {
		return 0, err
	}

	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}

	return v, nil
}

func readArray[T Number](d *decoder, width int, get func([]byte) T) (Value, error) {
	n, err := d.uint64()
	if err != nil {
		return nil, err
	}

	if n > uint64(d.remaining()/width) {
		return nil, fmt.Errorf("%w: array of %d elements at offset %d", ErrTruncated, n, d.off)
	}

	raw, err := d.take(n * uint64(width))
	if err != nil {
		return nil, err
	}

	a := make(Array[T], n)
	for i := range a {
		a[i] = get(raw[i*width:])
	}

	return a, nil
}

func parseDate(s string, at int) (Value, error) {
	if s == invalidDate {
		return Date{}, nil
	}

	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("pack: date at offset %d is not valid UTF-8", at)
	}

	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("pack: date at offset %d: %w", at, err)
	}

	return NewDate(t), nil
}
