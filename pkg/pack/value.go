// Package pack implements a compact, self-describing binary format for
// exchanging native values between peers.
//
// A stream starts with an 8-byte big-endian count of top-level entries.
// Every entry is a one-byte Tag followed by tag-specific fields. All
// multi-byte fields are big-endian.
package pack

import (
	"encoding/json"
	"math"
	"math/big"
	"time"
)

// Value is the closed set of shapes the format can carry.
type Value interface {
	isValue()
}

type (
	Undefined struct{}
	Null      struct{}
	Bool      bool
	Int       int64
	Uint      uint64
	Float     float64
	String    string
	JSON      json.RawMessage
)

// BigInt holds an arbitrary-precision integer. A nil V packs as zero.
type BigInt struct {
	V *big.Int
}

// Date is a point in time. Valid is false for the "Invalid Date" literal.
type Date struct {
	Time  time.Time
	Valid bool
}

// Number lists element types allowed in homogeneous arrays.
type Number interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~float32 | ~float64
}

// Array is a homogeneous numeric array. Array[uint8] doubles as raw bytes.
type Array[T Number] []T

func (Undefined) isValue() {}
func (Null) isValue()      {}
func (Bool) isValue()      {}
func (Int) isValue()       {}
func (Uint) isValue()      {}
func (Float) isValue()     {}
func (String) isValue()    {}
func (JSON) isValue()      {}
func (BigInt) isValue()    {}
func (Date) isValue()      {}
func (RegExp) isValue()    {}
func (Array[T]) isValue()  {}

func NewDate(t time.Time) Date {
	return Date{Time: t, Valid: true}
}

func NewBigInt(v *big.Int) BigInt {
	return BigInt{V: new(big.Int).Set(v)}
}

// Decode unmarshals the JSON text into v.
func (j JSON) Decode(v any) error {
	return json.Unmarshal(j, v)
}

// Equal reports whether a and b carry the same value. Integers compare
// numerically across Int, Uint and BigInt, NaN equals NaN, and -0 is
// distinct from +0.
func Equal(a, b Value) bool {
	if ai, ok := integer(a); ok {
		bi, ok := integer(b)
		return ok && ai.Cmp(bi) == 0
	}

	switch x := a.(type) {
	case Undefined, Null:
		return a == b
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && sameFloat(float64(x), float64(y))
	case String:
		y, ok := b.(String)
		return ok && x == y
	case JSON:
		y, ok := b.(JSON)
		return ok && string(x) == string(y)
	case Date:
		y, ok := b.(Date)
		if !ok || x.Valid != y.Valid {
			return false
		}
		return !x.Valid || x.Time.Equal(y.Time)
	case RegExp:
		y, ok := b.(RegExp)
		return ok && x == y
	case Array[uint8]:
		return equalArray(x, b)
	case Array[uint16]:
		return equalArray(x, b)
	case Array[uint32]:
		return equalArray(x, b)
	case Array[uint64]:
		return equalArray(x, b)
	case Array[int8]:
		return equalArray(x, b)
	case Array[int16]:
		return equalArray(x, b)
	case Array[int32]:
		return equalArray(x, b)
	case Array[int64]:
		return equalArray(x, b)
	case Array[float32]:
		return equalArray(x, b)
	case Array[float64]:
		return equalArray(x, b)
	}

	return false
}

func integer(v Value) (*big.Int, bool) {
	switch x := v.(type) {
	case Int:
		return big.NewInt(int64(x)), true
	case Uint:
		return new(big.Int).SetUint64(uint64(x)), true
	case BigInt:
		if x.V == nil {
			return new(big.Int), true
		}
		return x.V, true
	}

	return nil, false
}

func sameFloat(x, y float64) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.IsNaN(x) && math.IsNaN(y)
	}

	return x == y && math.Signbit(x) == math.Signbit(y)
}

func equalArray[T Number](x Array[T], other Value) bool {
	y, ok := other.(Array[T])
	if !ok || len(x) != len(y) {
		return false
	}

	for i := range x {
		// x != x only holds for NaN elements.
		if x[i] != y[i] && (x[i] == x[i] || y[i] == y[i]) {
			return false
		}
	}

	return true
}
