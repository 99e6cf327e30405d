package pack

import (
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

// FromAny maps a native Go value onto the closed Value set. Values with no
// direct representation are marshaled to JSON, which fails for channels,
// functions and cyclic pointer graphs.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(x), nil
	case int8:
		return Int(x), nil
	case int16:
		return Int(x), nil
	case int32:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint:
		return Uint(x), nil
	case uint8:
		return Uint(x), nil
	case uint16:
		return Uint(x), nil
	case uint32:
		return Uint(x), nil
	case uint64:
		return Uint(x), nil
	case float32:
		return Float(x), nil
	case float64:
		return Float(x), nil
	case string:
		return String(x), nil
	case time.Time:
		return NewDate(x), nil
	case *big.Int:
		if x == nil {
			return Null{}, nil
		}
		return NewBigInt(x), nil
	case *regexp.Regexp:
		if x == nil {
			return Null{}, nil
		}
		return RegExp{Source: x.String()}, nil
	case json.RawMessage:
		return JSON(x), nil
	case []byte:
		return Array[uint8](x), nil
	case []uint16:
		return Array[uint16](x), nil
	case []uint32:
		return Array[uint32](x), nil
	case []uint64:
		return Array[uint64](x), nil
	case []int8:
		return Array[int8](x), nil
	case []int16:
		return Array[int16](x), nil
	case []int32:
		return Array[int32](x), nil
	case []int64:
		return Array[int64](x), nil
	case []float32:
		return Array[float32](x), nil
	case []float64:
		return Array[float64](x), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %T: %w", ErrUnsupportedValue, v, err)
	}

	return JSON(raw), nil
}
