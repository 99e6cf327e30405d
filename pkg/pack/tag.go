package pack

import "fmt"

// Tag identifies the shape of one packed entry.
type Tag byte

const (
	TagUndefined Tag = 0x00
	TagNull      Tag = 0x01
	TagNaN       Tag = 0x02
	TagTrue      Tag = 0x03
	TagFalse     Tag = 0x04
	TagPosInf    Tag = 0x05
	TagNegInf    Tag = 0x06
	TagNegZero   Tag = 0x07

	TagUint8  Tag = 0x08
	TagUint16 Tag = 0x09
	TagUint32 Tag = 0x0A
	TagUint64 Tag = 0x0B
	TagInt8   Tag = 0x0C
	TagInt16  Tag = 0x0D
	TagInt32  Tag = 0x0E
	TagInt64  Tag = 0x0F

	TagUint8Array   Tag = 0x10
	TagUint16Array  Tag = 0x11
	TagUint32Array  Tag = 0x12
	TagUint64Array  Tag = 0x13
	TagInt8Array    Tag = 0x14
	TagInt16Array   Tag = 0x15
	TagInt32Array   Tag = 0x16
	TagInt64Array   Tag = 0x17
	TagFloat32Array Tag = 0x18
	TagFloat64Array Tag = 0x19

	TagFloat64   Tag = 0x1A
	TagBigIntPos Tag = 0x1B
	TagBigIntNeg Tag = 0x1C
	TagDate      Tag = 0x1D
	TagString    Tag = 0x1E
	TagRegExp    Tag = 0x1F
	TagJSON      Tag = 0x20
)

var tagNames = [...]string{
	"undefined", "null", "NaN", "true", "false", "+Inf", "-Inf", "-0",
	"uint8", "uint16", "uint32", "uint64", "int8", "int16", "int32", "int64",
	"uint8[]", "uint16[]", "uint32[]", "uint64[]", "int8[]", "int16[]", "int32[]", "int64[]",
	"float32[]", "float64[]",
	"float64", "bigint", "-bigint", "date", "string", "regexp", "json",
}

func (t Tag) Valid() bool {
	return int(t) < len(tagNames)
}

func (t Tag) String() string {
	if t.Valid() {
		return tagNames[t]
	}

	return fmt.Sprintf("Tag(0x%02X)", byte(t))
}

// intTag maps an integer width to its scalar tag.
func intTag(bits int, signed bool) Tag {
	var t Tag

	switch bits {
	case 8:
		t = TagUint8
	case 16:
		t = TagUint16
	case 32:
		t = TagUint32
	default:
		t = TagUint64
	}

	if signed {
		t += TagInt8 - TagUint8
	}

	return t
}
