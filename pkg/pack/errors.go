package pack

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyInput       = errors.New("pack: empty input")
	ErrTruncated        = errors.New("pack: truncated input")
	ErrUnknownTag       = errors.New("pack: unknown type tag")
	ErrUnsupportedValue = errors.New("pack: unsupported value")
)

// TagError reports an unrecognized tag byte and where it was found.
type TagError struct {
	Tag    Tag
	Offset int
}

func (e *TagError) Error() string {
	return fmt.Sprintf("%v 0x%02X at offset %d", ErrUnknownTag, byte(e.Tag), e.Offset)
}

func (e *TagError) Unwrap() error {
	return ErrUnknownTag
}
