package ws

import (
	"bytes"
	"errors"
	"io"

	gws "github.com/gobwas/ws"
)

// Frame is a single decoded WebSocket frame with its payload unmasked.
type Frame struct {
	OpCode  gws.OpCode
	Fin     bool
	Payload []byte
}

// DecodeFrame decodes one frame from the front of data and returns it with
// the unconsumed trailer. It returns ErrNeedMore when data does not yet hold
// a complete frame, and ErrFrameTooLarge as soon as the header announces a
// payload above limit. Any other error means the stream is malformed.
func DecodeFrame(data []byte, limit int64) (Frame, []byte, error) {
	r := bytes.NewReader(data)

	h, err := gws.ReadHeader(r)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, data, ErrNeedMore
		}

		return Frame{}, data, err
	}

	if err := checkHeader(h); err != nil {
		return Frame{}, data, err
	}

	if h.Length > limit {
		return Frame{}, data, ErrFrameTooLarge
	}

	if int64(r.Len()) < h.Length {
		return Frame{}, data, ErrNeedMore
	}

	start := len(data) - r.Len()
	end := start + int(h.Length)

	payload := make([]byte, h.Length)
	copy(payload, data[start:end])

	if h.Masked {
		gws.Cipher(payload, h.Mask, 0)
	}

	return Frame{OpCode: h.OpCode, Fin: h.Fin, Payload: payload}, data[end:], nil
}

func checkHeader(h gws.Header) error {
	switch {
	case h.Rsv != 0:
		return gws.ErrProtocolNonZeroRsv
	case h.OpCode.IsReserved():
		return gws.ErrProtocolOpCodeReserved
	case h.OpCode.IsControl() && !h.Fin:
		return gws.ErrProtocolControlNotFinal
	case h.OpCode.IsControl() && h.Length > gws.MaxControlFramePayloadSize:
		return gws.ErrProtocolControlPayloadOverflow
	}

	return nil
}

// EncodeFrame serializes one frame. Masked frames get a fresh random key,
// as required for the client side of a connection.
func EncodeFrame(op gws.OpCode, fin bool, payload []byte, masked bool) []byte {
	h := gws.Header{
		Fin:    fin,
		OpCode: op,
		Length: int64(len(payload)),
	}

	if masked {
		h.Masked = true
		h.Mask = gws.NewMask()
	}

	buf := bytes.NewBuffer(make([]byte, 0, gws.HeaderSize(h)+len(payload)))

	// Writes to a bytes.Buffer cannot fail.
	_ = gws.WriteHeader(buf, h)

	at := buf.Len()
	buf.Write(payload)

	out := buf.Bytes()
	if masked {
		gws.Cipher(out[at:], h.Mask, 0)
	}

	return out
}

// EncodeMessage splits payload into frames of at most maxSize payload bytes.
// The first frame carries op, the rest are continuations, and only the last
// has the fin bit set. An empty payload yields a single empty frame.
func EncodeMessage(op gws.OpCode, payload []byte, maxSize int, masked bool) [][]byte {
	maxSize = clampSize(maxSize)

	if len(payload) <= maxSize {
		return [][]byte{EncodeFrame(op, true, payload, masked)}
	}

	frames := make([][]byte, 0, (len(payload)+maxSize-1)/maxSize)

	for pos := 0; pos < len(payload); pos += maxSize {
		end := min(pos+maxSize, len(payload))

		frameOp := op
		if pos > 0 {
			frameOp = gws.OpContinuation
		}

		frames = append(frames, EncodeFrame(frameOp, end == len(payload), payload[pos:end], masked))
	}

	return frames
}

func clampSize(n int) int {
	if n < 1 {
		return 1
	}

	return n
}
