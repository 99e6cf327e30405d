package ws

import (
	"unicode/utf8"

	gws "github.com/gobwas/ws"

	"github.com/LLIEPJIOK/wsrt/pkg/pack"
)

type MessageType int

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}

func (t MessageType) opCode() gws.OpCode {
	if t == TextMessage {
		return gws.OpText
	}

	return gws.OpBinary
}

func messageType(op gws.OpCode) MessageType {
	if op == gws.OpText {
		return TextMessage
	}

	return BinaryMessage
}

// Message is one reassembled data message.
type Message struct {
	Type MessageType
	Data []byte
}

func (m Message) Text() string {
	return string(m.Data)
}

// Values unpacks a binary message produced by pack.Pack.
func (m Message) Values() ([]pack.Value, error) {
	return pack.Unpack(m.Data)
}

// CloseEvent describes how a channel ended. HasCode is false when the peer
// sent an empty close frame or the socket dropped without one.
type CloseEvent struct {
	Code    gws.StatusCode
	Reason  string
	HasCode bool
}

func closeEvent(payload []byte) CloseEvent {
	if len(payload) < 2 {
		return CloseEvent{}
	}

	code, reason := gws.ParseCloseFrameData(payload)

	return CloseEvent{Code: code, Reason: reason, HasCode: true}
}

func closePayload(code gws.StatusCode, reason string) []byte {
	if code == 0 {
		return nil
	}

	// The reason must stay valid UTF-8, so the cut backs off to a rune start.
	if limit := gws.MaxControlFramePayloadSize - 2; len(reason) > limit {
		for limit > 0 && !utf8.RuneStart(reason[limit]) {
			limit--
		}

		reason = reason[:limit]
	}

	return gws.NewCloseFrameBody(code, reason)
}
