package ws

import "errors"

var (
	ErrChannelClosed          = errors.New("channel closed")
	ErrNeedMore               = errors.New("incomplete frame")
	ErrFrameTooLarge          = errors.New("frame too large")
	ErrUnexpectedContinuation = errors.New("continuation frame without a message in progress")
	ErrBadHandshake           = errors.New("bad websocket handshake")
	ErrServerClosed           = errors.New("server closed")
	ErrNotConnected           = errors.New("client not connected")
)
