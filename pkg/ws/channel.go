package ws

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	gws "github.com/gobwas/ws"

	"github.com/LLIEPJIOK/wsrt/pkg/pack"
)

const DefaultMaxSize = 16 << 20

type ChannelConfig struct {
	// MaxSize is both the outbound fragment size and the largest inbound
	// frame payload accepted. Zero selects DefaultMaxSize; negative values
	// clamp to 1.
	MaxSize int
	// Masked makes the channel mask outbound frames (client role).
	Masked bool
	Logger *slog.Logger
}

func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		MaxSize: DefaultMaxSize,
		Logger:  slog.Default(),
	}
}

// Channel turns a raw byte stream into message-oriented traffic for one
// socket. ReadBytes must be called from a single goroutine; all other
// methods are safe for concurrent use.
type Channel struct {
	id      uint64
	conn    io.WriteCloser
	maxSize int
	masked  bool
	logger  *slog.Logger
	subs    subscribers

	closed atomic.Bool
	done   chan struct{}

	// Owned by the goroutine calling ReadBytes.
	frameBuffer  []byte
	inputBuffer  []byte
	inputType    MessageType
	inputPending bool

	mu sync.Mutex
	// control frames are written before any queued data frame.
	control [][]byte
	queue   [][]byte
	pumping bool

	// writeMu keeps exactly one frame write in flight.
	writeMu sync.Mutex
}

func NewChannel(conn io.WriteCloser, cfg ChannelConfig) *Channel {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}

	return &Channel{
		conn:    conn,
		maxSize: clampSize(cfg.MaxSize),
		masked:  cfg.Masked,
		logger:  cfg.Logger,
		done:    make(chan struct{}),
	}
}

func (c *Channel) ID() uint64 {
	return c.id
}

func (c *Channel) MaxSize() int {
	return c.maxSize
}

func (c *Channel) RemoteAddr() net.Addr {
	if rc, ok := c.conn.(interface{ RemoteAddr() net.Addr }); ok {
		return rc.RemoteAddr()
	}

	return nil
}

func (c *Channel) Closed() bool {
	return c.closed.Load()
}

// Done is closed once the channel has been torn down.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Subscribe registers h for this channel's observations.
func (c *Channel) Subscribe(h Handlers) (unsubscribe func()) {
	return c.subs.add(h)
}

// ReadBytes feeds raw socket bytes into the channel. Complete frames are
// dispatched in arrival order; a partial frame is kept for the next call.
func (c *Channel) ReadBytes(data []byte) {
	if c.closed.Load() {
		return
	}

	c.frameBuffer = append(c.frameBuffer, data...)

	for !c.closed.Load() {
		f, rest, err := DecodeFrame(c.frameBuffer, int64(c.maxSize))
		if errors.Is(err, ErrNeedMore) {
			break
		}

		if err != nil {
			c.fail(err)
			return
		}

		c.frameBuffer = rest
		c.dispatch(f)
	}

	if len(c.frameBuffer) == 0 {
		c.frameBuffer = nil
	}
}

func (c *Channel) dispatch(f Frame) {
	switch f.OpCode {
	case gws.OpPing:
		c.subs.emitPing(c, f.Payload)

		if err := c.writeControl(EncodeFrame(gws.OpPong, true, f.Payload, c.masked)); err != nil {
			c.logger.Error("failed to write pong", "channel", c.id, "error", err)
		}

	case gws.OpPong:
		c.subs.emitPong(c, f.Payload)

	case gws.OpClose:
		c.handleClose(f.Payload)

	case gws.OpText, gws.OpBinary:
		if c.inputPending {
			c.subs.emitIncomplete(c, Message{Type: c.inputType, Data: c.inputBuffer})
		}

		c.inputBuffer = f.Payload
		c.inputType = messageType(f.OpCode)
		c.inputPending = true
		c.completeIf(f.Fin)

	case gws.OpContinuation:
		if !c.inputPending {
			c.logger.Warn("dropping unsolicited continuation frame", "channel", c.id)
			c.subs.emitError(c, ErrUnexpectedContinuation)
			return
		}

		c.inputBuffer = append(c.inputBuffer, f.Payload...)
		c.completeIf(f.Fin)
	}
}

func (c *Channel) completeIf(fin bool) {
	if !fin {
		return
	}

	msg := Message{Type: c.inputType, Data: c.inputBuffer}

	c.inputBuffer = nil
	c.inputPending = false

	c.subs.emitMessage(c, msg)
}

// handleClose answers a peer close frame with the same status code and
// tears the channel down.
func (c *Channel) handleClose(payload []byte) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	ev := closeEvent(payload)

	if err := c.writeFrame(EncodeFrame(gws.OpClose, true, closePayload(ev.Code, ""), c.masked)); err != nil {
		c.logger.Debug("failed to echo close frame", "channel", c.id, "error", err)
	}

	_ = c.teardown(ev)
}

// fail handles a frame-level protocol violation by closing this channel.
func (c *Channel) fail(err error) {
	c.logger.Warn("protocol violation", "channel", c.id, "error", err)
	c.subs.emitError(c, err)

	code := gws.StatusProtocolError
	if errors.Is(err, ErrFrameTooLarge) {
		code = gws.StatusMessageTooBig
	}

	_ = c.CloseWith(code, err.Error())
}

// Send fragments msg into frames of at most MaxSize payload bytes and
// queues them for writing.
func (c *Channel) Send(msg Message) error {
	return c.SendFrames(EncodeMessage(msg.Type.opCode(), msg.Data, c.maxSize, c.masked))
}

func (c *Channel) SendText(s string) error {
	return c.Send(Message{Type: TextMessage, Data: []byte(s)})
}

func (c *Channel) SendBinary(b []byte) error {
	return c.Send(Message{Type: BinaryMessage, Data: b})
}

// SendValues packs values and sends them as one binary message.
func (c *Channel) SendValues(values ...pack.Value) error {
	data, err := pack.Pack(values...)
	if err != nil {
		return err
	}

	return c.SendBinary(data)
}

// SendFrames queues already encoded frames as-is. The frames are shared,
// never modified, so one encoding can be fanned out to many channels.
func (c *Channel) SendFrames(frames [][]byte) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}

	c.mu.Lock()
	c.queue = append(c.queue, frames...)
	start := !c.pumping
	c.pumping = true
	c.mu.Unlock()

	if start {
		go c.pump()
	}

	return nil
}

// pump drains the queues one frame at a time and exits once both are empty.
func (c *Channel) pump() {
	for {
		c.mu.Lock()
		if (len(c.queue) == 0 && len(c.control) == 0) || c.closed.Load() {
			c.control = nil
			c.queue = nil
			c.pumping = false
			c.mu.Unlock()

			return
		}

		var frame []byte
		if len(c.control) > 0 {
			frame, c.control = c.control[0], c.control[1:]
		} else {
			frame = c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
		}
		c.mu.Unlock()

		if err := c.writeData(frame); err != nil {
			c.logger.Error("failed to write frame", "channel", c.id, "error", err)
			c.terminate()
		}
	}
}

// Ping sends an empty ping frame ahead of any queued data frames.
func (c *Channel) Ping() error {
	return c.writeControl(EncodeFrame(gws.OpPing, true, nil, c.masked))
}

func (c *Channel) Pong() error {
	return c.writeControl(EncodeFrame(gws.OpPong, true, nil, c.masked))
}

// writeControl writes frame right away when nothing is queued. While the
// pump is draining data it hands the frame over to go out next.
func (c *Channel) writeControl(frame []byte) error {
	if c.closed.Load() {
		return ErrChannelClosed
	}

	c.mu.Lock()
	if c.pumping {
		c.control = append(c.control, frame)
		c.mu.Unlock()

		return nil
	}
	c.mu.Unlock()

	return c.writeData(frame)
}

func (c *Channel) Close() error {
	return c.CloseWith(gws.StatusNormalClosure, "")
}

// CloseWith sends a close frame and terminates the socket. A zero code
// sends an empty close body. Calls after the first are no-ops.
func (c *Channel) CloseWith(code gws.StatusCode, reason string) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := c.writeFrame(EncodeFrame(gws.OpClose, true, closePayload(code, reason), c.masked))

	if cerr := c.teardown(CloseEvent{Code: code, Reason: reason, HasCode: code != 0}); err == nil {
		err = cerr
	}

	return err
}

// terminate ends the channel after a transport failure.
func (c *Channel) terminate() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	_ = c.teardown(CloseEvent{})
}

func (c *Channel) teardown(ev CloseEvent) error {
	c.mu.Lock()
	c.control = nil
	c.queue = nil
	c.mu.Unlock()

	c.subs.emitClose(c, ev)

	err := c.conn.Close()
	close(c.done)

	return err
}

func (c *Channel) writeData(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return nil
	}

	_, err := c.conn.Write(frame)

	return err
}

func (c *Channel) writeFrame(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_, err := c.conn.Write(frame)

	return err
}
