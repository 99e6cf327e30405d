package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LLIEPJIOK/wsrt/pkg/pack"
)

type ClientConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	Logger           *slog.Logger
	// OnPong is called from the reading goroutine for each pong received.
	OnPong func(payload []byte)
}

func DefaultClientConfig(wsURL string) ClientConfig {
	return ClientConfig{
		URL:              wsURL,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		Logger:           slog.Default(),
	}
}

// Client is a peer that talks to a Server over a single connection.
// Reads must come from one goroutine; writes may be concurrent.
type Client struct {
	cfg     ClientConfig
	conn    *websocket.Conn
	connMu  sync.RWMutex
	writeMu sync.Mutex
	logger  *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	if c.cfg.OnPong != nil {
		onPong := c.cfg.OnPong
		conn.SetPongHandler(func(appData string) error {
			onPong([]byte(appData))
			return nil
		})
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	c.logger.Info("connected to server", "url", u.String(), "local_addr", conn.LocalAddr().String())

	return nil
}

func (c *Client) getConn() (*websocket.Conn, error) {
	c.connMu.RLock()
	defer c.connMu.RUnlock()

	if c.conn == nil {
		return nil, ErrNotConnected
	}

	return c.conn, nil
}

// LocalAddr is the client side address, which the server sees as the
// remote address of the connection.
func (c *Client) LocalAddr() string {
	conn, err := c.getConn()
	if err != nil {
		return ""
	}

	return conn.LocalAddr().String()
}

func (c *Client) write(messageType int, data []byte) error {
	conn, err := c.getConn()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(c.deadline())

	return conn.WriteMessage(messageType, data)
}

func (c *Client) WriteText(text string) error {
	return c.write(websocket.TextMessage, []byte(text))
}

func (c *Client) WriteBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

// WriteValues packs values and sends them as one binary message.
func (c *Client) WriteValues(values ...pack.Value) error {
	data, err := pack.Pack(values...)
	if err != nil {
		return fmt.Errorf("failed to pack values: %w", err)
	}

	return c.WriteBinary(data)
}

// Ping sends a ping control frame with an optional payload.
func (c *Client) Ping(payload []byte) error {
	conn, err := c.getConn()
	if err != nil {
		return err
	}

	return conn.WriteControl(websocket.PingMessage, payload, c.deadline())
}

func (c *Client) deadline() time.Time {
	if c.cfg.WriteTimeout > 0 {
		return time.Now().Add(c.cfg.WriteTimeout)
	}

	return time.Now().Add(time.Second)
}

// ReadMessage blocks until the next data message arrives. A close frame
// from the server is reported as a *websocket.CloseError.
func (c *Client) ReadMessage() (Message, error) {
	conn, err := c.getConn()
	if err != nil {
		return Message{}, err
	}

	mt, data, err := conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}

	if mt == websocket.TextMessage {
		return Message{Type: TextMessage, Data: data}, nil
	}

	return Message{Type: BinaryMessage, Data: data}, nil
}

// ReadValues reads the next message and unpacks it.
func (c *Client) ReadValues() ([]pack.Value, error) {
	msg, err := c.ReadMessage()
	if err != nil {
		return nil, err
	}

	if msg.Type != BinaryMessage {
		return nil, fmt.Errorf("expected binary message, got %s", msg.Type)
	}

	return msg.Values()
}

// Close sends a normal closure and closes the connection.
func (c *Client) Close() error {
	return c.CloseWith(websocket.CloseNormalClosure, "client closing")
}

func (c *Client) CloseWith(code int, reason string) error {
	c.connMu.Lock()
	conn := c.conn
	c.conn = nil
	c.connMu.Unlock()

	if conn == nil {
		return nil
	}

	closeMsg := websocket.FormatCloseMessage(code, reason)

	err := conn.WriteControl(websocket.CloseMessage, closeMsg, c.deadline())
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("failed to send close frame", "error", err)
	}

	return conn.Close()
}
