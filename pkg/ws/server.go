package ws

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	gws "github.com/gobwas/ws"

	"github.com/LLIEPJIOK/wsrt/pkg/pack"
)

type ServerConfig struct {
	MaxSize        int
	ReadBufferSize int
	Logger         *slog.Logger
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		MaxSize:        DefaultMaxSize,
		ReadBufferSize: 4096,
		Logger:         slog.Default(),
	}
}

// Server upgrades HTTP requests to WebSocket channels, tracks the live
// ones by remote address and re-emits their observations.
type Server struct {
	maxSize        int
	readBufferSize int
	logger         *slog.Logger
	subs           subscribers

	mu       sync.Mutex
	channels map[string]*Channel

	httpMu     sync.Mutex
	httpServer *http.Server
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.MaxSize == 0 {
		cfg.MaxSize = DefaultMaxSize
	}

	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = 4096
	}

	return &Server{
		maxSize:        clampSize(cfg.MaxSize),
		readBufferSize: cfg.ReadBufferSize,
		logger:         cfg.Logger,
		channels:       make(map[string]*Channel),
	}
}

// Subscribe registers h for observations of every channel, tagged with the
// originating Channel, plus Open for each new one.
func (s *Server) Subscribe(h Handlers) (unsubscribe func()) {
	return s.subs.add(h)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := checkUpgradeRequest(r); err != nil {
		s.logger.Warn("rejecting upgrade", "remote_addr", r.RemoteAddr, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	// A socket that already has a channel gets no response at all.
	if s.IsConnected(r.RemoteAddr) {
		s.logger.Debug("dropping upgrade from connected socket", "remote_addr", r.RemoteAddr)

		if conn, _, err := http.NewResponseController(w).Hijack(); err == nil {
			_ = conn.Close()
		}

		return
	}

	conn, brw, err := http.NewResponseController(w).Hijack()
	if err != nil {
		s.logger.Error("failed to hijack connection", "error", err)
		http.Error(w, "upgrade not supported", http.StatusInternalServerError)

		return
	}

	_ = conn.SetDeadline(time.Time{})

	var buffered []byte
	if n := brw.Reader.Buffered(); n > 0 {
		buffered = make([]byte, n)
		_, _ = io.ReadFull(brw.Reader, buffered)
	}

	c := s.register(r.RemoteAddr, conn)

	if _, err := conn.Write(upgradeResponse(AcceptKey(r.Header.Get("Sec-WebSocket-Key")))); err != nil {
		s.logger.Error("failed to write upgrade response", "remote_addr", r.RemoteAddr, "error", err)
		c.terminate()

		return
	}

	s.logger.Info("client connected", "remote_addr", r.RemoteAddr, "channel", c.ID())
	s.subs.emitOpen(c)

	s.serve(c, conn, buffered)
}

// register creates the channel for conn, subscribes the server to it and
// adds it to the table. The channel id is the table size after insertion.
func (s *Server) register(key string, conn net.Conn) *Channel {
	c := NewChannel(conn, ChannelConfig{MaxSize: s.maxSize, Logger: s.logger})

	var unsubscribe func()

	unsubscribe = c.Subscribe(Handlers{
		Message:           s.subs.emitMessage,
		IncompleteMessage: s.subs.emitIncomplete,
		Ping:              s.subs.emitPing,
		Pong:              s.subs.emitPong,
		Error:             s.subs.emitError,
		Close: func(c *Channel, ev CloseEvent) {
			s.mu.Lock()
			if s.channels[key] == c {
				delete(s.channels, key)
			}
			s.mu.Unlock()

			s.logger.Info("client disconnected", "remote_addr", key, "channel", c.ID(), "code", int(ev.Code))
			s.subs.emitClose(c, ev)
			unsubscribe()
		},
	})

	s.mu.Lock()
	s.channels[key] = c
	c.id = uint64(len(s.channels))
	s.mu.Unlock()

	return c
}

// serve is the channel's read loop. It returns once the socket fails or
// the channel is torn down.
func (s *Server) serve(c *Channel, conn net.Conn, buffered []byte) {
	defer c.terminate()

	if len(buffered) > 0 {
		c.ReadBytes(buffered)
	}

	buf := make([]byte, s.readBufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			c.ReadBytes(buf[:n])
		}

		if err != nil {
			if !c.Closed() && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("read error", "channel", c.ID(), "error", err)
			}

			return
		}
	}
}

// IsConnected reports whether the socket with the given remote address
// already has a channel.
func (s *Server) IsConnected(remoteAddr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.channels[remoteAddr]

	return ok
}

func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.channels)
}

// Channels returns the live channels ordered by id.
func (s *Server) Channels() []*Channel {
	s.mu.Lock()
	out := make([]*Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b *Channel) int {
		return cmp.Compare(a.ID(), b.ID())
	})

	return out
}

// Send broadcasts msg. The message is fragmented once and the same frames
// are queued on every live channel.
func (s *Server) Send(msg Message) {
	frames := EncodeMessage(msg.Type.opCode(), msg.Data, s.maxSize, false)

	for _, c := range s.Channels() {
		if err := c.SendFrames(frames); err != nil && !errors.Is(err, ErrChannelClosed) {
			s.logger.Error("broadcast failed", "channel", c.ID(), "error", err)
		}
	}
}

func (s *Server) SendText(text string) {
	s.Send(Message{Type: TextMessage, Data: []byte(text)})
}

func (s *Server) SendBinary(data []byte) {
	s.Send(Message{Type: BinaryMessage, Data: data})
}

func (s *Server) SendValues(values ...pack.Value) error {
	data, err := pack.Pack(values...)
	if err != nil {
		return fmt.Errorf("failed to pack broadcast: %w", err)
	}

	s.SendBinary(data)

	return nil
}

// Close closes every channel with 1001 (going away) and stops the listener.
func (s *Server) Close(ctx context.Context) error {
	return s.CloseWith(ctx, gws.StatusGoingAway, "")
}

// CloseWith closes the live channels one after another, then shuts down
// the listener started by Serve, if any.
func (s *Server) CloseWith(ctx context.Context, code gws.StatusCode, reason string) error {
	for _, c := range s.Channels() {
		if err := c.CloseWith(code, reason); err != nil {
			s.logger.Debug("channel close failed", "channel", c.ID(), "error", err)
		}
	}

	s.httpMu.Lock()
	srv := s.httpServer
	s.httpMu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}

// Serve accepts connections on ln. After Close it returns ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.httpMu.Lock()
	if s.httpServer != nil {
		s.httpMu.Unlock()
		return errors.New("server is already serving")
	}
	s.httpServer = srv
	s.httpMu.Unlock()

	s.logger.Info("listening", "addr", ln.Addr().String())

	err := srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return ErrServerClosed
	}

	return err
}

func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.Serve(ln)
}
