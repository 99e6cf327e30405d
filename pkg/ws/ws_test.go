package ws_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gobwas/ws"
	"github.com/gorilla/websocket"

	"github.com/LLIEPJIOK/wsrt/pkg/pack"
	"github.com/LLIEPJIOK/wsrt/pkg/ws"
)

func setupTestServer(t *testing.T, cfg ws.ServerConfig) (*ws.Server, *httptest.Server) {
	t.Helper()

	server := ws.NewServer(cfg)

	server.Subscribe(ws.Handlers{
		Message: func(c *ws.Channel, msg ws.Message) {
			if err := c.Send(msg); err != nil {
				t.Errorf("echo failed: %v", err)
			}
		},
	})

	ts := httptest.NewServer(server)

	t.Cleanup(func() {
		_ = server.Close(context.Background())
		ts.Close()
	})

	return server, ts
}

func connect(t *testing.T, ts *httptest.Server) *ws.Client {
	t.Helper()

	// Преобразуем HTTP URL в WebSocket URL
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	client := ws.NewClient(ws.DefaultClientConfig(wsURL))
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })

	return client
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}

		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientServer_TextEcho(t *testing.T) {
	_, ts := setupTestServer(t, ws.DefaultServerConfig())
	client := connect(t, ts)

	if err := client.WriteText("hello"); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if msg.Type != ws.TextMessage || msg.Text() != "hello" {
		t.Errorf("got %s %q, want text %q", msg.Type, msg.Data, "hello")
	}
}

func TestClientServer_ValuesEcho(t *testing.T) {
	_, ts := setupTestServer(t, ws.DefaultServerConfig())
	client := connect(t, ts)

	sent := []pack.Value{
		pack.String("hello"),
		pack.Int(-1),
		pack.Uint(1 << 40),
		pack.Float(1.5),
		pack.Bool(true),
		pack.Null{},
		pack.Array[int16]{-1, 2, 3},
		pack.RegExp{Source: "a+b", Flags: pack.FlagGlobal | pack.FlagIgnoreCase},
	}

	if err := client.WriteValues(sent...); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got, err := client.ReadValues()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if len(got) != len(sent) {
		t.Fatalf("got %d values, want %d", len(got), len(sent))
	}

	for i := range sent {
		if !pack.Equal(got[i], sent[i]) {
			t.Errorf("value %d = %#v, want %#v", i, got[i], sent[i])
		}
	}
}

func TestServer_Broadcast(t *testing.T) {
	server, ts := setupTestServer(t, ws.DefaultServerConfig())

	clients := []*ws.Client{connect(t, ts), connect(t, ts), connect(t, ts)}

	waitFor(t, "three channels", func() bool { return server.Len() == 3 })

	server.SendText("news")

	for i, client := range clients {
		msg, err := client.ReadMessage()
		if err != nil {
			t.Fatalf("client %d: read failed: %v", i, err)
		}

		if msg.Text() != "news" {
			t.Errorf("client %d got %q", i, msg.Data)
		}
	}

	channels := server.Channels()
	for i := 1; i < len(channels); i++ {
		if channels[i-1].ID() >= channels[i].ID() {
			t.Errorf("channels not ordered by id: %d before %d", channels[i-1].ID(), channels[i].ID())
		}
	}
}

func TestServer_BroadcastFragments(t *testing.T) {
	cfg := ws.DefaultServerConfig()
	cfg.MaxSize = 16

	server, ts := setupTestServer(t, cfg)
	client := connect(t, ts)

	waitFor(t, "one channel", func() bool { return server.Len() == 1 })

	payload := strings.Repeat("0123456789", 10)
	server.SendText(payload)

	// gorilla reassembles the continuation frames.
	msg, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	if msg.Text() != payload {
		t.Errorf("got %d bytes, want %d", len(msg.Data), len(payload))
	}
}

func TestServer_RejectsOversizedFrame(t *testing.T) {
	cfg := ws.DefaultServerConfig()
	cfg.MaxSize = 16

	_, ts := setupTestServer(t, cfg)
	client := connect(t, ts)

	if err := client.WriteText(strings.Repeat("x", 100)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_, err := client.ReadMessage()

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}

	if closeErr.Code != websocket.CloseMessageTooBig {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseMessageTooBig)
	}
}

func TestServer_IsConnected(t *testing.T) {
	server, ts := setupTestServer(t, ws.DefaultServerConfig())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	client := ws.NewClient(ws.DefaultClientConfig(wsURL))
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	addr := client.LocalAddr()

	// The channel is registered before the 101 goes out.
	if !server.IsConnected(addr) {
		t.Fatalf("server does not know %s", addr)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	waitFor(t, "channel removal", func() bool { return !server.IsConnected(addr) })

	if server.Len() != 0 {
		t.Errorf("server still tracks %d channels", server.Len())
	}
}

func TestServer_IgnoresSecondUpgrade(t *testing.T) {
	server, ts := setupTestServer(t, ws.DefaultServerConfig())
	client := connect(t, ts)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = client.LocalAddr()
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")
	req.Header.Set("Sec-WebSocket-Version", "13")

	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Body.Len() != 0 {
		t.Errorf("second upgrade got a response: %d %q", rr.Code, rr.Body.String())
	}

	if server.Len() != 1 {
		t.Errorf("server tracks %d channels, want 1", server.Len())
	}
}

// hijackWriter is a ResponseWriter whose connection can be taken over.
type hijackWriter struct {
	header  http.Header
	conn    net.Conn
	written bool
}

func (w *hijackWriter) Header() http.Header {
	if w.header == nil {
		w.header = make(http.Header)
	}

	return w.header
}

func (w *hijackWriter) Write(p []byte) (int, error) {
	w.written = true
	return len(p), nil
}

func (w *hijackWriter) WriteHeader(int) {
	w.written = true
}

func (w *hijackWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return w.conn, bufio.NewReadWriter(bufio.NewReader(w.conn), bufio.NewWriter(w.conn)), nil
}

func TestServer_DropsSecondUpgradeConnection(t *testing.T) {
	server, ts := setupTestServer(t, ws.DefaultServerConfig())
	client := connect(t, ts)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = client.LocalAddr()
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	serverSide, peer := net.Pipe()
	defer peer.Close()

	w := &hijackWriter{conn: serverSide}
	server.ServeHTTP(w, req)

	if w.written {
		t.Error("second upgrade got an HTTP response")
	}

	_ = peer.SetReadDeadline(time.Now().Add(time.Second))

	n, err := peer.Read(make([]byte, 64))
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("read from dropped socket = %d, %v; want 0, EOF", n, err)
	}

	if server.Len() != 1 {
		t.Errorf("server tracks %d channels, want 1", server.Len())
	}
}

func TestServer_RejectsPlainRequest(t *testing.T) {
	_, ts := setupTestServer(t, ws.DefaultServerConfig())

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestServer_Observations(t *testing.T) {
	server, ts := setupTestServer(t, ws.DefaultServerConfig())

	var (
		mu     sync.Mutex
		opens  int
		pings  []string
		closes []ws.CloseEvent
	)

	unsubscribe := server.Subscribe(ws.Handlers{
		Open: func(*ws.Channel) {
			mu.Lock()
			opens++
			mu.Unlock()
		},
		Ping: func(_ *ws.Channel, payload []byte) {
			mu.Lock()
			pings = append(pings, string(payload))
			mu.Unlock()
		},
		Close: func(_ *ws.Channel, ev ws.CloseEvent) {
			mu.Lock()
			closes = append(closes, ev)
			mu.Unlock()
		},
	})
	defer unsubscribe()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	pongs := make(chan string, 1)

	cfg := ws.DefaultClientConfig(wsURL)
	cfg.OnPong = func(payload []byte) { pongs <- string(payload) }

	client := ws.NewClient(cfg)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	// Pong handlers only run while reading.
	go func() {
		for {
			if _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := client.Ping([]byte("ping-1")); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	select {
	case got := <-pongs:
		if got != "ping-1" {
			t.Errorf("pong payload = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no pong received")
	}

	if err := client.CloseWith(websocket.CloseNormalClosure, "done"); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	waitFor(t, "close observation", func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(closes) == 1
	})

	mu.Lock()
	defer mu.Unlock()

	if opens != 1 {
		t.Errorf("open observed %d times", opens)
	}

	if len(pings) != 1 || pings[0] != "ping-1" {
		t.Errorf("pings = %q", pings)
	}

	if !closes[0].HasCode || closes[0].Code != gws.StatusNormalClosure || closes[0].Reason != "done" {
		t.Errorf("close event = %+v", closes[0])
	}
}

func TestServer_Close(t *testing.T) {
	server, ts := setupTestServer(t, ws.DefaultServerConfig())
	client := connect(t, ts)

	waitFor(t, "one channel", func() bool { return server.Len() == 1 })

	if err := server.Close(context.Background()); err != nil {
		t.Fatalf("server close failed: %v", err)
	}

	_, err := client.ReadMessage()

	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}

	if closeErr.Code != websocket.CloseGoingAway {
		t.Errorf("close code = %d, want %d", closeErr.Code, websocket.CloseGoingAway)
	}

	waitFor(t, "empty table", func() bool { return server.Len() == 0 })
}

func TestServer_Serve(t *testing.T) {
	server := ws.NewServer(ws.DefaultServerConfig())

	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	served := make(chan error, 1)
	go func() { served <- server.Serve(ln) }()

	client := ws.NewClient(ws.DefaultClientConfig("ws://" + ln.Addr().String() + "/"))
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	if err := server.Serve(ln); err == nil {
		t.Error("second Serve must fail")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := server.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	select {
	case err := <-served:
		if !errors.Is(err, ws.ErrServerClosed) {
			t.Errorf("Serve returned %v, want ErrServerClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestClient_NotConnected(t *testing.T) {
	client := ws.NewClient(ws.DefaultClientConfig("ws://127.0.0.1:1/"))

	if err := client.WriteText("x"); !errors.Is(err, ws.ErrNotConnected) {
		t.Errorf("write = %v, want ErrNotConnected", err)
	}

	if _, err := client.ReadMessage(); !errors.Is(err, ws.ErrNotConnected) {
		t.Errorf("read = %v, want ErrNotConnected", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("close of unconnected client = %v", err)
	}
}
