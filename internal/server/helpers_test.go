package server

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const testOrigin = "http://localhost:8080"

func testConfig() *Config {
	cfg := NewConfig()
	cfg.TCPAddr = "127.0.0.1:0"
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.AllowedOrigins = []string{testOrigin}
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

// startTestServer listens on ephemeral ports and serves until the test ends.
func startTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	srv := New(cfg, nil)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Server did not stop")
		}
	})
	return srv
}

type lineClient struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func dialLines(t *testing.T, srv *Server) *lineClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", srv.TCPAddr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("Failed to dial lobby: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &lineClient{t: t, conn: conn, r: bufio.NewReader(conn)}
}

func (c *lineClient) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("Failed to write %q: %v", line, err)
	}
}

func (c *lineClient) read() string {
	c.t.Helper()
	if err := c.conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		c.t.Fatalf("Failed to set read deadline: %v", err)
	}
	line, err := c.r.ReadString('\n')
	if err != nil {
		c.t.Fatalf("Failed to read line: %v", err)
	}
	return strings.TrimSuffix(line, "\n")
}

func (c *lineClient) expect(want string) {
	c.t.Helper()
	if got := c.read(); got != want {
		c.t.Errorf("Expected %q, got %q", want, got)
	}
}

func (c *lineClient) expectNothing(wait time.Duration) {
	c.t.Helper()
	if err := c.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		c.t.Fatalf("Failed to set read deadline: %v", err)
	}
	if line, err := c.r.ReadString('\n'); err == nil {
		c.t.Errorf("Expected no message, got %q", line)
	}
}

func dialWebSocket(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", testOrigin)

	conn, resp, err := dialer.Dial("ws://"+srv.HTTPAddr().String()+"/ws", headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readWSLines reads one frame and splits it into protocol lines.
func readWSLines(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("Failed to set read deadline: %v", err)
	}
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read websocket frame: %v", err)
	}
	return strings.Split(string(frame), "\n")
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
