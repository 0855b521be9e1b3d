package filecmd

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filecmd/internal/protocol/frame"
	"github.com/marmos91/filecmd/pkg/dispatch"
	"github.com/marmos91/filecmd/pkg/store/memory"
)

// testClient reads framed responses from a raw connection.
type testClient struct {
	t      *testing.T
	conn   net.Conn
	frames *frame.Buffer
}

func newTestClient(t *testing.T, conn net.Conn) *testClient {
	t.Helper()
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, frames: frame.NewBuffer(0)}
}

func dialTestClient(t *testing.T, addr net.Addr) *testClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr.String(), 2*time.Second)
	require.NoError(t, err)
	return newTestClient(t, conn)
}

func (c *testClient) send(raw string) {
	c.t.Helper()
	_, err := c.conn.Write([]byte(raw))
	require.NoError(c.t, err)
}

// next returns the next response, or an error if none arrives within timeout.
func (c *testClient) next(timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 4096)

	for {
		if f, ok := c.frames.Next(); ok {
			return string(f), nil
		}
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return "", err
		}
		n, err := c.conn.Read(buf)
		if n > 0 {
			require.NoError(c.t, c.frames.Append(buf[:n]))
			continue
		}
		if err != nil {
			return "", err
		}
	}
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	got, err := c.next(5 * time.Second)
	require.NoError(c.t, err)
	assert.Equal(c.t, want, got)
}

func (c *testClient) expectClosed() {
	c.t.Helper()
	_, err := c.next(5 * time.Second)
	require.Error(c.t, err)
	assert.ErrorIs(c.t, err, io.EOF)
}

// startSession serves one loopback connection with a fresh in-memory store.
func startSession(t *testing.T, cfg SessionConfig) (*testClient, context.CancelFunc, <-chan struct{}) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)

	serverConn, err := ln.Accept()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	done := make(chan struct{})
	d := dispatch.New(memory.NewMemoryStore())
	go func() {
		defer close(done)
		NewSession(serverConn, d, cfg, nil).Serve(ctx)
	}()

	return newTestClient(t, client), cancel, done
}

func defaultSessionConfig() SessionConfig {
	return SessionConfig{
		ReadBufferSize: 1 << 20,
		MaxFrameSize:   1 << 20,
		IdleTimeout:    time.Minute,
		WriteTimeout:   5 * time.Second,
	}
}

func TestSession_ListOnEmptyStore(t *testing.T) {
	c, _, _ := startSession(t, defaultSessionConfig())

	c.send("list\r\n\r\n")
	c.expect(`{"status":"SUCCESS","files":[]}`)
}

func TestSession_PipelinedRequestsAnsweredInOrder(t *testing.T) {
	c, _, _ := startSession(t, defaultSessionConfig())

	c.send("upload a.txt aGk=\r\n\r\nget a.txt\r\n\r\nlist\r\n\r\ndelete a.txt\r\n\r\nget a.txt\r\n\r\n")

	c.expect(`{"status":"SUCCESS","message":"File saved"}`)
	c.expect(`{"status":"SUCCESS","filename":"a.txt","content":"aGk="}`)
	c.expect(`{"status":"SUCCESS","files":["a.txt"]}`)
	c.expect(`{"status":"SUCCESS","message":"File deleted"}`)
	c.expect(`{"status":"FAILED","error":"File not found: a.txt"}`)
}

func TestSession_PartialFrameWaitsForDelimiter(t *testing.T) {
	c, _, _ := startSession(t, defaultSessionConfig())

	c.send("upl")
	c.send("oad x aGk=\r\n")

	_, err := c.next(200 * time.Millisecond)
	require.Error(t, err, "no response may be sent before the delimiter completes")

	c.send("\r\n")
	c.expect(`{"status":"SUCCESS","message":"File saved"}`)
}

func TestSession_ProtocolErrorsKeepConnectionOpen(t *testing.T) {
	c, _, _ := startSession(t, defaultSessionConfig())

	c.send("\r\n\r\n")
	c.expect(`{"status":"FAILED","error":"Empty request"}`)

	c.send("rename a b\r\n\r\n")
	c.expect(`{"status":"FAILED","error":"Invalid command"}`)

	c.send("get\r\n\r\n")
	c.expect(`{"status":"FAILED","error":"Filename required"}`)

	c.send("upload onlyname\r\n\r\n")
	c.expect(`{"status":"FAILED","error":"Missing parameters"}`)

	c.send("list\r\n\r\n")
	c.expect(`{"status":"SUCCESS","files":[]}`)
}

func TestSession_UploadPayloadIsNotTokenized(t *testing.T) {
	c, _, _ := startSession(t, defaultSessionConfig())

	c.send("upload my file.txt aGk=\r\n\r\n")
	c.expect(`{"status":"FAILED","error":"Invalid base64 payload: illegal base64 data at input byte 4"}`)

	c.send("upload report.txt aGk=\r\n\r\nget \"report.txt\"\r\n\r\n")
	c.expect(`{"status":"SUCCESS","message":"File saved"}`)
	c.expect(`{"status":"SUCCESS","filename":"report.txt","content":"aGk="}`)
}

func TestSession_OversizedFrameClosesConnection(t *testing.T) {
	cfg := defaultSessionConfig()
	cfg.MaxFrameSize = 16
	c, _, done := startSession(t, cfg)

	c.send("list\r\n\r\n" + strings.Repeat("x", 64))

	c.expect(`{"status":"SUCCESS","files":[]}`)
	c.expect(`{"status":"FAILED","error":"Request too large"}`)
	c.expectClosed()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end after oversized frame")
	}
}

func TestSession_EndsOnClientClose(t *testing.T) {
	c, _, done := startSession(t, defaultSessionConfig())

	c.send("list\r\n\r\n")
	c.expect(`{"status":"SUCCESS","files":[]}`)
	require.NoError(t, c.conn.Close())

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end after client close")
	}
}

func TestSession_IdleTimeout(t *testing.T) {
	cfg := defaultSessionConfig()
	cfg.IdleTimeout = 100 * time.Millisecond
	c, _, done := startSession(t, cfg)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("idle session was not closed")
	}
	c.expectClosed()
}

func TestSession_CancelInterruptsIdleRead(t *testing.T) {
	c, cancel, done := startSession(t, defaultSessionConfig())

	c.send("list\r\n\r\n")
	c.expect(`{"status":"SUCCESS","files":[]}`)

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("session ignored cancellation")
	}
	c.expectClosed()
}

func TestSession_RateLimitDelaysButAnswersEveryFrame(t *testing.T) {
	cfg := defaultSessionConfig()
	cfg.RateLimit.RequestsPerSecond = 20
	cfg.RateLimit.Burst = 1
	c, _, _ := startSession(t, cfg)

	start := time.Now()
	c.send(strings.Repeat("list\r\n\r\n", 4))
	for i := 0; i < 4; i++ {
		c.expect(`{"status":"SUCCESS","files":[]}`)
	}

	// Three frames beyond the burst at 20/s need at least ~150ms.
	assert.GreaterOrEqual(t, time.Since(start), 120*time.Millisecond)
}

func TestVerbLabel(t *testing.T) {
	assert.Equal(t, "get", verbLabel("get"))
	assert.Equal(t, "invalid", verbLabel("rename"))
	assert.Equal(t, "invalid", verbLabel(""))
}
