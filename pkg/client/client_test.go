package client

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
	"github.com/marmos91/filecmd/pkg/dispatch"
	"github.com/marmos91/filecmd/pkg/store/memory"
)

// startServer runs a thread-pool adapter over an in-memory store and
// returns its address.
func startServer(t *testing.T) string {
	t.Helper()

	cfg := filecmd.FileCmdConfig{
		BindAddress:     "127.0.0.1",
		PoolSize:        4,
		ShutdownTimeout: 2 * time.Second,
	}
	require.NoError(t, cfg.Normalize())

	pool := filecmd.NewThreadPool(cfg.PoolSize, dispatch.New(memory.NewMemoryStore()), cfg.SessionConfig(), nil)
	a := filecmd.New(cfg, pool, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("server did not stop")
		}
	})

	addr := a.Addr()
	require.NotNil(t, addr, "server failed to listen")
	return addr.String()
}

func dial(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), addr, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_RoundTrip(t *testing.T) {
	c := dial(t, startServer(t))
	ctx := context.Background()

	files, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	require.NoError(t, c.Upload(ctx, "notes.txt", []byte("hello world")))

	data, err := c.Get(ctx, "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	files, err = c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, files)

	require.NoError(t, c.Delete(ctx, "notes.txt"))

	files, err = c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestClient_EmptyFile(t *testing.T) {
	c := dial(t, startServer(t))
	ctx := context.Background()

	require.NoError(t, c.Upload(ctx, "empty.bin", nil))

	data, err := c.Get(ctx, "empty.bin")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestClient_BinaryContent(t *testing.T) {
	c := dial(t, startServer(t))
	ctx := context.Background()

	payload := make([]byte, 300*1024)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	require.NoError(t, c.Upload(ctx, "blob.bin", payload))

	data, err := c.Get(ctx, "blob.bin")
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestClient_ServerErrors(t *testing.T) {
	c := dial(t, startServer(t))
	ctx := context.Background()

	_, err := c.Get(ctx, "missing.txt")
	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "File not found: missing.txt", serverErr.Message)

	err = c.Delete(ctx, "missing.txt")
	require.ErrorAs(t, err, &serverErr)

	// The connection stays usable after a FAILED reply.
	files, err := c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestClient_DoReturnsFailedReplies(t *testing.T) {
	c := dial(t, startServer(t))

	reply, err := c.Do(context.Background(), "rename a b")
	require.NoError(t, err)
	assert.False(t, reply.OK())
	assert.Equal(t, StatusFailed, reply.Status)
	assert.Equal(t, "Invalid command", reply.Error)
}

func TestClient_InvalidNames(t *testing.T) {
	c := dial(t, startServer(t))
	ctx := context.Background()

	assert.ErrorIs(t, c.Upload(ctx, "my file.txt", []byte("x")), ErrInvalidName)
	assert.ErrorIs(t, c.Upload(ctx, "", []byte("x")), ErrInvalidName)
	assert.ErrorIs(t, c.Delete(ctx, ""), ErrInvalidName)

	_, err := c.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestClient_ConcurrentCallsShareConnection(t *testing.T) {
	c := dial(t, startServer(t))
	ctx := context.Background()

	require.NoError(t, c.Upload(ctx, "a.txt", []byte("a")))

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			data, err := c.Get(ctx, "a.txt")
			if err == nil && string(data) != "a" {
				err = errors.New("unexpected content")
			}
			errs <- err
		}()
	}
	for i := 0; i < 10; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestClient_ContextCancelUnblocksRead(t *testing.T) {
	// A server that accepts and never answers.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
	}()

	c := dial(t, ln.Addr().String())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err = c.List(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_ServerClosesConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = conn.Close()
	}()

	c := dial(t, ln.Addr().String())

	_, err = c.List(context.Background())
	require.Error(t, err)
}

func TestReply_Err(t *testing.T) {
	assert.NoError(t, (&Reply{Status: StatusSuccess}).Err())

	err := (&Reply{Status: StatusFailed, Error: "File not found: x"}).Err()
	assert.EqualError(t, err, "server: File not found: x")

	err = (&Reply{Status: "WEIRD"}).Err()
	assert.Contains(t, err.Error(), "unexpected status")
}
