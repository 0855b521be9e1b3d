package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/filecmd/pkg/store"
	"github.com/marmos91/filecmd/pkg/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter blocks in Serve until ctx is cancelled, or returns failErr
// right away when set.
type fakeAdapter struct {
	protocol string
	port     int
	failErr  error

	stopped atomic.Int32
}

func (a *fakeAdapter) Serve(ctx context.Context) error {
	if a.failErr != nil {
		return a.failErr
	}
	<-ctx.Done()
	return nil
}

func (a *fakeAdapter) Stop(ctx context.Context) error {
	a.stopped.Add(1)
	return nil
}

func (a *fakeAdapter) Protocol() string { return a.protocol }
func (a *fakeAdapter) Port() int        { return a.port }

type closeTrackingStore struct {
	store.Store
	closed atomic.Bool
}

func (s *closeTrackingStore) Close() error {
	s.closed.Store(true)
	return s.Store.Close()
}

func TestNew_DefaultShutdownTimeout(t *testing.T) {
	assert.Equal(t, DefaultShutdownTimeout, New(nil, 0).shutdownTimeout)
	assert.Equal(t, DefaultShutdownTimeout, New(nil, -time.Second).shutdownTimeout)
	assert.Equal(t, 3*time.Second, New(nil, 3*time.Second).shutdownTimeout)
}

func TestAddAdapter_RejectsDuplicates(t *testing.T) {
	srv := New(nil, time.Second)
	require.NoError(t, srv.AddAdapter(&fakeAdapter{protocol: "filecmd", port: 6667}))

	err := srv.AddAdapter(&fakeAdapter{protocol: "filecmd", port: 7000})
	assert.ErrorContains(t, err, "already registered")

	err = srv.AddAdapter(&fakeAdapter{protocol: "other", port: 6667})
	assert.ErrorContains(t, err, "port 6667 already in use")

	assert.Len(t, srv.Adapters(), 1)
}

func TestServe_NoAdapters(t *testing.T) {
	err := New(nil, time.Second).Serve(context.Background())
	assert.ErrorContains(t, err, "no adapters registered")
}

func TestServe_CancelStopsAdaptersAndClosesStore(t *testing.T) {
	st := &closeTrackingStore{Store: memory.NewMemoryStore()}
	adp := &fakeAdapter{protocol: "filecmd", port: 6667}

	srv := New(st, time.Second)
	require.NoError(t, srv.AddAdapter(adp))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	assert.Equal(t, int32(1), adp.stopped.Load())
	assert.True(t, st.closed.Load())

	assert.ErrorIs(t, srv.Serve(context.Background()), ErrAlreadyServed)
}

func TestServe_AdapterFailure(t *testing.T) {
	boom := errors.New("bind failed")
	srv := New(nil, time.Second)
	require.NoError(t, srv.AddAdapter(&fakeAdapter{protocol: "filecmd", port: 6667, failErr: boom}))

	err := srv.Serve(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "filecmd adapter error")
}

func TestAddAdapter_AfterServePanics(t *testing.T) {
	srv := New(nil, time.Second)
	require.NoError(t, srv.AddAdapter(&fakeAdapter{protocol: "filecmd", port: 6667, failErr: errors.New("x")}))
	_ = srv.Serve(context.Background())

	assert.Panics(t, func() { _ = srv.AddAdapter(&fakeAdapter{protocol: "other", port: 1}) })
}
