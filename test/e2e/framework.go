package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
	"github.com/marmos91/filecmd/pkg/client"
	"github.com/marmos91/filecmd/pkg/config"
	"github.com/marmos91/filecmd/pkg/server"
	"github.com/marmos91/filecmd/pkg/store"
)

// Environment used to turn the test binary into a process pool worker.
const (
	workerEnv       = "FILECMD_E2E_WORKER"
	workerConfigEnv = "FILECMD_E2E_WORKER_CONFIG"
)

// TestContext provides a complete testing environment with:
// - A config file written for the selected store and discipline
// - A running filecmd server loaded from that file
// - Client connections and cleanup mechanisms
type TestContext struct {
	T          *testing.T
	Config     *TestConfig
	Server     *server.FileServer
	Store      store.Store
	ConfigPath string
	Port       int

	dataDir  string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	tempDirs []string
	clients  []*client.Client
	rawConns []net.Conn
	running  bool
}

// NewTestContext creates a new test environment with the specified configuration.
// It writes the config file and starts the server.
func NewTestContext(t *testing.T, config *TestConfig) *TestContext {
	t.Helper()

	tc := &TestContext{
		T:      t,
		Config: config,
		Port:   findFreePort(t),
	}

	tc.dataDir = storeDir(tc)
	tc.writeConfig()
	tc.startServer()

	return tc
}

// writeConfig writes the server configuration file
func (tc *TestContext) writeConfig() {
	tc.T.Helper()

	dir := tc.CreateTempDir("filecmd-e2e-config-*")
	tc.ConfigPath = filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(tc.ConfigPath, []byte(tc.Config.YAML(tc.Port, tc.dataDir)), 0600); err != nil {
		tc.T.Fatalf("Failed to write config file: %v", err)
	}
}

// startServer loads the config file and starts the server the way the
// filecmd binary does
func (tc *TestContext) startServer() {
	tc.T.Helper()

	// Always use ERROR level to keep test output clean
	logger.SetLevel("ERROR")

	cfg, err := config.Load(tc.ConfigPath)
	if err != nil {
		tc.T.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	tc.cancel = cancel

	tc.Store = nil
	if cfg.Adapter.Discipline == filecmd.DisciplineThread {
		tc.Store, err = config.CreateStore(ctx, &cfg.Store, nil)
		if err != nil {
			cancel()
			tc.T.Fatalf("Failed to create store: %v", err)
		}
	}

	worker := filecmd.WorkerCommand{
		Path: os.Args[0],
		Env:  []string{workerEnv + "=1", workerConfigEnv + "=" + tc.ConfigPath},
	}

	adp, err := config.CreateAdapter(cfg, tc.Store, nil, worker)
	if err != nil {
		cancel()
		tc.T.Fatalf("Failed to create adapter: %v", err)
	}

	tc.Server = server.New(tc.Store, cfg.Server.ShutdownTimeout)
	if err := tc.Server.AddAdapter(adp); err != nil {
		cancel()
		tc.T.Fatalf("Failed to add adapter: %v", err)
	}

	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		if err := tc.Server.Serve(ctx); err != nil && ctx.Err() == nil {
			tc.T.Logf("Server error: %v", err)
		}
	}()
	tc.running = true

	tc.waitForServer()
}

// waitForServer waits for the server to be ready to accept connections
func (tc *TestContext) waitForServer() {
	tc.T.Helper()

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			tc.T.Fatal("Timeout waiting for server to start")
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", tc.Addr(), time.Second)
			if err == nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// StopServer shuts the server down and waits for it to finish
func (tc *TestContext) StopServer() {
	tc.T.Helper()

	if !tc.running {
		return
	}

	// Shutdown drains open sessions, so close ours first.
	for _, c := range tc.clients {
		_ = c.Close()
	}
	tc.clients = nil
	for _, conn := range tc.rawConns {
		_ = conn.Close()
	}
	tc.rawConns = nil

	tc.cancel()
	tc.wg.Wait()
	tc.running = false
}

// RestartServer stops the server and starts a new one on the same config
// file and store directory
func (tc *TestContext) RestartServer() {
	tc.T.Helper()

	tc.StopServer()
	tc.startServer()
}

// Cleanup stops the server and removes temporary files
func (tc *TestContext) Cleanup() {
	tc.T.Helper()

	tc.StopServer()

	for _, dir := range tc.tempDirs {
		_ = os.RemoveAll(dir)
	}
}

// Addr returns the server address
func (tc *TestContext) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", tc.Port)
}

// Dial opens a new client connection that is closed on cleanup
func (tc *TestContext) Dial() *client.Client {
	tc.T.Helper()

	c, err := client.Dial(context.Background(), tc.Addr(), client.Options{RequestTimeout: time.Minute})
	if err != nil {
		tc.T.Fatalf("Failed to connect to server: %v", err)
	}
	tc.clients = append(tc.clients, c)
	return c
}

// RawConn opens a plain TCP connection for protocol-level tests. It is
// closed when the server stops
func (tc *TestContext) RawConn() net.Conn {
	tc.T.Helper()

	conn, err := net.DialTimeout("tcp", tc.Addr(), 5*time.Second)
	if err != nil {
		tc.T.Fatalf("Failed to connect to server: %v", err)
	}
	tc.rawConns = append(tc.rawConns, conn)
	return conn
}

// CreateTempDir creates a temporary directory and registers it for cleanup
func (tc *TestContext) CreateTempDir(prefix string) string {
	tc.T.Helper()

	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		tc.T.Fatalf("Failed to create temp directory: %v", err)
	}
	tc.tempDirs = append(tc.tempDirs, dir)
	return dir
}

// GetConfig returns the test configuration
func (tc *TestContext) GetConfig() *TestConfig {
	return tc.Config
}

// GetPort returns the server port
func (tc *TestContext) GetPort() int {
	return tc.Port
}

// findFreePort finds an available TCP port
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port
}
