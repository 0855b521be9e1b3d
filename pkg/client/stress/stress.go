// Package stress measures server throughput under concurrent clients.
//
// Each run starts N workers at once. Every worker opens its own connection,
// performs one operation (upload, download or list), and records its elapsed
// time and transfer speed. Runs are summarized into Stats rows that can be
// written to a CSV report.
package stress

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/client"
)

// Operation is one kind of stress test.
type Operation string

// Supported operations.
const (
	OpUpload   Operation = "upload"
	OpDownload Operation = "download"
	OpList     Operation = "list"
)

// AllOperations is the order used by the "all" test selection.
var AllOperations = []Operation{OpUpload, OpDownload, OpList}

// ParseOperations expands a test selection ("upload", "download", "list" or
// "all") into operations.
func ParseOperations(s string) ([]Operation, error) {
	switch Operation(s) {
	case OpUpload, OpDownload, OpList:
		return []Operation{Operation(s)}, nil
	}
	if s == "all" {
		return AllOperations, nil
	}
	return nil, fmt.Errorf("unknown test %q: want upload, download, list or all", s)
}

// Config configures a Tester.
type Config struct {
	// Addr is the server address (host:port).
	Addr string

	// DataDir holds the generated test files. Created if missing.
	DataDir string

	// DownloadDir receives downloaded files. Empty discards them.
	DownloadDir string

	// Client configures every connection.
	Client client.Options
}

// Result is the outcome of one worker.
type Result struct {
	Worker    int
	Operation Operation
	Size      int64
	Duration  time.Duration

	// Speed is bytes per second; zero for list.
	Speed float64

	Err error
}

// Stats summarizes one run. Times are in seconds, speeds in bytes per second.
type Stats struct {
	Test       Operation
	FileSizeMB int
	Workers    int

	AvgTime    float64
	MedianTime float64
	MinTime    float64
	MaxTime    float64

	AvgSpeed    float64
	MedianSpeed float64
	MinSpeed    float64
	MaxSpeed    float64

	Success int
	Failed  int
}

// Tester runs stress tests against one server.
type Tester struct {
	config Config
}

// New creates a Tester.
func New(config Config) *Tester {
	if config.DataDir == "" {
		config.DataDir = "test_data"
	}
	return &Tester{config: config}
}

// Run executes every combination of size, client count and operation, in
// that nesting order.
//
// A run whose preparation fails (for example the seed upload of a download
// test) is logged and skipped. Run returns early only when ctx is cancelled.
func (t *Tester) Run(ctx context.Context, ops []Operation, sizesMB []int, clients []int) ([]Stats, error) {
	var all []Stats

	for _, size := range sizesMB {
		for _, workers := range clients {
			for _, op := range ops {
				if err := ctx.Err(); err != nil {
					return all, err
				}

				stats, err := t.Execute(ctx, op, size, workers)
				if err != nil {
					logger.Error("Test %s size=%dMB workers=%d skipped: %v", op, size, workers, err)
					continue
				}
				all = append(all, stats)
			}
		}
	}

	return all, nil
}

// Execute runs one operation with the given number of concurrent workers.
func (t *Tester) Execute(ctx context.Context, op Operation, sizeMB, workers int) (Stats, error) {
	if workers <= 0 {
		return Stats{}, fmt.Errorf("workers must be > 0, got %d", workers)
	}

	var (
		name string
		data []byte
	)

	if op == OpUpload || op == OpDownload {
		path, err := t.testFile(sizeMB)
		if err != nil {
			return Stats{}, err
		}
		if data, err = os.ReadFile(path); err != nil {
			return Stats{}, fmt.Errorf("read test file: %w", err)
		}
		name = filepath.Base(path)
	}

	if op == OpDownload {
		if seed := t.upload(ctx, 0, name, data); seed.Err != nil {
			return Stats{}, fmt.Errorf("seed upload: %w", seed.Err)
		}
	}

	results := make([]Result, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			switch op {
			case OpUpload:
				results[worker] = t.upload(ctx, worker, name, data)
			case OpDownload:
				results[worker] = t.download(ctx, worker, name)
			case OpList:
				results[worker] = t.list(ctx, worker)
			default:
				results[worker] = Result{Worker: worker, Operation: op, Err: fmt.Errorf("unknown operation %q", op)}
			}
		}(i)
	}
	wg.Wait()

	stats := Summarize(op, sizeMB, workers, results)
	logger.Info("Test completed: %d passed, %d failed", stats.Success, stats.Failed)
	if stats.Success > 0 {
		logger.Info("Average time: %.2fs, Speed: %.1fMB/s", stats.AvgTime, stats.AvgSpeed/1024/1024)
	}
	return stats, nil
}

// testFile returns the path of a sizeMB test file, creating it with random
// content unless a file of the right size already exists.
func (t *Tester) testFile(sizeMB int) (string, error) {
	if sizeMB < 0 {
		return "", fmt.Errorf("file size must be >= 0, got %d", sizeMB)
	}

	path := filepath.Join(t.config.DataDir, fmt.Sprintf("test_%dmb.dat", sizeMB))
	want := int64(sizeMB) * 1024 * 1024

	if info, err := os.Stat(path); err == nil && info.Size() == want {
		return path, nil
	}

	if err := os.MkdirAll(t.config.DataDir, 0755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	logger.Info("Creating %dMB test file", sizeMB)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create test file: %w", err)
	}
	defer f.Close()

	chunk := make([]byte, 1024*1024)
	for i := 0; i < sizeMB; i++ {
		if _, err := rand.Read(chunk); err != nil {
			return "", err
		}
		if _, err := f.Write(chunk); err != nil {
			return "", fmt.Errorf("write test file: %w", err)
		}
	}

	return path, f.Close()
}

// session opens a fresh connection for one worker.
func (t *Tester) session(ctx context.Context, fn func(c *client.Client) error) error {
	c, err := client.Dial(ctx, t.config.Addr, t.config.Client)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func (t *Tester) upload(ctx context.Context, worker int, name string, data []byte) Result {
	start := time.Now()
	err := t.session(ctx, func(c *client.Client) error {
		return c.Upload(ctx, name, data)
	})

	r := finish(Result{Worker: worker, Operation: OpUpload, Size: int64(len(data))}, start, err)
	if err != nil {
		logger.Error("Worker %d: Upload failed: %v", worker, err)
	} else {
		logger.Info("Worker %d: Uploaded %s (%.1fMB) in %.2fs (%.1fMB/s)",
			worker, name, float64(r.Size)/1024/1024, r.Duration.Seconds(), r.Speed/1024/1024)
	}
	return r
}

func (t *Tester) download(ctx context.Context, worker int, name string) Result {
	start := time.Now()

	var size int64
	err := t.session(ctx, func(c *client.Client) error {
		data, err := c.Get(ctx, name)
		if err != nil {
			return err
		}
		size = int64(len(data))

		if t.config.DownloadDir == "" {
			return nil
		}
		if err := os.MkdirAll(t.config.DownloadDir, 0755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(t.config.DownloadDir, fmt.Sprintf("%d_%s", worker, name)), data, 0644)
	})

	r := finish(Result{Worker: worker, Operation: OpDownload, Size: size}, start, err)
	if err != nil {
		logger.Error("Worker %d: Download failed: %v", worker, err)
	} else {
		logger.Info("Worker %d: Downloaded %s (%.1fMB) in %.2fs (%.1fMB/s)",
			worker, name, float64(r.Size)/1024/1024, r.Duration.Seconds(), r.Speed/1024/1024)
	}
	return r
}

func (t *Tester) list(ctx context.Context, worker int) Result {
	start := time.Now()

	var count int
	err := t.session(ctx, func(c *client.Client) error {
		files, err := c.List(ctx)
		count = len(files)
		return err
	})

	r := finish(Result{Worker: worker, Operation: OpList}, start, err)
	if err != nil {
		logger.Error("Worker %d: List failed: %v", worker, err)
	} else {
		logger.Info("Worker %d: Listed %d files in %.2fs", worker, count, r.Duration.Seconds())
	}
	return r
}

func finish(r Result, start time.Time, err error) Result {
	r.Duration = time.Since(start)
	r.Err = err
	if err == nil && r.Duration > 0 {
		r.Speed = float64(r.Size) / r.Duration.Seconds()
	}
	return r
}

// Summarize aggregates worker results. Time and speed statistics cover
// successful workers only; speeds of zero (list, empty files) are left out
// of the speed statistics.
func Summarize(op Operation, sizeMB, workers int, results []Result) Stats {
	s := Stats{Test: op, FileSizeMB: sizeMB, Workers: workers}

	var times, speeds []float64
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
			continue
		}
		s.Success++
		times = append(times, r.Duration.Seconds())
		if r.Speed > 0 {
			speeds = append(speeds, r.Speed)
		}
	}

	s.AvgTime, s.MedianTime, s.MinTime, s.MaxTime = describe(times)
	s.AvgSpeed, s.MedianSpeed, s.MinSpeed, s.MaxSpeed = describe(speeds)
	return s
}

// describe returns mean, median, min and max of values, or zeros when empty.
func describe(values []float64) (mean, median, lo, hi float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	n := len(sorted)
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}

	return sum / float64(n), median, sorted[0], sorted[n-1]
}
