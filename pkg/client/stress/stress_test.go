package stress

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
	"github.com/marmos91/filecmd/pkg/dispatch"
	"github.com/marmos91/filecmd/pkg/store/memory"
)

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
		<-done
	})

	require.NotNil(t, a.Addr())
	return a.Addr().String()
}

func TestParseOperations(t *testing.T) {
	ops, err := ParseOperations("all")
	require.NoError(t, err)
	assert.Equal(t, []Operation{OpUpload, OpDownload, OpList}, ops)

	ops, err = ParseOperations("download")
	require.NoError(t, err)
	assert.Equal(t, []Operation{OpDownload}, ops)

	_, err = ParseOperations("rename")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Duration: 1 * time.Second, Speed: 100},
		{Duration: 3 * time.Second, Speed: 300},
		{Duration: 2 * time.Second, Speed: 200},
		{Duration: 4 * time.Second, Speed: 400},
		{Duration: 9 * time.Second, Err: errors.New("boom")},
	}

	s := Summarize(OpUpload, 10, 5, results)

	assert.Equal(t, OpUpload, s.Test)
	assert.Equal(t, 10, s.FileSizeMB)
	assert.Equal(t, 5, s.Workers)
	assert.Equal(t, 4, s.Success)
	assert.Equal(t, 1, s.Failed)

	assert.InDelta(t, 2.5, s.AvgTime, 1e-9)
	assert.InDelta(t, 2.5, s.MedianTime, 1e-9)
	assert.InDelta(t, 1.0, s.MinTime, 1e-9)
	assert.InDelta(t, 4.0, s.MaxTime, 1e-9)

	assert.InDelta(t, 250, s.AvgSpeed, 1e-9)
	assert.InDelta(t, 250, s.MedianSpeed, 1e-9)
	assert.InDelta(t, 100, s.MinSpeed, 1e-9)
	assert.InDelta(t, 400, s.MaxSpeed, 1e-9)
}

func TestSummarize_OddCountAndZeroSpeeds(t *testing.T) {
	results := []Result{
		{Duration: 5 * time.Second},
		{Duration: 1 * time.Second},
		{Duration: 3 * time.Second},
	}

	s := Summarize(OpList, 0, 3, results)

	assert.InDelta(t, 3.0, s.MedianTime, 1e-9)
	assert.Zero(t, s.AvgSpeed, "list results carry no speed")
	assert.Zero(t, s.MaxSpeed)
}

func TestSummarize_AllFailed(t *testing.T) {
	s := Summarize(OpDownload, 1, 2, []Result{{Err: errors.New("a")}, {Err: errors.New("b")}})

	assert.Equal(t, 0, s.Success)
	assert.Equal(t, 2, s.Failed)
	assert.Zero(t, s.AvgTime)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []Stats{
		{Test: OpUpload, FileSizeMB: 10, Workers: 5, AvgTime: 1.5, Success: 5},
	}))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, reportHeader, records[0])
	assert.Equal(t, "upload", records[1][0])
	assert.Equal(t, "10", records[1][1])
	assert.Equal(t, "5", records[1][2])
	assert.Equal(t, "1.500000", records[1][3])
	assert.Equal(t, "5", records[1][11])
	assert.Equal(t, "0", records[1][12])
}

func TestSaveReport(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 17, 13, 4, 5, 0, time.UTC)

	path, err := SaveReport(dir, []Stats{{Test: OpList, Workers: 1, Success: 1}}, now)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "performance_report_20240517_130405.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test,file_size,workers")
}

func TestTester_RunAgainstServer(t *testing.T) {
	addr := startServer(t)
	downloads := t.TempDir()

	tester := New(Config{
		Addr:        addr,
		DataDir:     t.TempDir(),
		DownloadDir: downloads,
	})

	stats, err := tester.Run(context.Background(), AllOperations, []int{1}, []int{1, 3})
	require.NoError(t, err)
	require.Len(t, stats, 6)

	for _, s := range stats {
		assert.Equal(t, s.Workers, s.Success, "%s with %d workers", s.Test, s.Workers)
		assert.Zero(t, s.Failed)
		assert.Positive(t, s.MaxTime)
	}

	entries, err := os.ReadDir(downloads)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)

	data, err := os.ReadFile(filepath.Join(downloads, "0_test_1mb.dat"))
	require.NoError(t, err)
	assert.Len(t, data, 1024*1024)
}

func TestTester_ReusesTestFile(t *testing.T) {
	dir := t.TempDir()
	tester := New(Config{DataDir: dir})

	path, err := tester.testFile(1)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1024*1024), info.Size())

	again, err := tester.testFile(1)
	require.NoError(t, err)
	assert.Equal(t, path, again)

	info2, err := os.Stat(again)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), info2.ModTime())
}

func TestTester_UnreachableServerCountsFailures(t *testing.T) {
	tester := New(Config{Addr: "127.0.0.1:1", DataDir: t.TempDir()})

	s, err := tester.Execute(context.Background(), OpList, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Success)
	assert.Equal(t, 2, s.Failed)

	_, err = tester.Execute(context.Background(), OpDownload, 0, 1)
	assert.Error(t, err, "the seed upload of a download test must fail")
}
