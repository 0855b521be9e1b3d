package stress

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// reportHeader is the column order of the CSV report.
var reportHeader = []string{
	"test", "file_size", "workers",
	"avg_time", "median_time", "min_time", "max_time",
	"avg_speed", "median_speed", "min_speed", "max_speed",
	"success", "failed",
}

// WriteCSV writes stats as CSV with a header row.
func WriteCSV(w io.Writer, stats []Stats) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(reportHeader); err != nil {
		return err
	}

	for _, s := range stats {
		row := []string{
			string(s.Test),
			strconv.Itoa(s.FileSizeMB),
			strconv.Itoa(s.Workers),
			formatFloat(s.AvgTime),
			formatFloat(s.MedianTime),
			formatFloat(s.MinTime),
			formatFloat(s.MaxTime),
			formatFloat(s.AvgSpeed),
			formatFloat(s.MedianSpeed),
			formatFloat(s.MinSpeed),
			formatFloat(s.MaxSpeed),
			strconv.Itoa(s.Success),
			strconv.Itoa(s.Failed),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReportName returns the report file name for a run finished at now.
func ReportName(now time.Time) string {
	return fmt.Sprintf("performance_report_%s.csv", now.Format("20060102_150405"))
}

// SaveReport writes stats to dir/performance_report_<timestamp>.csv and
// returns the path.
func SaveReport(dir string, stats []Stats, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, ReportName(now))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}

	if err := WriteCSV(f, stats); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write report: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close report: %w", err)
	}
	return path, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
