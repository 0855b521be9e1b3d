// Package logger provides the process-wide levelled logger.
//
// The API keeps the printf style used across the codebase (Debug/Info/Warn/Error
// with a format string). Output is produced by a zap core so the same call sites
// can emit either human-readable text or JSON, to stdout, stderr, or a rotated file.
package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config selects the encoder and destination of log output.
type Config struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string

	// Format is "text" or "json".
	Format string

	// Output is "stdout", "stderr", or a file path. File output is rotated.
	Output string

	// Rotation settings, only used for file output.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar  = newSugar(Config{Format: "text", Output: "stdout"})
	closer func() error
)

func parseLevel(s string) (Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// SetLevel changes the minimum level. Unknown values are ignored.
func SetLevel(s string) {
	if l, ok := parseLevel(s); ok {
		level.SetLevel(l.zapLevel())
	}
}

// Configure rebuilds the logger from cfg. It is safe to call more than once;
// a previously opened log file is closed.
func Configure(cfg Config) {
	SetLevel(cfg.Level)

	s := newSugar(cfg)

	mu.Lock()
	old := closer
	sugar = s
	closer = nil
	if w, ok := fileWriter(cfg); ok {
		closer = w.Close
	}
	mu.Unlock()

	if old != nil {
		_ = old()
	}
}

// Sync flushes buffered output and closes the log file, if any.
func Sync() {
	mu.RLock()
	s, c := sugar, closer
	mu.RUnlock()

	_ = s.Sync()
	if c != nil {
		_ = c()
	}
}

// openFiles memoizes lumberjack writers per path so Configure and fileWriter agree.
var openFiles sync.Map

func fileWriter(cfg Config) (*lumberjack.Logger, bool) {
	switch cfg.Output {
	case "", "stdout", "stderr":
		return nil, false
	}
	w, _ := openFiles.LoadOrStore(cfg.Output, &lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	})
	return w.(*lumberjack.Logger), true
}

func newSugar(cfg Config) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeDuration = zapcore.StringDurationEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.ConsoleSeparator = " "
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	var ws zapcore.WriteSyncer
	switch cfg.Output {
	case "", "stdout":
		ws = zapcore.Lock(os.Stdout)
	case "stderr":
		ws = zapcore.Lock(os.Stderr)
	default:
		w, _ := fileWriter(cfg)
		ws = zapcore.AddSync(w)
	}

	return zap.New(zapcore.NewCore(enc, ws, level)).Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debug(format string, v ...any) {
	current().Debugf(format, v...)
}

func Info(format string, v ...any) {
	current().Infof(format, v...)
}

func Warn(format string, v ...any) {
	current().Warnf(format, v...)
}

func Error(format string, v ...any) {
	current().Errorf(format, v...)
}

// With returns a child logger carrying the given key/value pairs on every line.
// Sessions use it to tag output with their id and peer address.
func With(keysAndValues ...any) *zap.SugaredLogger {
	return current().With(keysAndValues...)
}
