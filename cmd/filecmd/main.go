package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
	"github.com/marmos91/filecmd/pkg/config"
	"github.com/marmos91/filecmd/pkg/dispatch"
	"github.com/marmos91/filecmd/pkg/server"
	"github.com/marmos91/filecmd/pkg/store"
)

const usage = `filecmd - concurrent file command server

Usage:
  filecmd <command> [flags]

Commands:
  init     Write a default configuration file
  start    Start the server

Run 'filecmd <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = runInit(os.Args[2:])
	case "start":
		err = runStart(os.Args[2:])
	case "worker":
		// Started by the process pool; not meant to be run by hand.
		err = runWorker(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "", "Path of the config file to write (default: $XDG_CONFIG_HOME/filecmd/config.yaml)")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	_ = fs.Parse(args)

	path := *configPath
	if path == "" {
		written, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		path = written
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}

func runStart(args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/filecmd/config.yaml)")
	_ = fs.Parse(args)

	// Workers must reload exactly this file, so resolve it before they start.
	if *configPath != "" {
		abs, err := filepath.Abs(*configPath)
		if err != nil {
			return fmt.Errorf("resolve config path: %w", err)
		}
		*configPath = abs
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	configureLogging(cfg.Logging, cfg.Logging.Output)
	defer logger.Sync()

	fmt.Println("filecmd - concurrent file command server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)
	logger.Info("Discipline: %s, pool size: %d", cfg.Adapter.Discipline, cfg.Adapter.PoolSize)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metricsResult := config.InitializeMetrics(cfg)

	// With the process discipline every worker opens its own store, so the
	// parent does not hold one.
	var st store.Store
	if cfg.Adapter.Discipline == filecmd.DisciplineThread {
		st, err = config.CreateStore(ctx, &cfg.Store, metricsResult.CacheMetrics)
		if err != nil {
			return fmt.Errorf("failed to create store: %w", err)
		}
	}

	workerArgs := []string{"worker"}
	if *configPath != "" {
		workerArgs = append(workerArgs, "--config", *configPath)
	}

	adp, err := config.CreateAdapter(cfg, st, metricsResult.ServerMetrics, filecmd.WorkerCommand{Args: workerArgs})
	if err != nil {
		if st != nil {
			_ = st.Close()
		}
		return err
	}

	srv := server.New(st, cfg.Server.ShutdownTimeout)
	if err := srv.AddAdapter(adp); err != nil {
		return err
	}
	if metricsResult.Server != nil {
		metricsResult.Server.SetStatus(func() any { return adp.Status() })
		srv.SetMetricsServer(metricsResult.Server)
		logger.Info("Metrics enabled on port %d", metricsResult.Server.Port())
	}

	logger.Info("Server is running on port %d. Press Ctrl+C to stop.", cfg.Adapter.Port)

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}

// runWorker is the entry point of a process pool worker. It serves the
// connections the parent passes over the control socket until SIGTERM.
func runWorker(args []string) error {
	fs := flag.NewFlagSet("worker", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	_ = fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	slot := os.Getenv(filecmd.WorkerSlotEnv)
	configureLogging(cfg.Logging, workerLogOutput(cfg.Logging.Output, slot))
	defer logger.Sync()

	// The parent handles SIGINT from the terminal and forwards shutdown as
	// SIGTERM, so the worker ignores the interrupt.
	signal.Ignore(os.Interrupt)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	if err := cfg.Adapter.Normalize(); err != nil {
		return err
	}

	st, err := config.CreateStore(ctx, &cfg.Store, nil)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	control := os.NewFile(filecmd.WorkerControlFD, "control")
	if control == nil {
		return fmt.Errorf("worker control descriptor %d is not open", filecmd.WorkerControlFD)
	}

	return filecmd.ServeWorker(ctx, control, dispatch.New(st), cfg.Adapter.SessionConfig())
}

func configureLogging(cfg config.LoggingConfig, output string) {
	logger.Configure(logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     output,
		MaxSizeMB:  cfg.Rotation.MaxSizeMB,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAgeDays: cfg.Rotation.MaxAgeDays,
		Compress:   cfg.Rotation.Compress,
	})
}

// workerLogOutput gives each worker its own log file so that rotation is
// never performed by two processes on the same file.
// "/var/log/filecmd.log" becomes "/var/log/filecmd-worker-2.log".
func workerLogOutput(output, slot string) string {
	switch output {
	case "stdout", "stderr", "":
		return output
	}
	if slot == "" {
		slot = fmt.Sprint(os.Getpid())
	}
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + "-worker-" + slot + ext
}
