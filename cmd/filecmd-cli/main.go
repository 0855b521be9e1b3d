package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/marmos91/filecmd/internal/logger"
	"github.com/marmos91/filecmd/pkg/adapter/filecmd"
	"github.com/marmos91/filecmd/pkg/client"
	"github.com/marmos91/filecmd/pkg/client/stress"
)

const usage = `filecmd-cli - client for the filecmd server

Usage:
  filecmd-cli [--host HOST] [--port PORT] <command> [args]

Commands:
  list                   List files on the server
  get <name> [-o DIR]    Download a file
  upload <path>          Upload a local file
  delete <name>          Delete a file
  stress [flags]         Run concurrent load tests and write a CSV report
`

func main() {
	global := flag.NewFlagSet("filecmd-cli", flag.ExitOnError)
	host := global.String("host", "localhost", "Server host")
	port := global.Int("port", filecmd.DefaultPort, "Server port")
	timeout := global.Duration("timeout", client.DefaultRequestTimeout, "Per-request timeout")
	global.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fmt.Fprintln(os.Stderr, "\nGlobal flags:")
		global.PrintDefaults()
	}
	_ = global.Parse(os.Args[1:])

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	opts := client.Options{RequestTimeout: *timeout}

	var err error
	switch args[0] {
	case "list":
		err = runList(ctx, addr, opts)
	case "get":
		err = runGet(ctx, addr, opts, args[1:])
	case "upload":
		err = runUpload(ctx, addr, opts, args[1:])
	case "delete":
		err = runDelete(ctx, addr, opts, args[1:])
	case "stress":
		err = runStress(ctx, addr, opts, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		global.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func withClient(ctx context.Context, addr string, opts client.Options, fn func(c *client.Client) error) error {
	c, err := client.Dial(ctx, addr, opts)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func runList(ctx context.Context, addr string, opts client.Options) error {
	return withClient(ctx, addr, opts, func(c *client.Client) error {
		files, err := c.List(ctx)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("No files on server")
			return nil
		}
		for _, name := range files {
			fmt.Println(name)
		}
		return nil
	})
}

func runGet(ctx context.Context, addr string, opts client.Options, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	outDir := fs.String("o", ".", "Directory to save the file in")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: get <name> [-o DIR]")
	}
	name := fs.Arg(0)

	return withClient(ctx, addr, opts, func(c *client.Client) error {
		start := time.Now()
		data, err := c.Get(ctx, name)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(*outDir, 0755); err != nil {
			return err
		}
		// Only the final path element is used locally.
		path := filepath.Join(*outDir, filepath.Base(name))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}

		fmt.Printf("Downloaded %s (%d bytes) to %s in %s\n", name, len(data), path, time.Since(start).Round(time.Millisecond))
		return nil
	})
}

func runUpload(ctx context.Context, addr string, opts client.Options, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: upload <path>")
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	name := filepath.Base(args[0])

	return withClient(ctx, addr, opts, func(c *client.Client) error {
		start := time.Now()
		if err := c.Upload(ctx, name, data); err != nil {
			return err
		}
		fmt.Printf("Uploaded %s (%d bytes) in %s\n", name, len(data), time.Since(start).Round(time.Millisecond))
		return nil
	})
}

func runDelete(ctx context.Context, addr string, opts client.Options, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: delete <name>")
	}

	return withClient(ctx, addr, opts, func(c *client.Client) error {
		if err := c.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	})
}

func runStress(ctx context.Context, addr string, opts client.Options, args []string) error {
	fs := flag.NewFlagSet("stress", flag.ExitOnError)
	test := fs.String("test", "all", "Test to run: upload, download, list or all")
	sizes := fs.String("sizes", "1,10,100", "Comma-separated file sizes in MB")
	clients := fs.String("clients", "1,5,10", "Comma-separated concurrent client counts")
	dataDir := fs.String("data-dir", "test_data", "Directory for generated test files")
	downloadDir := fs.String("download-dir", "downloads", "Directory for downloaded files (empty discards them)")
	reportDir := fs.String("report-dir", ".", "Directory for the CSV report")
	logLevel := fs.String("log-level", "INFO", "Log level (DEBUG, INFO, WARN, ERROR)")
	_ = fs.Parse(args)

	logger.SetLevel(strings.ToUpper(*logLevel))

	ops, err := stress.ParseOperations(*test)
	if err != nil {
		return err
	}
	sizeList, err := parseInts(*sizes)
	if err != nil {
		return fmt.Errorf("invalid --sizes: %w", err)
	}
	clientList, err := parseInts(*clients)
	if err != nil {
		return fmt.Errorf("invalid --clients: %w", err)
	}

	tester := stress.New(stress.Config{
		Addr:        addr,
		DataDir:     *dataDir,
		DownloadDir: *downloadDir,
		Client:      opts,
	})

	stats, runErr := tester.Run(ctx, ops, sizeList, clientList)
	if len(stats) == 0 {
		if runErr != nil {
			return runErr
		}
		return fmt.Errorf("no test completed")
	}

	path, err := stress.SaveReport(*reportDir, stats, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("Report saved to %s\n", path)
	return runErr
}

func parseInts(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative value %d", n)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no values in %q", s)
	}
	return out, nil
}
