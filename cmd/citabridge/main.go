// Package main is the entry point for the citabridge CLI.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wzf03/citabridge/bridge"
	"github.com/wzf03/citabridge/engine"
	"github.com/wzf03/citabridge/observability"
	"github.com/wzf03/citabridge/session"
)

const urlPrompt = "Please input botzone url: "

type options struct {
	configFile  string
	enginePath  string
	codec       string
	workers     int
	verbose     bool
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:   "citabridge [url]",
		Short: "Bridge a Botzone local AI endpoint to an external decision engine",
		Long: `citabridge long-polls a Botzone local AI endpoint, feeds every pending
turn to the decision engine as a fresh process, and returns the engine's
moves on the next poll. The endpoint URL is taken from the argument, the
config file, or an interactive prompt, in that order.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, &opts)
		},
	}

	root.Flags().StringVar(&opts.configFile, "config", "", "Path to a JSON or YAML config file")
	root.Flags().StringVar(&opts.enginePath, "engine", "", "Engine executable (overrides config)")
	root.Flags().StringVar(&opts.codec, "codec", "", fmt.Sprintf("Request codec, one of %v (overrides config)", session.Codecs()))
	root.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent engine runs (overrides config)")
	root.Flags().BoolVar(&opts.verbose, "verbose", false, "Enable debug logging to stderr")
	root.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return root
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	url, err := resolveURL(args, cfg.Poller.URL, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	cfg.Poller.URL = url

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observer := observability.Observer(observability.NewSlogObserver(logger))
	if opts.metricsAddr != "" {
		prom, shutdown, err := serveMetrics(opts.metricsAddr, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		observer = observability.NewMultiObserver(observer, prom)
	}
	observability.RegisterObserver("slog", observer)

	b, err := bridge.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create bridge: %w", err)
	}

	err = b.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted, shutting down", "sessions", b.Registry().Len())
		return nil
	}
	return err
}

func loadConfig(opts *options) (*bridge.Config, error) {
	cfg := bridge.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := bridge.LoadConfig(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	cfg.Merge(&bridge.Config{
		Engine:  engine.Config{Path: opts.enginePath},
		Session: session.Config{Codec: opts.codec},
		Workers: opts.workers,
	})
	return &cfg, nil
}

// resolveURL picks the platform URL from the argument, then the config, then
// a prompt on in.
func resolveURL(args []string, configured string, in io.Reader, out io.Writer) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(args[0]), nil
	}
	if configured != "" {
		return configured, nil
	}

	fmt.Fprint(out, urlPrompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read url: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
