package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/subygan/receiver/internal/config"
	"github.com/subygan/receiver/internal/hammer"
	"github.com/subygan/receiver/internal/logger"
	"github.com/subygan/receiver/internal/payload"
	"github.com/subygan/receiver/internal/progress"
	"github.com/subygan/receiver/internal/report"
)

// ErrRequestsFailed is returned in strict mode when any request failed.
var ErrRequestsFailed = errors.New("some requests failed")

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return Main(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// Main runs the root command with args and maps its error to an exit code.
func Main(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "hammer",
		Short:        "Fire concurrent POST requests at an endpoint and wait for all of them",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadHammer(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, stdin, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.Flags().StringVar(&configFile, "config", "", "config file (YAML, JSON or TOML)")
	config.HammerFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg config.Hammer, stdin io.Reader, stdout, stderr io.Writer) error {
	log := logger.NewCLI(stderr, cfg.Debug)

	bodies := payload.Default()
	if cfg.Payload != "" {
		src, err := payload.FromFile(cfg.Payload)
		if err != nil {
			return err
		}
		bodies = src
	}

	expect, err := hammer.ParseExpectation(cfg.Expect)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := hammer.Options{
		URL:         cfg.URL,
		Requests:    cfg.Requests,
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
		Expect:      expect,
		Logger:      log,
	}

	var tracker *progress.Tracker
	if cfg.TUI {
		tracker = progress.Start(cfg.Requests, stderr, stdin, cancel)
		opts.OnDone = tracker.Done
	} else {
		fmt.Fprintf(stdout, "Sending %d requests to %s\n", cfg.Requests, cfg.URL)
	}

	res, err := hammer.Run(ctx, opts, bodies)
	if tracker != nil {
		if terr := tracker.Finish(); terr != nil {
			log.Warn("progress view", "err", terr)
		}
	}
	if err != nil {
		return err
	}

	if err := report.Write(stdout, cfg.URL, res, !cfg.NoColor); err != nil {
		return err
	}
	if cfg.Strict && (res.Failed > 0 || res.Mismatched > 0) {
		return fmt.Errorf("%w: %d failed, %d mismatched", ErrRequestsFailed, res.Failed, res.Mismatched)
	}
	return nil
}
