package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/LunaticFringers/wg-bridge/internal/bridge"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/storage"
	"github.com/LunaticFringers/wg-bridge/internal/cli"
	"github.com/LunaticFringers/wg-bridge/internal/config"
	"github.com/LunaticFringers/wg-bridge/internal/logging"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := afero.NewOsFs()
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	load := func(opts cli.GlobalOptions) (*bridge.Manager, error) {
		home, err := config.ResolveHome()
		if err != nil {
			return nil, err
		}
		cfg, err := config.Load(opts.ConfigFile, home)
		if err != nil {
			return nil, err
		}
		logger, closer, err := logging.New(fs, logging.Options{
			Dir:     cfg.LogDir,
			Level:   cfg.LogLevel,
			Verbose: opts.Verbose,
			Stderr:  stderr,
			Owner:   storage.InvokingOwner(),
		})
		if err != nil {
			logger = fallbackLogger(opts.Verbose, stderr)
			logger.Warn("file logging disabled", "path", cfg.LogDir, "error", err)
		} else {
			closers = append(closers, closer)
		}
		logger.Debug("configuration loaded", "file", cfg.File, "store", cfg.UserConf)
		return bridge.NewManager(fs, cfg, nil, logger)
	}

	return cli.Run(ctx, args, load, cli.NewPromptUI(stdin, stdout), stdout, stderr)
}

// fallbackLogger is used when the log directory is not writable, e.g. a
// root-owned directory on a later unprivileged run.
func fallbackLogger(verbose bool, stderr io.Writer) *slog.Logger {
	if !verbose {
		return logging.Discard()
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
