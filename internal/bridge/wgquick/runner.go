package wgquick

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/domain"
)

// Verbs understood by wg-quick.
const (
	VerbUp   = "up"
	VerbDown = "down"
)

// CommandFunc runs name with args and returns stdout, stderr and the exit
// status. err is only set when the process could not be run at all.
type CommandFunc func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)

// Options configure a Runner.
type Options struct {
	WgQuick string
	Wg      string
	UseSudo bool
}

// Runner drives wg-quick and wg as subprocesses.
type Runner struct {
	opts    Options
	command CommandFunc
	logger  *slog.Logger
}

// New creates a Runner that executes real processes.
func New(opts Options, logger *slog.Logger) *Runner {
	if opts.WgQuick == "" {
		opts.WgQuick = "wg-quick"
	}
	if opts.Wg == "" {
		opts.Wg = "wg"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{opts: opts, command: execCommand, logger: logger}
}

// SetCommand replaces process execution, for tests.
func (r *Runner) SetCommand(fn CommandFunc) {
	if fn == nil {
		r.command = execCommand
		return
	}
	r.command = fn
}

// Up brings the interface described by path up.
func (r *Runner) Up(ctx context.Context, path string) error {
	return r.quick(ctx, VerbUp, path)
}

// Down tears the interface described by path down.
func (r *Runner) Down(ctx context.Context, path string) error {
	return r.quick(ctx, VerbDown, path)
}

// Interfaces returns the WireGuard interfaces the kernel currently reports.
func (r *Runner) Interfaces(ctx context.Context) ([]string, error) {
	stdout, stderr, code, err := r.run(ctx, r.opts.Wg, "show", "interfaces")
	if err != nil {
		return nil, err
	}
	if code != 0 {
		return nil, &domain.ExternalToolError{Tool: r.opts.Wg, Verb: "show", Path: "interfaces", ExitCode: code, Stderr: string(stderr)}
	}
	return strings.Fields(string(stdout)), nil
}

func (r *Runner) quick(ctx context.Context, verb, path string) error {
	r.logger.Info("running wg-quick", "verb", verb, "path", path)
	_, stderr, code, err := r.run(ctx, r.opts.WgQuick, verb, path)
	if err != nil {
		return err
	}
	if code != 0 {
		r.logger.Error("wg-quick failed",
			"verb", verb,
			"path", path,
			"exit_code", code,
			"stderr", strings.TrimSpace(string(stderr)))
		return &domain.ExternalToolError{Tool: r.opts.WgQuick, Verb: verb, Path: path, ExitCode: code, Stderr: string(stderr)}
	}
	return nil
}

func (r *Runner) run(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	if r.opts.UseSudo {
		args = append([]string{name}, args...)
		name = "sudo"
	}
	return r.command(ctx, name, args...)
}

func execCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, int, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
		}
		return nil, nil, -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}
