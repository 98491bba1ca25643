package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/storage"
)

// FileDateLayout names the daily log file, e.g. 2024-05-01.log.
const FileDateLayout = "2006-01-02"

// Options configure New.
type Options struct {
	Dir     string
	Level   string
	Verbose bool
	// Stderr receives a copy of every record when Verbose is set.
	Stderr io.Writer
	// Owner receives the directories and the log file New creates.
	Owner *storage.Owner
	Now   func() time.Time
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return l, nil
}

// FilePath returns the log file used on the day of now.
func FilePath(dir string, now time.Time) string {
	return filepath.Join(dir, now.Format(FileDateLayout)+".log")
}

// New opens today's log file under opts.Dir for appending and returns a text
// logger writing to it. Verbose forces the debug level and mirrors records
// to opts.Stderr. Directories and the file it creates are handed to
// opts.Owner. The returned closer releases the file.
func New(fs afero.Fs, opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	if err := storage.New(fs, opts.Owner).MkdirAll(opts.Dir); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := FilePath(opts.Dir, now())
	existed, err := afero.Exists(fs, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check log file: %w", err)
	}
	file, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	if !existed && opts.Owner != nil {
		if err := fs.Chown(path, opts.Owner.UID, opts.Owner.GID); err != nil {
			file.Close()
			return nil, nil, fmt.Errorf("failed to set log file owner: %w", err)
		}
	}

	var out io.Writer = file
	if opts.Verbose && opts.Stderr != nil {
		out = io.MultiWriter(file, opts.Stderr)
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("pid", os.Getpid()), file, nil
}
