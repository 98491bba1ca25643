package discovery

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/iter"
	"github.com/spf13/afero"
)

// ConfExt is the extension wg-quick expects on configuration files.
const ConfExt = ".conf"

// Config is a discovered WireGuard configuration file.
type Config struct {
	Name string
	Path string
}

// Finder locates configuration files under the registered search directories.
type Finder struct {
	fs     afero.Fs
	logger *slog.Logger
}

// New creates a Finder.
func New(fs afero.Fs, logger *slog.Logger) *Finder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Finder{fs: fs, logger: logger}
}

type scanResult struct {
	dir     string
	configs []Config
	err     error
}

// Find walks every directory and returns the *.conf files found, grouped
// by directory in the order given and sorted by path within a directory.
// Directories that cannot be read are logged and skipped. A file reachable
// from two directories is reported once.
func (f *Finder) Find(dirs []string) []Config {
	results := iter.Map(dirs, func(dir *string) scanResult {
		configs, err := f.scan(*dir)
		return scanResult{dir: *dir, configs: configs, err: err}
	})

	seen := make(map[string]struct{})
	out := []Config{}
	for _, res := range results {
		if res.err != nil {
			f.logger.Warn("skipping search path",
				"path", res.dir,
				"operation", "discover",
				"error", res.err)
			continue
		}
		for _, c := range res.configs {
			if _, dup := seen[c.Path]; dup {
				continue
			}
			seen[c.Path] = struct{}{}
			out = append(out, c)
		}
	}
	f.logger.Debug("discovery finished", "dirs", len(dirs), "configs", len(out))
	return out
}

func (f *Finder) scan(dir string) ([]Config, error) {
	info, err := f.fs.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "scan", Path: dir, Err: os.ErrInvalid}
	}

	var configs []Config
	err = afero.Walk(f.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// Unreadable subtree; keep whatever else is reachable
			if info != nil && info.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || filepath.Ext(path) != ConfExt {
			return nil
		}
		configs = append(configs, Config{Name: NameOf(path), Path: filepath.Clean(path)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Path < configs[j].Path })
	return configs, nil
}

// NameOf returns the display name of a configuration file: its base name
// without the .conf extension.
func NameOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ConfExt)
}

// Filter keeps the configs whose path satisfies keep.
func Filter(configs []Config, keep func(path string) bool) []Config {
	out := make([]Config, 0, len(configs))
	for _, c := range configs {
		if keep(c.Path) {
			out = append(out, c)
		}
	}
	return out
}
