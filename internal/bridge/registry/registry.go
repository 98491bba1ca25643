package registry

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/domain"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/store"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/validator"
)

// Registry manages the search directories used to discover configuration files.
type Registry struct {
	store     *store.Store
	validator *validator.Validator
	logger    *slog.Logger
}

// New creates a Registry over the given store.
func New(store *store.Store, validator *validator.Validator, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{store: store, validator: validator, logger: logger}
}

// AddPaths appends every entry to the registry in a single write. Entries
// are normalized first; one invalid entry aborts the call with nothing
// written. Duplicates are not filtered.
func (r *Registry) AddPaths(paths []string) error {
	normalized := make([]string, 0, len(paths))
	for _, p := range paths {
		clean, err := r.validator.NormalizePath(p)
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", p, err)
		}
		normalized = append(normalized, clean)
	}
	if len(normalized) == 0 {
		return nil
	}

	err := r.store.Update(func(doc *store.Document) error {
		doc.ConfPath = append(doc.ConfPath, normalized...)
		return nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("search paths added", "paths", normalized, "operation", "add")
	return nil
}

// ListPaths returns the registered directories in stored order. An empty
// result is not an error.
func (r *Registry) ListPaths() ([]string, error) {
	doc, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(doc.ConfPath))
	copy(out, doc.ConfPath)
	return out, nil
}

// DeletePath removes the entry at the 1-based position index, counted on
// the list as it is on disk now rather than on whatever was displayed
// earlier. It returns the removed entry.
func (r *Registry) DeletePath(index string) (string, error) {
	pos, err := strconv.Atoi(strings.TrimSpace(index))
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a number", domain.ErrInvalidSelection, index)
	}

	var removed string
	err = r.store.Update(func(doc *store.Document) error {
		if pos < 1 || pos > len(doc.ConfPath) {
			return fmt.Errorf("%w: %d is outside 1..%d", domain.ErrInvalidSelection, pos, len(doc.ConfPath))
		}
		removed = doc.ConfPath[pos-1]
		doc.ConfPath = append(doc.ConfPath[:pos-1], doc.ConfPath[pos:]...)
		return nil
	})
	if err != nil {
		return "", err
	}
	r.logger.Info("search path deleted", "path", removed, "operation", "delete")
	return removed, nil
}
