package state

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/store"
)

// TokenPrompter asks the operator whether a configuration needs a 2FA step
// and, if so, for the URI where it is completed.
type TokenPrompter interface {
	PromptToken(path string) (required bool, uri string, err error)
}

// TokenPrompterFunc adapts a function to TokenPrompter.
type TokenPrompterFunc func(path string) (bool, string, error)

// PromptToken calls f.
func (f TokenPrompterFunc) PromptToken(path string) (bool, string, error) {
	return f(path)
}

// Tracker answers connection and 2FA questions per configuration path and
// records transitions.
type Tracker struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a Tracker over the given store.
func New(store *store.Store, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracker{store: store, logger: logger}
}

// PathsByConnectedStatus returns the paths of records in the given state.
// A record without a connected field counts as disconnected.
func (t *Tracker) PathsByConnectedStatus(status bool) ([]string, error) {
	doc, err := t.store.Load()
	if err != nil {
		return nil, err
	}
	paths := []string{}
	for _, rec := range doc.Confs {
		if rec.IsConnected() == status {
			paths = append(paths, rec.Path)
		}
	}
	return paths, nil
}

// IsConnected reports whether path is recorded as connected.
func (t *Tracker) IsConnected(path string) (bool, error) {
	doc, err := t.store.Load()
	if err != nil {
		return false, err
	}
	rec, _ := doc.Record(path)
	return rec.IsConnected(), nil
}

// SetConnectedStatus records the connection state of path, creating the
// record if needed.
func (t *Tracker) SetConnectedStatus(path string, status bool) error {
	if err := t.store.ReplaceConfigRecord(path, store.RecordFields{Connected: store.Bool(status)}); err != nil {
		return fmt.Errorf("failed to record connection state: %w", err)
	}
	t.logger.Info("connection state recorded", "path", path, "connected", status)
	return nil
}

// ResolveToken returns whether path needs 2FA and the URI for it. The first
// call for a path asks prompter and stores the answer; later calls read the
// stored answer and never prompt again.
func (t *Tracker) ResolveToken(path string, prompter TokenPrompter) (bool, string, error) {
	doc, err := t.store.Load()
	if err != nil {
		return false, "", err
	}
	if rec, ok := doc.Record(path); ok && rec.Token != nil {
		return rec.TokenRequired(), rec.URI, nil
	}

	required, uri, err := prompter.PromptToken(path)
	if err != nil {
		return false, "", err
	}
	if !required {
		uri = ""
	}

	fields := store.RecordFields{Token: store.Bool(required)}
	if required {
		fields.URI = store.String(uri)
	}
	if err := t.store.ReplaceConfigRecord(path, fields); err != nil {
		return false, "", fmt.Errorf("failed to record token settings: %w", err)
	}
	t.logger.Info("token settings recorded", "path", path, "required", required)
	return required, uri, nil
}

// ResetToken forgets the stored 2FA answer so the next ResolveToken asks
// again. Unknown paths are a no-op.
func (t *Tracker) ResetToken(path string) (bool, error) {
	var found bool
	err := t.store.Update(func(doc *store.Document) error {
		found = doc.ClearToken(path)
		return nil
	})
	if err != nil {
		return false, err
	}
	if found {
		t.logger.Info("token settings reset", "path", path)
	}
	return found, nil
}

// Records returns every tracked record in stored order.
func (t *Tracker) Records() ([]store.ConfigRecord, error) {
	doc, err := t.store.Load()
	if err != nil {
		return nil, err
	}
	out := make([]store.ConfigRecord, len(doc.Confs))
	copy(out, doc.Confs)
	return out, nil
}
