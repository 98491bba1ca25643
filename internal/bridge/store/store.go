package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/backup"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/domain"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/storage"
)

// DocumentMode is the mode the document gets after every write.
const DocumentMode os.FileMode = 0o644

// Store loads and rewrites the store document. Every mutation is a full
// load, in-memory change and atomic whole-file replace.
//
// Nothing serializes separate processes: when two invocations mutate the
// document at the same time the last rename wins and the other change is lost.
type Store struct {
	storage   *storage.Storage
	path      string
	snapshots *backup.Service
	logger    *slog.Logger
}

// New creates a Store for the document at path. snapshots may be nil.
func New(storage *storage.Storage, path string, snapshots *backup.Service, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{
		storage:   storage,
		path:      path,
		snapshots: snapshots,
		logger:    logger,
	}
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the whole document. A missing file is ErrMissingStore.
func (s *Store) Load() (*Document, error) {
	if err := s.storage.ValidatePathSafety(s.path); err != nil {
		return nil, err
	}
	data, err := s.storage.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMissingStore, s.path)
		}
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", s.path, err)
	}
	doc.normalize()
	return &doc, nil
}

// Save snapshots the current file and atomically replaces it with doc.
// A failed snapshot is logged and does not block the write.
func (s *Store) Save(doc *Document) error {
	doc.normalize()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode store: %w", err)
	}
	data = append(data, '\n')

	if s.snapshots != nil {
		if _, err := s.snapshots.Snapshot(s.path); err != nil {
			s.logger.Warn("store snapshot failed",
				"path", s.path,
				"error", err)
		}
	}

	if err := s.storage.WriteFileAtomic(s.path, data, DocumentMode); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	s.logger.Debug("store written", "path", s.path, "bytes", len(data))
	return nil
}

// Update loads the document, applies fn and saves the result. When fn
// returns an error nothing is written.
func (s *Store) Update(fn func(doc *Document) error) error {
	doc, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.Save(doc)
}

// ReplaceConfigRecord merges fields into the record for path, or appends a
// new record when there is none.
func (s *Store) ReplaceConfigRecord(path string, fields RecordFields) error {
	err := s.Update(func(doc *Document) error {
		doc.Upsert(path, fields)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("config record updated", "path", path, "operation", "replace")
	return nil
}

// LookupErrorMessage returns the catalog message for code.
func (s *Store) LookupErrorMessage(code string) (string, error) {
	doc, err := s.Load()
	if err != nil {
		return "", err
	}
	msg, ok := doc.ErrorCodes[code]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownErrorCode, code)
	}
	return msg, nil
}

// Init writes the template document. An existing document is kept unless
// force is set.
func (s *Store) Init(force bool) error {
	exists, err := s.storage.Exists(s.path)
	if err != nil {
		return fmt.Errorf("failed to inspect store: %w", err)
	}
	if exists && !force {
		return fmt.Errorf("%w: %s", domain.ErrStoreExists, s.path)
	}
	if err := s.Save(NewDocument()); err != nil {
		return err
	}
	s.logger.Info("store initialized", "path", s.path, "forced", force)
	return nil
}
