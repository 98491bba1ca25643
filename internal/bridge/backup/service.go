package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/storage"
)

// Service keeps content-addressed snapshots of the store document.
type Service struct {
	storage     *storage.Storage
	snapshotDir string
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a new snapshot Service.
func New(storage *storage.Storage, snapshotDir string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		storage:     storage,
		snapshotDir: snapshotDir,
		now:         time.Now,
		logger:      logger,
	}
}

// SetNow allows overriding the clock for testing.
func (s *Service) SetNow(now func() time.Time) {
	if now == nil {
		s.now = time.Now
		return
	}
	s.now = now
}

// CalculateHash returns the SHA-256 hash of the given file.
// Missing and empty files return an empty string without error.
func (s *Service) CalculateHash(path string) (string, error) {
	if err := s.storage.ValidatePathSafety(path); err != nil {
		return "", fmt.Errorf("path validation failed: %w", err)
	}

	info, err := s.storage.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat file for hashing: %w", err)
	}
	if info.Size() == 0 {
		s.logger.Warn("empty file skipped during hash calculation",
			"path", path,
			"operation", "hash")
		return "", nil
	}

	f, err := s.storage.FileSystem().Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Snapshot copies path into the snapshot directory named by its hash and
// returns the snapshot path. Identical content only refreshes the mtime of
// the existing snapshot. A missing file yields "" and no error.
func (s *Service) Snapshot(path string) (string, error) {
	hash, err := s.CalculateHash(path)
	if err != nil {
		return "", err
	}
	if hash == "" {
		return "", nil
	}

	snapshotPath := filepath.Join(s.snapshotDir, hash+".json")
	now := s.now()
	if _, err := s.storage.Stat(snapshotPath); err == nil {
		if err := s.storage.Chtimes(snapshotPath, now, now); err != nil {
			return "", fmt.Errorf("failed to update snapshot timestamp: %w", err)
		}
		s.logger.Debug("snapshot already exists, updated timestamp",
			"path", path,
			"snapshot", snapshotPath)
		return snapshotPath, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to stat snapshot: %w", err)
	}

	// Snapshots may carry 2FA URIs; keep them private to the owner.
	if err := s.storage.CopyFile(path, snapshotPath, 0o600); err != nil {
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}
	if err := s.storage.Chtimes(snapshotPath, now, now); err != nil {
		return "", fmt.Errorf("failed to update snapshot timestamp: %w", err)
	}

	s.logger.Info("snapshot created",
		"path", path,
		"snapshot", snapshotPath)
	return snapshotPath, nil
}

// Prune removes snapshots whose mtime is older than olderThan and returns
// how many were deleted. A missing snapshot directory is not an error.
func (s *Service) Prune(olderThan time.Duration) (int, error) {
	entries, err := s.storage.ReadDir(s.snapshotDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read snapshot directory: %w", err)
	}
	cutoff := s.now().Add(-olderThan)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.snapshotDir, entry.Name())
		if entry.ModTime().Before(cutoff) {
			if err := s.storage.Remove(path); err != nil {
				return deleted, fmt.Errorf("failed to delete snapshot: %w", err)
			}
			deleted++
		}
	}
	if deleted > 0 {
		s.logger.Info("snapshots pruned", "count", deleted, "older_than", olderThan.String())
	}
	return deleted, nil
}

// Dir returns the snapshot directory path.
func (s *Service) Dir() string {
	return s.snapshotDir
}
