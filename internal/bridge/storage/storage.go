package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/xid"
	"github.com/spf13/afero"
)

// Owner is the uid/gid a written file is handed to.
type Owner struct {
	UID int
	GID int
}

// InvokingOwner returns the user that started wg-bridge. Under sudo that is
// SUDO_UID/SUDO_GID rather than root, so the store stays editable by its user.
func InvokingOwner() *Owner {
	owner := &Owner{UID: os.Getuid(), GID: os.Getgid()}
	if owner.UID < 0 {
		// Windows: no ownership to normalize.
		return nil
	}
	if uid, err := strconv.Atoi(os.Getenv("SUDO_UID")); err == nil {
		owner.UID = uid
		if gid, err := strconv.Atoi(os.Getenv("SUDO_GID")); err == nil {
			owner.GID = gid
		}
	}
	return owner
}

// Storage provides low-level file operations with security validations.
type Storage struct {
	fs    afero.Fs
	owner *Owner
}

// New creates a new Storage instance. A nil owner leaves ownership untouched.
func New(fs afero.Fs, owner *Owner) *Storage {
	return &Storage{fs: fs, owner: owner}
}

// FileSystem returns the underlying filesystem.
func (s *Storage) FileSystem() afero.Fs {
	return s.fs
}

// ValidatePathSafety checks that the path is not a symlink, preventing symlink attacks.
// It returns nil if the path doesn't exist or is a regular file/directory.
func (s *Storage) ValidatePathSafety(path string) error {
	if lstater, ok := s.fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to check path: %w", err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to operate on symlink: %s", path)
		}
	}
	// In-memory filesystems don't support symlinks anyway
	return nil
}

// WriteFileAtomic replaces path with data. The bytes go to a uniquely named
// temp file in the same directory, get their final mode and owner, and are
// then renamed over path. If any step fails the previous content of path is
// left as it was.
func (s *Storage) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := s.ValidatePathSafety(path); err != nil {
		return fmt.Errorf("validate destination: %w", err)
	}

	dir := filepath.Dir(path)
	if err := s.MkdirAll(dir); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	// Same directory as path so the rename never crosses filesystems
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+xid.New().String()+".tmp")
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	_, writeErr := f.Write(data)
	if writeErr == nil {
		writeErr = f.Sync()
	}
	closeErr := f.Close()

	if writeErr != nil || closeErr != nil {
		s.fs.Remove(tmp)
		if writeErr != nil {
			return fmt.Errorf("write temp file: %w", writeErr)
		}
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if err := s.fs.Chmod(tmp, perm); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("set permissions: %w", err)
	}
	if s.owner != nil {
		if err := s.fs.Chown(tmp, s.owner.UID, s.owner.GID); err != nil {
			s.fs.Remove(tmp)
			return fmt.Errorf("set owner: %w", err)
		}
	}

	// Atomic rename: Unix rename() atomically replaces the destination
	if err := s.fs.Rename(tmp, path); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}

	return nil
}

// CopyFile copies src to dst through WriteFileAtomic.
func (s *Storage) CopyFile(src, dst string, perm os.FileMode) error {
	if err := s.ValidatePathSafety(src); err != nil {
		return fmt.Errorf("validate source: %w", err)
	}
	data, err := afero.ReadFile(s.fs, src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	return s.WriteFileAtomic(dst, data, perm)
}

// ReadFile reads the entire file.
func (s *Storage) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

// Exists checks if a path exists.
func (s *Storage) Exists(path string) (bool, error) {
	return afero.Exists(s.fs, path)
}

// Stat returns file information.
func (s *Storage) Stat(path string) (os.FileInfo, error) {
	return s.fs.Stat(path)
}

// MkdirAll creates path and its missing parents with mode 0700. Directories
// it creates are handed to the owner.
func (s *Storage) MkdirAll(path string) error {
	var created []string
	for dir := filepath.Clean(path); ; dir = filepath.Dir(dir) {
		if _, err := s.fs.Stat(dir); err == nil {
			break
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		created = append(created, dir)
		if filepath.Dir(dir) == dir {
			break
		}
	}

	if err := s.fs.MkdirAll(path, 0o700); err != nil {
		return err
	}
	if s.owner == nil {
		return nil
	}
	for _, dir := range created {
		if err := s.fs.Chown(dir, s.owner.UID, s.owner.GID); err != nil {
			return fmt.Errorf("set owner of %s: %w", dir, err)
		}
	}
	return nil
}

// ReadDir reads directory contents.
func (s *Storage) ReadDir(path string) ([]os.FileInfo, error) {
	return afero.ReadDir(s.fs, path)
}

// Remove deletes a file.
func (s *Storage) Remove(path string) error {
	return s.fs.Remove(path)
}

// Chtimes changes file access and modification times.
func (s *Storage) Chtimes(path string, atime, mtime time.Time) error {
	return s.fs.Chtimes(path, atime, mtime)
}
