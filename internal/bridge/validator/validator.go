package validator

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/domain"
)

// Validator validates search directory paths before they enter the registry.
type Validator struct {
	homeDir string
}

// New creates a new Validator. homeDir is used to expand a leading "~".
func New(homeDir string) *Validator {
	return &Validator{homeDir: homeDir}
}

// ValidatePath validates a search directory path.
//
// The function checks for:
//   - Empty names or whitespace-only paths
//   - Null bytes
//   - Control characters
//   - Relative paths (after "~" expansion)
//
// Returns (true, nil) if valid, or (false, error) with a descriptive error.
func (v *Validator) ValidatePath(path string) (bool, error) {
	trimmed := strings.TrimSpace(path)
	if len(trimmed) == 0 {
		return false, domain.ErrPathEmpty
	}
	if strings.ContainsRune(trimmed, 0) {
		return false, domain.ErrPathNullByte
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return false, domain.ErrPathNonPrintable
		}
	}
	if !filepath.IsAbs(v.expandHome(trimmed)) {
		return false, domain.ErrPathNotAbsolute
	}
	return true, nil
}

// NormalizePath trims, expands "~" and cleans the path, then validates it.
func (v *Validator) NormalizePath(path string) (string, error) {
	if ok, err := v.ValidatePath(path); !ok {
		return "", err
	}
	return filepath.Clean(v.expandHome(strings.TrimSpace(path))), nil
}

func (v *Validator) expandHome(path string) string {
	if v.homeDir == "" {
		return path
	}
	if path == "~" {
		return v.homeDir
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(v.homeDir, path[2:])
	}
	return path
}
