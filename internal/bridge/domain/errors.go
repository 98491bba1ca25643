package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Exported error variables allow callers to use errors.Is() for error checking.
var (
	ErrMissingStore        = errors.New("wg-bridge store not found")
	ErrStoreExists         = errors.New("wg-bridge store already exists")
	ErrUnknownErrorCode    = errors.New("unknown error code")
	ErrInvalidSelection    = errors.New("invalid selection")
	ErrExternalToolFailure = errors.New("external tool failed")
	ErrNoConfigurations    = errors.New("no configuration files found")

	ErrPathEmpty        = errors.New("path cannot be empty")
	ErrPathNotAbsolute  = errors.New("path must be absolute")
	ErrPathNullByte     = errors.New("path contains null byte")
	ErrPathNonPrintable = errors.New("path contains non-printable characters")
)

// ExternalToolError describes a non-zero exit from wg-quick or wg.
type ExternalToolError struct {
	Tool     string
	Verb     string
	Path     string
	ExitCode int
	Stderr   string
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s %s %s exited with status %d", e.Tool, e.Verb, e.Path, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// Is lets errors.Is(err, ErrExternalToolFailure) match any ExternalToolError.
func (e *ExternalToolError) Is(target error) bool {
	return target == ErrExternalToolFailure
}
