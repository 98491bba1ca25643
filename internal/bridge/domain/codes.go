package domain

import "errors"

// Error catalog keys. They double as process exit codes where noted.
const (
	CodeGeneric          = "1"
	CodeInvalidSelection = "2"
	CodeMissingStore     = "3"
	CodeExternalTool     = "4"
	CodeNoConfigurations = "5"
)

// DefaultErrorCodes is the catalog written into a freshly created store.
func DefaultErrorCodes() map[string]string {
	return map[string]string{
		CodeGeneric:          "unexpected error",
		CodeInvalidSelection: "invalid selection",
		CodeMissingStore:     "wg-bridge store not found, please reinstall or run 'wg-bridge init'",
		CodeExternalTool:     "wg-quick failed",
		CodeNoConfigurations: "no configuration files found",
	}
}

// CodeFor maps an error onto its catalog key.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrMissingStore):
		return CodeMissingStore
	case errors.Is(err, ErrExternalToolFailure):
		return CodeExternalTool
	case errors.Is(err, ErrInvalidSelection):
		return CodeInvalidSelection
	case errors.Is(err, ErrNoConfigurations):
		return CodeNoConfigurations
	default:
		return CodeGeneric
	}
}

// ExitCode is the process exit status for err. Nil maps to 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CodeFor(err) {
	case CodeMissingStore:
		return 3
	case CodeExternalTool:
		return 4
	case CodeInvalidSelection:
		return 2
	default:
		return 1
	}
}
