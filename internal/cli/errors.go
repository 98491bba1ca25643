package cli

import (
	"fmt"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/domain"
)

// ErrPromptCancelled indicates that the user aborted an interactive prompt.
// It counts as an invalid selection for exit status purposes.
var ErrPromptCancelled = fmt.Errorf("prompt cancelled: %w", domain.ErrInvalidSelection)

// ErrNotInteractive is returned when a command needs to ask something but
// stdin is not a terminal.
var ErrNotInteractive = fmt.Errorf("stdin is not a terminal, pass the value as an argument: %w", domain.ErrInvalidSelection)
