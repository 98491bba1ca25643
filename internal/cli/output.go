package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"golang.org/x/term"

	"github.com/LunaticFringers/wg-bridge/internal/config"
)

var (
	errorColor     = color.New(color.FgRed, color.Bold)
	warnColor      = color.New(color.FgYellow, color.Bold)
	successColor   = color.New(color.FgGreen, color.Bold)
	highlightColor = color.New(color.FgCyan)
)

// isTerminal is swapped in tests.
var isTerminal = func(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// isInteractive reports whether prompts can be shown.
var isInteractive = func() bool {
	return isTerminal(os.Stdin.Fd())
}

// configureColor applies the colour mode to fatih/color and pterm. In auto
// mode colour is on only when out is a terminal.
func configureColor(mode string, out io.Writer) {
	enabled := false
	switch mode {
	case config.ColorAlways:
		enabled = true
	case config.ColorNever:
		enabled = false
	default:
		if f, ok := out.(*os.File); ok {
			enabled = isTerminal(f.Fd())
		}
	}
	color.NoColor = !enabled
	if enabled {
		pterm.EnableStyling()
	} else {
		pterm.DisableStyling()
	}
}

func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	warnColor.Fprint(w, "! ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printError(w io.Writer, msg string) {
	errorColor.Fprint(w, "Error: ")
	fmt.Fprintln(w, msg)
}

// renderTable writes rows under headers as a pterm table.
func renderTable(w io.Writer, headers []string, rows [][]string) error {
	data := make([][]string, 0, len(rows)+1)
	data = append(data, headers)
	data = append(data, rows...)
	out, err := pterm.DefaultTable.
		WithHasHeader(true).
		WithHeaderStyle(pterm.NewStyle(pterm.FgCyan, pterm.Bold)).
		WithData(data).
		Srender()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
