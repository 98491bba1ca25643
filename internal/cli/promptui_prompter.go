package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
)

// menuSize is the number of configurations visible at once in a picker.
const menuSize = 10

// PromptUI implements Prompter on top of promptui.
type PromptUI struct {
	stdin  io.ReadCloser
	stdout io.WriteCloser
}

// NewPromptUI reads answers from stdin and draws prompts on stdout. Nil
// streams fall back to the process's own.
func NewPromptUI(stdin io.Reader, stdout io.Writer) *PromptUI {
	pu := &PromptUI{stdin: os.Stdin, stdout: os.Stdout}
	if stdin != nil {
		pu.stdin = toReadCloser(stdin)
	}
	if stdout != nil {
		pu.stdout = toWriteCloser(stdout)
	}
	return pu
}

// Select shows items in a scrolling menu. Typing "/" filters the entries by
// a case-insensitive substring, which helps once many tunnels are registered.
func (p *PromptUI) Select(label string, items []string, defaultValue string) (int, string, error) {
	cursor := 0
	for i, item := range items {
		if defaultValue != "" && item == defaultValue {
			cursor = i
			break
		}
	}

	size := menuSize
	if len(items) < size {
		size = len(items)
	}
	menu := promptui.Select{
		Label:     label,
		Items:     items,
		Size:      size,
		HideHelp:  true,
		CursorPos: cursor,
		Searcher:  itemSearcher(items),
		Stdin:     p.stdin,
		Stdout:    p.stdout,
	}

	idx, value, err := menu.Run()
	if err != nil {
		return idx, value, cancelled(err)
	}
	return idx, value, nil
}

// Prompt asks for one line of text; surrounding whitespace is dropped.
func (p *PromptUI) Prompt(label string) (string, error) {
	prompt := promptui.Prompt{
		Label:  label,
		Stdin:  p.stdin,
		Stdout: p.stdout,
	}
	value, err := prompt.Run()
	if err != nil {
		return "", cancelled(err)
	}
	return strings.TrimSpace(value), nil
}

func (p *PromptUI) Confirm(label string, defaultYes bool) (bool, error) {
	def := "N"
	if defaultYes {
		def = "Y"
	}
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Default:   def,
		Stdin:     p.stdin,
		Stdout:    p.stdout,
	}
	answer, err := prompt.Run()
	switch {
	case errors.Is(err, promptui.ErrAbort):
		// promptui reports a "no" answer as ErrAbort
		return false, nil
	case err != nil:
		return false, cancelled(err)
	}
	return strings.EqualFold(answer, "y") || (answer == "" && defaultYes), nil
}

// itemSearcher matches the typed filter anywhere in an item, ignoring case.
func itemSearcher(items []string) func(input string, index int) bool {
	return func(input string, index int) bool {
		if index < 0 || index >= len(items) {
			return false
		}
		return strings.Contains(strings.ToLower(items[index]), strings.ToLower(strings.TrimSpace(input)))
	}
}

// cancelled maps Ctrl-C, EOF and any other prompt failure to ErrPromptCancelled.
func cancelled(err error) error {
	return fmt.Errorf("%w: %v", ErrPromptCancelled, err)
}

func toReadCloser(r io.Reader) io.ReadCloser {
	if rc, ok := r.(io.ReadCloser); ok {
		return rc
	}
	return io.NopCloser(r)
}

func toWriteCloser(w io.Writer) io.WriteCloser {
	if wc, ok := w.(io.WriteCloser); ok {
		return wc
	}
	return nopWriteCloser{Writer: w}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
