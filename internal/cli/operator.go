package cli

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/discovery"
)

// operator turns Prompter into the questions asked while connecting.
type operator struct {
	prompter Prompter
	stdout   io.Writer
}

func newOperator(prompter Prompter, stdout io.Writer) *operator {
	return &operator{prompter: prompter, stdout: stdout}
}

// PromptToken asks whether the configuration needs a 2FA step and, if so,
// keeps asking until a usable URI is entered.
func (o *operator) PromptToken(path string) (bool, string, error) {
	name := discovery.NameOf(path)
	required, err := o.prompter.Confirm(fmt.Sprintf("Does %s require 2FA (asked once)", name), false)
	if err != nil {
		return false, "", err
	}
	if !required {
		return false, "", nil
	}
	for {
		uri, err := o.prompter.Prompt(fmt.Sprintf("2FA URI for %s", name))
		if err != nil {
			return false, "", err
		}
		uri = strings.TrimSpace(uri)
		if err := validateURI(uri); err != nil {
			warnColor.Fprintf(o.stdout, "Invalid URI: %v\n", err)
			continue
		}
		return true, uri, nil
	}
}

// ConfirmTwoFactor shows the URI and waits for the operator to confirm the
// 2FA step was completed.
func (o *operator) ConfirmTwoFactor(path, uri string) error {
	fmt.Fprintf(o.stdout, "Complete 2FA for %s at: %s\n", discovery.NameOf(path), highlightColor.Sprint(uri))
	done, err := o.prompter.Confirm("2FA completed", true)
	if err != nil {
		return err
	}
	if !done {
		return ErrPromptCancelled
	}
	return nil
}

func validateURI(uri string) error {
	if uri == "" {
		return fmt.Errorf("cannot be empty")
	}
	parsed, err := url.Parse(uri)
	if err != nil {
		return err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", uri)
	}
	return nil
}
