package cli

// Prompter asks the operator for input. Select returns the chosen index and
// value; every method returns ErrPromptCancelled when the operator aborts.
type Prompter interface {
	Select(label string, items []string, defaultValue string) (int, string, error)
	Prompt(label string) (string, error)
	Confirm(label string, defaultYes bool) (bool, error)
}
