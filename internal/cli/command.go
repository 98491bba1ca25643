package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/LunaticFringers/wg-bridge/internal/bridge"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/discovery"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/domain"
	"github.com/LunaticFringers/wg-bridge/internal/config"
)

// GlobalOptions holds the persistent flags of the root command.
type GlobalOptions struct {
	ConfigFile string
	Verbose    bool
}

// ManagerLoader builds the manager once the global flags are parsed.
type ManagerLoader func(opts GlobalOptions) (*bridge.Manager, error)

type session struct {
	load ManagerLoader
	opts GlobalOptions
	mgr  *bridge.Manager
}

// NewRootCommand constructs the root Cobra command for wg-bridge.
func NewRootCommand(load ManagerLoader, prompter Prompter, stdout, stderr io.Writer) *cobra.Command {
	return newRootCommand(&session{load: load}, prompter, stdout, stderr)
}

// Run executes args and returns the process exit status. Failures are
// printed to stderr with the catalog message when the store provides one.
func Run(ctx context.Context, args []string, load ManagerLoader, prompter Prompter, stdout, stderr io.Writer) int {
	s := &session{load: load}
	root := newRootCommand(s, prompter, stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	msg := err.Error()
	if s.mgr != nil {
		msg = s.mgr.MessageFor(err)
	}
	printError(stderr, msg)
	return domain.ExitCode(err)
}

func newRootCommand(s *session, prompter Prompter, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "wg-bridge",
		Short:         "WireGuard connection manager",
		Long:          "wg-bridge connects and disconnects WireGuard configurations through wg-quick and remembers which ones are up.",
		Version:       config.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := s.load(s.opts)
			if err != nil {
				return err
			}
			s.mgr = mgr
			configureColor(mgr.Config().Color, stdout)
			return nil
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().StringVar(&s.opts.ConfigFile, "config", "", "Path to app.yaml")
	cmd.PersistentFlags().BoolVarP(&s.opts.Verbose, "verbose", "v", false, "Log at debug level and mirror logs to stderr")

	cmd.AddCommand(newInitCommand(s, stdout))
	cmd.AddCommand(newUpCommand(s, prompter, stdout))
	cmd.AddCommand(newDownCommand(s, prompter, stdout))
	cmd.AddCommand(newStatusCommand(s, stdout))
	cmd.AddCommand(newListCommand(s, stdout))
	cmd.AddCommand(newPathCommand(s, prompter, stdout))
	cmd.AddCommand(newTokenCommand(s, stdout))
	cmd.AddCommand(newSnapshotsCommand(s, prompter, stdout))
	cmd.AddCommand(newConfigCommand(s, stdout))

	return cmd
}

func newInitCommand(s *session, stdout io.Writer) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the store from the template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.mgr.Init(force); err != nil {
				if errors.Is(err, domain.ErrStoreExists) {
					return fmt.Errorf("%w (use --force to overwrite)", err)
				}
				return err
			}
			printSuccess(stdout, "Initialized store at %s", s.mgr.StorePath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing store")
	return cmd
}

func newUpCommand(s *session, prompter Prompter, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "up [config]",
		Short: "Connect a WireGuard configuration",
		Long:  "Connect a configuration by name or path. Without an argument, pick one of the disconnected configurations found under the search paths.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target discovery.Config
			if len(args) == 1 {
				known, err := s.mgr.Discover()
				if err != nil {
					return err
				}
				if target, err = resolveTarget(args[0], known); err != nil {
					return err
				}
			} else {
				candidates, err := s.mgr.Connectable()
				if err != nil {
					return err
				}
				if target, err = pick(prompter, "Select a configuration to connect", candidates); err != nil {
					return err
				}
			}

			if err := s.mgr.Connect(commandContext(cmd), target.Path, newOperator(prompter, stdout)); err != nil {
				return err
			}
			printSuccess(stdout, "Connected %s", target.Name)
			return nil
		},
	}
}

func newDownCommand(s *session, prompter Prompter, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "down [config]",
		Short: "Disconnect a WireGuard configuration",
		Long:  "Disconnect a configuration by name or path. Without an argument, pick one of the connected configurations.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			connected, err := s.mgr.Connected()
			if err != nil && !(len(args) == 1 && errors.Is(err, domain.ErrNoConfigurations)) {
				return err
			}

			var target discovery.Config
			if len(args) == 1 {
				target, err = resolveTarget(args[0], connected)
			} else {
				target, err = pick(prompter, "Select a configuration to disconnect", connected)
			}
			if err != nil {
				return err
			}

			if err := s.mgr.Disconnect(commandContext(cmd), target.Path); err != nil {
				return err
			}
			printSuccess(stdout, "Disconnected %s", target.Name)
			return nil
		},
	}
}

func newStatusCommand(s *session, stdout io.Writer) *cobra.Command {
	var live bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show tracked configurations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := s.mgr.Records()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(stdout, "No tracked configurations.")
				return nil
			}

			var up map[string]bool
			headers := []string{"NAME", "PATH", "STATE", "2FA"}
			if live {
				ifaces, err := s.mgr.LiveInterfaces(commandContext(cmd))
				if err != nil {
					return err
				}
				up = make(map[string]bool, len(ifaces))
				for _, name := range ifaces {
					up[name] = true
				}
				headers = append(headers, "LIVE")
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				name := discovery.NameOf(rec.Path)
				row := []string{name, rec.Path, connectionState(rec.IsConnected()), tokenState(rec.Token, rec.URI)}
				if live {
					row = append(row, liveState(up[name]))
				}
				rows = append(rows, row)
			}
			return renderTable(stdout, headers, rows)
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "Also ask wg which interfaces are up")
	return cmd
}

func newListCommand(s *session, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configuration files under the search paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := s.mgr.Discover()
			if err != nil {
				return err
			}
			if len(configs) == 0 {
				fmt.Fprintln(stdout, "No configuration files found. Add a search path with 'wg-bridge path add <dir>'.")
				return nil
			}
			records, err := s.mgr.Records()
			if err != nil {
				return err
			}
			connected := make(map[string]bool, len(records))
			for _, rec := range records {
				connected[rec.Path] = rec.IsConnected()
			}

			rows := make([][]string, 0, len(configs))
			for _, c := range configs {
				rows = append(rows, []string{c.Name, c.Path, connectionState(connected[c.Path])})
			}
			return renderTable(stdout, []string{"NAME", "PATH", "STATE"}, rows)
		},
	}
}

func newPathCommand(s *session, prompter Prompter, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Manage the directories searched for configuration files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <dir>...",
		Short: "Add search directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := s.mgr.AddPaths(args); err != nil {
				return err
			}
			printSuccess(stdout, "Added %d search path(s)", len(args))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List search directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := s.mgr.ListPaths()
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				fmt.Fprintln(stdout, "No search paths registered.")
				return nil
			}
			for i, p := range paths {
				fmt.Fprintf(stdout, "%d) %s\n", i+1, p)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [index]",
		Short: "Delete a search directory by its position in 'path list'",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index := ""
			if len(args) == 1 {
				index = args[0]
			} else {
				paths, err := s.mgr.ListPaths()
				if err != nil {
					return err
				}
				if len(paths) == 0 {
					return fmt.Errorf("%w: no search paths registered", domain.ErrInvalidSelection)
				}
				if !isInteractive() {
					return ErrNotInteractive
				}
				idx, _, err := prompter.Select("Select a search path to delete", paths, "")
				if err != nil {
					return err
				}
				index = strconv.Itoa(idx + 1)
			}

			removed, err := s.mgr.DeletePath(index)
			if err != nil {
				return err
			}
			printSuccess(stdout, "Removed search path %s", removed)
			return nil
		},
	})

	return cmd
}

func newTokenCommand(s *session, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage remembered 2FA answers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <config>",
		Short: "Forget the 2FA answer so the next 'up' asks again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := s.mgr.Records()
			if err != nil {
				return err
			}
			known := make([]discovery.Config, len(records))
			for i, rec := range records {
				known[i] = discovery.Config{Name: discovery.NameOf(rec.Path), Path: rec.Path}
			}
			target, err := resolveTarget(args[0], known)
			if err != nil {
				return err
			}

			found, err := s.mgr.ResetToken(target.Path)
			if err != nil {
				return err
			}
			if !found {
				printWarning(stdout, "No record for %s, nothing to reset", target.Path)
				return nil
			}
			printSuccess(stdout, "2FA answer for %s cleared", target.Name)
			return nil
		},
	})
	return cmd
}

func newSnapshotsCommand(s *session, prompter Prompter, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Manage store snapshots",
	}
	cmd.AddCommand(newPruneCommand(s, prompter, stdout))
	return cmd
}

const cancelLabel = "Cancel"

func newPruneCommand(s *session, prompter Prompter, stdout io.Writer) *cobra.Command {
	var olderThanStr string
	var force bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove store snapshots older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			retention := s.mgr.Config().SnapshotRetention

			choice := olderThanStr
			if choice == "" {
				if !isInteractive() {
					choice = retention
				} else {
					options := reorderWithDefault([]string{"30d", "90d", "180d"}, retention)
					if options[0] != retention {
						options = append([]string{retention}, options...)
					}
					options = append(options, cancelLabel)
					_, selected, err := prompter.Select("Prune snapshots older than", options, retention)
					if err != nil {
						return err
					}
					if selected == cancelLabel {
						fmt.Fprintln(stdout, "Prune cancelled.")
						return nil
					}
					choice = selected
				}
			}

			duration, err := parseHumanDuration(choice)
			if err != nil {
				return err
			}

			if !force {
				if !isInteractive() {
					return ErrNotInteractive
				}
				confirm, err := prompter.Confirm(fmt.Sprintf("Delete snapshots in %s older than %s", s.mgr.SnapshotDir(), formatAge(duration)), false)
				if err != nil {
					return err
				}
				if !confirm {
					fmt.Fprintln(stdout, "Prune cancelled.")
					return nil
				}
			}

			count, err := s.mgr.PruneSnapshots(duration)
			if err != nil {
				return err
			}
			printSuccess(stdout, "Deleted %d snapshot(s)", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&olderThanStr, "older-than", "", "Delete snapshots older than this age (e.g. 30d, 12h)")
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")
	return cmd
}

func newConfigCommand(s *session, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := s.mgr.Config()
			out, err := cfg.YAML()
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			if cfg.File != "" {
				fmt.Fprintf(stdout, "# %s\n", cfg.File)
			}
			_, err = stdout.Write(out)
			return err
		},
	}
}

// resolveTarget maps a command-line argument onto a configuration: a known
// name or path first, then anything that looks like a file path.
func resolveTarget(arg string, known []discovery.Config) (discovery.Config, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return discovery.Config{}, fmt.Errorf("%w: empty configuration name", domain.ErrInvalidSelection)
	}
	for _, c := range known {
		if c.Name == arg || c.Path == arg {
			return c, nil
		}
	}
	if strings.ContainsRune(arg, filepath.Separator) || strings.HasSuffix(arg, discovery.ConfExt) {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return discovery.Config{}, fmt.Errorf("failed to resolve %s: %w", arg, err)
		}
		return discovery.Config{Name: discovery.NameOf(abs), Path: abs}, nil
	}
	return discovery.Config{}, fmt.Errorf("%w: unknown configuration %q", domain.ErrInvalidSelection, arg)
}

func pick(prompter Prompter, label string, configs []discovery.Config) (discovery.Config, error) {
	if !isInteractive() {
		return discovery.Config{}, ErrNotInteractive
	}
	items := make([]string, len(configs))
	for i, c := range configs {
		items[i] = fmt.Sprintf("%s (%s)", c.Name, c.Path)
	}
	idx, _, err := prompter.Select(label, items, "")
	if err != nil {
		return discovery.Config{}, err
	}
	if idx < 0 || idx >= len(configs) {
		return discovery.Config{}, fmt.Errorf("%w: %d", domain.ErrInvalidSelection, idx+1)
	}
	return configs[idx], nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func connectionState(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}

func tokenState(token *bool, uri string) string {
	switch {
	case token == nil:
		return "unknown"
	case *token:
		return uri
	default:
		return "no"
	}
}

func liveState(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

func formatAge(d time.Duration) string {
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", int(d/(24*time.Hour)))
	}
	return d.String()
}

// reorderWithDefault moves the default value to the front of the list.
// If defaultValue is empty or not found, or already first, returns items unchanged.
func reorderWithDefault(items []string, defaultValue string) []string {
	if defaultValue == "" {
		return items
	}

	idx := -1
	for i, item := range items {
		if item == defaultValue {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return items
	}

	reordered := make([]string, 0, len(items))
	reordered = append(reordered, defaultValue)
	reordered = append(reordered, items[:idx]...)
	reordered = append(reordered, items[idx+1:]...)
	return reordered
}
