package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/LunaticFringers/wg-bridge/internal/bridge"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/discovery"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/domain"
	"github.com/LunaticFringers/wg-bridge/internal/config"
)

type stubPrompter struct {
	selects  []selectResponse
	prompts  []promptResponse
	confirms []confirmResponse

	selectCalls  int
	promptCalls  int
	confirmCalls int
	labels       []string
}

type selectResponse struct {
	index int
	value string
	err   error
}

type promptResponse struct {
	value string
	err   error
}

type confirmResponse struct {
	value bool
	err   error
}

var errStubNoMore = errors.New("stub prompter: no more responses")

func (s *stubPrompter) Select(label string, items []string, defaultValue string) (int, string, error) {
	s.labels = append(s.labels, label)
	if s.selectCalls >= len(s.selects) {
		return 0, "", errStubNoMore
	}
	resp := s.selects[s.selectCalls]
	s.selectCalls++
	return resp.index, resp.value, resp.err
}

func (s *stubPrompter) Prompt(label string) (string, error) {
	s.labels = append(s.labels, label)
	if s.promptCalls >= len(s.prompts) {
		return "", errStubNoMore
	}
	resp := s.prompts[s.promptCalls]
	s.promptCalls++
	return resp.value, resp.err
}

func (s *stubPrompter) Confirm(label string, defaultYes bool) (bool, error) {
	s.labels = append(s.labels, label)
	if s.confirmCalls >= len(s.confirms) {
		return false, errStubNoMore
	}
	resp := s.confirms[s.confirmCalls]
	s.confirmCalls++
	return resp.value, resp.err
}

type fakeRunner struct {
	ups    []string
	downs  []string
	err    error
	ifaces []string
}

func (f *fakeRunner) Up(ctx context.Context, path string) error {
	f.ups = append(f.ups, path)
	return f.err
}

func (f *fakeRunner) Down(ctx context.Context, path string) error {
	f.downs = append(f.downs, path)
	return f.err
}

func (f *fakeRunner) Interfaces(ctx context.Context) ([]string, error) {
	return f.ifaces, f.err
}

type testEnv struct {
	fs     afero.Fs
	mgr    *bridge.Manager
	runner *fakeRunner
	s      *session
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fs := afero.NewMemMapFs()
	runner := &fakeRunner{}
	mgr, err := bridge.NewManager(fs, config.Default("/home/test"), runner, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := mgr.Init(false); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return &testEnv{fs: fs, mgr: mgr, runner: runner, s: &session{mgr: mgr}}
}

func (e *testEnv) addConfs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := afero.WriteFile(e.fs, filepath.Join(dir, name+".conf"), []byte("[Interface]\n"), 0o600); err != nil {
			t.Fatalf("write conf: %v", err)
		}
	}
	if err := e.mgr.AddPaths([]string{dir}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
}

func withInteractive(t *testing.T, interactive bool) {
	t.Helper()
	prev := isInteractive
	isInteractive = func() bool { return interactive }
	t.Cleanup(func() { isInteractive = prev })
}

func TestListCommandOutput(t *testing.T) {
	env := newTestEnv(t)
	env.addConfs(t, "/etc/wireguard", "wg0", "office")

	buf := &bytes.Buffer{}
	cmd := newListCommand(env.s, buf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE list: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"office", "/etc/wireguard/wg0.conf", "disconnected"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output: %s", want, output)
		}
	}
}

func TestListCommandEmpty(t *testing.T) {
	env := newTestEnv(t)

	buf := &bytes.Buffer{}
	cmd := newListCommand(env.s, buf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE list: %v", err)
	}
	if !strings.Contains(buf.String(), "wg-bridge path add") {
		t.Fatalf("expected hint, got %s", buf.String())
	}
}

func TestUpCommandInteractiveAsksTokenOnce(t *testing.T) {
	withInteractive(t, true)
	env := newTestEnv(t)
	env.addConfs(t, "/etc/wireguard", "wg0", "wg1")

	prompter := &stubPrompter{
		selects:  []selectResponse{{index: 1}},
		confirms: []confirmResponse{{value: false}},
	}
	buf := &bytes.Buffer{}
	cmd := newUpCommand(env.s, prompter, buf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE up: %v", err)
	}
	if len(env.runner.ups) != 1 || env.runner.ups[0] != "/etc/wireguard/wg1.conf" {
		t.Fatalf("unexpected up calls: %v", env.runner.ups)
	}
	if !strings.Contains(buf.String(), "Connected wg1") {
		t.Fatalf("unexpected output: %s", buf.String())
	}

	// wg1 is now connected so only wg0 is offered
	prompter = &stubPrompter{
		selects:  []selectResponse{{index: 0}},
		confirms: []confirmResponse{{value: false}},
	}
	cmd = newUpCommand(env.s, prompter, buf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE up wg0: %v", err)
	}
	if prompter.confirmCalls != 1 {
		t.Fatalf("expected the 2FA question for wg0 only, got %d confirms", prompter.confirmCalls)
	}
}

func TestUpCommandTwoFactorFlow(t *testing.T) {
	env := newTestEnv(t)
	env.addConfs(t, "/etc/wireguard", "office")

	prompter := &stubPrompter{
		confirms: []confirmResponse{{value: true}, {value: true}},
		prompts:  []promptResponse{{value: "not a url"}, {value: "https://vpn.example.com/2fa"}},
	}
	buf := &bytes.Buffer{}
	cmd := newUpCommand(env.s, prompter, buf)
	if err := cmd.RunE(cmd, []string{"office"}); err != nil {
		t.Fatalf("RunE up: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Invalid URI") {
		t.Fatalf("expected URI validation message: %s", output)
	}
	if !strings.Contains(output, "https://vpn.example.com/2fa") {
		t.Fatalf("expected URI to be shown: %s", output)
	}
	records, err := env.mgr.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 || records[0].URI != "https://vpn.example.com/2fa" || !records[0].IsConnected() {
		t.Fatalf("unexpected records: %+v", records)
	}
}

func TestUpCommandTwoFactorDeclined(t *testing.T) {
	env := newTestEnv(t)
	env.addConfs(t, "/etc/wireguard", "office")

	prompter := &stubPrompter{
		confirms: []confirmResponse{{value: true}, {value: false}},
		prompts:  []promptResponse{{value: "https://vpn.example.com/2fa"}},
	}
	cmd := newUpCommand(env.s, prompter, &bytes.Buffer{})
	err := cmd.RunE(cmd, []string{"office"})

	if !errors.Is(err, ErrPromptCancelled) {
		t.Fatalf("expected ErrPromptCancelled, got %v", err)
	}
	if domain.ExitCode(err) != 2 {
		t.Fatalf("expected exit code 2, got %d", domain.ExitCode(err))
	}
	if len(env.runner.ups) != 0 {
		t.Fatalf("wg-quick should not run")
	}
}

func TestUpCommandToolFailure(t *testing.T) {
	env := newTestEnv(t)
	env.addConfs(t, "/etc/wireguard", "wg0")
	env.runner.err = &domain.ExternalToolError{Tool: "wg-quick", Verb: "up", Path: "/etc/wireguard/wg0.conf", ExitCode: 1}

	prompter := &stubPrompter{confirms: []confirmResponse{{value: false}}}
	cmd := newUpCommand(env.s, prompter, &bytes.Buffer{})
	err := cmd.RunE(cmd, []string{"/etc/wireguard/wg0.conf"})

	if domain.ExitCode(err) != 4 {
		t.Fatalf("expected exit code 4, got %d (%v)", domain.ExitCode(err), err)
	}
	connected, _ := env.mgr.Connected()
	if len(connected) != 0 {
		t.Fatalf("expected nothing connected, got %v", connected)
	}
}

func TestUpCommandNotInteractive(t *testing.T) {
	withInteractive(t, false)
	env := newTestEnv(t)
	env.addConfs(t, "/etc/wireguard", "wg0")

	cmd := newUpCommand(env.s, &stubPrompter{}, &bytes.Buffer{})
	err := cmd.RunE(cmd, nil)

	if !errors.Is(err, ErrNotInteractive) {
		t.Fatalf("expected ErrNotInteractive, got %v", err)
	}
}

func TestUpCommandNothingToConnect(t *testing.T) {
	withInteractive(t, true)
	env := newTestEnv(t)

	cmd := newUpCommand(env.s, &stubPrompter{}, &bytes.Buffer{})
	err := cmd.RunE(cmd, nil)

	if !errors.Is(err, domain.ErrNoConfigurations) {
		t.Fatalf("expected ErrNoConfigurations, got %v", err)
	}
}

func TestDownCommand(t *testing.T) {
	withInteractive(t, true)
	env := newTestEnv(t)
	env.addConfs(t, "/etc/wireguard", "wg0")
	up := newUpCommand(env.s, &stubPrompter{confirms: []confirmResponse{{value: false}}}, &bytes.Buffer{})
	if err := up.RunE(up, []string{"wg0"}); err != nil {
		t.Fatalf("RunE up: %v", err)
	}

	buf := &bytes.Buffer{}
	down := newDownCommand(env.s, &stubPrompter{selects: []selectResponse{{index: 0}}}, buf)
	if err := down.RunE(down, nil); err != nil {
		t.Fatalf("RunE down: %v", err)
	}
	if len(env.runner.downs) != 1 || env.runner.downs[0] != "/etc/wireguard/wg0.conf" {
		t.Fatalf("unexpected down calls: %v", env.runner.downs)
	}
	if !strings.Contains(buf.String(), "Disconnected wg0") {
		t.Fatalf("unexpected output: %s", buf.String())
	}

	if err := down.RunE(down, nil); !errors.Is(err, domain.ErrNoConfigurations) {
		t.Fatalf("expected ErrNoConfigurations, got %v", err)
	}
}

func TestDownCommandExplicitPathWithoutRecord(t *testing.T) {
	env := newTestEnv(t)

	cmd := newDownCommand(env.s, &stubPrompter{}, &bytes.Buffer{})
	if err := cmd.RunE(cmd, []string{"/etc/wireguard/stale.conf"}); err != nil {
		t.Fatalf("RunE down: %v", err)
	}
	if len(env.runner.downs) != 1 {
		t.Fatalf("expected wg-quick down to run")
	}
}

func TestStatusCommandLive(t *testing.T) {
	env := newTestEnv(t)
	env.addConfs(t, "/etc/wireguard", "wg0")
	up := newUpCommand(env.s, &stubPrompter{confirms: []confirmResponse{{value: false}}}, &bytes.Buffer{})
	if err := up.RunE(up, []string{"wg0"}); err != nil {
		t.Fatalf("RunE up: %v", err)
	}
	env.runner.ifaces = []string{"wg0"}

	buf := &bytes.Buffer{}
	cmd := newStatusCommand(env.s, buf)
	if err := cmd.Flags().Set("live", "true"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE status: %v", err)
	}
	output := buf.String()
	for _, want := range []string{"LIVE", "connected", "up", "no"} {
		if !strings.Contains(output, want) {
			t.Fatalf("expected %q in output: %s", want, output)
		}
	}
}

func TestStatusCommandEmpty(t *testing.T) {
	env := newTestEnv(t)

	buf := &bytes.Buffer{}
	cmd := newStatusCommand(env.s, buf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE status: %v", err)
	}
	if !strings.Contains(buf.String(), "No tracked configurations.") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func subcommand(t *testing.T, parent *cobra.Command, name string) *cobra.Command {
	t.Helper()
	cmd, _, err := parent.Find([]string{name})
	if err != nil || cmd == parent {
		t.Fatalf("subcommand %s not found: %v", name, err)
	}
	return cmd
}

func TestPathCommands(t *testing.T) {
	withInteractive(t, true)
	env := newTestEnv(t)
	buf := &bytes.Buffer{}
	prompter := &stubPrompter{selects: []selectResponse{{index: 1, value: "/opt/vpn"}}}
	path := newPathCommand(env.s, prompter, buf)

	add := subcommand(t, path, "add")
	if err := add.RunE(add, []string{"/etc/wireguard", "/opt/vpn", "~/vpn"}); err != nil {
		t.Fatalf("RunE add: %v", err)
	}

	list := subcommand(t, path, "list")
	buf.Reset()
	if err := list.RunE(list, nil); err != nil {
		t.Fatalf("RunE list: %v", err)
	}
	want := "1) /etc/wireguard\n2) /opt/vpn\n3) /home/test/vpn\n"
	if buf.String() != want {
		t.Fatalf("unexpected list output:\n%s", buf.String())
	}

	del := subcommand(t, path, "delete")
	buf.Reset()
	if err := del.RunE(del, nil); err != nil {
		t.Fatalf("RunE delete: %v", err)
	}
	if !strings.Contains(buf.String(), "Removed search path /opt/vpn") {
		t.Fatalf("unexpected delete output: %s", buf.String())
	}

	if err := del.RunE(del, []string{"3"}); !errors.Is(err, domain.ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
	paths, err := env.mgr.ListPaths()
	if err != nil {
		t.Fatalf("ListPaths: %v", err)
	}
	if len(paths) != 2 || paths[0] != "/etc/wireguard" || paths[1] != "/home/test/vpn" {
		t.Fatalf("unexpected paths: %v", paths)
	}
}

func TestPathAddRejectsRelative(t *testing.T) {
	env := newTestEnv(t)
	add := subcommand(t, newPathCommand(env.s, &stubPrompter{}, &bytes.Buffer{}), "add")

	err := add.RunE(add, []string{"/ok", "relative/dir"})

	if !errors.Is(err, domain.ErrPathNotAbsolute) {
		t.Fatalf("expected ErrPathNotAbsolute, got %v", err)
	}
	paths, _ := env.mgr.ListPaths()
	if len(paths) != 0 {
		t.Fatalf("nothing should be written, got %v", paths)
	}
}

func TestPathDeleteEmpty(t *testing.T) {
	env := newTestEnv(t)
	del := subcommand(t, newPathCommand(env.s, &stubPrompter{}, &bytes.Buffer{}), "delete")

	if err := del.RunE(del, nil); !errors.Is(err, domain.ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
}

func TestTokenResetCommand(t *testing.T) {
	env := newTestEnv(t)
	env.addConfs(t, "/etc/wireguard", "wg0")
	up := newUpCommand(env.s, &stubPrompter{confirms: []confirmResponse{{value: false}}}, &bytes.Buffer{})
	if err := up.RunE(up, []string{"wg0"}); err != nil {
		t.Fatalf("RunE up: %v", err)
	}

	buf := &bytes.Buffer{}
	reset := subcommand(t, newTokenCommand(env.s, buf), "reset")
	if err := reset.RunE(reset, []string{"wg0"}); err != nil {
		t.Fatalf("RunE reset: %v", err)
	}
	if !strings.Contains(buf.String(), "2FA answer for wg0 cleared") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	records, _ := env.mgr.Records()
	if records[0].Token != nil {
		t.Fatalf("expected token to be cleared: %+v", records[0])
	}

	buf.Reset()
	if err := reset.RunE(reset, []string{"/etc/wireguard/other.conf"}); err != nil {
		t.Fatalf("RunE reset unknown: %v", err)
	}
	if !strings.Contains(buf.String(), "nothing to reset") {
		t.Fatalf("expected warning, got %s", buf.String())
	}
}

func TestPruneCommandInteractiveCancel(t *testing.T) {
	withInteractive(t, true)
	env := newTestEnv(t)
	prompter := &stubPrompter{selects: []selectResponse{{value: cancelLabel}}}
	buf := &bytes.Buffer{}
	cmd := newPruneCommand(env.s, prompter, buf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE prune: %v", err)
	}
	if !strings.Contains(buf.String(), "Prune cancelled.") {
		t.Fatalf("expected cancel message")
	}
}

func TestPruneCommandNonInteractive(t *testing.T) {
	env := newTestEnv(t)
	if err := env.mgr.AddPaths([]string{"/etc/wireguard"}); err != nil {
		t.Fatalf("AddPaths: %v", err)
	}
	old := time.Now().Add(-2 * time.Hour)
	entries, err := afero.ReadDir(env.fs, env.mgr.SnapshotDir())
	if err != nil || len(entries) == 0 {
		t.Fatalf("expected snapshots: %v", err)
	}
	for _, e := range entries {
		if err := env.fs.Chtimes(filepath.Join(env.mgr.SnapshotDir(), e.Name()), old, old); err != nil {
			t.Fatalf("Chtimes: %v", err)
		}
	}

	buf := &bytes.Buffer{}
	cmd := newPruneCommand(env.s, &stubPrompter{}, buf)
	cmd.Flags().Set("older-than", "1h")
	cmd.Flags().Set("force", "true")
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("prune non-interactive: %v", err)
	}
	if !strings.Contains(buf.String(), "Deleted 1 snapshot(s)") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestPruneCommandNeedsForceWithoutTerminal(t *testing.T) {
	withInteractive(t, false)
	env := newTestEnv(t)
	cmd := newPruneCommand(env.s, &stubPrompter{}, &bytes.Buffer{})

	if err := cmd.RunE(cmd, nil); !errors.Is(err, ErrNotInteractive) {
		t.Fatalf("expected ErrNotInteractive, got %v", err)
	}
}

func TestConfigCommand(t *testing.T) {
	env := newTestEnv(t)
	buf := &bytes.Buffer{}
	cmd := newConfigCommand(env.s, buf)
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("RunE config: %v", err)
	}
	if !strings.Contains(buf.String(), "user_conf: /home/test/.config/wg-bridge/wgbc.json") {
		t.Fatalf("unexpected output: %s", buf.String())
	}
}

func TestInitCommandExisting(t *testing.T) {
	env := newTestEnv(t)
	cmd := newInitCommand(env.s, &bytes.Buffer{})

	err := cmd.RunE(cmd, nil)
	if !errors.Is(err, domain.ErrStoreExists) || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected ErrStoreExists with hint, got %v", err)
	}

	cmd.Flags().Set("force", "true")
	if err := cmd.RunE(cmd, nil); err != nil {
		t.Fatalf("forced init: %v", err)
	}
}

func TestRunMapsErrorsToExitCodes(t *testing.T) {
	fs := afero.NewMemMapFs()
	load := func(opts GlobalOptions) (*bridge.Manager, error) {
		return bridge.NewManager(fs, config.Default("/home/test"), &fakeRunner{}, nil)
	}

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"path", "list"}, load, &stubPrompter{}, &stdout, &stderr)
	if code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Error: ") || !strings.Contains(stderr.String(), "wg-bridge init") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}

	stderr.Reset()
	if code := Run(context.Background(), []string{"init"}, load, &stubPrompter{}, &stdout, &stderr); code != 0 {
		t.Fatalf("init failed with %d: %s", code, stderr.String())
	}
	if code := Run(context.Background(), []string{"path", "delete", "7"}, load, &stubPrompter{}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}

func TestRunPassesGlobalOptions(t *testing.T) {
	var got GlobalOptions
	load := func(opts GlobalOptions) (*bridge.Manager, error) {
		got = opts
		return nil, errors.New("boom")
	}

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"--config", "/tmp/app.yaml", "-v", "status"}, load, &stubPrompter{}, &stdout, &stderr)

	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if got.ConfigFile != "/tmp/app.yaml" || !got.Verbose {
		t.Fatalf("unexpected options: %+v", got)
	}
	if !strings.Contains(stderr.String(), "boom") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}

func TestResolveTarget(t *testing.T) {
	known := []discovery.Config{{Name: "wg0", Path: "/etc/wireguard/wg0.conf"}}

	got, err := resolveTarget("wg0", known)
	if err != nil || got.Path != "/etc/wireguard/wg0.conf" {
		t.Fatalf("resolve by name: %v %v", got, err)
	}
	got, err = resolveTarget("/opt/vpn/home.conf", known)
	if err != nil || got.Name != "home" {
		t.Fatalf("resolve by path: %v %v", got, err)
	}
	if _, err := resolveTarget("nope", known); !errors.Is(err, domain.ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection, got %v", err)
	}
	if _, err := resolveTarget("  ", known); !errors.Is(err, domain.ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection for blank, got %v", err)
	}
}

func TestParseHumanDuration(t *testing.T) {
	dur, err := parseHumanDuration("30d")
	if err != nil {
		t.Fatalf("parse 30d: %v", err)
	}
	if dur != 30*24*time.Hour {
		t.Fatalf("unexpected duration: %v", dur)
	}
	if dur, err := parseHumanDuration("12h"); err != nil || dur != 12*time.Hour {
		t.Fatalf("parse 12h: %v %v", dur, err)
	}
}

func TestParseHumanDurationInvalid(t *testing.T) {
	for _, in := range []string{"", "5x", "-1h", "0d", "abcd"} {
		if _, err := parseHumanDuration(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestReorderWithDefault(t *testing.T) {
	items := []string{"a", "b", "c"}
	reordered := reorderWithDefault(items, "b")
	if reordered[0] != "b" || len(reordered) != 3 {
		t.Fatalf("expected b first, got %v", reordered)
	}
	if reorderWithDefault(items, "")[0] != "a" {
		t.Fatalf("expected original order when default empty")
	}
	if reorderWithDefault(items, "z")[0] != "a" {
		t.Fatalf("expected original order when default missing")
	}
}

func TestFormatAge(t *testing.T) {
	if got := formatAge(30 * 24 * time.Hour); got != "30d" {
		t.Fatalf("unexpected: %s", got)
	}
	if got := formatAge(90 * time.Minute); got != "1h30m0s" {
		t.Fatalf("unexpected: %s", got)
	}
}
