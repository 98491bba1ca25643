package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/backup"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/discovery"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/domain"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/registry"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/state"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/storage"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/store"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/validator"
	"github.com/LunaticFringers/wg-bridge/internal/bridge/wgquick"
	"github.com/LunaticFringers/wg-bridge/internal/config"
)

// Runner brings WireGuard interfaces up and down.
type Runner interface {
	Up(ctx context.Context, path string) error
	Down(ctx context.Context, path string) error
	Interfaces(ctx context.Context) ([]string, error)
}

// ConnectPrompter is what Connect needs from the operator: the one-time 2FA
// question and, when 2FA applies, confirmation that it was completed.
type ConnectPrompter interface {
	state.TokenPrompter
	ConfirmTwoFactor(path, uri string) error
}

// Manager is the entry point used by the command layer.
type Manager struct {
	cfg       *config.Config
	store     *store.Store
	snapshots *backup.Service
	registry  *registry.Registry
	tracker   *state.Tracker
	finder    *discovery.Finder
	runner    Runner
	logger    *slog.Logger
}

// NewManager wires the store and its services on fs. A nil runner runs the
// real wg-quick configured in cfg.
func NewManager(fs afero.Fs, cfg *config.Config, runner Runner, logger *slog.Logger) (*Manager, error) {
	if fs == nil {
		return nil, errors.New("filesystem cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.UserConf == "" {
		return nil, errors.New("store path cannot be empty")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if runner == nil {
		runner = wgquick.New(wgquick.Options{
			WgQuick: cfg.WgQuick,
			Wg:      cfg.Wg,
			UseSudo: cfg.UseSudo,
		}, logger)
	}

	st := storage.New(fs, storage.InvokingOwner())
	snapshots := backup.New(st, cfg.SnapshotDir, logger)
	docs := store.New(st, cfg.UserConf, snapshots, logger)

	return &Manager{
		cfg:       cfg,
		store:     docs,
		snapshots: snapshots,
		registry:  registry.New(docs, validator.New(cfg.HomeDir), logger),
		tracker:   state.New(docs, logger),
		finder:    discovery.New(fs, logger),
		runner:    runner,
		logger:    logger,
	}, nil
}

// Config returns the configuration the manager was built with.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// StorePath returns the location of the Document.
func (m *Manager) StorePath() string {
	return m.store.Path()
}

// Init writes the Document template.
func (m *Manager) Init(force bool) error {
	return m.store.Init(force)
}

// AddPaths registers search directories.
func (m *Manager) AddPaths(paths []string) error {
	return m.registry.AddPaths(paths)
}

// ListPaths returns the registered search directories.
func (m *Manager) ListPaths() ([]string, error) {
	return m.registry.ListPaths()
}

// DeletePath removes the search directory at the 1-based index.
func (m *Manager) DeletePath(index string) (string, error) {
	return m.registry.DeletePath(index)
}

// Discover returns every configuration file under the search directories.
func (m *Manager) Discover() ([]discovery.Config, error) {
	dirs, err := m.registry.ListPaths()
	if err != nil {
		return nil, err
	}
	return m.finder.Find(dirs), nil
}

// Connectable returns discovered configurations not recorded as connected.
func (m *Manager) Connectable() ([]discovery.Config, error) {
	configs, err := m.Discover()
	if err != nil {
		return nil, err
	}
	connected, err := m.tracker.PathsByConnectedStatus(true)
	if err != nil {
		return nil, err
	}
	up := make(map[string]struct{}, len(connected))
	for _, p := range connected {
		up[p] = struct{}{}
	}
	out := discovery.Filter(configs, func(path string) bool {
		_, ok := up[path]
		return !ok
	})
	if len(out) == 0 {
		return nil, domain.ErrNoConfigurations
	}
	return out, nil
}

// Connected returns the configurations recorded as connected, whether or not
// they are still under a search directory.
func (m *Manager) Connected() ([]discovery.Config, error) {
	paths, err := m.tracker.PathsByConnectedStatus(true)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, domain.ErrNoConfigurations
	}
	out := make([]discovery.Config, len(paths))
	for i, p := range paths {
		out[i] = discovery.Config{Name: discovery.NameOf(p), Path: p}
	}
	return out, nil
}

// Connect brings path up. The 2FA answer is asked once per path and then
// reused; when 2FA applies the operator must confirm it before wg-quick runs.
// The connection is only recorded when wg-quick succeeds.
func (m *Manager) Connect(ctx context.Context, path string, prompter ConnectPrompter) error {
	required, uri, err := m.tracker.ResolveToken(path, prompter)
	if err != nil {
		return err
	}
	if required {
		if err := prompter.ConfirmTwoFactor(path, uri); err != nil {
			return err
		}
	}
	if err := m.runner.Up(ctx, path); err != nil {
		return fmt.Errorf("failed to connect %s: %w", path, err)
	}
	return m.tracker.SetConnectedStatus(path, true)
}

// Disconnect tears path down and records it as disconnected on success.
func (m *Manager) Disconnect(ctx context.Context, path string) error {
	if err := m.runner.Down(ctx, path); err != nil {
		return fmt.Errorf("failed to disconnect %s: %w", path, err)
	}
	return m.tracker.SetConnectedStatus(path, false)
}

// Records returns every tracked configuration record.
func (m *Manager) Records() ([]store.ConfigRecord, error) {
	return m.tracker.Records()
}

// LiveInterfaces returns the interfaces wg currently reports.
func (m *Manager) LiveInterfaces(ctx context.Context) ([]string, error) {
	return m.runner.Interfaces(ctx)
}

// ResetToken forgets the 2FA answer for path.
func (m *Manager) ResetToken(path string) (bool, error) {
	return m.tracker.ResetToken(path)
}

// PruneSnapshots deletes Document snapshots older than olderThan.
func (m *Manager) PruneSnapshots(olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", olderThan)
	}
	return m.snapshots.Prune(olderThan)
}

// SnapshotDir returns where Document snapshots are kept.
func (m *Manager) SnapshotDir() string {
	return m.snapshots.Dir()
}

// LookupErrorMessage returns the catalog message for code.
func (m *Manager) LookupErrorMessage(code string) (string, error) {
	return m.store.LookupErrorMessage(code)
}

// MessageFor returns the catalog message for err followed by the error
// itself. The built-in catalog is used when the Document cannot be read, and
// the bare error text when neither knows the code.
func (m *Manager) MessageFor(err error) string {
	if err == nil {
		return ""
	}
	code := domain.CodeFor(err)
	msg, lookupErr := m.store.LookupErrorMessage(code)
	if lookupErr != nil {
		msg = domain.DefaultErrorCodes()[code]
	}
	if msg == "" {
		return err.Error()
	}
	return fmt.Sprintf("%s: %v", msg, err)
}
