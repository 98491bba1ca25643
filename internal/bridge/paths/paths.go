package paths

import "path/filepath"

// Directory and file name constants for wg-bridge state under $HOME
const (
	ConfigDirName   = ".config"
	AppDirName      = "wg-bridge"
	StoreFileName   = "wgbc.json"
	AppConfigName   = "app"
	LogDirName      = "logs"
	SnapshotDirName = "snapshots"
	SystemConfigDir = "/etc/wg-bridge"
	DefaultConfDir  = "/etc/wireguard"
)

// PathBuilder provides methods to construct wg-bridge paths relative to a home directory.
type PathBuilder struct {
	homeDir string
}

// New creates a new PathBuilder for the given home directory.
func New(homeDir string) *PathBuilder {
	return &PathBuilder{homeDir: homeDir}
}

// HomeDir returns the home directory the builder is rooted at.
func (p *PathBuilder) HomeDir() string {
	return p.homeDir
}

// AppDir returns the per-user wg-bridge directory.
func (p *PathBuilder) AppDir() string {
	return filepath.Join(p.homeDir, ConfigDirName, AppDirName)
}

// StorePath returns the default path of the store document.
func (p *PathBuilder) StorePath() string {
	return filepath.Join(p.AppDir(), StoreFileName)
}

// LogDir returns the directory daily log files are written to.
func (p *PathBuilder) LogDir() string {
	return filepath.Join(p.AppDir(), LogDirName)
}

// SnapshotDir returns the directory where store snapshots are kept.
func (p *PathBuilder) SnapshotDir() string {
	return filepath.Join(p.AppDir(), SnapshotDirName)
}
