package config

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/LunaticFringers/wg-bridge/internal/bridge/paths"
)

// Version is stamped at build time with -ldflags "-X ...config.Version=...".
var Version = "0.1.0-dev"

// EnvPrefix is prepended to every environment override, e.g. WGB_USER_CONF.
const EnvPrefix = "WGB"

const (
	keyLogDir = "log_dir"
	// keyLegacyLogPath is the name log_dir had in app.toml.
	keyLegacyLogPath = "log_path"
)

// Colour modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config is the application configuration: where the store and logs live,
// which tools run the tunnels and how output is rendered.
type Config struct {
	Version           string `mapstructure:"version" yaml:"version"`
	UserConf          string `mapstructure:"user_conf" yaml:"user_conf"`
	LogDir            string `mapstructure:"log_dir" yaml:"log_dir"`
	LogLevel          string `mapstructure:"log_level" yaml:"log_level"`
	WgQuick           string `mapstructure:"wg_quick" yaml:"wg_quick"`
	Wg                string `mapstructure:"wg" yaml:"wg"`
	UseSudo           bool   `mapstructure:"use_sudo" yaml:"use_sudo"`
	SnapshotDir       string `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
	SnapshotRetention string `mapstructure:"snapshot_retention" yaml:"snapshot_retention"`
	Color             string `mapstructure:"color" yaml:"color"`

	// HomeDir is where $HOME and ~ point to. Not read from the file.
	HomeDir string `mapstructure:"-" yaml:"-"`
	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// Default returns the configuration used when no file or env overrides exist.
func Default(homeDir string) *Config {
	p := paths.New(homeDir)
	return &Config{
		Version:           Version,
		UserConf:          p.StorePath(),
		LogDir:            p.LogDir(),
		LogLevel:          "info",
		WgQuick:           "wg-quick",
		Wg:                "wg",
		UseSudo:           os.Geteuid() != 0,
		SnapshotDir:       p.SnapshotDir(),
		SnapshotRetention: "30d",
		Color:             ColorAuto,
		HomeDir:           homeDir,
	}
}

// ResolveHome returns the home directory of the invoking user. WGB_HOME wins;
// under sudo the home of SUDO_USER is used so root does not get its own store.
func ResolveHome() (string, error) {
	if custom := strings.TrimSpace(os.Getenv(EnvPrefix + "_HOME")); custom != "" {
		return custom, nil
	}
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" && sudoUser != "root" {
		if u, err := user.Lookup(sudoUser); err == nil && u.HomeDir != "" {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// Load reads the app config file and WGB_* environment overrides on top of
// Default. The format follows the file extension, so an app.toml from an
// existing install is read as TOML and app.yaml as YAML. With path set only
// that file is read and it must exist; otherwise the XDG config dir,
// ~/.config/wg-bridge and /etc/wg-bridge are searched and a missing file is
// fine. The older log_path key is accepted for log_dir.
func Load(path, homeDir string) (*Config, error) {
	def := Default(homeDir)

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v, def)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(paths.AppConfigName)
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, paths.AppDirName))
		}
		v.AddConfigPath(paths.New(homeDir).AppDir())
		v.AddConfigPath(paths.SystemConfigDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	// Registered after reading so a log_path value is moved onto log_dir.
	if !v.InConfig(keyLogDir) {
		v.RegisterAlias(keyLegacyLogPath, keyLogDir)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.HomeDir = homeDir
	cfg.File = v.ConfigFileUsed()
	cfg.expand()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("version", def.Version)
	v.SetDefault("user_conf", def.UserConf)
	v.SetDefault(keyLogDir, def.LogDir)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("wg_quick", def.WgQuick)
	v.SetDefault("wg", def.Wg)
	v.SetDefault("use_sudo", def.UseSudo)
	v.SetDefault("snapshot_dir", def.SnapshotDir)
	v.SetDefault("snapshot_retention", def.SnapshotRetention)
	v.SetDefault("color", def.Color)
}

// expand replaces $HOME and a leading ~ in path settings.
func (c *Config) expand() {
	for _, field := range []*string{&c.UserConf, &c.LogDir, &c.SnapshotDir} {
		*field = ExpandHome(*field, c.HomeDir)
	}
}

// ExpandHome replaces $HOME, ${HOME} and a leading ~ with homeDir.
func ExpandHome(value, homeDir string) string {
	if homeDir == "" {
		return value
	}
	value = strings.ReplaceAll(value, "${HOME}", homeDir)
	value = strings.ReplaceAll(value, "$HOME", homeDir)
	if value == "~" {
		return homeDir
	}
	if strings.HasPrefix(value, "~/") {
		return filepath.Join(homeDir, value[2:])
	}
	return value
}

// Validate checks the settings that have a closed set of values.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: want debug, info, warn or error", c.LogLevel)
	}
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("invalid color %q: want auto, always or never", c.Color)
	}
	if strings.TrimSpace(c.UserConf) == "" {
		return errors.New("user_conf cannot be empty")
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
