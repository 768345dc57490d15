// Package config loads Atrium's settings: the four environment variables
// the hub recognizes, layered over an optional settings file bootstrapped
// on first run. Modeled on the keys-file loader this project's ancestor
// used for API keys, stripped of every auth concept.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultSettingsFile = "atrium.yaml"

// Settings is the on-disk companion to the environment variables; every
// field here has a sane default so a missing file never blocks startup.
type Settings struct {
	SweepInterval   time.Duration `yaml:"-"`
	SweepIntervalRaw string       `yaml:"sweep_interval,omitempty"`
	WatcherIgnoreGlobs []string   `yaml:"watcher_ignore_globs,omitempty"`
	RoomDefaults    struct {
		Settings map[string]any `yaml:"settings,omitempty"`
	} `yaml:"room_defaults,omitempty"`
}

// Config is the fully resolved runtime configuration: env vars plus the
// settings file.
type Config struct {
	Port      int
	SharedDir string
	DataDir   string
	LogLevel  string
	Settings  Settings
}

// ResolveSettingsPath mirrors the ancestor's ResolveKeysPath: an env var
// override, else a fixed filename in the working directory.
func ResolveSettingsPath() string {
	if v := strings.TrimSpace(os.Getenv("ATRIUM_SETTINGS_FILE")); v != "" {
		return v
	}
	return filepath.Join(".", defaultSettingsFile)
}

// Load reads PORT/SHARED_DIR/DATA_DIR/LOG_LEVEL from the environment and
// layers the settings file on top, bootstrapping a default file if none
// exists yet.
func Load() (Config, error) {
	cfg := Config{
		Port:      3000,
		SharedDir: "./shared",
		DataDir:   "./data",
		LogLevel:  "info",
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse PORT: %w", err)
		}
		cfg.Port = p
	}
	if v := strings.TrimSpace(os.Getenv("SHARED_DIR")); v != "" {
		cfg.SharedDir = v
	}
	if v := strings.TrimSpace(os.Getenv("DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}

	settings, err := LoadSettings(ResolveSettingsPath())
	if err != nil {
		return Config{}, err
	}
	cfg.Settings = settings
	return cfg, nil
}

// LoadSettings loads the YAML settings file at path, bootstrapping a
// default one if it does not yet exist.
func LoadSettings(path string) (Settings, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if _, err := Bootstrap(path); err != nil {
				return Settings{}, fmt.Errorf("bootstrap settings file: %w", err)
			}
			data, err = os.ReadFile(path)
			if err != nil {
				return Settings{}, fmt.Errorf("read settings file: %w", err)
			}
		} else {
			return Settings{}, fmt.Errorf("read settings file: %w", err)
		}
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings file: %w", err)
	}
	if s.SweepIntervalRaw != "" {
		d, err := time.ParseDuration(s.SweepIntervalRaw)
		if err != nil {
			return Settings{}, fmt.Errorf("parse sweep_interval: %w", err)
		}
		s.SweepInterval = d
	} else {
		s.SweepInterval = 60 * time.Second
	}
	return s, nil
}

func defaultSettings() Settings {
	return Settings{SweepInterval: 60 * time.Second}
}

// BootstrapResult reports whether Bootstrap created a new settings file.
type BootstrapResult struct {
	SettingsFile string
	Created      bool
}

// Bootstrap writes a default settings file if one does not already exist,
// the non-auth analog of this project's ancestor's dev-key bootstrap.
func Bootstrap(path string) (*BootstrapResult, error) {
	if path == "" {
		path = ResolveSettingsPath()
	}
	if _, err := os.Stat(path); err == nil {
		return &BootstrapResult{SettingsFile: path, Created: false}, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("check settings file: %w", err)
	}

	s := Settings{
		SweepIntervalRaw:   "60s",
		WatcherIgnoreGlobs: []string{".git/*", "node_modules/*"},
	}
	data, err := yaml.Marshal(&s)
	if err != nil {
		return nil, fmt.Errorf("marshal settings file: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("write settings file: %w", err)
	}
	return &BootstrapResult{SettingsFile: path, Created: true}, nil
}
