// Package config loads semdesk configuration: hardcoded defaults, then the
// user YAML file, then SEMDESK_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete semdesk configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Storage     StorageConfig     `yaml:"storage" json:"storage"`
	Indexing    IndexingConfig    `yaml:"indexing" json:"indexing"`
	Scheduler   SchedulerConfig   `yaml:"scheduler" json:"scheduler"`
	Maintenance MaintenanceConfig `yaml:"maintenance" json:"maintenance"`
	Watcher     WatcherConfig     `yaml:"watcher" json:"watcher"`
	Writeback   WritebackConfig   `yaml:"writeback" json:"writeback"`
	Daemon      DaemonConfig      `yaml:"daemon" json:"daemon"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
}

// StorageConfig locates the repository on disk.
type StorageConfig struct {
	// Path is the storage directory holding the quad store and full-text index.
	Path string `yaml:"path" json:"path"`
	// Name is the repository name; the quad store lives at <path>/<name>.db.
	Name string `yaml:"name" json:"name"`
}

// Folder is one configured indexing folder.
type Folder struct {
	Path      string `yaml:"path" json:"path"`
	Recursive bool   `yaml:"recursive" json:"recursive"`
	// Exclude marks the folder (and, when recursive, its subtree) as not indexed.
	Exclude bool `yaml:"exclude" json:"exclude"`
}

// UnmarshalYAML accepts either a bare path or a mapping. Folders are
// recursive unless stated otherwise.
func (f *Folder) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = Folder{Path: node.Value, Recursive: true}
		return nil
	}

	type plain Folder
	p := plain{Recursive: true}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*f = Folder(p)
	return nil
}

// IndexingConfig selects what gets indexed.
type IndexingConfig struct {
	Folders []Folder `yaml:"folders" json:"folders"`
	// ExcludeFilters are doublestar patterns matched against file and folder
	// names (and against paths when they contain a separator).
	ExcludeFilters []string `yaml:"exclude_filters" json:"exclude_filters"`
	IndexHidden    bool     `yaml:"index_hidden" json:"index_hidden"`
	// MaxFileSize skips files larger than this many bytes (0 = no limit).
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
	// MaxTextBytes caps the plain text content stored per file.
	MaxTextBytes int `yaml:"max_text_bytes" json:"max_text_bytes"`
	// LookupCacheSize is the number of url->resource lookups kept in memory.
	LookupCacheSize int `yaml:"lookup_cache_size" json:"lookup_cache_size"`
}

// SchedulerConfig controls when indexing work happens.
type SchedulerConfig struct {
	// SuspendOnActivity pauses indexing while the user is active.
	SuspendOnActivity bool `yaml:"suspend_on_activity" json:"suspend_on_activity"`
	// IdleTimeout is how long without user activity before paused work resumes.
	IdleTimeout string `yaml:"idle_timeout" json:"idle_timeout"`
	// PollInterval is how often the scheduler wakes to look for work.
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
	// UpdateOnStart queues a non-forced update of all folders at daemon start.
	UpdateOnStart bool `yaml:"update_on_start" json:"update_on_start"`
	// RateLimit caps files indexed per second; 0 means unlimited.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`
}

// MaintenanceConfig controls the empty-graph sweep.
type MaintenanceConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
	Sleep     string `yaml:"sleep" json:"sleep"`
}

// WatcherConfig controls live file change monitoring.
type WatcherConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Debounce string `yaml:"debounce" json:"debounce"`
}

// WritebackConfig controls metadata writeback into files.
type WritebackConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Sidecar enables the YAML sidecar writer.
	Sidecar bool `yaml:"sidecar" json:"sidecar"`
}

// DaemonConfig configures the control socket.
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	PIDPath    string `yaml:"pid_path" json:"pid_path"`
	Timeout    string `yaml:"timeout" json:"timeout"`
}

// LoggingConfig configures the log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// defaultExcludeFilters are the filename filters applied when none are configured.
var defaultExcludeFilters = []string{
	"*~",
	"*.part",
	"*.o",
	"*.la",
	"*.lo",
	"*.loT",
	"*.moc",
	"moc_*.cpp",
	"*.tmp",
	"*.swp",
	"core.[0-9]*",
	".git",
	".svn",
	".hg",
	"CVS",
	"node_modules",
	"__pycache__",
	"lost+found",
	"*.semdesk.yaml",
}

// DefaultExcludeFilters returns a copy of the built-in exclude filters.
func DefaultExcludeFilters() []string {
	return append([]string(nil), defaultExcludeFilters...)
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	home := homeDir()
	base := filepath.Join(home, ".semdesk")

	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Path: filepath.Join(base, "storage"),
			Name: "main",
		},
		Indexing: IndexingConfig{
			Folders:         []Folder{{Path: home, Recursive: true}},
			ExcludeFilters:  DefaultExcludeFilters(),
			IndexHidden:     false,
			MaxFileSize:     50 * 1024 * 1024,
			MaxTextBytes:    64 * 1024,
			LookupCacheSize: 4096,
		},
		Scheduler: SchedulerConfig{
			SuspendOnActivity: true,
			IdleTimeout:       "2m",
			PollInterval:      "10s",
			UpdateOnStart:     true,
		},
		Maintenance: MaintenanceConfig{
			Enabled:   true,
			BatchSize: 100,
			Sleep:     "200ms",
		},
		Watcher: WatcherConfig{
			Enabled:  true,
			Debounce: "500ms",
		},
		Writeback: WritebackConfig{
			Enabled: true,
			Sidecar: true,
		},
		Daemon: DaemonConfig{
			SocketPath: filepath.Join(base, "daemon.sock"),
			PIDPath:    filepath.Join(base, "daemon.pid"),
			Timeout:    "30s",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return home
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/semdesk/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/semdesk/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "semdesk", "config.yaml")
	}
	return filepath.Join(homeDir(), ".config", "semdesk", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// Load loads configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. The YAML file at path, or the user config when path is empty
//  3. Environment variables (SEMDESK_*)
//
// A missing user config is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	} else if UserConfigExists() {
		if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML decodes the file over the current values, so keys absent from
// the file keep their defaults.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies SEMDESK_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SEMDESK_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SEMDESK_FOLDERS"); v != "" {
		var folders []Folder
		for _, p := range filepath.SplitList(v) {
			if p = strings.TrimSpace(p); p != "" {
				folders = append(folders, Folder{Path: p, Recursive: true})
			}
		}
		c.Indexing.Folders = folders
	}
	if v := os.Getenv("SEMDESK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SEMDESK_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("SEMDESK_SUSPEND_ON_ACTIVITY"); v != "" {
		c.Scheduler.SuspendOnActivity = parseBool(v)
	}
	if v := os.Getenv("SEMDESK_IDLE_TIMEOUT"); v != "" {
		c.Scheduler.IdleTimeout = v
	}
	if v := os.Getenv("SEMDESK_MAINTENANCE_ENABLED"); v != "" {
		c.Maintenance.Enabled = parseBool(v)
	}
	if v := os.Getenv("SEMDESK_MAINTENANCE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Maintenance.BatchSize = n
		}
	}
	if v := os.Getenv("SEMDESK_WATCHER_ENABLED"); v != "" {
		c.Watcher.Enabled = parseBool(v)
	}
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// expandPaths resolves "~" prefixes and cleans configured paths.
func (c *Config) expandPaths() {
	c.Storage.Path = ExpandHome(c.Storage.Path)
	c.Daemon.SocketPath = ExpandHome(c.Daemon.SocketPath)
	c.Daemon.PIDPath = ExpandHome(c.Daemon.PIDPath)
	for i := range c.Indexing.Folders {
		c.Indexing.Folders[i].Path = filepath.Clean(ExpandHome(c.Indexing.Folders[i].Path))
	}
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path cannot be empty")
	}
	if c.Storage.Name == "" || strings.ContainsAny(c.Storage.Name, `/\`) {
		return fmt.Errorf("storage.name must be a plain file name, got %q", c.Storage.Name)
	}

	for _, f := range c.Indexing.Folders {
		if !filepath.IsAbs(f.Path) {
			return fmt.Errorf("indexing folder must be absolute, got %q", f.Path)
		}
	}
	if c.Indexing.MaxFileSize < 0 {
		return fmt.Errorf("indexing.max_file_size must be non-negative, got %d", c.Indexing.MaxFileSize)
	}
	if c.Indexing.MaxTextBytes < 0 {
		return fmt.Errorf("indexing.max_text_bytes must be non-negative, got %d", c.Indexing.MaxTextBytes)
	}

	durations := map[string]string{
		"scheduler.idle_timeout":  c.Scheduler.IdleTimeout,
		"scheduler.poll_interval": c.Scheduler.PollInterval,
		"maintenance.sleep":       c.Maintenance.Sleep,
		"watcher.debounce":        c.Watcher.Debounce,
		"daemon.timeout":          c.Daemon.Timeout,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s must be a duration, got %q", key, value)
		}
		if d < 0 {
			return fmt.Errorf("%s must be non-negative, got %s", key, value)
		}
	}
	if d, _ := time.ParseDuration(c.Scheduler.PollInterval); d == 0 {
		return fmt.Errorf("scheduler.poll_interval must be positive")
	}
	if c.Scheduler.RateLimit < 0 {
		return fmt.Errorf("scheduler.rate_limit must be non-negative, got %g", c.Scheduler.RateLimit)
	}

	if c.Maintenance.BatchSize <= 0 {
		return fmt.Errorf("maintenance.batch_size must be positive, got %d", c.Maintenance.BatchSize)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// Duration parses a duration field already checked by Validate; fallback is
// returned for empty or malformed values.
func Duration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// WriteYAML writes the configuration to a YAML file, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
