package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config lookup at an empty temp dir and clears
// SEMDESK_* overrides for the duration of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{
		"SEMDESK_STORAGE_PATH", "SEMDESK_FOLDERS", "SEMDESK_LOG_LEVEL",
		"SEMDESK_SOCKET", "SEMDESK_SUSPEND_ON_ACTIVITY", "SEMDESK_IDLE_TIMEOUT",
		"SEMDESK_MAINTENANCE_ENABLED", "SEMDESK_MAINTENANCE_BATCH_SIZE",
		"SEMDESK_WATCHER_ENABLED",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "main", cfg.Storage.Name)
	assert.True(t, filepath.IsAbs(cfg.Storage.Path))
	assert.Equal(t, "2m", cfg.Scheduler.IdleTimeout)
	assert.Equal(t, "10s", cfg.Scheduler.PollInterval)
	assert.True(t, cfg.Scheduler.SuspendOnActivity)
	assert.Equal(t, 100, cfg.Maintenance.BatchSize)
	assert.Equal(t, "200ms", cfg.Maintenance.Sleep)
	assert.Contains(t, cfg.Indexing.ExcludeFilters, ".git")
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestDefaultExcludeFilters_ReturnsCopy(t *testing.T) {
	a := DefaultExcludeFilters()
	a[0] = "mutated"

	assert.NotEqual(t, "mutated", DefaultExcludeFilters()[0])
}

func TestGetUserConfigPath_UsesXDG(t *testing.T) {
	// Given: XDG_CONFIG_HOME is set
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	// Then: the config lives under it
	assert.Equal(t, "/tmp/xdg/semdesk/config.yaml", GetUserConfigPath())
}

func TestLoad_NoUserConfig_ReturnsDefaults(t *testing.T) {
	// Given: no user config file
	isolate(t)

	// When: loading
	cfg, err := Load("")

	// Then: defaults come back
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Scheduler, cfg.Scheduler)
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	// Given: a user config disabling activity suspension and tuning maintenance
	dir := isolate(t)
	path := filepath.Join(dir, "semdesk", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`
scheduler:
  suspend_on_activity: false
maintenance:
  batch_size: 25
indexing:
  folders:
    - /srv/docs
    - path: /srv/docs/private
      exclude: true
    - path: /srv/flat
      recursive: false
`), 0o644))

	// When: loading
	cfg, err := Load("")

	// Then: file values win while untouched keys keep defaults
	require.NoError(t, err)
	assert.False(t, cfg.Scheduler.SuspendOnActivity)
	assert.Equal(t, "2m", cfg.Scheduler.IdleTimeout)
	assert.Equal(t, 25, cfg.Maintenance.BatchSize)
	assert.Equal(t, "200ms", cfg.Maintenance.Sleep)
	require.Len(t, cfg.Indexing.Folders, 3)
	assert.Equal(t, Folder{Path: "/srv/docs", Recursive: true}, cfg.Indexing.Folders[0])
	assert.Equal(t, Folder{Path: "/srv/docs/private", Recursive: true, Exclude: true}, cfg.Indexing.Folders[1])
	assert.Equal(t, Folder{Path: "/srv/flat", Recursive: false}, cfg.Indexing.Folders[2])
}

func TestLoad_ExplicitPathMissing_Fails(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	assert.Error(t, err)
}

func TestLoad_MalformedYAML_Fails(t *testing.T) {
	// Given: a broken config file
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler: [unclosed"), 0o644))

	// When: loading it
	_, err := Load(path)

	// Then: the parse error surfaces
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse")
}

func TestLoad_EnvOverrides(t *testing.T) {
	// Given: environment overrides
	isolate(t)
	storage := t.TempDir()
	t.Setenv("SEMDESK_STORAGE_PATH", storage)
	t.Setenv("SEMDESK_FOLDERS", "/a"+string(os.PathListSeparator)+"/b")
	t.Setenv("SEMDESK_LOG_LEVEL", "debug")
	t.Setenv("SEMDESK_SUSPEND_ON_ACTIVITY", "false")
	t.Setenv("SEMDESK_MAINTENANCE_BATCH_SIZE", "7")

	// When: loading
	cfg, err := Load("")

	// Then: env wins
	require.NoError(t, err)
	assert.Equal(t, storage, cfg.Storage.Path)
	assert.Equal(t, []Folder{{Path: "/a", Recursive: true}, {Path: "/b", Recursive: true}}, cfg.Indexing.Folders)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Scheduler.SuspendOnActivity)
	assert.Equal(t, 7, cfg.Maintenance.BatchSize)
}

func TestLoad_ExpandsHome(t *testing.T) {
	// Given: a folder configured relative to home
	isolate(t)
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("indexing:\n  folders: [\"~/Documents\"]\n"), 0o644))

	// When: loading
	cfg, err := Load(path)

	// Then: the path is absolute
	require.NoError(t, err)
	home, _ := os.UserHomeDir()
	assert.Equal(t, filepath.Join(home, "Documents"), cfg.Indexing.Folders[0].Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"storage name with separator", func(c *Config) { c.Storage.Name = "a/b" }, "storage.name"},
		{"relative folder", func(c *Config) { c.Indexing.Folders = []Folder{{Path: "docs"}} }, "absolute"},
		{"bad idle timeout", func(c *Config) { c.Scheduler.IdleTimeout = "soon" }, "scheduler.idle_timeout"},
		{"zero poll interval", func(c *Config) { c.Scheduler.PollInterval = "0s" }, "poll_interval"},
		{"negative rate limit", func(c *Config) { c.Scheduler.RateLimit = -1 }, "scheduler.rate_limit"},
		{"zero batch size", func(c *Config) { c.Maintenance.BatchSize = 0 }, "batch_size"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 2*time.Minute, Duration("2m", time.Second))
	assert.Equal(t, time.Second, Duration("", time.Second))
	assert.Equal(t, time.Second, Duration("bogus", time.Second))
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	// Given: a modified config written to disk
	isolate(t)
	cfg := NewConfig()
	cfg.Maintenance.Sleep = "1s"
	cfg.Indexing.Folders = []Folder{{Path: "/srv/x", Recursive: false}}
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	// When: writing and loading it back
	require.NoError(t, cfg.WriteYAML(path))
	loaded, err := Load(path)

	// Then: values survive, including an explicit non-recursive folder
	require.NoError(t, err)
	assert.Equal(t, "1s", loaded.Maintenance.Sleep)
	assert.Equal(t, []Folder{{Path: "/srv/x", Recursive: false}}, loaded.Indexing.Folders)
}
