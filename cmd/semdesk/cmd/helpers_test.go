package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/semdesk/internal/config"
	"github.com/Aman-CERP/semdesk/internal/daemon"
	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/store"
)

// testEnv is an isolated configuration: its own HOME, storage, indexed
// folder and daemon socket.
type testEnv struct {
	cfg        *config.Config
	configPath string
	docs       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))
	for _, key := range []string{"SEMDESK_STORAGE_PATH", "SEMDESK_FOLDERS", "SEMDESK_SOCKET", "NO_COLOR"} {
		t.Setenv(key, "")
	}

	docs := filepath.Join(tmp, "docs")
	require.NoError(t, os.MkdirAll(docs, 0o755))

	cfg := config.NewConfig()
	cfg.Storage.Path = filepath.Join(tmp, "storage")
	cfg.Indexing.Folders = []config.Folder{{Path: docs, Recursive: true}}
	cfg.Scheduler.SuspendOnActivity = false
	cfg.Scheduler.PollInterval = "20ms"
	cfg.Scheduler.UpdateOnStart = false
	cfg.Watcher.Enabled = false
	cfg.Maintenance.Sleep = "0s"
	cfg.Daemon.SocketPath = filepath.Join(os.TempDir(), fmt.Sprintf("semdesk-cmd-%d.sock", time.Now().UnixNano()))
	cfg.Daemon.PIDPath = filepath.Join(tmp, "daemon.pid")
	cfg.Daemon.Timeout = "5s"
	t.Cleanup(func() { _ = os.Remove(cfg.Daemon.SocketPath) })

	configPath := filepath.Join(tmp, "config.yaml")
	require.NoError(t, cfg.WriteYAML(configPath))

	prev := repoOptions
	repoOptions = store.Options{LockRetry: &semerrors.RetryConfig{MaxRetries: 0}}
	t.Cleanup(func() { repoOptions = prev })

	return &testEnv{cfg: cfg, configPath: configPath, docs: docs}
}

// writeDoc creates a file in the indexed folder and returns its path.
func (e *testEnv) writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.docs, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// run executes the root command with --config pointing at the env and
// returns what it wrote to stdout and stderr.
func (e *testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return execute(t, append([]string{"--config", e.configPath}, args...)...)
}

// startDaemon runs a daemon in-process for the env until the test ends.
func (e *testEnv) startDaemon(t *testing.T) {
	t.Helper()
	d, err := daemon.New(context.Background(), e.cfg,
		daemon.WithRepositoryOptions(store.Options{LockRetry: &semerrors.RetryConfig{MaxRetries: 0}}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	client := daemon.NewClient(daemon.FromConfig(e.cfg.Daemon))
	require.Eventually(t, client.IsRunning, 3*time.Second, 10*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}
