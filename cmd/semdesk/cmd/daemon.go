package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdesk/internal/config"
	"github.com/Aman-CERP/semdesk/internal/daemon"
	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/logging"
	"github.com/Aman-CERP/semdesk/internal/output"
	"github.com/Aman-CERP/semdesk/internal/ui"
)

// daemonPoll bounds how long start and stop wait for the daemon process.
var daemonPoll = semerrors.PollConfig(100*time.Millisecond, 5*time.Second)

var errDaemonNotReady = errors.New("daemon has not changed state")

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the background indexing daemon",
		Long: `The daemon owns the repository, keeps the configured folders indexed,
watches them for changes and answers CLI requests over a Unix socket.

Commands:
  start   Start the daemon (runs in background by default)
  stop    Stop the running daemon
  status  Show daemon status

Examples:
  semdesk daemon start      # Start daemon in background
  semdesk daemon start -f   # Run in foreground (for debugging)
  semdesk daemon status     # Check if daemon is running
  semdesk daemon stop       # Stop the daemon`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())

	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the background daemon",
		Long: `Start the indexing daemon in the background.

Use --foreground for debugging or to see logs in real-time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStart(cmd.Context(), cmd, foreground)
		},
	}

	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (don't daemonize)")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		Long: `Stop the running daemon.

Sends SIGTERM to the daemon process for graceful shutdown, and SIGKILL if
it has not exited after five seconds.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemonStop(cmd)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDaemonStart(ctx context.Context, cmd *cobra.Command, foreground bool) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dcfg := daemon.FromConfig(cfg.Daemon)

	client := daemon.NewClient(dcfg)
	if client.IsRunning() {
		out.Status("", "Daemon is already running")
		return nil
	}

	if foreground {
		return runDaemonForeground(ctx, out, cfg, dcfg)
	}

	out.Status("", "Starting daemon in background...")

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	bgCmd := exec.Command(execPath, daemonArgs()...)
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Reap the child and notice if it dies before the socket comes up.
	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	err = semerrors.Retry(ctx, daemonPoll, func() error {
		select {
		case err := <-done:
			if err != nil {
				return semerrors.Permanent(fmt.Errorf("daemon process exited unexpectedly: %w", err))
			}
			return semerrors.Permanent(fmt.Errorf("daemon process exited unexpectedly with code 0"))
		default:
		}
		if !client.IsRunning() {
			return errDaemonNotReady
		}
		return nil
	})
	if errors.Is(err, errDaemonNotReady) {
		return fmt.Errorf("daemon failed to start within timeout")
	}
	if err != nil {
		return err
	}

	out.Success(fmt.Sprintf("Daemon started (pid: %d)", bgCmd.Process.Pid))
	out.KeyValue("Logs", logging.DefaultLogPath())
	return nil
}

// daemonArgs re-creates the command line of a foreground daemon, passing
// through the flags that select configuration and storage.
func daemonArgs() []string {
	args := []string{"daemon", "start", "--foreground"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if storagePath != "" {
		args = append(args, "--storage", storagePath)
	}
	if debugMode {
		args = append(args, "--debug")
	}
	return args
}

func runDaemonForeground(ctx context.Context, out *output.Writer, cfg *config.Config, dcfg daemon.Config) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	if debugMode {
		logCfg.Level = "debug"
	}
	logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
	logCfg.MaxFiles = cfg.Logging.MaxFiles
	if logger, cleanup, err := logging.Setup(logCfg); err == nil {
		slog.SetDefault(logger)
		defer cleanup()
	}

	out.Status("", "Starting daemon in foreground...")
	out.KeyValue("Socket", dcfg.SocketPath)
	out.KeyValue("Storage", cfg.Storage.Path)
	out.KeyValue("Logs", logCfg.FilePath)
	out.Status("", "Press Ctrl+C to stop")
	out.Newline()

	slog.Info("daemon_starting",
		slog.String("socket", dcfg.SocketPath),
		slog.String("storage", cfg.Storage.Path),
		slog.String("log_file", logCfg.FilePath))

	d, err := daemon.New(ctx, cfg)
	if err != nil {
		slog.Error("daemon_create_failed", slog.String("error", err.Error()))
		return fmt.Errorf("failed to create daemon: %w", err)
	}
	if !d.StorageAvailable() {
		out.Warning("Storage is unavailable; indexing requests will be refused")
	}

	return d.Run(ctx)
}

func runDaemonStop(cmd *cobra.Command) error {
	out := output.New(cmd.OutOrStdout())
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pidFile := daemon.NewPIDFile(daemon.FromConfig(cfg.Daemon).PIDPath)

	if !pidFile.IsRunning() {
		out.Status("", "Daemon is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("failed to read PID: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	waitErr := semerrors.Retry(cmd.Context(), daemonPoll, func() error {
		if pidFile.IsRunning() {
			return errDaemonNotReady
		}
		return nil
	})
	if waitErr == nil {
		out.Success(fmt.Sprintf("Daemon stopped (was pid: %d)", pid))
		return nil
	}

	out.Status("", "Daemon not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill daemon: %w", err)
	}

	out.Success("Daemon killed")
	return nil
}

// statusInfo converts the daemon status into the renderer's view.
func statusInfo(st *daemon.StatusResult) ui.StatusInfo {
	info := ui.StatusInfo{
		Running:      st.Running,
		PID:          st.PID,
		Uptime:       st.Uptime,
		Storage:      st.Storage,
		StorageError: st.StorageError,
		StoragePath:  st.StoragePath,
		HeapBytes:    int64(st.Runtime.HeapBytes),
		Goroutines:   st.Runtime.Goroutines,
		WatchedDirs:  -1,
	}
	if r := st.Repository; r != nil {
		info.Statements = r.Statements
		info.Resources = r.Resources
		info.Graphs = r.Graphs
		info.Documents = r.Documents
		info.StoreBytes = r.StoreBytes
		info.IndexBytes = r.IndexBytes
	}
	if s := st.Scheduler; s != nil {
		info.SchedulerStatus = s.Status
		info.QueuedFolders = s.QueuedFolders
		info.QueuedFiles = s.QueuedFiles
		info.TotalIndexed = s.TotalIndexed
		info.TotalFailed = s.TotalFailed
		if s.LastPass != nil {
			info.LastPass = s.LastPass.StartedAt.Add(s.LastPass.Duration)
		}
	}
	if m := st.Maintenance; m != nil {
		info.MaintenanceRunning = m.Running
		info.GraphsRemoved = m.Total.GraphsRemoved
	}
	if w := st.Watcher; w != nil {
		info.WatchedDirs = w.Directories
	}
	return info
}
