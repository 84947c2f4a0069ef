// Package cmd provides the CLI commands for semdesk.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdesk/internal/config"
	"github.com/Aman-CERP/semdesk/internal/daemon"
	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/logging"
	"github.com/Aman-CERP/semdesk/internal/profiling"
	"github.com/Aman-CERP/semdesk/pkg/version"
)

// Profiling flags
var (
	profileOpts    profiling.Options
	profileSession *profiling.Session
)

// Global flags
var (
	debugMode      bool
	configPath     string
	storagePath    string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the semdesk CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "semdesk",
		Short: "Desktop file indexer with full-text search",
		Long: `semdesk indexes the files in your configured folders into a local
statement store and full-text index, and keeps them up to date in the
background.

Start the background daemon with 'semdesk daemon start', or run a one-shot
pass over a folder with 'semdesk index <path>'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("semdesk version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: user config)")
	cmd.PersistentFlags().StringVar(&storagePath, "storage", "", "Override the storage directory")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Goroutine, "profile-goroutine", "", "Write goroutine dump to file on exit")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.semdesk/logs/")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newSuspendCmd())
	cmd.AddCommand(newResumeCmd())
	cmd.AddCommand(newActivityCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newMaintainCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newWritebackCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts CPU/trace profiling and debug logging if flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error

	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("debug_logging_enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}

	if profileOpts.Enabled() {
		profileSession, err = profiling.Start(profileOpts)
		if err != nil {
			return err
		}
	}

	return nil
}

// stopProfilingAndLogging stops profiling and logging and writes the
// snapshot profiles.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	err := profileSession.Stop()
	profileSession = nil
	if err != nil {
		return fmt.Errorf("failed to write profiles: %w", err)
	}

	if loggingCleanup != nil {
		slog.Info("debug_logging_stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return nil
}

// Execute runs the root command and prints any error in CLI form.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		// Post-run hooks are skipped when a command fails.
		_ = stopProfilingAndLogging(root, nil)
		if cmd == nil {
			cmd = root
		}
		printError(cmd, cliError(err))
	}
	return err
}

// printError writes err as JSON to stdout when the failing command was
// asked for JSON output, and in CLI form to stderr otherwise.
func printError(cmd *cobra.Command, err error) {
	if wantsJSON(cmd) {
		if data, jerr := semerrors.FormatJSON(err); jerr == nil {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return
		}
	}
	_, _ = fmt.Fprint(cmd.ErrOrStderr(), semerrors.FormatForCLI(err))
}

func wantsJSON(cmd *cobra.Command) bool {
	f := cmd.Flags().Lookup("json")
	return f != nil && f.Changed && f.Value.String() == "true"
}

// cliError turns a daemon RPC error carrying a structured code back into
// a structured error so the CLI can show its code.
func cliError(err error) error {
	var rpcErr *daemon.Error
	if errors.As(err, &rpcErr) {
		if code, ok := rpcErr.Data.(string); ok && code != "" {
			return semerrors.New(code, rpcErr.Message, nil)
		}
	}
	return err
}

// loadConfig loads the configuration named by --config and applies --storage.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, semerrors.ConfigError("failed to load configuration", err).
			WithSuggestion("Check the file with 'semdesk config show' or recreate it with 'semdesk config init --force'")
	}
	if storagePath != "" {
		cfg.Storage.Path = config.ExpandHome(storagePath)
	}
	return cfg, nil
}

// daemonClient returns a client for the daemon configured in cfg.
func daemonClient(cfg *config.Config) *daemon.Client {
	return daemon.NewClient(daemon.FromConfig(cfg.Daemon))
}
