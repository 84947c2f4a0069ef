package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run the checks the daemon performs before it first uses a storage directory.

Checks:
  - Disk space under the storage path (100MB minimum)
  - Write permissions in the storage path
  - File descriptor limits (1024 minimum)
  - inotify watch limit (Linux, when the watcher is enabled)
  - Configured folders exist

Watch limit and folder problems are warnings. Any other failure makes
the command exit non-zero.`,
		Example: `  # Run diagnostics
  semdesk doctor

  # JSON output for scripting
  semdesk doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// doctorReport is the JSON form of a doctor run.
type doctorReport struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(cmd *cobra.Command, verbose, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(cmd.Context(), cfg)

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(doctorReport{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
		if age := preflight.MarkerAge(cfg.Storage.Path); age > 0 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nDaemon checks last passed %s ago\n", age.Round(time.Second))
		}
	}

	if checker.HasCriticalFailures(results) {
		return semerrors.New(semerrors.ErrCodeStorageDir, "system check failed", nil).
			WithSuggestion("Fix the failed checks listed above")
	}
	return nil
}
