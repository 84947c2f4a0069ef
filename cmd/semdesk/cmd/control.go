package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdesk/internal/daemon"
	"github.com/Aman-CERP/semdesk/internal/output"
)

// stateCall is one of the scheduler state methods of the daemon client.
type stateCall func(c *daemon.Client, ctx context.Context) (daemon.StateResult, error)

func newSuspendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suspend",
		Short: "Suspend background indexing",
		Long: `Suspend the daemon's indexer. Queued work is kept and resumes with
'semdesk resume'. Search keeps working while suspended.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStateChange(cmd, (*daemon.Client).Suspend)
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume background indexing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStateChange(cmd, (*daemon.Client).Resume)
		},
	}
}

func newActivityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "activity",
		Short: "Report user activity to the indexer",
		Long: `Tell the daemon the user is active. When suspend_on_activity is set,
indexing pauses until no activity has been reported for idle_timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStateChange(cmd, (*daemon.Client).Activity)
		},
	}
}

func runStateChange(cmd *cobra.Command, call stateCall) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := call(daemonClient(cfg), cmd.Context())
	if err != nil {
		return err
	}

	output.New(cmd.OutOrStdout()).KeyValue("Indexer", res.Status)
	return nil
}
