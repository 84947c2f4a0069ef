package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdesk/internal/daemon"
	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/maintenance"
	"github.com/Aman-CERP/semdesk/internal/output"
)

func newMaintainCmd() *cobra.Command {
	var wait, reindex bool

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Remove empty graphs from the repository",
		Long: `Sweep the repository for instance-base graphs that no longer hold any
statements and remove them together with their metadata graphs.

With a running daemon the sweep is triggered in the background, or run to
completion with --wait. Without a daemon the sweep runs here.

--reindex first rebuilds the full-text document of every resource from the
statement store, for when the index has fallen out of step with it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMaintain(cmd.Context(), cmd, wait, reindex)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the daemon's sweep to finish")
	cmd.Flags().BoolVar(&reindex, "reindex", false, "Rebuild the full-text index before sweeping")

	return cmd
}

func runMaintain(ctx context.Context, cmd *cobra.Command, wait, reindex bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())

	if client := daemonClient(cfg); client.IsRunning() {
		res, err := client.Maintain(ctx, daemon.MaintainParams{Wait: wait, Reindex: reindex})
		if err != nil {
			return err
		}
		if reindex {
			out.KeyValue("Reindexed", res.Reindexed)
		}
		if res.Stats == nil {
			if !res.Triggered {
				return nil
			}
			out.Success("Maintenance triggered in the daemon")
			return nil
		}
		printMaintenance(out, *res.Stats)
		return nil
	}

	local, err := openLocal(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocal(local)

	if reindex {
		n, err := local.model().Reindex(ctx)
		if err != nil {
			return semerrors.New(semerrors.ErrCodeMaintenance, "full-text rebuild failed", err)
		}
		out.KeyValue("Reindexed", n)
	}

	st, err := local.newMaintainer().Run(ctx)
	if err != nil {
		return semerrors.New(semerrors.ErrCodeMaintenance, "graph maintenance failed", err)
	}
	printMaintenance(out, st)
	return nil
}

func printMaintenance(out *output.Writer, st maintenance.Stats) {
	if st.Canceled {
		out.Warning("Maintenance canceled")
	} else {
		out.Success("Maintenance complete")
	}
	out.KeyValue("Graphs", st.GraphsRemoved)
	out.KeyValue("Statements", st.StatementsRemoved)
	if st.Failures > 0 {
		out.KeyValue("Failures", st.Failures)
	}
	out.KeyValue("Duration", st.Duration.Round(time.Millisecond))
}
