package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdesk/internal/output"
	"github.com/Aman-CERP/semdesk/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, repository and indexer status",
		Long: `Display the state of the running daemon:
  - Storage availability and repository size
  - Indexer state, queue length and last pass
  - Graph maintenance and watcher activity`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), !output.New(cmd.OutOrStdout()).UseColor())
	client := daemonClient(cfg)

	if !client.IsRunning() {
		info := ui.StatusInfo{StoragePath: cfg.Storage.Path, WatchedDirs: -1}
		if jsonOutput {
			return renderer.RenderJSON(info)
		}
		if err := renderer.Render(info); err != nil {
			return err
		}
		output.New(cmd.OutOrStdout()).Status("", "Run 'semdesk daemon start' to start it")
		return nil
	}

	st, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	info := statusInfo(st)
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}
