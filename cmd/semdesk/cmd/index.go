package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdesk/internal/config"
	"github.com/Aman-CERP/semdesk/internal/daemon"
	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/output"
	"github.com/Aman-CERP/semdesk/internal/scheduler"
	"github.com/Aman-CERP/semdesk/internal/ui"
)

type indexOptions struct {
	recursive bool
	forced    bool
	maintain  bool
	plain     bool
	noColor   bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a folder or file now",
		Long: `Run a one-shot indexing pass in the foreground and wait for it to finish.

Without a path every configured folder is updated. A path is indexed even
when it is outside the configured folders, as long as the exclude filters
accept its name.

When the daemon is running the request is queued there instead, since the
daemon owns the repository.`,
		Example: `  semdesk index
  semdesk index ~/Documents
  semdesk index ~/Documents --forced --maintain`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", true, "Include subfolders")
	cmd.Flags().BoolVar(&opts.forced, "forced", false, "Re-index files even if unchanged")
	cmd.Flags().BoolVar(&opts.maintain, "maintain", false, "Remove empty graphs after indexing")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Plain text output (no live progress line)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colors")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, args []string, opts indexOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := output.New(cmd.OutOrStdout())

	var (
		path  string
		isDir = true
	)
	if len(args) == 1 {
		path, err = filepath.Abs(config.ExpandHome(args[0]))
		if err != nil {
			return semerrors.New(semerrors.ErrCodeInvalidPath, "invalid path", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return semerrors.New(semerrors.ErrCodeFileNotFound, fmt.Sprintf("cannot access %s", path), err)
		}
		isDir = info.IsDir()
	}

	if client := daemonClient(cfg); client.IsRunning() {
		return queueInDaemon(ctx, out, client, path, isDir, opts)
	}

	local, err := openLocal(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocal(local)

	ix, err := local.newIndexer()
	if err != nil {
		return err
	}
	sched, err := local.newScheduler(ix)
	if err != nil {
		return err
	}

	switch {
	case path == "":
		if n := sched.UpdateAllFolders(opts.forced); n == 0 {
			out.Warning("No folders configured for indexing")
			return nil
		}
	case isDir:
		if !sched.IndexFolder(path, opts.recursive, opts.forced) {
			out.Warningf("%s is excluded by the indexing configuration", path)
			return nil
		}
	default:
		if !sched.IndexFile(path) {
			out.Warningf("%s is excluded by the indexing configuration", path)
			return nil
		}
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.plain),
		ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
	))
	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	events, cancel := sched.Subscribe()
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		forwardEvents(events, renderer, func() int { return sched.Progress().QueuedFiles })
	}()

	start := time.Now()
	stats, runErr := sched.RunUntilIdle(ctx)
	cancel()
	<-forwarded

	completion := ui.CompletionStats{
		Folders:  stats.Folders,
		Indexed:  stats.Indexed,
		Skipped:  stats.Skipped,
		Failed:   stats.Failed,
		Removed:  stats.Removed,
		Duration: time.Since(start),
	}

	if runErr != nil {
		renderer.Complete(completion)
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("indexing interrupted: %w", runErr)
		}
		return runErr
	}

	if opts.maintain {
		renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageMaintenance, Message: "removing empty graphs"})
		mst, err := local.newMaintainer().Run(ctx)
		if err != nil {
			renderer.Complete(completion)
			return semerrors.New(semerrors.ErrCodeMaintenance, "graph maintenance failed", err)
		}
		completion.GraphsRemoved = mst.GraphsRemoved
	}

	renderer.Complete(completion)
	slog.Debug("index_command_finished",
		slog.Int("indexed", completion.Indexed),
		slog.Int("failed", completion.Failed))
	return nil
}

// forwardEvents feeds scheduler events to the renderer until the
// subscription is canceled. queued reports the files still waiting.
func forwardEvents(events <-chan scheduler.Event, renderer ui.Renderer, queued func() int) {
	var indexed, removed, failed int
	for ev := range events {
		switch ev.Type {
		case scheduler.EventFileIndexed:
			indexed++
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage: ui.StageIndexing, Path: ev.Path,
				Indexed: indexed, Removed: removed, Failed: failed, Queued: queued(),
			})
		case scheduler.EventFileRemoved:
			removed++
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage: ui.StageRemoving, Path: ev.Path,
				Indexed: indexed, Removed: removed, Failed: failed, Queued: queued(),
			})
		case scheduler.EventFileFailed:
			failed++
			renderer.AddError(ui.ErrorEvent{Path: ev.Path, Err: errors.New(ev.Err)})
		}
	}
}

func queueInDaemon(ctx context.Context, out *output.Writer, client *daemon.Client, path string, isDir bool, opts indexOptions) error {
	var (
		res daemon.AcceptedResult
		err error
	)
	switch {
	case path == "":
		res, err = client.UpdateAllFolders(ctx, daemon.UpdateAllParams{Forced: opts.forced})
	case isDir:
		res, err = client.IndexFolder(ctx, daemon.FolderParams{Path: path, Recursive: opts.recursive, Forced: opts.forced})
	default:
		res, err = client.IndexFile(ctx, daemon.FileParams{Path: path})
	}
	if err != nil {
		return err
	}
	if !res.Accepted {
		out.Warning("Nothing was queued: the path is excluded by the indexing configuration")
		return nil
	}
	out.Success("Queued in the running daemon")
	out.KeyValue("Pending", res.Queued)
	out.Status("", "Follow progress with 'semdesk status'")
	return nil
}
