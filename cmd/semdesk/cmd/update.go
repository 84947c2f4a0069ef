package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdesk/internal/config"
	"github.com/Aman-CERP/semdesk/internal/daemon"
	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/output"
)

type updateOptions struct {
	all       bool
	recursive bool
	forced    bool
	anyFolder bool
}

func newUpdateCmd() *cobra.Command {
	var opts updateOptions

	cmd := &cobra.Command{
		Use:   "update [path]",
		Short: "Queue folders or files for re-indexing in the daemon",
		Long: `Ask the running daemon to bring part of the index up to date.

With --all every configured folder is queued. A folder path queues that
folder; a file path queues that single file. Unchanged files are skipped
unless --forced is given.

Folders outside the configured list are refused unless --any-folder is
given; exclude filters still apply.`,
		Example: `  semdesk update --all
  semdesk update ~/Documents --recursive
  semdesk update ~/notes/todo.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.all, "all", false, "Update all configured folders")
	cmd.Flags().BoolVarP(&opts.recursive, "recursive", "r", false, "Include subfolders")
	cmd.Flags().BoolVar(&opts.forced, "forced", false, "Re-index files even if unchanged")
	cmd.Flags().BoolVar(&opts.anyFolder, "any-folder", false, "Accept folders outside the configured list")

	return cmd
}

func runUpdate(cmd *cobra.Command, args []string, opts updateOptions) error {
	if opts.all == (len(args) == 1) {
		return semerrors.ValidationError("give either a path or --all", nil)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client := daemonClient(cfg)
	out := output.New(cmd.OutOrStdout())
	ctx := cmd.Context()

	if opts.all {
		res, err := client.UpdateAllFolders(ctx, daemon.UpdateAllParams{Forced: opts.forced})
		if err != nil {
			return err
		}
		out.Successf("Queued %d folders", res.Queued)
		return nil
	}

	path, err := filepath.Abs(config.ExpandHome(args[0]))
	if err != nil {
		return semerrors.New(semerrors.ErrCodeInvalidPath, "invalid path", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return semerrors.New(semerrors.ErrCodeFileNotFound, fmt.Sprintf("cannot access %s", path), err)
	}

	var res daemon.AcceptedResult
	switch {
	case !info.IsDir():
		res, err = client.IndexFile(ctx, daemon.FileParams{Path: path})
	case opts.anyFolder:
		res, err = client.IndexFolder(ctx, daemon.FolderParams{Path: path, Recursive: opts.recursive, Forced: opts.forced})
	default:
		res, err = client.UpdateFolder(ctx, daemon.FolderParams{Path: path, Recursive: opts.recursive, Forced: opts.forced})
	}
	if err != nil {
		return err
	}

	if !res.Accepted {
		out.Warningf("%s is excluded by the indexing configuration", path)
		return nil
	}
	out.Successf("Queued %s (%d pending)", path, res.Queued)
	return nil
}
