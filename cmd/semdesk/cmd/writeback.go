package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdesk/internal/config"
	"github.com/Aman-CERP/semdesk/internal/daemon"
	semerrors "github.com/Aman-CERP/semdesk/internal/errors"
	"github.com/Aman-CERP/semdesk/internal/output"
	"github.com/Aman-CERP/semdesk/internal/rdf"
	"github.com/Aman-CERP/semdesk/internal/writeback"
)

func newWritebackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "writeback <path|resource>",
		Short: "Write a file's indexed metadata back to disk",
		Long: `Write the metadata stored for a file out through the writeback plugins.
The sidecar plugin writes it to a hidden YAML file next to the original.

The argument is either the path of an indexed file or a resource URI.`,
		Example: `  semdesk writeback ~/Documents/report.txt
  semdesk writeback urn:semdesk:res:6f1c...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWriteback(cmd.Context(), cmd, args[0])
		},
	}
}

// writebackParams tells resource URIs from paths.
func writebackParams(arg string) (daemon.WritebackParams, error) {
	if rdf.IsResourceURI(arg) {
		return daemon.WritebackParams{Resource: arg}, nil
	}
	path, err := filepath.Abs(config.ExpandHome(arg))
	if err != nil {
		return daemon.WritebackParams{}, semerrors.New(semerrors.ErrCodeInvalidPath, "invalid path", err)
	}
	return daemon.WritebackParams{Path: path}, nil
}

func runWriteback(ctx context.Context, cmd *cobra.Command, arg string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	params, err := writebackParams(arg)
	if err != nil {
		return err
	}

	var res writeback.Result
	if client := daemonClient(cfg); client.IsRunning() {
		res, err = client.Writeback(ctx, params)
	} else {
		res, err = writebackLocal(ctx, cfg, params)
	}
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if len(res.Written) == 0 && len(res.Failed) == 0 {
		out.Warningf("No writeback plugin handles %s", res.Path)
		return nil
	}
	out.Successf("Wrote metadata for %s", res.Path)
	out.KeyValue("Resource", res.Resource)
	out.KeyValue("Plugins", strings.Join(res.Written, ", "))
	if len(res.Failed) > 0 {
		out.KeyValue("Failed", strings.Join(res.Failed, ", "))
	}
	return nil
}

func writebackLocal(ctx context.Context, cfg *config.Config, params daemon.WritebackParams) (writeback.Result, error) {
	if !cfg.Writeback.Enabled {
		return writeback.Result{}, semerrors.ValidationError("writeback is disabled", nil).
			WithSuggestion("Set writeback.enabled in the configuration")
	}

	local, err := openLocal(ctx, cfg)
	if err != nil {
		return writeback.Result{}, err
	}
	defer closeLocal(local)

	resource := params.Resource
	if params.Path != "" {
		ix, err := local.newIndexer()
		if err != nil {
			return writeback.Result{}, err
		}
		resource, err = ix.ResourceFor(ctx, params.Path)
		if err != nil {
			return writeback.Result{}, semerrors.StoreError("failed to look up resource", err)
		}
		if resource == "" {
			return writeback.Result{}, semerrors.New(semerrors.ErrCodeNotIndexed, fmt.Sprintf("%s is not indexed", params.Path), nil)
		}
	}

	w, err := local.newWriter()
	if err != nil {
		return writeback.Result{}, err
	}
	return w.Writeback(ctx, resource)
}
