package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdesk/internal/rdf"
)

func newExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all statements as N-Quads",
		Long: `Write every statement in the repository as N-Quads, to stdout or to
the file given with --output.

The repository is opened directly, so the daemon must be stopped first.`,
		Example: `  semdesk export > repository.nq
  semdesk export -o repository.nq`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runExport(cmd.Context(), cmd, outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Write to file instead of stdout")

	return cmd
}

func runExport(ctx context.Context, cmd *cobra.Command, outPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	local, err := openLocal(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLocal(local)

	it := local.model().Statements(ctx, rdf.Pattern{})
	defer it.Close()

	if outPath == "" {
		n, err := rdf.EncodeNQuads(cmd.OutOrStdout(), it)
		if err != nil {
			return fmt.Errorf("export failed after %d statements: %w", n, err)
		}
		return nil
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	n, err := exportTo(f, it)
	if err != nil {
		return fmt.Errorf("export to %s failed after %d statements: %w", outPath, n, err)
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d statements to %s\n", n, outPath)
	return nil
}

// exportTo encodes src into wc and closes it. A failed close is an export
// failure: the file may be incomplete.
func exportTo(wc io.WriteCloser, src rdf.StatementSource) (n int, err error) {
	defer func() {
		if cerr := wc.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output: %w", cerr)
		}
	}()
	return rdf.EncodeNQuads(wc, src)
}
