package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/semdesk/internal/config"
	"github.com/Aman-CERP/semdesk/internal/daemon"
	"github.com/Aman-CERP/semdesk/internal/output"
	"github.com/Aman-CERP/semdesk/internal/rdf"
)

type searchOptions struct {
	limit      int
	jsonOutput bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed files",
		Long: `Run a full-text query over the indexed files and print the matching
resources with their paths.

The running daemon answers the query when there is one; otherwise the
repository is opened directly.`,
		Example: `  semdesk search invoice
  semdesk search "quarterly report" -n 20
  semdesk search harbour --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	params := daemon.SearchParams{Query: query, Limit: opts.limit}

	var results []daemon.SearchResult
	if client := daemonClient(cfg); client.IsRunning() {
		results, err = client.Search(ctx, params)
	} else {
		results, err = searchLocal(ctx, cfg, params)
	}
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printResults(output.New(cmd.OutOrStdout()), query, results)
	return nil
}

func searchLocal(ctx context.Context, cfg *config.Config, params daemon.SearchParams) ([]daemon.SearchResult, error) {
	local, err := openLocal(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeLocal(local)

	return daemon.Search(ctx, local.model(), params)
}

func printResults(out *output.Writer, query string, results []daemon.SearchResult) {
	if len(results) == 0 {
		out.Statusf("", "No results for %q", query)
		return
	}

	w := out.Out()
	for i, r := range results {
		name := r.Path
		if name == "" {
			name = r.URL
		}
		if name == "" {
			name = rdf.Compact(r.Resource)
		}
		_, _ = fmt.Fprintf(w, "%2d. %s\n", i+1, name)
		printResultDetail(w, r)
	}
	out.Newline()
	out.Statusf("", "%d results", len(results))
}

func printResultDetail(w io.Writer, r daemon.SearchResult) {
	detail := []string{fmt.Sprintf("score %.3f", r.Score)}
	if r.MimeType != "" {
		detail = append(detail, r.MimeType)
	}
	if len(r.MatchedTerms) > 0 {
		detail = append(detail, "matched: "+strings.Join(r.MatchedTerms, ", "))
	}
	_, _ = fmt.Fprintf(w, "    %s\n", strings.Join(detail, " | "))
}
