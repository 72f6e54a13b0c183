// File path: cmd/docverge/commands/compare.go
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"docverge/internal/diff"
	"docverge/internal/document"
)

// compare <source> <target>: one-shot local comparison without the service.
func compareCmd() *cobra.Command {
	var (
		contextLines  int
		extractTables bool
		asJSON        bool
	)
	cmd := &cobra.Command{
		Use:   "compare <source> <target>",
		Short: "Compare two documents locally and print the changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			normalizer := document.NewNormalizer()
			opts := document.ConvertOptions{ExtractTables: extractTables}

			source, err := loadDocument(cmd.Context(), normalizer, args[0], opts)
			if err != nil {
				return err
			}
			target, err := loadDocument(cmd.Context(), normalizer, args[1], opts)
			if err != nil {
				return err
			}

			summary, records := diff.Compare(source, target, diff.Options{ContextLines: contextLines})

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(map[string]interface{}{
					"summary": summary,
					"records": records,
				})
			}
			fmt.Fprintf(out, "Similarity: %.2f%%\n", summary.SimilarityPercentage)
			fmt.Fprintf(out, "Added: %d  Removed: %d  Modified: %d\n", summary.Added, summary.Removed, summary.Modified)
			for _, rec := range records {
				fmt.Fprintln(out, rec.Proof)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&contextLines, "context-lines", diff.DefaultContextLines, "unchanged lines captured around each change")
	cmd.Flags().BoolVar(&extractTables, "extract-tables", false, "include markdown table rows in the comparison")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the summary and records as JSON")
	return cmd
}

func loadDocument(ctx context.Context, normalizer *document.Normalizer, path string, opts document.ConvertOptions) (*document.NormalizedText, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return normalizer.Convert(ctx, filepath.Base(path), data, opts)
}
