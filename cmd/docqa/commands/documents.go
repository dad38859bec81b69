package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cambium-dev/docqa-go/internal/logging"
)

// NewDocumentsCmd constructs the `docqa documents` command group for
// inspecting and managing the document catalog.
func NewDocumentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "documents",
		Short: "List and manage indexed documents",
	}

	cmd.AddCommand(newDocumentsListCmd(), newDocumentsDeleteCmd())
	return cmd
}

func newDocumentsListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			c, err := buildComponents(ctx, log, false)
			if err != nil {
				return fmt.Errorf("documents: %w", err)
			}
			defer c.close()

			docs, err := c.catalog.List(ctx, !all)
			if err != nil {
				return fmt.Errorf("documents: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tLANG\tDATE\tCHUNKS\tSTATUS\tINGESTED")
			for _, d := range docs {
				date := "-"
				if !d.DocDate.IsZero() {
					date = d.DocDate.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					d.ID, d.Title, d.Language, date, d.Chunks, d.Status,
					d.IngestedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include superseded revisions")
	return cmd
}

func newDocumentsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>...",
		Short: "Remove documents and their chunks from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			c, err := buildComponents(ctx, log, false)
			if err != nil {
				return fmt.Errorf("documents: %w", err)
			}
			defer c.close()

			for _, id := range args {
				if err := c.pipeline.Delete(ctx, id); err != nil {
					return fmt.Errorf("documents: delete %s: %w", id, err)
				}
				fmt.Printf("deleted %s\n", id)
			}
			return nil
		},
	}
}
