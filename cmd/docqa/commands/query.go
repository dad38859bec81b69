package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cambium-dev/docqa-go/internal/dates"
	"github.com/cambium-dev/docqa-go/internal/logging"
	"github.com/cambium-dev/docqa-go/internal/rag"
)

// NewQueryCmd constructs the `docqa query` command, which retrieves relevant
// chunks for a question and synthesizes a cited answer.
func NewQueryCmd() *cobra.Command {
	var topK int
	var language string
	var dateExpr string
	var documentIDs []string
	var noAnswer bool

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question over the indexed documents",
		Long: `Embed the question, search the vector store, and print the most relevant
chunks with their source documents. Unless --no-answer is given, a chat
model synthesizes an answer citing the retrieved sources by number.

The --date flag accepts natural-language expressions resolved against the
Israeli holiday calendar: "last month", "this quarter", "since passover",
"before yom kippur", "2025-01-01..2025-03-31".

Examples:
  docqa query "how many vacation days do new employees get?"
  docqa query --language he --date "last quarter" "מה נוהל החזר ההוצאות?"
  docqa query --no-answer --top-k 10 "travel policy"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			question := args[0]

			c, err := buildComponents(ctx, log, !noAnswer)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer c.close()

			filter := rag.Filter{
				DocumentIDs: documentIDs,
				Language:    language,
			}
			if dateExpr != "" {
				loc := dates.IsraelLocation()
				cal := dates.NewCalendar(loc, dates.IsraeliHolidays(loc))
				rng, err := cal.Resolve(dateExpr, time.Now())
				if err != nil {
					return fmt.Errorf("query: date expression %q: %w", dateExpr, err)
				}
				filter.DateFrom = rng.From
				filter.DateTo = rng.To
			}

			results, err := c.retriever.Retrieve(ctx, question, filter, topK)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			if len(results) == 0 {
				fmt.Println("No matching chunks found.")
				return nil
			}

			if noAnswer {
				for i, r := range results {
					fmt.Printf("[%d] %s (%s)  similarity=%.3f\n%s\n\n",
						i+1, r.Entry.Title, r.Entry.Locator, r.Similarity, r.Entry.Text)
				}
				return nil
			}

			ans, err := c.synthesizer.Answer(ctx, question, results)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			fmt.Println(ans.Text)
			if len(ans.Used) > 0 {
				fmt.Println()
				for _, n := range ans.Used {
					src := ans.Sources[n-1]
					fmt.Printf("[%d] %s (%s)\n", n, src.Title, src.Locator)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default: 5)")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Restrict to documents in this language: he, ar, en")
	cmd.Flags().StringVarP(&dateExpr, "date", "d", "", "Natural-language date filter (e.g. \"last month\")")
	cmd.Flags().StringArrayVar(&documentIDs, "document", nil, "Restrict to a document ID (repeatable)")
	cmd.Flags().BoolVar(&noAnswer, "no-answer", false, "Print retrieved chunks without synthesizing an answer")

	return cmd
}
