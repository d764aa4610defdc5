package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"MarketRadar/internal/app"
	"MarketRadar/internal/domain"
	"MarketRadar/internal/infrastructure/storage"
	"MarketRadar/internal/textutil"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the most recently saved opportunities",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("limit must be positive, got %d", limit)
			}

			store, err := app.OpenStore(contextOrBackground(cmd.Context()), ctx.ensureConfig())
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.Recent(contextOrBackground(cmd.Context()), limit)
			if err != nil {
				return fmt.Errorf("read records: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No opportunities saved yet.")
				return nil
			}
			fmt.Fprintln(out, renderRecords(records))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of records to show")
	return cmd
}

func renderRecords(records []domain.OpportunityRecord) string {
	headers := []string{"Time", "Score", "Problem", "Idea", "Audience", "Link"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Timestamp.Format(storage.TimestampLayout),
			strconv.Itoa(rec.Score),
			textutil.Snippet(rec.PainPoint, 60),
			textutil.Snippet(rec.SuggestedSolution, 60),
			textutil.Snippet(rec.TargetAudience, 40),
			rec.Permalink,
		})
	}
	return renderTable(headers, rows, []columnAlignment{alignLeft, alignRight})
}
