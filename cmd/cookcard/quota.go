package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
)

func newQuotaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "quota REQUESTER",
		Short: "Show a requester's monthly quota, hourly rate window and vision minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDeps(cmd.Context(), func(ctx context.Context, d commandDeps) error {
				status, err := d.Service.QuotaStatus(ctx, args[0])
				if err != nil {
					return err
				}
				renderQuota(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func formatLimit(n int64) string {
	if cookcard.IsUnlimited(n) {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}

func renderQuota(w io.Writer, status *cookcard.QuotaStatus) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Requester", "Tier", "Used", "Limit", "Remaining", "Cost (¢)", "Period Start", "Hour", "Resets", "Vision (min today)"})
	q, r := status.Quota, status.Rate
	t.AppendRow(table.Row{
		q.RequesterID,
		q.Tier,
		q.ExtractionsThisPeriod,
		formatLimit(q.Limit),
		formatLimit(q.Remaining()),
		q.CostAccumulatedCents,
		q.PeriodStart.Format("2006-01-02"),
		fmt.Sprintf("%d/%s", r.Count, formatLimit(r.Limit)),
		r.ExpiresAt.Format(time.Kitchen),
		fmt.Sprintf("%d/%d", status.Vision.MinutesToday, status.Vision.DailyLimit),
	})
	t.Render()
}
