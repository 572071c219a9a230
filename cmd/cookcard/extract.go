package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/alchemorsel/cookcard/internal/domain/cookcard"
	"github.com/alchemorsel/cookcard/internal/ports/inbound"
)

func newExtractCommand() *cobra.Command {
	var (
		requesterID string
		groupID     string
		bypassCache bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "extract URL",
		Short: "Extract a CookCard from a share URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := cookcard.NewExtractionRequest(args[0], requesterID, groupID, bypassCache)
			if err != nil {
				return &exitError{code: 2, err: err}
			}

			return runWithDeps(cmd.Context(), func(ctx context.Context, d commandDeps) error {
				result, err := d.Service.Extract(ctx, req)
				if err != nil {
					return describeExtractionError(err)
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(result)
				}
				renderCard(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&requesterID, "requester", "cli", "requester id charged for the extraction")
	cmd.Flags().StringVar(&groupID, "group", "", "group the card is shared with")
	cmd.Flags().BoolVar(&bypassCache, "bypass-cache", false, "skip the card cache lookup")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

func describeExtractionError(err error) error {
	var limited *cookcard.RateLimitedError
	if errors.As(err, &limited) {
		return &exitError{code: 3, err: fmt.Errorf("rate limited (%d/%d this hour), retry in %ds",
			limited.CurrentCount, limited.Limit, limited.RetryAfterSeconds)}
	}
	var exceeded *cookcard.QuotaExceededError
	if errors.As(err, &exceeded) {
		return &exitError{code: 3, err: fmt.Errorf("monthly quota used up on the %s tier (%d/%d); share the link instead",
			exceeded.Tier, exceeded.Used, exceeded.Limit)}
	}
	return err
}

func renderCard(w io.Writer, result *inbound.ExtractionResult) {
	card := result.Card
	ex := card.Extraction()

	fmt.Fprintf(w, "%s\n", text.Bold.Sprint(card.Title()))
	if card.Creator() != "" {
		fmt.Fprintf(w, "by %s\n", card.Creator())
	}
	fmt.Fprintf(w, "%s\n\n", card.SourceURL())

	if card.IsMetadataOnly() {
		fmt.Fprintln(w, "No grounded ingredients found; saved as a link card.")
	} else {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Section", "Amount", "Unit", "Ingredient", "Evidence", "Confidence"})
		for _, ing := range card.Ingredients() {
			amount := ""
			if ing.HasAmount() {
				amount = fmt.Sprintf("%g", *ing.Amount)
			}
			t.AppendRow(table.Row{ing.Group, amount, ing.Unit, ing.Name, text.Trim(ing.EvidencePhrase, 48), fmt.Sprintf("%.2f", ing.Confidence)})
		}
		t.Render()
	}

	if steps := card.Instructions(); len(steps) > 0 {
		fmt.Fprintln(w, "\nSteps:")
		for i, step := range steps {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}

	sources := make([]string, 0, len(ex.Sources))
	for _, s := range ex.Sources {
		sources = append(sources, string(s))
	}
	fmt.Fprintf(w, "\nmethod=%s evidence=%s sources=%s confidence=%.2f cost=%d¢ rejected=%d cache_hit=%t\n",
		ex.Method, ex.EvidenceSource, strings.Join(sources, ","), ex.Confidence, ex.CostCents, ex.RejectedCount, result.CacheHit)
}
