package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/alchemorsel/cookcard/internal/ports/inbound"
	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

func newCardsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Browse persisted CookCards",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get ID",
		Short: "Show one persisted card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return &exitError{code: 2, err: fmt.Errorf("card id must be a UUID: %w", err)}
			}
			return runWithDeps(cmd.Context(), func(ctx context.Context, d commandDeps) error {
				stored, err := d.Service.GetCard(ctx, id)
				if err != nil {
					return err
				}
				renderCard(cmd.OutOrStdout(), &inbound.ExtractionResult{Card: stored.Card})
				return nil
			})
		},
	})

	var limit int
	list := &cobra.Command{
		Use:   "list GROUP",
		Short: "List a group's most recent cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithDeps(cmd.Context(), func(ctx context.Context, d commandDeps) error {
				cards, err := d.Service.ListGroupCards(ctx, args[0], limit)
				if err != nil {
					return err
				}
				renderCardList(cmd.OutOrStdout(), cards)
				return nil
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of cards")
	cmd.AddCommand(list)

	return cmd
}

func renderCardList(w io.Writer, cards []*outbound.StoredCard) {
	if len(cards) == 0 {
		fmt.Fprintln(w, "No cards.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Title", "Platform", "Method", "Ingredients", "Requester", "Created"})
	for _, s := range cards {
		c := s.Card
		t.AppendRow(table.Row{
			c.ID(),
			c.Title(),
			c.Platform(),
			c.Extraction().Method,
			len(c.Ingredients()),
			s.RequesterID,
			c.CreatedAt().Format("2006-01-02 15:04"),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", len(cards)})
	t.Render()
}
