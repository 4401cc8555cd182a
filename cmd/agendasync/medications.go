package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/repository"
)

func (c *cli) medicationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "medications",
		Aliases: []string{"medicamentos"},
		Short:   "Look up drug labels",
		GroupID: "data",
	}
	cmd.AddCommand(c.medicationsSearchCmd())
	return cmd
}

func (c *cli) medicationsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <name>",
		Short: "Search drug labels by brand or generic name",
		Example: `  agendasync medications search ibuprofen
  agendasync medications search "vitamin c"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				meds, err := s.app.Medications.Search(ctx, name)
				if errors.Is(err, repository.ErrEmptyQuery) {
					return errors.New("a medication name is required")
				}
				if err != nil {
					return needsAPI("medication search", err)
				}
				printMedications(c.out, name, meds)
				return nil
			})
		},
	}
}

func printMedications(w io.Writer, query string, meds []model.Medication) {
	if len(meds) == 0 {
		fmt.Fprintf(w, "No medications found for %q.\n", query)
		return
	}
	for i, m := range meds {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%s)\n", m.BrandName, m.GenericName)
		fmt.Fprintf(w, "  Manufacturer:      %s\n", m.Manufacturer)
		fmt.Fprintf(w, "  Active ingredient: %s\n", m.ActiveIngredient)
		fmt.Fprintf(w, "  Route:             %s\n", m.Route)
		fmt.Fprintf(w, "  Purpose:           %s\n", m.Purpose)
		fmt.Fprintf(w, "  Indications:       %s\n", m.Indications)
		fmt.Fprintf(w, "  Warnings:          %s\n", m.Warnings)
	}
}
