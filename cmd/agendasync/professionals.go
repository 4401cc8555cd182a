package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/state"
)

func (c *cli) professionalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "professionals",
		Aliases: []string{"profesionales"},
		Short:   "List professionals and manage their availability",
		GroupID: "data",
	}
	cmd.AddCommand(
		c.professionalsListCmd(),
		c.professionalsSetAvailabilityCmd(),
	)
	return cmd
}

func (c *cli) professionalsListCmd() *cobra.Command {
	var (
		available bool
		specialty string
		watch     bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List professionals by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				repo := s.app.Professionals
				observe := repo.ObserveAll
				switch {
				case available:
					observe = repo.ObserveAvailable
				case specialty != "":
					observe = func(ctx context.Context) <-chan state.Snapshot[model.Professional] {
						return repo.ObserveBySpecialty(ctx, specialty)
					}
				}
				return show(ctx, c.out, listing[model.Professional]{
					observe: observe,
					refresh: repo.RefreshAll,
					render:  printProfessionals,
				}, watch)
			})
		},
	}
	cmd.Flags().BoolVar(&available, "available", false, "only professionals accepting bookings")
	cmd.Flags().StringVar(&specialty, "specialty", "", "only professionals of this specialty")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep printing as the list changes")
	cmd.MarkFlagsMutuallyExclusive("available", "specialty")
	return cmd
}

func (c *cli) professionalsSetAvailabilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-availability <id> <true|false>",
		Short: "Open or close a professional's agenda",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			available, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid availability %q: want true or false", args[1])
			}
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				p, err := s.app.Professionals.SetAvailability(ctx, id, available)
				if err != nil {
					return err
				}
				if p == nil {
					return fmt.Errorf("professional #%d is not cached and the API is unreachable", id)
				}
				word := "unavailable"
				if p.Available {
					word = "available"
				}
				fmt.Fprintf(c.out, "%s is now %s.\n", p.Name, word)
				return nil
			})
		},
	}
}
