package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/repository"
	"github.com/njoerd114/agendasync/internal/state"
)

func (c *cli) appointmentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"citas"},
		Short:   "List, book, reschedule and cancel appointments",
		GroupID: "data",
	}
	cmd.AddCommand(
		c.appointmentsListCmd(),
		c.appointmentsBookCmd(),
		c.appointmentsRescheduleCmd(),
		c.appointmentsCancelCmd(),
	)
	return cmd
}

func (c *cli) appointmentsListCmd() *cobra.Command {
	var (
		patient      string
		professional int64
		date         string
		watch        bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments, newest booking first",
		Example: `  agendasync appointments list
  agendasync appointments list --patient 14444444-4
  agendasync appointments list --date 2026-10-19 --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if date != "" {
				if err := checkDate(date); err != nil {
					return err
				}
			}
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				repo := s.app.Appointments
				observe := repo.ObserveAll
				switch {
				case patient != "":
					observe = func(ctx context.Context) <-chan state.Snapshot[model.Appointment] {
						return repo.ObserveByPatient(ctx, patient)
					}
				case professional != 0:
					observe = func(ctx context.Context) <-chan state.Snapshot[model.Appointment] {
						return repo.ObserveByProfessional(ctx, professional)
					}
				case date != "":
					observe = func(ctx context.Context) <-chan state.Snapshot[model.Appointment] {
						return repo.ObserveByDate(ctx, date)
					}
				}
				return show(ctx, c.out, listing[model.Appointment]{
					observe: observe,
					refresh: repo.RefreshAll,
					render:  printAppointments,
				}, watch)
			})
		},
	}
	cmd.Flags().StringVar(&patient, "patient", "", "only appointments of the patient with this RUT")
	cmd.Flags().Int64Var(&professional, "professional", 0, "only appointments with this professional id")
	cmd.Flags().StringVar(&date, "date", "", "only appointments on this day (YYYY-MM-DD)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep printing as the list changes")
	cmd.MarkFlagsMutuallyExclusive("patient", "professional", "date")
	return cmd
}

func (c *cli) appointmentsBookCmd() *cobra.Command {
	var draft model.Appointment
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book an appointment",
		Example: `  agendasync appointments book --patient-name "Juan Pérez" --rut 14444444-4 \
    --professional 2 --date 2026-10-20 --time 10:30 --reason "Control"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkSlot(draft.Date, draft.Time); err != nil {
				return err
			}
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				booked, err := s.app.Appointments.Book(ctx, draft)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Booked appointment #%d on %s at %s.\n", booked.ID, booked.Date, booked.Time)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&draft.PatientName, "patient-name", "", "patient full name")
	cmd.Flags().StringVar(&draft.PatientRUT, "rut", "", "patient RUT, e.g. 12345678-9")
	cmd.Flags().Int64Var(&draft.ProfessionalID, "professional", 0, "professional id")
	cmd.Flags().StringVar(&draft.Date, "date", "", "day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&draft.Time, "time", "", "time slot (HH:MM)")
	cmd.Flags().StringVar(&draft.Reason, "reason", "", "reason for the consultation")
	for _, f := range []string{"patient-name", "rut", "professional", "date", "time"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (c *cli) appointmentsRescheduleCmd() *cobra.Command {
	var date, hour string
	cmd := &cobra.Command{
		Use:   "reschedule <id>",
		Short: "Move an appointment to another day and time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := checkSlot(date, hour); err != nil {
				return err
			}
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				moved, err := s.app.Appointments.Reschedule(ctx, id, date, hour)
				if errors.Is(err, repository.ErrNotFound) {
					return fmt.Errorf("appointment #%d not found", id)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Appointment #%d moved to %s at %s.\n", moved.ID, moved.Date, moved.Time)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "new day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&hour, "time", "", "new time slot (HH:MM)")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func (c *cli) appointmentsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				if err := s.app.Appointments.Cancel(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Appointment #%d cancelled.\n", id)
				return nil
			})
		},
	}
}

func checkDate(s string) error {
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return nil
}

// checkSlot validates a booking day and time and rejects slots in the past.
func checkSlot(date, hour string) error {
	if err := checkDate(date); err != nil {
		return err
	}
	if err := checkTime(hour); err != nil {
		return err
	}
	at, ok := model.Appointment{Date: date, Time: hour}.ScheduledAt(time.Local)
	if ok && at.Before(time.Now()) {
		return fmt.Errorf("%s at %s is in the past", date, hour)
	}
	return nil
}

func checkTime(s string) error {
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return nil
}
