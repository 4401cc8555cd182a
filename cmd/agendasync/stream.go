package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/state"
	syncp "github.com/njoerd114/agendasync/internal/sync"
)

// listing describes one list command: the stream to open, the refresh it
// triggers, and how to render rows.
type listing[T any] struct {
	observe func(ctx context.Context) <-chan state.Snapshot[T]
	refresh func(ctx context.Context) (syncp.RefreshOutcome, error)
	render  func(w io.Writer, items []T)
}

// show prints the stream once the refresh it started has settled. With watch
// it prints every emission until ctx is done instead.
func show[T any](ctx context.Context, w io.Writer, l listing[T], watch bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := l.observe(ctx)
	if watch {
		return follow(ctx, w, ch, l.render)
	}

	first, ok := <-ch
	if !ok {
		return ctx.Err()
	}
	if first.Err != nil {
		return first.Err
	}

	// Coalesces with the refresh the stream just started.
	outcome, err := l.refresh(ctx)
	if err != nil {
		return err
	}

	items := first.Items
	if outcome == syncp.Replaced {
		// The replace committed before refresh returned, so the next emission
		// reflects it.
		select {
		case snap, ok := <-ch:
			if !ok {
				return ctx.Err()
			}
			if snap.Err != nil {
				return snap.Err
			}
			items = snap.Items
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.render(w, items)
	if outcome == syncp.RemoteFailed {
		fmt.Fprintln(w, "\n(API unreachable: showing the local copy)")
	}
	return nil
}

// follow prints every snapshot until the stream ends. Interrupting is a
// normal exit.
func follow[T any](ctx context.Context, w io.Writer, ch <-chan state.Snapshot[T], render func(io.Writer, []T)) error {
	for snap := range ch {
		if snap.Err != nil {
			return snap.Err
		}
		fmt.Fprintf(w, "--- %s, %d row(s)\n", time.Now().Format(time.TimeOnly), len(snap.Items))
		render(w, snap.Items)
		fmt.Fprintln(w)
	}
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("stream closed unexpectedly")
}

// --- rendering ---------------------------------------------------------------

func table(w io.Writer, header string, rows func(tw *tabwriter.Writer)) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	_ = tw.Flush()
}

func printAppointments(w io.Writer, items []model.Appointment) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No appointments.")
		return
	}
	table(w, "ID\tDATE\tTIME\tPATIENT\tRUT\tPROFESSIONAL\tSPECIALTY\tREASON", func(tw *tabwriter.Writer) {
		for _, a := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				a.ID, a.Date, a.Time, a.PatientName, a.PatientRUT, a.ProfessionalName, a.Specialty, a.Reason)
		}
	})
}

func printProfessionals(w io.Writer, items []model.Professional) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No professionals.")
		return
	}
	table(w, "ID\tNAME\tSPECIALTY\tAVAILABLE", func(tw *tabwriter.Writer) {
		for _, p := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.Name, p.Specialty, yesNo(p.Available))
		}
	})
}

func printUsers(w io.Writer, items []model.User) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No users.")
		return
	}
	table(w, "ID\tUSERNAME\tNAME\tROLE\tEMAIL\tRUT\tACTIVE\tAVATAR", func(tw *tabwriter.Writer) {
		for _, u := range items {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				u.ID, u.Username, u.FullName, u.Role.DisplayName(), u.Email, u.RUT, yesNo(u.Active), avatar(u))
		}
	})
}

// avatar is "photo" when a profile photo is set, otherwise the initials shown
// in its place.
func avatar(u model.User) string {
	if u.HasPhoto() {
		return "photo"
	}
	return u.Initials()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// parseID parses a positive identifier argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}
