package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/courtbook/internal/config"
	"github.com/example/courtbook/internal/conflict"
	"github.com/example/courtbook/internal/db"
	"github.com/example/courtbook/internal/domain/reservation"
	"github.com/example/courtbook/internal/internaltypes"
	"github.com/example/courtbook/internal/scheduler"
	"github.com/example/courtbook/internal/status"
)

func newConfigsCmd() *cobra.Command {
	var history int

	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List booking configs, their next autorun dates and schedule conflicts",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			configs, err := settings.Reservations()
			if err != nil {
				return err
			}

			ctx := context.Background()
			var repo *status.PostgresRepo
			if settings.DatabaseURL != "" {
				d, err := db.Open(ctx, settings.DatabaseURL)
				if err != nil {
					return err
				}
				defer d.Close()
				repo = status.NewPostgresRepo(d)
			}

			today := scheduler.DateOf(time.Now())
			for _, c := range configs {
				state := "enabled"
				if !c.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(os.Stdout, "%s  [%s]  %s, party of %d\n", c.Name, state, c.Sport, c.PartySize)
				fmt.Fprintf(os.Stdout, "  schedule: %s\n", formatSchedule(c))

				if next, ok := scheduler.NextRunDate(c, today, settings.PriorDays); ok {
					fmt.Fprintf(os.Stdout, "  next autorun: %s\n", next.Format("Monday 2006-01-02"))
				} else {
					fmt.Fprintf(os.Stdout, "  next autorun: none within the lookahead window\n")
				}

				for _, cf := range conflict.Detect(c, configs) {
					fmt.Fprintf(os.Stdout, "  conflict (%s): %s\n", cf.Severity, cf.Message)
					for _, d := range cf.Details {
						fmt.Fprintf(os.Stdout, "    - %s\n", d)
					}
				}

				if repo != nil {
					if err := printHistory(ctx, repo, c.ID, history); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&history, "history", 5, "past run records to show per config (needs a database)")
	return cmd
}

// printHistory shows the last recorded outcome, or the full lookback when
// more than one record was asked for.
func printHistory(ctx context.Context, repo *status.PostgresRepo, configID string, limit int) error {
	if limit <= 1 {
		rec, err := repo.Last(ctx, configID)
		if errors.Is(err, db.ErrNotFound) {
			fmt.Fprintln(os.Stdout, "  last run: none recorded")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "  last run: %s  %s %s%s\n",
			rec.UpdatedAt.Format("2006-01-02 15:04"), rec.RunType, rec.Status.State, reasonSuffix(rec.Status))
		return nil
	}

	recs, err := repo.History(ctx, configID, limit)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		fmt.Fprintf(os.Stdout, "  %s  %s %s%s\n",
			rec.UpdatedAt.Format("2006-01-02 15:04"), rec.RunType, rec.Status.State, reasonSuffix(rec.Status))
	}
	return nil
}

func reasonSuffix(st reservation.RunStatus) string {
	if st.Reason == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", internaltypes.MessageFor(internaltypes.Kind(st.Reason)))
}

func formatSchedule(c reservation.Config) string {
	var parts []string
	for _, day := range c.Weekdays() {
		if slot, ok := c.SlotFor(day); ok {
			parts = append(parts, fmt.Sprintf("%s %s", day.String(), slot.String()))
		}
	}
	return strings.Join(parts, ", ")
}
