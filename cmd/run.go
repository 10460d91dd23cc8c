package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/example/courtbook/internal/automation"
	"github.com/example/courtbook/internal/config"
	"github.com/example/courtbook/internal/db"
	"github.com/example/courtbook/internal/domain/reservation"
	"github.com/example/courtbook/internal/driver/chromedriver"
	"github.com/example/courtbook/internal/health"
	"github.com/example/courtbook/internal/internaltypes"
	"github.com/example/courtbook/internal/mail"
	"github.com/example/courtbook/internal/metrics"
	"github.com/example/courtbook/internal/migrate"
	"github.com/example/courtbook/internal/orchestrator"
	"github.com/example/courtbook/internal/scheduler"
	"github.com/example/courtbook/internal/status"
)

const (
	// watchTimeout bounds how long the CLI waits on in-flight runs before
	// declaring them timed out and tearing sessions down.
	watchTimeout  = 5 * time.Minute
	watchInterval = time.Second
)

func newRunCmd() *cobra.Command {
	var (
		runNow      bool
		priorDays   int
		hide        bool
		screenshots string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the booking flow for today's due configs (or all, with --now)",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load()
			if err != nil {
				return err
			}
			initLogging(settings.LogLevel)
			log.Info().Fields(settings.Redacted()).Msg("settings loaded")

			configs, err := settings.Reservations()
			if err != nil {
				return err
			}

			priorDays, err = resolvePriorDays(cmd.Flags().Changed("prior"), priorDays, settings.PriorDays)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var repo status.RecordRepo
			if settings.DatabaseURL != "" {
				d, err := db.Open(ctx, settings.DatabaseURL)
				if err != nil {
					return err
				}
				defer d.Close()
				if err := d.Ping(ctx); err != nil {
					return fmt.Errorf("db ping: %w", err)
				}
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
				repo = status.NewPostgresRepo(d)
			}
			store := status.NewStore(repo)

			if metricsAddr != "" {
				mux := http.NewServeMux()
				metrics.Register(mux)
				health.Register(mux)
				go func() {
					if err := http.ListenAndServe(metricsAddr, mux); err != nil {
						log.Error().Err(err).Msg("metrics listener stopped")
					}
				}()
			}

			runType := reservation.RunTypeManual
			selected := configs
			if !runNow {
				runType = reservation.RunTypeAutorun
				today := scheduler.DateOf(time.Now())
				selected = dueToday(configs, today, priorDays)
				if len(selected) == 0 {
					log.Info().Msg("no configs due today; nothing to do")
					return nil
				}
				cutoff, err := settings.CutoffTime()
				if err != nil {
					return err
				}
				target := scheduler.RunInstant(today, cutoff)
				var lastLog time.Time
				err = scheduler.WaitUntil(ctx, target, func(remaining time.Duration) {
					// The callback fires every second; only log every 30s
					// plus the final countdown.
					if time.Since(lastLog) < 30*time.Second && remaining > 10*time.Second {
						return
					}
					lastLog = time.Now()
					log.Info().Dur("remaining", remaining).Time("target", target).Msg("waiting for booking cutoff")
				})
				if err != nil {
					return err
				}
			}

			poller := &mail.IMAPPoller{
				Addr:     settings.Mail.Addr,
				Username: settings.Mail.Username,
				Password: settings.Mail.Password,
				Sender:   settings.Mail.Sender,
				Subject:  settings.Mail.Subject,
			}
			defer poller.Close()

			factory := chromedriver.New(chromedriver.Options{
				Headless:      hide,
				ScreenshotDir: screenshots,
			})

			orch := orchestrator.New(factory, poller, store, orchestrator.Options{
				Contact: automation.Contact{
					Name:  settings.Contact.Name,
					Email: settings.Contact.Email,
					Phone: settings.Contact.Phone,
				},
				ScreenshotDir:  screenshots,
				KeepWindowOpen: !hide,
			})

			orch.RunMultiple(ctx, selected, runType)
			allOK := watchRuns(ctx, store, selected)
			if !allOK {
				orch.StopAll()
			}
			orch.Wait()

			if !allOK {
				return fmt.Errorf("one or more bookings did not succeed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&runNow, "now", false, "run all enabled configs immediately, ignoring the schedule")
	cmd.Flags().IntVar(&priorDays, "prior", 0, "days before the slot's weekday that booking opens (default from settings)")
	cmd.Flags().BoolVar(&hide, "hide", false, "run the browser headless")
	cmd.Flags().StringVar(&screenshots, "screenshots", "", "directory for failure screenshots (disabled when empty)")
	cmd.Flags().StringVar(&metricsAddr, "serve-metrics", "", "serve prometheus metrics and /healthz on this address")
	return cmd
}

// resolvePriorDays falls back to the settings value only when the flag was
// not given, so an explicit non-positive `--prior` is rejected rather than
// silently replaced.
func resolvePriorDays(flagSet bool, flagValue, fallback int) (int, error) {
	n := flagValue
	if !flagSet {
		n = fallback
	}
	if err := scheduler.ValidatePriorDays(n); err != nil {
		return 0, err
	}
	return n, nil
}

func dueToday(configs []reservation.Config, today time.Time, priorDays int) []reservation.Config {
	var due []reservation.Config
	for _, c := range configs {
		if !c.Enabled {
			continue
		}
		if scheduler.ShouldRun(c, today, priorDays) {
			due = append(due, c)
		}
	}
	return due
}

// watchRuns follows run statuses until every selected config reaches a
// terminal state or the watch window closes. Configs still pending at the
// deadline are reported as timed out, which is distinct from a run the state
// machine itself failed.
func watchRuns(ctx context.Context, store *status.Store, configs []reservation.Config) bool {
	names := make(map[string]string, len(configs))
	lastSeen := make(map[string]reservation.RunState, len(configs))
	for _, c := range configs {
		names[c.ID] = c.Name
	}

	deadline := time.After(watchTimeout)
	tick := time.NewTicker(watchInterval)
	defer tick.Stop()

	for {
		terminal := 0
		allSuccess := true
		for id, name := range names {
			rec, ok := store.GetLastRunInfo(id)
			if !ok {
				allSuccess = false
				continue
			}
			if rec.Status.State != lastSeen[id] {
				lastSeen[id] = rec.Status.State
				logTransition(name, rec.Status)
			}
			if rec.Status.State.Terminal() {
				terminal++
			}
			if rec.Status.State != reservation.StateSuccess {
				allSuccess = false
			}
		}
		if terminal == len(names) {
			return allSuccess
		}

		select {
		case <-ctx.Done():
			log.Warn().Msg("interrupted; stopping in-flight runs")
			return false
		case <-deadline:
			for id, name := range names {
				if !lastSeen[id].Terminal() {
					log.Warn().Str("config", name).Msg("timed out waiting for run to finish")
				}
			}
			return false
		case <-tick.C:
		}
	}
}

func logTransition(name string, st reservation.RunStatus) {
	ev := log.Info().Str("config", name).Str("state", string(st.State))
	switch st.State {
	case reservation.StateFailed:
		ev = log.Error().Str("config", name).Str("state", string(st.State)).
			Str("reason", internaltypes.MessageFor(internaltypes.Kind(st.Reason)))
	case reservation.StateSuccess:
		ev = log.Info().Str("config", name).Str("state", string(st.State)).Str("result", "booked")
	}
	ev.Msg("run status")
}
