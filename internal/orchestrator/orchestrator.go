// Package orchestrator runs many reservation configs concurrently, one
// browser session each, with partial-failure isolation: one run's outcome
// never affects another's.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/example/courtbook/internal/automation"
	"github.com/example/courtbook/internal/domain/reservation"
	"github.com/example/courtbook/internal/driver"
	"github.com/example/courtbook/internal/internaltypes"
	"github.com/example/courtbook/internal/mail"
	"github.com/example/courtbook/internal/metrics"
	"github.com/example/courtbook/internal/status"
)

// cleanupGrace bounds how long emergency teardown waits on each run.
const cleanupGrace = 3 * time.Second

// Options carry the per-run knobs shared by every config.
type Options struct {
	Contact         automation.Contact
	CaptchaAttempts int
	VerifyTimeout   time.Duration
	ScreenshotDir   string
	KeepWindowOpen  bool
}

type activeRun struct {
	runType reservation.RunType
	cancel  context.CancelFunc
	done    chan struct{}
}

// Orchestrator owns the set of in-flight runs and is the sole writer of run
// status through its Store.
type Orchestrator struct {
	drivers driver.Factory
	mailbox mail.Searcher
	store   *status.Store
	opts    Options

	mu     sync.Mutex
	active map[string]*activeRun
	last   reservation.RunStatus
	wg     sync.WaitGroup
}

func New(drivers driver.Factory, mailbox mail.Searcher, store *status.Store, opts Options) *Orchestrator {
	return &Orchestrator{
		drivers: drivers,
		mailbox: mailbox,
		store:   store,
		opts:    opts,
		active:  make(map[string]*activeRun),
		last:    reservation.Idle(),
	}
}

// RunMultiple launches one run per enabled config. A config with a run
// already active is skipped: no queueing, no duplicates. The check and the
// registration happen under one lock, so concurrent calls cannot race two
// runs for the same config.
func (o *Orchestrator) RunMultiple(ctx context.Context, configs []reservation.Config, runType reservation.RunType) {
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		o.launch(ctx, cfg, runType)
	}
}

func (o *Orchestrator) launch(ctx context.Context, cfg reservation.Config, runType reservation.RunType) {
	o.mu.Lock()
	if _, exists := o.active[cfg.ID]; exists {
		o.mu.Unlock()
		log.Warn().Str("config", cfg.Name).Msg("run already active, skipping")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	run := &activeRun{runType: runType, cancel: cancel, done: make(chan struct{})}
	o.active[cfg.ID] = run
	o.mu.Unlock()

	o.store.Update(cfg.ID, runType, reservation.Running())
	metrics.RunsStarted.WithLabelValues(string(runType)).Inc()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(run.done)
		defer cancel()

		started := time.Now()
		runner := &automation.Runner{
			Config:          cfg,
			Driver:          o.drivers(),
			Mail:            o.mailbox,
			Contact:         o.opts.Contact,
			CaptchaAttempts: o.opts.CaptchaAttempts,
			VerifyTimeout:   o.opts.VerifyTimeout,
			ScreenshotDir:   o.opts.ScreenshotDir,
			KeepWindowOpen:  o.opts.KeepWindowOpen,
		}

		st := o.outcome(cfg, runner.Run(runCtx))
		metrics.RunOutcomes.WithLabelValues(string(st.State)).Inc()
		metrics.RunDuration.Observe(time.Since(started).Seconds())

		o.mu.Lock()
		delete(o.active, cfg.ID)
		o.last = st
		o.mu.Unlock()

		o.store.Update(cfg.ID, runType, st)
	}()
}

func (o *Orchestrator) outcome(cfg reservation.Config, err error) reservation.RunStatus {
	switch {
	case err == nil:
		log.Info().Str("config", cfg.Name).Msg("reservation confirmed")
		return reservation.Success()
	case errors.Is(err, context.Canceled):
		log.Info().Str("config", cfg.Name).Msg("run stopped")
		return reservation.Stopped()
	default:
		kind := internaltypes.KindOf(err)
		log.Error().Err(err).Str("config", cfg.Name).Str("kind", string(kind)).
			Str("message", internaltypes.UserMessageOf(err)).Msg("run failed")
		return reservation.Failed(string(kind))
	}
}

// Stop signals cancellation to the run for configID. The run observes it
// within one polling interval and releases its session. Returns false when
// no run is active for the config.
func (o *Orchestrator) Stop(configID string) bool {
	o.mu.Lock()
	run, ok := o.active[configID]
	o.mu.Unlock()
	if !ok {
		return false
	}
	run.cancel()
	return true
}

// StopAll cancels every active run.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	runs := make([]*activeRun, 0, len(o.active))
	for _, r := range o.active {
		runs = append(runs, r)
	}
	o.mu.Unlock()
	for _, r := range runs {
		r.cancel()
	}
}

// EmergencyCleanup tears down all active sessions of the given run type
// during process shutdown. It never propagates an error; individual
// failures are logged and swallowed.
func (o *Orchestrator) EmergencyCleanup(runType reservation.RunType) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("emergency cleanup recovered")
		}
	}()

	o.mu.Lock()
	runs := make(map[string]*activeRun)
	for id, r := range o.active {
		if r.runType == runType {
			runs[id] = r
		}
	}
	o.mu.Unlock()

	for id, r := range runs {
		r.cancel()
		select {
		case <-r.done:
		case <-time.After(cleanupGrace):
			log.Warn().Str("config", id).Msg("run did not finish teardown in time")
		}
	}
}

// ActiveCount reports how many runs are in flight.
func (o *Orchestrator) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active)
}

// IsActive reports whether configID has a run in flight.
func (o *Orchestrator) IsActive(configID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.active[configID]
	return ok
}

// LastRunStatus is the most recent aggregate status transition.
func (o *Orchestrator) LastRunStatus() reservation.RunStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Wait blocks until every launched run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}
