// Package automation sequences one browser session through the facility's
// reservation form, including the CAPTCHA-retry loop and the emailed
// verification code sub-flow.
package automation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/example/courtbook/internal/domain/reservation"
	"github.com/example/courtbook/internal/driver"
	"github.com/example/courtbook/internal/internaltypes"
	"github.com/example/courtbook/internal/mail"
)

// State names one step of the booking flow.
type State string

const (
	StateConnecting           State = "Connecting"
	StateNavigatingToFacility State = "NavigatingToFacility"
	StateWaitingDomReady      State = "WaitingDomReady"
	StateSelectingSport       State = "SelectingSport"
	StateWaitingGroupSizePage State = "WaitingGroupSizePage"
	StateFillingGroupSize     State = "FillingGroupSize"
	StateClickingConfirm      State = "ClickingConfirm"
	StateSelectingTimeSlot    State = "SelectingTimeSlot"
	StateWaitingContactInfo   State = "WaitingContactInfoPage"
	StateFillingContactInfo   State = "FillingContactInfo"
	StateClickingContactOK    State = "ClickingContactConfirm"
	StateCaptchaRetryLoop     State = "CaptchaRetryLoop"
	StateEmailVerification    State = "EmailVerificationLoop"
	StateWaitingCompletion    State = "WaitingCompletion"
	StateSuccess              State = "Success"
)

// Flow targets handed to the driver. Button labels are visible text; the
// contact selectors are the one place the form's input IDs are known outside
// the driver, because TypeText inherently addresses a field.
const (
	confirmLabel        = "Confirm"
	contactConfirmLabel = "Complete Reservation"

	contactNameSel  = "input#contactName"
	contactEmailSel = "input#contactEmail"
	contactPhoneSel = "input#contactPhone"
)

const (
	defaultCaptchaAttempts = 3
	defaultVerifyTimeout   = 5 * time.Minute
	defaultPollInterval    = time.Second
	defaultCompletionWait  = 30 * time.Second
	confirmationMarker     = "is now confirmed"
)

// Contact is the booking contact typed into the form.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// Runner walks one reservation config through the form once. One Runner per
// run; the driver session is torn down on every outcome.
type Runner struct {
	Config  reservation.Config
	Driver  driver.PageDriver
	Mail    mail.Searcher
	Contact Contact

	CaptchaAttempts int
	VerifyTimeout   time.Duration
	PollInterval    time.Duration
	CompletionWait  time.Duration

	// ScreenshotDir, when set, receives a capture of the failing page.
	ScreenshotDir string
	// KeepWindowOpen leaves the browser window up after a successful booking.
	KeepWindowOpen bool

	now func() time.Time
	log zerolog.Logger
}

// Run executes the flow. It returns nil on confirmed success, the context's
// error when stopped, and a *internaltypes.RunError otherwise.
func (r *Runner) Run(ctx context.Context) (err error) {
	if r.CaptchaAttempts <= 0 {
		r.CaptchaAttempts = defaultCaptchaAttempts
	}
	if r.VerifyTimeout <= 0 {
		r.VerifyTimeout = defaultVerifyTimeout
	}
	if r.PollInterval <= 0 {
		r.PollInterval = defaultPollInterval
	}
	if r.CompletionWait <= 0 {
		r.CompletionWait = defaultCompletionWait
	}
	if r.now == nil {
		r.now = time.Now
	}
	r.log = log.With().Str("config", r.Config.Name).Logger()

	started := r.now()
	state := StateConnecting

	defer func() {
		if err != nil && !errors.Is(err, context.Canceled) {
			r.screenshot(state)
		}
		// The one mandatory cleanup guarantee: the session dies with the run.
		closeWindow := !(err == nil && r.KeepWindowOpen)
		if derr := r.Driver.Disconnect(closeWindow); derr != nil {
			r.log.Warn().Err(derr).Msg("session teardown failed")
		}
	}()

	steps := []struct {
		state State
		kind  internaltypes.Kind
		fn    func(context.Context) error
	}{
		{StateConnecting, internaltypes.KindConnection, r.Driver.Connect},
		{StateNavigatingToFacility, internaltypes.KindConnection, func(c context.Context) error {
			return r.Driver.NavigateToURL(c, r.Config.FacilityURL)
		}},
		{StateWaitingDomReady, internaltypes.KindPageLoadTimeout, r.Driver.WaitForDOMReady},
		{StateSelectingSport, internaltypes.KindElementNotFound, func(c context.Context) error {
			return r.Driver.FindAndClickElement(c, r.Config.Sport)
		}},
		{StateWaitingGroupSizePage, internaltypes.KindGroupSizeTimeout, r.Driver.WaitForDOMReady},
		{StateFillingGroupSize, internaltypes.KindTypeFailed, func(c context.Context) error {
			return r.Driver.FillNumberOfPeople(c, r.Config.PartySize)
		}},
		{StateClickingConfirm, internaltypes.KindClickFailed, func(c context.Context) error {
			return r.Driver.FindAndClickElement(c, confirmLabel)
		}},
		{StateSelectingTimeSlot, internaltypes.KindElementNotFound, r.selectTimeSlot},
		{StateWaitingContactInfo, internaltypes.KindContactInfoTimeout, r.Driver.WaitForDOMReady},
		{StateFillingContactInfo, internaltypes.KindTypeFailed, r.fillContactInfo},
		{StateClickingContactOK, internaltypes.KindClickFailed, func(c context.Context) error {
			return r.Driver.FindAndClickElement(c, contactConfirmLabel)
		}},
		{StateCaptchaRetryLoop, internaltypes.KindCaptchaExhausted, r.captchaRetryLoop},
		{StateEmailVerification, internaltypes.KindEmailVerification, r.emailVerificationLoop},
		{StateWaitingCompletion, internaltypes.KindUnknown, r.waitForCompletion},
	}

	for _, step := range steps {
		state = step.state
		if err := ctx.Err(); err != nil {
			r.log.Info().Str("state", string(state)).Msg("run stopped")
			return err
		}
		r.transition(state, started)
		if err := step.fn(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return r.classify(err, step.kind)
		}
	}

	state = StateSuccess
	r.transition(state, started)
	return nil
}

func (r *Runner) transition(s State, started time.Time) {
	r.log.Info().Str("state", string(s)).Dur("elapsed", r.now().Sub(started)).Msg("state transition")
}

// classify keeps a kind already tagged by the driver, otherwise applies the
// state's default.
func (r *Runner) classify(err error, fallback internaltypes.Kind) error {
	var re *internaltypes.RunError
	if errors.As(err, &re) {
		return err
	}
	var de *driver.Error
	if errors.As(err, &de) {
		return internaltypes.NewRunError(de.Kind, err)
	}
	return internaltypes.NewRunError(fallback, err)
}

func (r *Runner) selectTimeSlot(ctx context.Context) error {
	day, slot, ok := targetSlot(r.Config, r.now())
	if !ok {
		return fmt.Errorf("config has no scheduled slot")
	}
	return r.Driver.SelectTimeSlot(ctx, day, slot)
}

func (r *Runner) fillContactInfo(ctx context.Context) error {
	fields := []struct{ sel, val string }{
		{contactNameSel, r.Contact.Name},
		{contactEmailSel, r.Contact.Email},
		{contactPhoneSel, r.Contact.Phone},
	}
	for _, f := range fields {
		if f.val == "" {
			continue
		}
		if err := r.Driver.TypeText(ctx, f.sel, f.val); err != nil {
			return err
		}
	}
	return nil
}

// captchaRetryLoop re-submits past the known retry page, at most
// CaptchaAttempts times, with a human-like interaction before each re-click.
func (r *Runner) captchaRetryLoop(ctx context.Context) error {
	for attempt := 1; attempt <= r.CaptchaAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		retry, err := r.Driver.DetectRetryText(ctx)
		if err != nil {
			return err
		}
		if !retry {
			return nil
		}
		r.log.Info().Int("attempt", attempt).Int("max", r.CaptchaAttempts).Msg("retry page detected")

		if err := r.Driver.PerformHumanInteraction(ctx); err != nil {
			return err
		}
		if err := r.Driver.FindAndClickElement(ctx, contactConfirmLabel); err != nil {
			return err
		}
	}

	retry, err := r.Driver.DetectRetryText(ctx)
	if err != nil {
		return err
	}
	if retry {
		return internaltypes.NewRunError(internaltypes.KindCaptchaExhausted,
			fmt.Errorf("retry page persisted after %d attempts", r.CaptchaAttempts))
	}
	return nil
}

// emailVerificationLoop polls the mailbox for a code received after
// verification began and submits candidates until the verification screen
// goes away. Codes already tried are not reused.
func (r *Runner) emailVerificationLoop(ctx context.Context) error {
	required, err := r.Driver.IsEmailVerificationRequired(ctx)
	if err != nil {
		return err
	}
	if !required {
		return nil
	}

	verifyStart := r.now()
	deadline := verifyStart.Add(r.VerifyTimeout)
	tried := make(map[string]bool)
	r.log.Info().Dur("timeout", r.VerifyTimeout).Msg("email verification required")

	for r.now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.PollInterval):
		}

		emails, err := r.Mail.SearchForVerificationEmails(ctx, verifyStart)
		if err != nil {
			// Hard mailbox error (the poller already absorbed transient ones).
			return err
		}

		for _, code := range mail.CandidateCodes(emails) {
			if tried[code] {
				continue
			}
			tried[code] = true
			r.log.Info().Str("code", code).Msg("submitting verification code")

			if err := r.Driver.FillVerificationCode(ctx, code); err != nil {
				return err
			}

			still, err := r.Driver.IsEmailVerificationRequired(ctx)
			if err != nil {
				return err
			}
			if !still {
				return nil
			}
			// Rejected; clear the field and wait for the next candidate.
			if err := r.Driver.ClearVerificationCode(ctx); err != nil {
				return err
			}
		}
	}

	return internaltypes.NewRunError(internaltypes.KindEmailVerification,
		fmt.Errorf("no accepted code within %s", r.VerifyTimeout))
}

// waitForCompletion declares success only on the explicit confirmation
// marker. Absence of the verification screen alone is not evidence of
// success; intermediate and error pages would pass that test.
func (r *Runner) waitForCompletion(ctx context.Context) error {
	deadline := r.now().Add(r.CompletionWait)
	for {
		complete, text, err := r.Driver.CheckReservationComplete(ctx)
		if err != nil {
			return err
		}
		if complete && strings.Contains(strings.ToLower(text), confirmationMarker) {
			return nil
		}
		if !r.now().Before(deadline) {
			return internaltypes.NewRunError(internaltypes.KindVerificationTimeout,
				fmt.Errorf("confirmation marker never appeared within %s", r.CompletionWait))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.PollInterval):
		}
	}
}

func (r *Runner) screenshot(state State) {
	if r.ScreenshotDir == "" {
		return
	}
	name := fmt.Sprintf("%s-%s-%s.png", sanitize(r.Config.Name), state, r.now().Format("20060102-150405"))
	snapCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Driver.CaptureScreenshot(snapCtx, filepath.Join(r.ScreenshotDir, name)); err != nil {
		r.log.Debug().Err(err).Msg("failure screenshot not captured")
	}
}

func sanitize(name string) string {
	return strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		default:
			return '-'
		}
	}, name)
}

// targetSlot picks the weekday with the soonest upcoming occurrence strictly
// after today; the booking window opens days before the slot, so the target
// is never today itself.
func targetSlot(cfg reservation.Config, now time.Time) (time.Weekday, reservation.TimeOfDay, bool) {
	best := -1
	var bestDay time.Weekday
	for _, day := range cfg.Weekdays() {
		delta := int(day-now.Weekday()+7) % 7
		if delta == 0 {
			delta = 7
		}
		if best == -1 || delta < best {
			best = delta
			bestDay = day
		}
	}
	if best == -1 {
		return 0, 0, false
	}
	slot, _ := cfg.SlotFor(bestDay)
	return bestDay, slot, true
}
