// Package chromedriver implements driver.PageDriver against a real Chrome
// instance via chromedp.
package chromedriver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/example/courtbook/internal/domain/reservation"
	"github.com/example/courtbook/internal/driver"
	"github.com/example/courtbook/internal/internaltypes"
)

// Page probes for the facility site. The flow is HTML structure, not a
// documented API; when the site changes, these are the only lines that move.
const (
	sportButtonXPath     = `//button[contains(normalize-space(.), %q)]`
	groupSizeInputSel    = `input#reservationCount`
	confirmButtonSel     = `button#submit-btn`
	contactConfirmSel    = `button#cart-cta-btn`
	verificationInputSel = `input#code`
	timeSlotXPath        = `//div[contains(@class,"time-selection")]//button[contains(normalize-space(.), %q)]`
	retryMarkerText      = "please retry your request"
	verificationMarker   = "verification code"
	confirmationMarker   = "is now confirmed"
)

const (
	defaultPageLoadTimeout = 30 * time.Second
	humanPause             = 1500 * time.Millisecond
)

// Options configure one session.
type Options struct {
	Headless        bool
	ScreenshotDir   string
	PageLoadTimeout time.Duration
}

// Driver is one exclusive Chrome session. Not safe for concurrent use; each
// run owns its own Driver.
type Driver struct {
	opts Options

	allocCancel context.CancelFunc
	tabCancel   context.CancelFunc
	tab         context.Context
}

// New returns a Factory producing fresh sessions with the given options.
func New(opts Options) driver.Factory {
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = defaultPageLoadTimeout
	}
	return func() driver.PageDriver {
		return &Driver{opts: opts}
	}
}

func (d *Driver) Connect(ctx context.Context) error {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !d.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	// Starting the browser is lazy in chromedp; force it now so connection
	// failures surface here rather than on the first navigation.
	if err := chromedp.Run(tab); err != nil {
		tabCancel()
		allocCancel()
		return driver.NewError(internaltypes.KindConnection, "connect", "", err)
	}

	d.allocCancel = allocCancel
	d.tabCancel = tabCancel
	d.tab = tab
	return nil
}

func (d *Driver) NavigateToURL(ctx context.Context, url string) error {
	if err := d.run(ctx, d.opts.PageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return d.fail(internaltypes.KindConnection, "navigate", err)
	}
	return nil
}

func (d *Driver) WaitForDOMReady(ctx context.Context) error {
	if err := d.run(ctx, d.opts.PageLoadTimeout, chromedp.WaitReady(`body`, chromedp.ByQuery)); err != nil {
		return d.fail(internaltypes.KindPageLoadTimeout, "waitDomReady", err)
	}
	return nil
}

// FindAndClickElement accepts either a CSS selector or the visible text of a
// button/link.
func (d *Driver) FindAndClickElement(ctx context.Context, target string) error {
	var action chromedp.Action
	if looksLikeSelector(target) {
		action = chromedp.Click(target, chromedp.ByQuery)
	} else {
		action = chromedp.Click(fmt.Sprintf(sportButtonXPath, target), chromedp.BySearch)
	}
	if err := d.run(ctx, d.opts.PageLoadTimeout, action); err != nil {
		return d.fail(internaltypes.KindClickFailed, "click "+target, err)
	}
	return nil
}

func (d *Driver) TypeText(ctx context.Context, selector, text string) error {
	err := d.run(ctx, d.opts.PageLoadTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return d.fail(internaltypes.KindTypeFailed, "type "+selector, err)
	}
	return nil
}

func (d *Driver) FillNumberOfPeople(ctx context.Context, n int) error {
	// SetValue alone does not fire the site's change listeners; dispatch the
	// input event the way a keystroke would.
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector('%s');
		if (!el) return false;
		el.value = '%d';
		el.dispatchEvent(new Event('input', { bubbles: true }));
		el.dispatchEvent(new Event('change', { bubbles: true }));
		return true;
	})()`, groupSizeInputSel, n)

	var ok bool
	if err := d.run(ctx, d.opts.PageLoadTimeout, chromedp.Evaluate(js, &ok)); err != nil {
		return d.fail(internaltypes.KindTypeFailed, "fillGroupSize", err)
	}
	if !ok {
		return d.fail(internaltypes.KindElementNotFound, "fillGroupSize", fmt.Errorf("group size input %s not found", groupSizeInputSel))
	}
	return nil
}

func (d *Driver) SelectTimeSlot(ctx context.Context, day time.Weekday, slot reservation.TimeOfDay) error {
	label := slotLabel(day, slot)
	err := d.run(ctx, d.opts.PageLoadTimeout,
		chromedp.Click(fmt.Sprintf(timeSlotXPath, label), chromedp.BySearch),
	)
	if err != nil {
		return d.fail(internaltypes.KindElementNotFound, "selectTimeSlot "+label, err)
	}
	return nil
}

func (d *Driver) DetectRetryText(ctx context.Context) (bool, error) {
	text, err := d.PageText(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(text), retryMarkerText), nil
}

func (d *Driver) PerformHumanInteraction(ctx context.Context) error {
	// A short pointer path, a scroll, and a pause. Enough for the known
	// retry page; defeating anything beyond it is out of scope. The pointer
	// events go through CDP so the page sees trusted input, not synthetic
	// MouseEvents.
	path := [][2]float64{{120, 140}, {260, 220}, {340, 310}, {420, 280}, {380, 360}}
	move := chromedp.ActionFunc(func(c context.Context) error {
		for _, p := range path {
			ev := input.DispatchMouseEvent(input.MouseMoved, p[0], p[1])
			if err := ev.Do(c); err != nil {
				return err
			}
		}
		return nil
	})
	scroll := chromedp.Evaluate(`(() => {
		window.scrollBy({ top: 240, behavior: 'smooth' });
		window.scrollBy({ top: -120, behavior: 'smooth' });
	})()`, nil)

	if err := d.run(ctx, d.opts.PageLoadTimeout, move, scroll); err != nil {
		return d.fail(internaltypes.KindUnknown, "humanInteraction", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(humanPause):
	}
	return nil
}

func (d *Driver) IsEmailVerificationRequired(ctx context.Context) (bool, error) {
	text, err := d.PageText(ctx)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(text), verificationMarker), nil
}

func (d *Driver) FillVerificationCode(ctx context.Context, code string) error {
	if err := d.TypeText(ctx, verificationInputSel, code); err != nil {
		return err
	}
	return d.FindAndClickElement(ctx, confirmButtonSel)
}

func (d *Driver) ClearVerificationCode(ctx context.Context) error {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector('%s');
		if (el) {
			el.value = '';
			el.dispatchEvent(new Event('input', { bubbles: true }));
		}
	})()`, verificationInputSel)
	if err := d.run(ctx, d.opts.PageLoadTimeout, chromedp.Evaluate(js, nil)); err != nil {
		return d.fail(internaltypes.KindTypeFailed, "clearVerificationCode", err)
	}
	return nil
}

func (d *Driver) CheckReservationComplete(ctx context.Context) (bool, string, error) {
	text, err := d.PageText(ctx)
	if err != nil {
		return false, "", err
	}
	return strings.Contains(strings.ToLower(text), confirmationMarker), text, nil
}

func (d *Driver) PageText(ctx context.Context) (string, error) {
	var text string
	err := d.run(ctx, d.opts.PageLoadTimeout,
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text),
	)
	if err != nil {
		return "", d.fail(internaltypes.KindConnection, "pageText", err)
	}
	return text, nil
}

func (d *Driver) CaptureScreenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := d.run(ctx, d.opts.PageLoadTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	log.Debug().Str("path", path).Msg("saved screenshot")
	return nil
}

func (d *Driver) Disconnect(closeWindow bool) error {
	if d.tabCancel == nil {
		return nil
	}
	if closeWindow {
		d.tabCancel()
		d.allocCancel()
	}
	// When the window stays up for the user, the contexts are dropped
	// without cancelling: cancelling the tab context closes the whole
	// browser, so detaching means abandoning control entirely. The browser
	// outlives the process.
	d.tab = nil
	d.tabCancel = nil
	d.allocCancel = nil
	return nil
}

// run executes actions on the session tab, honoring both the caller's
// context and the per-operation timeout.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if d.tab == nil {
		return fmt.Errorf("session not connected")
	}
	opCtx, cancel := context.WithTimeout(d.tab, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(opCtx, actions...) }()

	select {
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// fail wraps err with a kind tag and the current page text for diagnostics.
// The page fetch is best effort; a dead session yields an empty snippet.
func (d *Driver) fail(kind internaltypes.Kind, op string, err error) error {
	var snippet string
	if d.tab != nil {
		snapCtx, cancel := context.WithTimeout(d.tab, 2*time.Second)
		_ = chromedp.Run(snapCtx, chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &snippet))
		cancel()
	}
	return driver.NewError(kind, op, snippet, err)
}

func looksLikeSelector(target string) bool {
	return strings.ContainsAny(target, "#.[>") || strings.HasPrefix(target, "button") || strings.HasPrefix(target, "input")
}

func slotLabel(day time.Weekday, slot reservation.TimeOfDay) string {
	hour := slot.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	meridiem := "AM"
	if slot.Hour() >= 12 {
		meridiem = "PM"
	}
	return fmt.Sprintf("%s %d:%02d %s", day.String(), hour, slot.Minute(), meridiem)
}
