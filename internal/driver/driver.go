// Package driver defines the page-automation capability the run state
// machine drives. The reservation site's page flow is an undocumented
// external protocol, so the DOM-probing logic lives behind this interface
// and can change without touching the state machine.
package driver

import (
	"context"
	"time"

	"github.com/example/courtbook/internal/domain/reservation"
)

// PageDriver is one exclusive browser session walking the reservation form.
// Sessions are never shared between configs. Every method may suspend on the
// context; failures carry enough page text for diagnostics via Error.
type PageDriver interface {
	// Connect starts the browser session.
	Connect(ctx context.Context) error

	NavigateToURL(ctx context.Context, url string) error
	WaitForDOMReady(ctx context.Context) error

	// FindAndClickElement clicks the element matching a selector or its
	// visible text.
	FindAndClickElement(ctx context.Context, target string) error
	TypeText(ctx context.Context, selector, text string) error
	FillNumberOfPeople(ctx context.Context, n int) error
	SelectTimeSlot(ctx context.Context, day time.Weekday, slot reservation.TimeOfDay) error

	// DetectRetryText probes for the known CAPTCHA-retry marker.
	DetectRetryText(ctx context.Context) (bool, error)
	// PerformHumanInteraction simulates pointer motion and scrolling ahead of
	// a re-submission on the retry page.
	PerformHumanInteraction(ctx context.Context) error

	IsEmailVerificationRequired(ctx context.Context) (bool, error)
	FillVerificationCode(ctx context.Context, code string) error
	ClearVerificationCode(ctx context.Context) error

	// CheckReservationComplete reports whether the page shows the explicit
	// confirmation marker, returning the page text so callers can apply
	// their own conservative checks.
	CheckReservationComplete(ctx context.Context) (bool, string, error)

	PageText(ctx context.Context) (string, error)
	CaptureScreenshot(ctx context.Context, path string) error

	// Disconnect tears the session down. It must be safe to call after a
	// failed Connect and must not be skipped on any run outcome.
	Disconnect(closeWindow bool) error
}

// Factory builds one fresh session per run.
type Factory func() PageDriver
