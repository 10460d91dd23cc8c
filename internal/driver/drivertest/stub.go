// Package drivertest provides a scripted in-memory PageDriver for tests.
package drivertest

import (
	"context"
	"sync"
	"time"

	"github.com/example/courtbook/internal/domain/reservation"
	"github.com/example/courtbook/internal/driver"
)

// Stub walks the happy path unless scripted otherwise. All fields must be
// set before the run starts; accessors are safe for concurrent use.
type Stub struct {
	// FailOn makes the named op return the given error.
	FailOn map[string]error
	// StallOn makes the named op block until the context is done.
	StallOn string
	// RetryPages is how many consecutive DetectRetryText calls report the
	// CAPTCHA-retry marker before it clears.
	RetryPages int
	// VerificationRequired gates the email-verification sub-flow. It clears
	// once AcceptCode is submitted.
	VerificationRequired bool
	// AcceptCode is the only verification code the fake site accepts. Other
	// codes leave the verification screen up.
	AcceptCode string
	// NeverComplete keeps the page on an intermediate screen so the
	// confirmation marker never appears.
	NeverComplete bool

	mu           sync.Mutex
	calls        []string
	retrySeen    int
	verified     bool
	disconnected bool
	codesTried   []string
}

var _ driver.PageDriver = (*Stub)(nil)

func (s *Stub) step(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	s.mu.Unlock()

	if s.StallOn == op {
		<-ctx.Done()
		return ctx.Err()
	}
	if err, ok := s.FailOn[op]; ok {
		return err
	}
	return ctx.Err()
}

func (s *Stub) Connect(ctx context.Context) error { return s.step(ctx, "connect") }
func (s *Stub) NavigateToURL(ctx context.Context, url string) error {
	return s.step(ctx, "navigate")
}
func (s *Stub) WaitForDOMReady(ctx context.Context) error { return s.step(ctx, "domReady") }
func (s *Stub) FindAndClickElement(ctx context.Context, target string) error {
	return s.step(ctx, "click:"+target)
}
func (s *Stub) TypeText(ctx context.Context, selector, text string) error {
	return s.step(ctx, "type:"+selector)
}
func (s *Stub) FillNumberOfPeople(ctx context.Context, n int) error {
	return s.step(ctx, "fillGroupSize")
}
func (s *Stub) SelectTimeSlot(ctx context.Context, day time.Weekday, slot reservation.TimeOfDay) error {
	return s.step(ctx, "selectTimeSlot")
}

func (s *Stub) DetectRetryText(ctx context.Context) (bool, error) {
	if err := s.step(ctx, "detectRetry"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retrySeen < s.RetryPages {
		s.retrySeen++
		return true, nil
	}
	return false, nil
}

func (s *Stub) PerformHumanInteraction(ctx context.Context) error {
	return s.step(ctx, "humanInteraction")
}

func (s *Stub) IsEmailVerificationRequired(ctx context.Context) (bool, error) {
	if err := s.step(ctx, "verificationRequired"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.VerificationRequired && !s.verified, nil
}

func (s *Stub) FillVerificationCode(ctx context.Context, code string) error {
	if err := s.step(ctx, "fillCode:"+code); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codesTried = append(s.codesTried, code)
	if code == s.AcceptCode {
		s.verified = true
	}
	return nil
}

func (s *Stub) ClearVerificationCode(ctx context.Context) error {
	return s.step(ctx, "clearCode")
}

func (s *Stub) CheckReservationComplete(ctx context.Context) (bool, string, error) {
	if err := s.step(ctx, "checkComplete"); err != nil {
		return false, "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.NeverComplete {
		return false, "processing your reservation", nil
	}
	if s.VerificationRequired && !s.verified {
		return false, "enter the verification code we emailed you", nil
	}
	return true, "Your reservation is now confirmed", nil
}

func (s *Stub) PageText(ctx context.Context) (string, error) {
	if err := s.step(ctx, "pageText"); err != nil {
		return "", err
	}
	return "stub page", nil
}

func (s *Stub) CaptureScreenshot(ctx context.Context, path string) error {
	return s.step(ctx, "screenshot")
}

func (s *Stub) Disconnect(closeWindow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = true
	return nil
}

// Calls returns the ops performed so far, in order.
func (s *Stub) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// Disconnected reports whether the session was torn down.
func (s *Stub) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected
}

// CodesTried returns the verification codes submitted, in order.
func (s *Stub) CodesTried() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.codesTried))
	copy(out, s.codesTried)
	return out
}
