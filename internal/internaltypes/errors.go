package internaltypes

import (
	"errors"
	"fmt"
)

// Kind is a short machine code identifying a class of run failure.
type Kind string

const (
	KindConnection          Kind = "connection"
	KindElementNotFound     Kind = "elementNotFound"
	KindClickFailed         Kind = "clickFailed"
	KindTypeFailed          Kind = "typeFailed"
	KindPageLoadTimeout     Kind = "pageLoadTimeout"
	KindGroupSizeTimeout    Kind = "groupSizePageTimeout"
	KindContactInfoTimeout  Kind = "contactInfoPageTimeout"
	KindVerificationTimeout Kind = "verificationTimeout"
	KindCaptchaExhausted    Kind = "captchaRetryExhausted"
	KindEmailVerification   Kind = "emailVerificationFailed"
	KindMailConnection      Kind = "mailConnection"
	KindUnknown             Kind = "unknown"
)

// userMessages maps each kind to the message shown to end users. Raw driver or
// mail error text is never surfaced directly.
var userMessages = map[Kind]string{
	KindConnection:          "could not connect to the reservation site",
	KindElementNotFound:     "the reservation page did not look as expected",
	KindClickFailed:         "a control on the reservation page could not be clicked",
	KindTypeFailed:          "a field on the reservation page could not be filled",
	KindPageLoadTimeout:     "the reservation page took too long to load",
	KindGroupSizeTimeout:    "the group size page took too long to appear",
	KindContactInfoTimeout:  "the contact info page took too long to appear",
	KindVerificationTimeout: "verification timed out",
	KindCaptchaExhausted:    "the site kept asking to retry; gave up after repeated attempts",
	KindEmailVerification:   "could not complete email verification in time",
	KindMailConnection:      "could not reach the verification mailbox",
	KindUnknown:             "the booking failed for an unexpected reason",
}

// RunError is the terminal error of a reservation run.
type RunError struct {
	Kind Kind
	Err  error
}

func (e *RunError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// UserMessage returns the mapped user-facing message for the error.
func (e *RunError) UserMessage() string {
	if msg, ok := userMessages[e.Kind]; ok {
		return msg
	}
	return userMessages[KindUnknown]
}

func NewRunError(kind Kind, err error) *RunError {
	return &RunError{Kind: kind, Err: err}
}

// KindOf extracts the kind from err, or KindUnknown if err carries none.
func KindOf(err error) Kind {
	var re *RunError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// MessageFor maps a stored reason code back to its user-facing message.
func MessageFor(kind Kind) string {
	if msg, ok := userMessages[kind]; ok {
		return msg
	}
	return userMessages[KindUnknown]
}

// UserMessageOf returns the user-facing message for any error.
func UserMessageOf(err error) string {
	var re *RunError
	if errors.As(err, &re) {
		return re.UserMessage()
	}
	return userMessages[KindUnknown]
}
