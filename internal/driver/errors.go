package driver

import (
	"fmt"

	"github.com/example/courtbook/internal/internaltypes"
)

const snippetLimit = 200

// Error tags a driver failure with a kind and a bounded page-text snippet.
// The state machine treats these as opaque, keyed by kind, rather than
// parsing DOM internals.
type Error struct {
	Kind        internaltypes.Kind
	Op          string
	PageSnippet string
	Err         error
}

func (e *Error) Error() string {
	if e.PageSnippet != "" {
		return fmt.Sprintf("driver %s: %s: %v (page: %q)", e.Op, e.Kind, e.Err, e.PageSnippet)
	}
	return fmt.Sprintf("driver %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged driver error, truncating the page snippet.
func NewError(kind internaltypes.Kind, op string, pageText string, err error) *Error {
	if len(pageText) > snippetLimit {
		pageText = pageText[:snippetLimit]
	}
	return &Error{Kind: kind, Op: op, PageSnippet: pageText, Err: err}
}
