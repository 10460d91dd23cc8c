// Package mail finds the facility's verification emails and extracts the
// code a run must submit.
package mail

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/example/courtbook/internal/domain/reservation"
)

// SearchWindow bounds how far back a verification search looks. Codes expire
// quickly; anything older belongs to a previous run.
const SearchWindow = 10 * time.Minute

// Searcher queries the mailbox for code-bearing messages received since the
// given instant, newest first. Implementations must distinguish connection
// failures (an error) from an empty result (nil, nil).
type Searcher interface {
	SearchForVerificationEmails(ctx context.Context, since time.Time) ([]reservation.VerificationEmail, error)
}

var codePattern = regexp.MustCompile(`\b(\d{4})\b`)

// ExtractCode pulls the 4-digit verification code from a message body.
func ExtractCode(body string) (string, bool) {
	m := codePattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CandidateCodes returns the distinct codes found across emails, ordered by
// message receipt with the newest first, so the most recently received
// matching message's code is tried first.
func CandidateCodes(emails []reservation.VerificationEmail) []string {
	sorted := make([]reservation.VerificationEmail, len(emails))
	copy(sorted, emails)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Received.After(sorted[j].Received)
	})

	seen := make(map[string]bool)
	var codes []string
	for _, e := range sorted {
		code, ok := ExtractCode(e.Body)
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes
}
