package mail

import (
	"context"
	"fmt"
	"io"
	netmail "net/mail"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/rs/zerolog/log"

	"github.com/example/courtbook/internal/domain/reservation"
	"github.com/example/courtbook/internal/internaltypes"
)

// maxConsecutiveFailures is how many connection failures in a row turn "the
// mailbox is flaky" into a hard error.
const maxConsecutiveFailures = 3

// IMAPPoller searches one mailbox over IMAP for the facility's verification
// emails. The underlying connection is shared across concurrent verification
// polls (read-only queries) behind a mutex.
type IMAPPoller struct {
	Addr     string // host:port, implicit TLS
	Username string
	Password string

	// Sender and Subject identify the facility's code emails.
	Sender  string
	Subject string

	mu       sync.Mutex
	conn     *client.Client
	failures int
}

var _ Searcher = (*IMAPPoller)(nil)

// SearchForVerificationEmails returns matching messages received since the
// given instant, newest first. A transient connection failure returns nil
// results with a nil error so the caller's polling loop retries; only after
// maxConsecutiveFailures in a row does it return a hard mailConnection error.
func (p *IMAPPoller) SearchForVerificationEmails(ctx context.Context, since time.Time) ([]reservation.VerificationEmail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if floor := time.Now().Add(-SearchWindow); since.Before(floor) {
		since = floor
	}

	emails, err := p.search(ctx, since)
	if err != nil {
		p.dropConn()
		p.failures++
		log.Warn().Err(err).Int("consecutive", p.failures).Msg("mailbox search failed")
		if p.failures >= maxConsecutiveFailures {
			return nil, internaltypes.NewRunError(internaltypes.KindMailConnection, err)
		}
		return nil, nil
	}
	p.failures = 0
	return emails, nil
}

func (p *IMAPPoller) search(ctx context.Context, since time.Time) ([]reservation.VerificationEmail, error) {
	c, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := c.Select("INBOX", true); err != nil {
		return nil, fmt.Errorf("select inbox: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	// IMAP SINCE has date granularity; exact filtering happens below on the
	// internal date.
	criteria.Since = since.Add(-24 * time.Hour)
	criteria.Header.Add("From", p.Sender)

	ids, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, len(ids))
	if err := c.Fetch(seqset, items, messages); err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	var out []reservation.VerificationEmail
	for msg := range messages {
		email, ok := p.decode(msg, since)
		if ok {
			out = append(out, email)
		}
	}

	sortNewestFirst(out)
	return out, nil
}

func (p *IMAPPoller) decode(msg *imap.Message, since time.Time) (reservation.VerificationEmail, bool) {
	if msg == nil || msg.Envelope == nil || msg.InternalDate.Before(since) {
		return reservation.VerificationEmail{}, false
	}

	from := ""
	if len(msg.Envelope.From) > 0 {
		from = msg.Envelope.From[0].Address()
	}
	if !strings.EqualFold(from, p.Sender) {
		return reservation.VerificationEmail{}, false
	}
	if p.Subject != "" && !strings.Contains(strings.ToLower(msg.Envelope.Subject), strings.ToLower(p.Subject)) {
		return reservation.VerificationEmail{}, false
	}

	section := &imap.BodySectionName{Peek: true}
	r := msg.GetBody(section)
	if r == nil {
		return reservation.VerificationEmail{}, false
	}
	body := readBody(r)

	return reservation.VerificationEmail{
		From:     from,
		Subject:  msg.Envelope.Subject,
		Body:     body,
		Received: msg.InternalDate,
	}, true
}

// connect dials lazily and reuses the connection across polls, with a short
// bounded backoff on the dial itself.
func (p *IMAPPoller) connect(ctx context.Context) (*client.Client, error) {
	if p.conn != nil {
		return p.conn, nil
	}

	var c *client.Client
	op := func() error {
		var err error
		c, err = client.DialTLS(p.Addr, nil)
		if err != nil {
			return err
		}
		if err := c.Login(p.Username, p.Password); err != nil {
			_ = c.Logout()
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("dial %s: %w", p.Addr, err)
	}

	log.Debug().Str("addr", p.Addr).Msg("mailbox connected")
	p.conn = c
	return c, nil
}

func (p *IMAPPoller) dropConn() {
	if p.conn != nil {
		_ = p.conn.Logout()
		p.conn = nil
	}
}

// Close logs out of the mailbox. Safe to call when never connected.
func (p *IMAPPoller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropConn()
}

func readBody(r io.Reader) string {
	msg, err := netmail.ReadMessage(r)
	if err != nil {
		// Not a parseable RFC 822 message; fall back to the raw bytes, which
		// still carry any plain-text code.
		b, _ := io.ReadAll(r)
		return string(b)
	}
	b, _ := io.ReadAll(msg.Body)
	return string(b)
}

func sortNewestFirst(emails []reservation.VerificationEmail) {
	sort.Slice(emails, func(i, j int) bool {
		return emails[i].Received.After(emails[j].Received)
	})
}
