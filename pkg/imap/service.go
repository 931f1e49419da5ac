// Package imap is the mailbox client for accounts connected with an app
// password instead of Google OAuth.
package imap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const (
	defaultSearchLimit = 50
	dialTimeout        = 30 * time.Second
)

var subjectKeywords = []string{"certificate", "completion", "achievement", "credential"}

var certificateSenders = []string{
	"coursera.org",
	"infosysspringboard.com",
	"edx.org",
	"udacity.com",
	"udemy.com",
	"linkedin.com",
}

// Account identifies an IMAP mailbox.
type Account struct {
	Server   string
	Port     int
	Username string
	Password string
}

func (a Account) addr() string {
	port := a.Port
	if port == 0 {
		port = 993
	}
	return fmt.Sprintf("%s:%d", a.Server, port)
}

// Message mirrors the Gmail client's message shape.
type Message struct {
	ID      string
	Subject string
	From    string
	Date    string
	Body    string
}

type Service struct {
	searchLimit int
	insecure    bool
}

type Option func(*Service)

// WithoutTLS dials in plaintext. Only meant for local test servers.
func WithoutTLS() Option {
	return func(s *Service) { s.insecure = true }
}

func WithSearchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.searchLimit = n
		}
	}
}

func NewService(opts ...Option) *Service {
	s := &Service{searchLimit: defaultSearchLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify logs in and out again; used when an account is connected.
func (s *Service) Verify(ctx context.Context, acct Account) error {
	sess, err := s.Open(ctx, acct)
	if err != nil {
		return err
	}
	return sess.Close()
}

// Session is a logged-in connection with INBOX selected read-only.
type Session struct {
	c           *client.Client
	acct        Account
	uidValidity uint32
	limit       int
}

func (s *Service) Open(ctx context.Context, acct Account) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		c   *client.Client
		err error
	)
	if s.insecure {
		c, err = client.Dial(acct.addr())
	} else {
		c, err = client.DialTLS(acct.addr(), &tls.Config{ServerName: acct.Server})
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap %s: %w", acct.addr(), err)
	}
	c.Timeout = dialTimeout

	if err := c.Login(acct.Username, acct.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("imap login for %s: %w", acct.Username, err)
	}

	mbox, err := c.Select("INBOX", true)
	if err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("select INBOX: %w", err)
	}

	return &Session{c: c, acct: acct, uidValidity: mbox.UidValidity, limit: s.searchLimit}, nil
}

func (sess *Session) Close() error {
	return sess.c.Logout()
}

// SearchCertificateEmails mirrors the Gmail two-tier search: known senders
// with certificate subjects first, then certificate subjects from anyone.
// Results are newest first.
func (sess *Session) SearchCertificateEmails(ctx context.Context) ([]string, error) {
	subjects := anyOf(headerCriteria("Subject", subjectKeywords)...)

	targeted := andOf(anyOf(headerCriteria("From", certificateSenders)...), subjects)

	uids, err := sess.search(ctx, targeted)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		log.Printf("[IMAP] Targeted search for %s matched nothing, trying subject-only search", sess.acct.Username)
		if uids, err = sess.search(ctx, subjects); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, sess.messageID(uid))
	}
	return ids, nil
}

func (sess *Session) search(ctx context.Context, criteria *imap.SearchCriteria) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uids, err := sess.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imap search: %w", err)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if len(uids) > sess.limit {
		uids = uids[:sess.limit]
	}
	return uids, nil
}

// messageID is stable for as long as the mailbox UIDVALIDITY is unchanged and
// unique across accounts.
func (sess *Session) messageID(uid uint32) string {
	return fmt.Sprintf("imap:%s:%d:%d", strings.ToLower(sess.acct.Username), sess.uidValidity, uid)
}

func parseMessageID(id string) (uint32, error) {
	idx := strings.LastIndex(id, ":")
	if !strings.HasPrefix(id, "imap:") || idx < 0 {
		return 0, fmt.Errorf("not an imap message id: %q", id)
	}
	uid, err := strconv.ParseUint(id[idx+1:], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("bad uid in %q: %w", id, err)
	}
	return uint32(uid), nil
}

// FetchMessage downloads one message without setting \Seen.
func (sess *Session) FetchMessage(ctx context.Context, id string) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uid, err := parseMessageID(id)
	if err != nil {
		return nil, err
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchEnvelope, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- sess.c.UidFetch(seqset, items, messages)
	}()

	var fetched *imap.Message
	for m := range messages {
		fetched = m
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imap fetch uid %d: %w", uid, err)
	}
	if fetched == nil {
		return nil, fmt.Errorf("imap message uid %d not found", uid)
	}

	literal := fetched.GetBody(section)
	if literal == nil {
		return nil, fmt.Errorf("imap message uid %d has no body", uid)
	}
	msg, err := parseMessage(literal)
	if err != nil {
		return nil, fmt.Errorf("parse imap message uid %d: %w", uid, err)
	}
	msg.ID = id
	return msg, nil
}

// parseMessage reads headers and concatenates every inline text part.
func parseMessage(r io.Reader) (*Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Subject: "No Subject",
		From:    "Unknown Sender",
		Date:    mr.Header.Get("Date"),
	}
	if subject, err := mr.Header.Subject(); err == nil && subject != "" {
		msg.Subject = subject
	}
	if from := mr.Header.Get("From"); from != "" {
		msg.From = decodeHeader(from)
	}
	if msg.Date == "" {
		msg.Date = time.Now().Format(time.RFC1123Z)
	}

	var sb strings.Builder
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// a broken trailing part should not drop what was already read
			log.Printf("[IMAP] Stopped reading parts: %v", err)
			break
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if ct != "text/plain" && ct != "text/html" {
			continue
		}
		b, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		sb.Write(b)
		sb.WriteString("\n")
	}
	msg.Body = sb.String()
	return msg, nil
}

func decodeHeader(v string) string {
	dec := new(mime.WordDecoder)
	if out, err := dec.DecodeHeader(v); err == nil {
		return out
	}
	return v
}

func headerCriteria(key string, values []string) []*imap.SearchCriteria {
	out := make([]*imap.SearchCriteria, 0, len(values))
	for _, v := range values {
		c := imap.NewSearchCriteria()
		c.Header.Add(key, v)
		out = append(out, c)
	}
	return out
}

// anyOf folds criteria into a right-nested OR tree.
func anyOf(criteria ...*imap.SearchCriteria) *imap.SearchCriteria {
	if len(criteria) == 1 {
		return criteria[0]
	}
	c := imap.NewSearchCriteria()
	c.Or = [][2]*imap.SearchCriteria{{criteria[0], anyOf(criteria[1:]...)}}
	return c
}

// andOf merges the OR clauses of each criterion; IMAP ANDs sibling keys.
func andOf(criteria ...*imap.SearchCriteria) *imap.SearchCriteria {
	c := imap.NewSearchCriteria()
	for _, sub := range criteria {
		if len(sub.Or) > 0 {
			c.Or = append(c.Or, sub.Or...)
			continue
		}
		for k, vs := range sub.Header {
			for _, v := range vs {
				c.Header.Add(k, v)
			}
		}
	}
	return c
}
