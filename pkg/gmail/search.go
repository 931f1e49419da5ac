package gmail

import (
	"context"
	"log"
	"strings"
)

// certificateSenders lists known platform senders, one group per platform.
var certificateSenders = [][]string{
	{"no-reply@coursera.org", "noreply@coursera.org"},
	{"no-reply@infosysspringboard.com", "noreply@infosysspringboard.com"},
	{"certificates@edx.org", "noreply@edx.org"},
	{"support@udacity.com", "no-reply@udacity.com"},
	{"noreply@udemy.com"},
	{"linkedin-learning@linkedin.com"},
}

// CertificateKeywords are the subject words both search tiers filter on.
var CertificateKeywords = []string{"certificate", "completion", "achievement", "credential"}

var (
	TargetedQuery = buildTargetedQuery()
	BroadQuery    = "subject:(" + strings.Join(CertificateKeywords, " OR ") + ")"
)

func buildTargetedQuery() string {
	groups := make([]string, 0, len(certificateSenders))
	for _, senders := range certificateSenders {
		groups = append(groups, "from:("+strings.Join(senders, " OR ")+")")
	}
	return strings.Join(groups, " OR ") + " " + BroadQuery
}

// SearchCertificateEmails returns candidate message ids in provider order. The
// targeted sender query runs first; only when it finds nothing does the broad
// subject query run.
func (sess *Session) SearchCertificateEmails(ctx context.Context) ([]string, error) {
	ids, err := sess.ListMessageIDs(ctx, TargetedQuery)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		log.Printf("[Gmail] Targeted query matched %d messages", len(ids))
		return ids, nil
	}

	log.Printf("[Gmail] Targeted query matched nothing, trying broad subject query")
	ids, err = sess.ListMessageIDs(ctx, BroadQuery)
	if err != nil {
		return nil, err
	}
	log.Printf("[Gmail] Broad query matched %d messages", len(ids))
	return ids, nil
}

// ListMessageIDs runs a single search capped at the service's search limit.
func (sess *Session) ListMessageIDs(ctx context.Context, query string) ([]string, error) {
	if err := sess.svc.wait(ctx); err != nil {
		return nil, err
	}
	resp, err := sess.srv.Users.Messages.List(user).
		Q(query).
		MaxResults(sess.svc.searchLimit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classifyError(err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	if int64(len(ids)) > sess.svc.searchLimit {
		ids = ids[:sess.svc.searchLimit]
	}
	return ids, nil
}
