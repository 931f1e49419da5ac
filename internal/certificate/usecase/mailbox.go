package usecase

import (
	"context"
	"fmt"

	authdomain "certhub-backend/internal/auth/domain"
	authusecase "certhub-backend/internal/auth/usecase"
	"certhub-backend/pkg/extractor"
	"certhub-backend/pkg/gmail"
	"certhub-backend/pkg/imap"

	"golang.org/x/oauth2"
)

type mailboxOpener struct {
	gmailService *gmail.Service
	imapService  *imap.Service
	authUsecase  authusecase.AuthUsecase
}

// NewMailboxOpener picks Gmail or IMAP per user. Tokens that oauth2 renews in
// the middle of a Gmail run are persisted through authUsecase.
func NewMailboxOpener(gmailService *gmail.Service, imapService *imap.Service, authUsecase authusecase.AuthUsecase) MailboxOpener {
	return &mailboxOpener{
		gmailService: gmailService,
		imapService:  imapService,
		authUsecase:  authUsecase,
	}
}

func (o *mailboxOpener) Open(ctx context.Context, user *authdomain.User, cred authdomain.Credential) (MailboxSession, error) {
	if user.IsIMAP() {
		if o.imapService == nil {
			return nil, fmt.Errorf("imap mailboxes are not enabled")
		}
		sess, err := o.imapService.Open(ctx, authusecase.IMAPAccount(user))
		if err != nil {
			return nil, err
		}
		return &imapMailbox{sess: sess}, nil
	}

	token := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Expiry:       cred.Expiry,
		TokenType:    "Bearer",
	}
	userID := user.ID
	onRefresh := func(t *oauth2.Token) error {
		next := authdomain.Credential{
			AccessToken:  t.AccessToken,
			RefreshToken: t.RefreshToken,
			Expiry:       t.Expiry,
		}
		if next.RefreshToken == "" {
			next.RefreshToken = cred.RefreshToken
		}
		return o.authUsecase.PersistCredential(userID, next)
	}

	sess, err := o.gmailService.NewSession(ctx, token, onRefresh)
	if err != nil {
		return nil, err
	}
	return &gmailMailbox{sess: sess}, nil
}

type gmailMailbox struct {
	sess *gmail.Session
}

func (m *gmailMailbox) SearchCertificateEmails(ctx context.Context) ([]string, error) {
	return m.sess.SearchCertificateEmails(ctx)
}

func (m *gmailMailbox) FetchMessage(ctx context.Context, id string) (*extractor.Message, error) {
	msg, err := m.sess.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	return &extractor.Message{Subject: msg.Subject, From: msg.From, Date: msg.Date, Body: msg.Body}, nil
}

func (m *gmailMailbox) Close() error { return nil }

type imapMailbox struct {
	sess *imap.Session
}

func (m *imapMailbox) SearchCertificateEmails(ctx context.Context) ([]string, error) {
	return m.sess.SearchCertificateEmails(ctx)
}

func (m *imapMailbox) FetchMessage(ctx context.Context, id string) (*extractor.Message, error) {
	msg, err := m.sess.FetchMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	return &extractor.Message{Subject: msg.Subject, From: msg.From, Date: msg.Date, Body: msg.Body}, nil
}

func (m *imapMailbox) Close() error {
	return m.sess.Close()
}
