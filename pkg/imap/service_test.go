package imap

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs the in-memory go-imap backend; it ships one user
// ("username"/"password") with a single unrelated INBOX message.
func startServer(t *testing.T, raws ...string) Account {
	t.Helper()

	s := server.New(memory.New())
	s.AllowInsecureAuth = true

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Serve(ln) }()
	t.Cleanup(func() { _ = s.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	c, err := client.Dial(ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, c.Login("username", "password"))
	for _, raw := range raws {
		raw = strings.ReplaceAll(raw, "\n", "\r\n")
		require.NoError(t, c.Append("INBOX", nil, time.Now(), bytes.NewBufferString(raw)))
	}
	require.NoError(t, c.Logout())

	return Account{Server: host, Port: port, Username: "username", Password: "password"}
}

const courseraMail = `From: Coursera <no-reply@coursera.org>
To: learner@example.com
Subject: Congratulations on your course completion
Date: Tue, 14 Mar 2023 10:00:00 +0000
Message-Id: <c1@coursera.org>
Content-Type: multipart/alternative; boundary=XYZ

--XYZ
Content-Type: text/plain; charset=utf-8

Course: Machine Learning Specialization by Stanford
Download: https://coursera.org/certificate/ABC123
--XYZ
Content-Type: text/html; charset=utf-8

<p>You did it!</p>
--XYZ--
`

const unknownPlatformMail = `From: Academy <hello@tiny-academy.io>
To: learner@example.com
Subject: Your certificate of achievement
Date: Wed, 15 Mar 2023 10:00:00 +0000
Content-Type: text/plain; charset=utf-8

Thanks for learning with us.
`

func TestSearchCertificateEmails_Targeted(t *testing.T) {
	acct := startServer(t, courseraMail, unknownPlatformMail)
	svc := NewService(WithoutTLS())

	sess, err := svc.Open(context.Background(), acct)
	require.NoError(t, err)
	defer sess.Close()

	ids, err := sess.SearchCertificateEmails(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.True(t, strings.HasPrefix(ids[0], "imap:username:"))

	msg, err := sess.FetchMessage(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Congratulations on your course completion", msg.Subject)
	assert.Contains(t, msg.From, "no-reply@coursera.org")
	assert.Equal(t, "Tue, 14 Mar 2023 10:00:00 +0000", msg.Date)
	assert.Contains(t, msg.Body, "Machine Learning Specialization")
	assert.Contains(t, msg.Body, "<p>You did it!</p>")
}

func TestSearchCertificateEmails_BroadFallback(t *testing.T) {
	acct := startServer(t, unknownPlatformMail)
	svc := NewService(WithoutTLS())

	sess, err := svc.Open(context.Background(), acct)
	require.NoError(t, err)
	defer sess.Close()

	ids, err := sess.SearchCertificateEmails(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)

	msg, err := sess.FetchMessage(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Your certificate of achievement", msg.Subject)
}

func TestSearchCertificateEmails_NewestFirstAndCapped(t *testing.T) {
	acct := startServer(t, unknownPlatformMail, unknownPlatformMail, unknownPlatformMail)
	svc := NewService(WithoutTLS(), WithSearchLimit(2))

	sess, err := svc.Open(context.Background(), acct)
	require.NoError(t, err)
	defer sess.Close()

	ids, err := sess.SearchCertificateEmails(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 2)

	first, err := parseMessageID(ids[0])
	require.NoError(t, err)
	second, err := parseMessageID(ids[1])
	require.NoError(t, err)
	assert.Greater(t, first, second)
}

func TestVerify_BadPassword(t *testing.T) {
	acct := startServer(t)
	acct.Password = "wrong"

	err := NewService(WithoutTLS()).Verify(context.Background(), acct)
	assert.Error(t, err)
}

func TestParseMessageID(t *testing.T) {
	uid, err := parseMessageID("imap:me@example.com:17:42")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), uid)

	_, err = parseMessageID("18c0ffee")
	assert.Error(t, err)
}

func TestParseMessage_Defaults(t *testing.T) {
	raw := "Content-Type: text/plain\r\n\r\nbody only\r\n"
	msg, err := parseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "No Subject", msg.Subject)
	assert.Equal(t, "Unknown Sender", msg.From)
	assert.NotEmpty(t, msg.Date)
	assert.Contains(t, msg.Body, "body only")
}
