package gmail

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
)

// Message is a fetched candidate: headers plus all text-bearing body parts.
type Message struct {
	ID      string
	Subject string
	From    string
	Date    string
	Body    string
	Snippet string
}

// GetMessage fetches one message in full format. Missing headers get
// placeholders and an undecodable body becomes empty rather than an error.
func (sess *Session) GetMessage(ctx context.Context, id string) (*Message, error) {
	if err := sess.svc.wait(ctx); err != nil {
		return nil, err
	}
	msg, err := sess.srv.Users.Messages.Get(user, id).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err)
	}

	out := &Message{
		ID:      msg.Id,
		Subject: "No Subject",
		From:    "Unknown Sender",
		Date:    time.Now().Format(time.RFC1123Z),
		Snippet: msg.Snippet,
	}
	if msg.Payload == nil {
		return out, nil
	}
	if v := getHeader(msg.Payload.Headers, "Subject"); v != "" {
		out.Subject = v
	}
	if v := getHeader(msg.Payload.Headers, "From"); v != "" {
		out.From = v
	}
	if v := getHeader(msg.Payload.Headers, "Date"); v != "" {
		out.Date = v
	}
	out.Body = extractBody(msg.Payload)
	return out, nil
}

func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// extractBody walks the MIME tree depth-first and concatenates every
// text/plain and text/html leaf in document order.
func extractBody(payload *gmail.MessagePart) string {
	if len(payload.Parts) == 0 {
		if payload.Body == nil {
			return ""
		}
		return decodeData(payload.Body.Data)
	}

	var sb strings.Builder
	var walk func(parts []*gmail.MessagePart)
	walk = func(parts []*gmail.MessagePart) {
		for _, part := range parts {
			switch {
			case isTextPart(part.MimeType) && part.Body != nil && part.Body.Data != "":
				if text := decodeData(part.Body.Data); text != "" {
					sb.WriteString(text)
					sb.WriteString("\n")
				}
			case len(part.Parts) > 0:
				walk(part.Parts)
			}
		}
	}
	walk(payload.Parts)
	return sb.String()
}

func isTextPart(mimeType string) bool {
	return mimeType == "text/plain" || mimeType == "text/html"
}

// decodeData accepts padded and unpadded base64url.
func decodeData(data string) string {
	if data == "" {
		return ""
	}
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b)
	}
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "=")); err == nil {
		return string(b)
	}
	return ""
}
