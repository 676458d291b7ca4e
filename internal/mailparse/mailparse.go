// Package mailparse decodes raw RFC 5322 messages into the flat record the
// analyzer consumes. Both mail transports (the SMTP content filter and the
// IMAP poller) feed their raw bytes through here.
package mailparse

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"

	"github.com/mailsentry/mailsentry/internal/core"
)

// ParseMessage decodes one message: decoded text and HTML bodies,
// attachment metadata and single-valued headers. Charset and encoded-word
// decoding is go-message's job; unknown charsets degrade to skipping the
// part rather than failing the whole message.
func ParseMessage(r io.Reader) (*core.EmailMessage, error) {
	mr, err := gomail.CreateReader(r)
	if err != nil && mr == nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	msg := &core.EmailMessage{Headers: map[string]string{}}

	header := mr.Header
	fields := header.Fields()
	for fields.Next() {
		if _, ok := msg.Headers[fields.Key()]; ok {
			continue // first value wins, matching header-consuming checks
		}
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		msg.Headers[fields.Key()] = value
	}

	msg.MessageID, _ = header.MessageID()
	if msg.MessageID == "" {
		msg.MessageID = strings.Trim(header.Get("Message-Id"), "<>")
	}
	msg.Subject, _ = header.Subject()
	if date, err := header.Date(); err == nil {
		msg.Date = date
	}
	if from, err := header.AddressList("From"); err == nil && len(from) > 0 {
		msg.FromName = from[0].Name
		msg.FromEmail = from[0].Address
	}
	if to, err := header.AddressList("To"); err == nil && len(to) > 0 {
		msg.ToEmail = to[0].Address
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			// Truncated or malformed MIME: keep what was decoded so far.
			break
		}

		switch h := part.Header.(type) {
		case *gomail.InlineHeader:
			mediaType, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}
			switch {
			case strings.EqualFold(mediaType, "text/plain"):
				msg.BodyText += string(body)
			case strings.EqualFold(mediaType, "text/html"):
				msg.BodyHTML += string(body)
			}
		case *gomail.AttachmentHeader:
			filename, _ := h.Filename()
			mediaType, _, _ := h.ContentType()
			size, _ := io.Copy(io.Discard, part.Body)
			msg.Attachments = append(msg.Attachments, core.Attachment{
				Filename:    filename,
				Size:        size,
				ContentType: mediaType,
			})
		}
	}

	return msg, nil
}
