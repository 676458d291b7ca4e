package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMessage = `From: "Google Support" <scammer123@gmail.com>
To: victim@example.com
Subject: =?utf-8?q?Security_alert?=
Message-Id: <sample-1@bait.example>
Date: Fri, 29 Aug 2026 10:00:00 +0000
Received: from unknown ([203.0.113.9]) by mx.example.com
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b1"

--b1
Content-Type: text/plain; charset=utf-8

Please verify your account.
--b1
Content-Type: text/html; charset=utf-8

<p>Please <a href="https://bit.ly/x">verify</a></p>
--b1
Content-Type: application/octet-stream
Content-Disposition: attachment; filename="invoice.pdf.exe"

AAAA
--b1--
`

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage(strings.NewReader(crlf(sampleMessage)))
	require.NoError(t, err)

	assert.Equal(t, "Google Support", msg.FromName)
	assert.Equal(t, "scammer123@gmail.com", msg.FromEmail)
	assert.Equal(t, "victim@example.com", msg.ToEmail)
	assert.Equal(t, "Security alert", msg.Subject, "encoded word decoded")
	assert.Equal(t, "sample-1@bait.example", msg.MessageID)
	assert.False(t, msg.Date.IsZero())

	assert.Contains(t, msg.BodyText, "verify your account")
	assert.Contains(t, msg.BodyHTML, "bit.ly")

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "invoice.pdf.exe", msg.Attachments[0].Filename)
	assert.Equal(t, "application/octet-stream", msg.Attachments[0].ContentType)
	assert.Positive(t, msg.Attachments[0].Size)

	assert.Equal(t, "from unknown ([203.0.113.9]) by mx.example.com", msg.Header("Received"))
}

func TestParseMessagePlainBody(t *testing.T) {
	raw := crlf(`From: alice@example.com
To: bob@example.com
Subject: lunch
Content-Type: text/plain; charset=utf-8

See you at noon.
`)
	msg, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Contains(t, msg.BodyText, "See you at noon")
	assert.Empty(t, msg.BodyHTML)
	assert.Empty(t, msg.Attachments)
}
