package imap

import (
	"testing"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
)

func TestFormatSender(t *testing.T) {
	assert.Equal(t, "Jane Doe <jane@example.com>", formatSender("Jane Doe", "jane@example.com"))
	assert.Equal(t, "jane@example.com", formatSender("", "jane@example.com"))
	assert.Equal(t, "Jane Doe", formatSender(" Jane Doe ", ""))
	assert.Equal(t, "Unknown Sender", formatSender("", " "))
}

func TestFormatSubject(t *testing.T) {
	assert.Equal(t, "Invoice", formatSubject("Invoice"))
	assert.Equal(t, "No Subject", formatSubject("   "))
}

func TestSummarize(t *testing.T) {
	date := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	msg := &goimap.Message{
		Uid: 42,
		Envelope: &goimap.Envelope{
			Date:    date,
			Subject: "Quarterly report",
			From: []*goimap.Address{
				{PersonalName: "Jane Doe", MailboxName: "jane", HostName: "example.com"},
			},
		},
	}

	summary := summarize(msg)

	assert.Equal(t, uint32(42), summary.UID)
	assert.Equal(t, "Jane Doe <jane@example.com>", summary.From)
	assert.Equal(t, "Quarterly report", summary.Subject)
	assert.Equal(t, date, summary.Date)
}

func TestSummarize_MissingEnvelope(t *testing.T) {
	summary := summarize(&goimap.Message{Uid: 7})

	assert.Equal(t, uint32(7), summary.UID)
	assert.Equal(t, "Unknown Sender", summary.From)
	assert.Equal(t, "No Subject", summary.Subject)
	assert.True(t, summary.Date.IsZero())
}

func TestSummarize_GroupSyntaxAddress(t *testing.T) {
	msg := &goimap.Message{
		Uid: 8,
		Envelope: &goimap.Envelope{
			From: []*goimap.Address{{PersonalName: "", MailboxName: "undisclosed-recipients"}},
		},
	}

	assert.Equal(t, "Unknown Sender", summarize(msg).From)
}
