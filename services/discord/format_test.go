package discord

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/customeros/mailnotify/internal/models"
)

func TestFormatNotification(t *testing.T) {
	summary := models.MessageSummary{
		UID:     101,
		From:    "Jane Doe <jane@example.com>",
		Subject: "Lunch?",
		Date:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	text := FormatNotification(summary)

	assert.Equal(t, "📧 **New Email Received!**\n\n"+
		"**From:** Jane Doe <jane@example.com>\n"+
		"**Subject:** Lunch?\n"+
		"**Date:** Fri, 01 Mar 2024 12:00:00 +0000\n"+
		"**UID:** 101", text)
}

func TestFormatNotification_UnknownDate(t *testing.T) {
	text := FormatNotification(models.MessageSummary{UID: 1, From: "Unknown Sender", Subject: "No Subject"})

	assert.Contains(t, text, "**Date:** Unknown Date")
}

func TestFormatNotification_TruncatesLongSubjects(t *testing.T) {
	summary := models.MessageSummary{
		UID:     5,
		From:    "a@example.com",
		Subject: strings.Repeat("ü", 3000),
	}

	text := FormatNotification(summary)

	assert.Equal(t, maxMessageLength, utf8.RuneCountInString(text))
	assert.True(t, strings.HasSuffix(text, "…"))
	assert.True(t, utf8.ValidString(text))
}
