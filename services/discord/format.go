package discord

import (
	"fmt"
	"time"

	"github.com/customeros/mailnotify/internal/models"
)

// Discord rejects message content longer than this many characters.
const maxMessageLength = 2000

const unknownDate = "Unknown Date"

func FormatNotification(summary models.MessageSummary) string {
	date := unknownDate
	if !summary.Date.IsZero() {
		date = summary.Date.Format(time.RFC1123Z)
	}

	text := fmt.Sprintf("📧 **New Email Received!**\n\n**From:** %s\n**Subject:** %s\n**Date:** %s\n**UID:** %d",
		summary.From, summary.Subject, date, summary.UID)

	return truncate(text, maxMessageLength)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
