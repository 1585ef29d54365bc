package interfaces

import (
	"context"

	"github.com/customeros/mailnotify/internal/models"
)

// ChatClient delivers a direct message on the chat platform.
type ChatClient interface {
	SendDirectMessage(ctx context.Context, userID, text string) error
}

type NotificationDispatcher interface {
	Notify(ctx context.Context, summary models.MessageSummary) error
}
