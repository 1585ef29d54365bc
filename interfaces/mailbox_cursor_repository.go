package interfaces

import (
	"context"

	"github.com/customeros/mailnotify/internal/models"
)

type MailboxCursorRepository interface {
	// GetCursor returns nil when nothing was saved for the mailbox folder.
	GetCursor(ctx context.Context, mailbox, folder string) (*models.MailboxCursor, error)
	SaveCursor(ctx context.Context, cursor *models.MailboxCursor) error
	DeleteCursor(ctx context.Context, mailbox, folder string) error
}
