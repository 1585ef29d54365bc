package repository

import (
	"context"
	"sync"
	"time"

	"github.com/customeros/mailnotify/interfaces"
	"github.com/customeros/mailnotify/internal/models"
)

// memoryCursorRepository keeps cursors for the lifetime of the process only. A
// restart re-baselines the folder and downtime mail is not notified.
type memoryCursorRepository struct {
	mu      sync.RWMutex
	cursors map[string]models.MailboxCursor
}

func NewMemoryCursorRepository() interfaces.MailboxCursorRepository {
	return &memoryCursorRepository{cursors: make(map[string]models.MailboxCursor)}
}

func cursorKey(mailbox, folder string) string {
	return mailbox + "\x00" + folder
}

func (r *memoryCursorRepository) GetCursor(_ context.Context, mailbox, folder string) (*models.MailboxCursor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cursor, ok := r.cursors[cursorKey(mailbox, folder)]
	if !ok {
		return nil, nil
	}
	return &cursor, nil
}

func (r *memoryCursorRepository) SaveCursor(_ context.Context, cursor *models.MailboxCursor) error {
	if cursor == nil || cursor.Mailbox == "" || cursor.Folder == "" {
		return ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *cursor
	stored.UpdatedAt = time.Now()
	if existing, ok := r.cursors[cursorKey(cursor.Mailbox, cursor.Folder)]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = stored.UpdatedAt
	}
	r.cursors[cursorKey(cursor.Mailbox, cursor.Folder)] = stored
	return nil
}

func (r *memoryCursorRepository) DeleteCursor(_ context.Context, mailbox, folder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.cursors, cursorKey(mailbox, folder))
	return nil
}
