package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/mailnotify/interfaces"
	"github.com/customeros/mailnotify/internal/models"
	"github.com/customeros/mailnotify/internal/tracing"
)

type mailboxCursorRepository struct {
	db *gorm.DB
}

func NewMailboxCursorRepository(db *gorm.DB) interfaces.MailboxCursorRepository {
	return &mailboxCursorRepository{db: db}
}

// GetCursor retrieves the cursor for a specific mailbox and folder
func (r *mailboxCursorRepository) GetCursor(ctx context.Context, mailbox, folder string) (*models.MailboxCursor, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxCursorRepository.GetCursor")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailbox, folder)

	var cursor models.MailboxCursor
	result := r.db.WithContext(ctx).
		Where("mailbox = ? AND folder = ?", mailbox, folder).
		First(&cursor)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil // Nothing saved yet
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get cursor: %w", result.Error)
	}

	return &cursor, nil
}

// SaveCursor updates the cursor row for the mailbox folder, creating it on first save
func (r *mailboxCursorRepository) SaveCursor(ctx context.Context, cursor *models.MailboxCursor) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxCursorRepository.SaveCursor")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if cursor == nil || cursor.Mailbox == "" || cursor.Folder == "" {
		tracing.TraceErr(span, ErrInvalidInput)
		return ErrInvalidInput
	}
	tracing.TagMailbox(span, cursor.Mailbox, cursor.Folder)
	span.SetTag("last_uid", cursor.LastUID)

	cursor.UpdatedAt = time.Now()

	result := r.db.WithContext(ctx).
		Model(&models.MailboxCursor{}).
		Where("mailbox = ? AND folder = ?", cursor.Mailbox, cursor.Folder).
		Updates(map[string]interface{}{
			"uid_validity": cursor.UIDValidity,
			"last_uid":     cursor.LastUID,
			"initialized":  cursor.Initialized,
			"updated_at":   cursor.UpdatedAt,
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to save cursor: %w", result.Error)
	}

	// If no record was updated, create a new one
	if result.RowsAffected == 0 {
		toCreate := *cursor
		toCreate.ID = uuid.NewString()
		if err := r.db.WithContext(ctx).Create(&toCreate).Error; err != nil {
			tracing.TraceErr(span, err)
			return fmt.Errorf("failed to save cursor: %w", err)
		}
	}

	return nil
}

// DeleteCursor deletes the cursor for a mailbox folder
func (r *mailboxCursorRepository) DeleteCursor(ctx context.Context, mailbox, folder string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "mailboxCursorRepository.DeleteCursor")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagMailbox(span, mailbox, folder)

	result := r.db.WithContext(ctx).
		Where("mailbox = ? AND folder = ?", mailbox, folder).
		Delete(&models.MailboxCursor{})

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to delete cursor: %w", result.Error)
	}

	return nil
}
