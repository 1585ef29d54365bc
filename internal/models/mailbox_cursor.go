package models

import (
	"time"
)

// MailboxCursor is the watermark of already seen messages in the monitored folder
type MailboxCursor struct {
	ID          string    `gorm:"column:id;type:uuid;primaryKey;default:gen_random_uuid()"`
	Mailbox     string    `gorm:"column:mailbox;type:varchar(255);uniqueIndex:idx_mailbox_folder;not null"`
	Folder      string    `gorm:"column:folder;type:varchar(100);uniqueIndex:idx_mailbox_folder;not null"`
	UIDValidity uint32    `gorm:"column:uid_validity;not null"`
	LastUID     uint32    `gorm:"column:last_uid;not null"`
	Initialized bool      `gorm:"column:initialized;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp"`
}

func (MailboxCursor) TableName() string {
	return "mailbox_cursors"
}

// Reset rebases the cursor on the folder's current state.
func (c MailboxCursor) Reset(uidValidity, highestUID uint32) MailboxCursor {
	c.UIDValidity = uidValidity
	c.LastUID = highestUID
	c.Initialized = true
	return c
}

// Advance never moves the watermark backwards.
func (c MailboxCursor) Advance(uid uint32) MailboxCursor {
	if uid > c.LastUID {
		c.LastUID = uid
	}
	return c
}
