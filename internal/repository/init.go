package repository

import (
	"gorm.io/gorm"

	"github.com/customeros/mailnotify/interfaces"
	"github.com/customeros/mailnotify/internal/models"
)

type Repositories struct {
	MailboxCursorRepository interfaces.MailboxCursorRepository
}

// InitRepositories uses postgres when a database is given and memory otherwise.
func InitRepositories(cursorDB *gorm.DB) *Repositories {
	if cursorDB == nil {
		return &Repositories{
			MailboxCursorRepository: NewMemoryCursorRepository(),
		}
	}

	return &Repositories{
		MailboxCursorRepository: NewMailboxCursorRepository(cursorDB),
	}
}

func MigrateCursorDB(cursorDB *gorm.DB) error {
	return cursorDB.AutoMigrate(
		&models.MailboxCursor{},
	)
}
