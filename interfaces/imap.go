package interfaces

import (
	"context"
	"time"

	"github.com/customeros/mailnotify/internal/enum"
	"github.com/customeros/mailnotify/internal/models"
)

// MailConnector opens a TLS transport to the mail server.
type MailConnector interface {
	Connect(ctx context.Context, host string, port int) (MailTransport, error)
}

// MailTransport is a connected but not yet authenticated mail server connection.
type MailTransport interface {
	Login(username, secret string) (MailSession, error)
	Logout() error
}

// MailSession is an authenticated handle to the remote mailbox.
type MailSession interface {
	Select(folder string) (*models.FolderStatus, error)
	Noop() error
	// HighestUID returns 0 when the folder is empty.
	HighestUID() (uint32, error)
	// SearchSince returns UIDs greater than uid in ascending order.
	SearchSince(uid uint32) ([]uint32, error)
	FetchHeaders(uids []uint32) ([]models.MessageSummary, error)
	Logout() error
}

type SessionManager interface {
	EnsureSession(ctx context.Context) (MailSession, error)
	Invalidate(cause error)
	Close() error
	State() enum.ConnectionState
}

type ChangeDetector interface {
	PollNew(ctx context.Context, session MailSession, cursor models.MailboxCursor) ([]models.MessageSummary, models.MailboxCursor, error)
}

type NotifierStatus struct {
	LoopState           enum.LoopState       `json:"loopState"`
	ConnectionState     enum.ConnectionState `json:"connectionState"`
	Mailbox             string               `json:"mailbox"`
	Folder              string               `json:"folder"`
	ConsecutiveFailures int                  `json:"consecutiveFailures"`
	LastError           string               `json:"lastError,omitempty"`
	UIDValidity         uint32               `json:"uidValidity"`
	LastUID             uint32               `json:"lastUid"`
	CursorInitialized   bool                 `json:"cursorInitialized"`
	Detected            uint64               `json:"detected"`
	Delivered           uint64               `json:"delivered"`
	DeliveryFailures    uint64               `json:"deliveryFailures"`
	LastPoll            time.Time            `json:"lastPoll"`
	LastSuccess         time.Time            `json:"lastSuccess"`
}

type NotifierService interface {
	Run(ctx context.Context) error
	Status() NotifierStatus
}
