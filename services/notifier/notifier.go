package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/customeros/mailnotify/config"
	"github.com/customeros/mailnotify/interfaces"
	"github.com/customeros/mailnotify/internal/enum"
	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
	"github.com/customeros/mailnotify/internal/logger"
	"github.com/customeros/mailnotify/internal/models"
	"github.com/customeros/mailnotify/internal/tracing"
)

// Notifier is the supervisory loop. It is the only owner of the cursor and the
// failure counter; run exactly one per mailbox.
type Notifier struct {
	cfg        *config.NotifierConfig
	mailbox    string
	folder     string
	sessions   interfaces.SessionManager
	detector   interfaces.ChangeDetector
	dispatcher interfaces.NotificationDispatcher
	cursors    interfaces.MailboxCursorRepository
	log        logger.Logger
	sleep      func(ctx context.Context, d time.Duration) error

	cursor   models.MailboxCursor
	failures int

	statusMutex sync.RWMutex
	status      interfaces.NotifierStatus
}

func NewNotifier(
	cfg *config.NotifierConfig,
	mailbox, folder string,
	sessions interfaces.SessionManager,
	detector interfaces.ChangeDetector,
	dispatcher interfaces.NotificationDispatcher,
	cursors interfaces.MailboxCursorRepository,
	log logger.Logger,
) *Notifier {
	return &Notifier{
		cfg:        cfg,
		mailbox:    mailbox,
		folder:     folder,
		sessions:   sessions,
		detector:   detector,
		dispatcher: dispatcher,
		cursors:    cursors,
		log:        log,
		sleep:      sleepContext,
		cursor:     models.MailboxCursor{Mailbox: mailbox, Folder: folder},
		status: interfaces.NotifierStatus{
			LoopState:       enum.LoopIdle,
			ConnectionState: enum.ConnectionDisconnected,
			Mailbox:         mailbox,
			Folder:          folder,
		},
	}
}

// Run blocks until ctx is cancelled. Transient errors never end it.
func (n *Notifier) Run(ctx context.Context) error {
	defer func() {
		if err := n.sessions.Close(); err != nil {
			n.log.Warnf("Error closing IMAP session: %v", err)
		}
		n.setState(enum.LoopStopped)
		n.log.Info("Mail notifier stopped")
	}()

	n.loadCursor(ctx)
	n.log.Infow("Mail notifier started",
		"mailbox", n.mailbox, "folder", n.folder,
		"pollInterval", n.cfg.PollInterval.String(),
		"backoffInitial", n.cfg.BackoffInitial.String(),
		"backoffMax", n.cfg.BackoffMax.String())

	for {
		delay := n.runCycle(ctx)
		if ctx.Err() != nil {
			return nil
		}

		n.setState(enum.LoopSleeping)
		if err := n.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// runCycle does one connect/poll/dispatch pass and returns how long to sleep.
func (n *Notifier) runCycle(ctx context.Context) time.Duration {
	span, ctx := tracing.StartTracerSpan(ctx, "Notifier.runCycle")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMailbox(span, n.mailbox, n.folder)
	span.LogFields(tracingLog.Int("failures", n.failures))

	n.markPoll()
	n.log.Infow("Starting poll cycle",
		"mailbox", n.mailbox, "folder", n.folder, "lastUid", n.cursor.LastUID, "failures", n.failures,
		"traceId", tracing.GetTraceId(span))

	n.setState(enum.LoopConnecting)
	session, err := n.sessions.EnsureSession(ctx)
	if err != nil {
		return n.fault(ctx, span, err)
	}

	n.setState(enum.LoopPolling)
	summaries, next, err := n.detector.PollNew(ctx, session, n.cursor)
	if err != nil {
		// a session that failed mid-poll may still answer NOOP
		n.sessions.Invalidate(err)
		return n.fault(ctx, span, err)
	}

	n.failures = 0
	n.advanceCursor(ctx, next, len(summaries))
	n.log.Infow("Poll complete",
		"mailbox", n.mailbox, "folder", n.folder, "new", len(summaries), "lastUid", n.cursor.LastUID)
	span.LogFields(tracingLog.Int("messages.new", len(summaries)))

	for _, summary := range summaries {
		if err := n.dispatcher.Notify(ctx, summary); err != nil {
			n.recordDelivery(false)
			continue
		}
		n.recordDelivery(true)
	}

	return n.cfg.PollInterval
}

func (n *Notifier) fault(ctx context.Context, span opentracing.Span, err error) time.Duration {
	tracing.TraceErr(span, err)
	n.syncConnectionState()

	if ctx.Err() != nil {
		return 0
	}

	n.failures++
	delay := Backoff(n.failures, n.cfg.BackoffInitial, n.cfg.BackoffMax)
	n.recordFailure(err)

	fields := []interface{}{
		"mailbox", n.mailbox,
		"failures", n.failures,
		"backoff", delay.String(),
		"error", err,
	}
	if mailnotify_errors.IsCredentialRejected(err) {
		n.log.Errorw("IMAP server rejected the credentials, check GMAIL_APP_PASSWORD; will retry", fields...)
	} else {
		n.log.Warnw("Mail server unavailable, backing off", fields...)
	}

	return delay
}

func (n *Notifier) loadCursor(ctx context.Context) {
	saved, err := n.cursors.GetCursor(ctx, n.mailbox, n.folder)
	if err != nil {
		n.log.Warnw("Could not load saved mailbox cursor, starting from current mailbox state",
			"mailbox", n.mailbox, "folder", n.folder, "error", err)
		return
	}
	if saved == nil || !saved.Initialized {
		return
	}

	n.cursor = *saved
	n.publishCursor()
	n.log.Infow("Resuming from saved mailbox cursor",
		"mailbox", n.mailbox, "folder", n.folder,
		"uidValidity", saved.UIDValidity, "lastUid", saved.LastUID)
}

// advanceCursor is called before dispatch, so a crash mid-dispatch loses
// notifications instead of repeating them.
func (n *Notifier) advanceCursor(ctx context.Context, next models.MailboxCursor, detected int) {
	changed := next.LastUID != n.cursor.LastUID ||
		next.UIDValidity != n.cursor.UIDValidity ||
		next.Initialized != n.cursor.Initialized
	rebased := n.cursor.Initialized &&
		(next.UIDValidity != n.cursor.UIDValidity || next.LastUID < n.cursor.LastUID)

	n.cursor = next
	n.recordSuccess(detected)

	if !changed {
		return
	}
	if rebased {
		// the old watermark names uids that no longer exist
		if err := n.cursors.DeleteCursor(ctx, n.mailbox, n.folder); err != nil {
			n.log.Warnw("Failed to discard stale mailbox cursor", "mailbox", n.mailbox, "folder", n.folder, "error", err)
		}
	}
	toSave := n.cursor
	if err := n.cursors.SaveCursor(ctx, &toSave); err != nil {
		n.log.Errorw("Failed to save mailbox cursor", "mailbox", n.mailbox, "folder", n.folder, "error", err)
	}
}

func (n *Notifier) Status() interfaces.NotifierStatus {
	n.statusMutex.RLock()
	defer n.statusMutex.RUnlock()
	return n.status
}

func (n *Notifier) setState(state enum.LoopState) {
	n.statusMutex.Lock()
	defer n.statusMutex.Unlock()
	n.status.LoopState = state
	n.status.ConnectionState = n.sessions.State()
}

func (n *Notifier) syncConnectionState() {
	n.statusMutex.Lock()
	defer n.statusMutex.Unlock()
	n.status.ConnectionState = n.sessions.State()
}

func (n *Notifier) markPoll() {
	n.statusMutex.Lock()
	defer n.statusMutex.Unlock()
	n.status.LastPoll = time.Now()
}

func (n *Notifier) publishCursor() {
	n.statusMutex.Lock()
	defer n.statusMutex.Unlock()
	n.status.UIDValidity = n.cursor.UIDValidity
	n.status.LastUID = n.cursor.LastUID
	n.status.CursorInitialized = n.cursor.Initialized
}

func (n *Notifier) recordSuccess(detected int) {
	n.publishCursor()

	n.statusMutex.Lock()
	defer n.statusMutex.Unlock()
	n.status.ConsecutiveFailures = 0
	n.status.LastError = ""
	n.status.LastSuccess = time.Now()
	n.status.Detected += uint64(detected)
	n.status.ConnectionState = n.sessions.State()
}

func (n *Notifier) recordFailure(err error) {
	n.statusMutex.Lock()
	defer n.statusMutex.Unlock()
	n.status.ConsecutiveFailures = n.failures
	n.status.LastError = err.Error()
}

func (n *Notifier) recordDelivery(ok bool) {
	n.statusMutex.Lock()
	defer n.statusMutex.Unlock()
	if ok {
		n.status.Delivered++
	} else {
		n.status.DeliveryFailures++
	}
}
