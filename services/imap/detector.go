package imap

import (
	"context"
	"sort"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailnotify/interfaces"
	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
	"github.com/customeros/mailnotify/internal/logger"
	"github.com/customeros/mailnotify/internal/models"
	"github.com/customeros/mailnotify/internal/tracing"
)

// ChangeDetector finds messages above the cursor. It never mutates the cursor it
// is given: on error the caller keeps the old one and the same range is queried
// again next cycle.
type ChangeDetector struct {
	mailbox  string
	folder   string
	maxBatch int
	log      logger.Logger
}

func NewChangeDetector(mailbox, folder string, maxBatch int, log logger.Logger) *ChangeDetector {
	return &ChangeDetector{
		mailbox:  mailbox,
		folder:   folder,
		maxBatch: maxBatch,
		log:      log,
	}
}

func (d *ChangeDetector) PollNew(ctx context.Context, session interfaces.MailSession, cursor models.MailboxCursor) ([]models.MessageSummary, models.MailboxCursor, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ChangeDetector.PollNew")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMailbox(span, d.mailbox, d.folder)
	span.SetTag("cursor.last_uid", cursor.LastUID)

	status, err := session.Select(d.folder)
	if err != nil {
		err = mailnotify_errors.NewProtocolError("select", err)
		tracing.TraceErr(span, err)
		return nil, cursor, err
	}
	span.SetTag("messages.total", status.Messages)

	if !cursor.Initialized {
		next, err := d.baseline(session, status, cursor)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, cursor, err
		}
		d.log.Infow("Mailbox cursor initialized, existing messages will not be notified",
			"mailbox", d.mailbox, "folder", d.folder,
			"uidValidity", next.UIDValidity, "lastUid", next.LastUID, "existing", status.Messages)
		return nil, next, nil
	}

	if reason := resetReason(status, cursor); reason != "" {
		next, err := d.baseline(session, status, cursor)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, cursor, err
		}
		d.log.Warnw("Mailbox cursor reset, messages may have been missed or notified twice",
			"mailbox", d.mailbox, "folder", d.folder, "reason", reason,
			"previousUidValidity", cursor.UIDValidity, "previousLastUid", cursor.LastUID,
			"uidValidity", next.UIDValidity, "lastUid", next.LastUID)
		span.SetTag("cursor.reset", reason)
		return nil, next, nil
	}

	uids, err := session.SearchSince(cursor.LastUID)
	if err != nil {
		err = mailnotify_errors.NewProtocolError("search", err)
		tracing.TraceErr(span, err)
		return nil, cursor, err
	}
	uids = newUIDs(uids, cursor.LastUID)
	if len(uids) == 0 {
		return nil, cursor, nil
	}

	if d.maxBatch > 0 && len(uids) > d.maxBatch {
		d.log.Warnw("More new messages than the batch limit, the rest follow next cycle",
			"mailbox", d.mailbox, "folder", d.folder, "found", len(uids), "limit", d.maxBatch)
		uids = uids[:d.maxBatch]
	}

	fetched, err := session.FetchHeaders(uids)
	if err != nil {
		err = mailnotify_errors.NewProtocolError("fetch", err)
		tracing.TraceErr(span, err)
		return nil, cursor, err
	}

	summaries := orderSummaries(fetched, uids)
	next := cursor.Advance(uids[len(uids)-1])
	span.SetTag("messages.new", len(summaries))
	span.SetTag("cursor.next_uid", next.LastUID)

	return summaries, next, nil
}

// baseline moves the cursor to the folder's current highest uid without
// producing notifications.
func (d *ChangeDetector) baseline(session interfaces.MailSession, status *models.FolderStatus, cursor models.MailboxCursor) (models.MailboxCursor, error) {
	var highest uint32
	if status.Messages > 0 {
		var err error
		highest, err = session.HighestUID()
		if err != nil {
			return cursor, mailnotify_errors.NewProtocolError("search", err)
		}
	}

	next := cursor.Reset(status.UIDValidity, highest)
	next.Mailbox = d.mailbox
	next.Folder = d.folder
	return next, nil
}

// resetReason reports why uids seen so far can no longer be trusted, or "".
func resetReason(status *models.FolderStatus, cursor models.MailboxCursor) string {
	if status.UIDValidity != cursor.UIDValidity {
		return "uid validity changed"
	}
	// UIDNEXT is above every uid in the folder
	if status.UIDNext != 0 && status.UIDNext <= cursor.LastUID {
		return "folder uids below cursor"
	}
	return ""
}

func newUIDs(uids []uint32, lastUID uint32) []uint32 {
	seen := make(map[uint32]struct{}, len(uids))
	result := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if uid <= lastUID {
			continue
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		result = append(result, uid)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// orderSummaries keeps one summary per requested uid, oldest first. Messages
// expunged between search and fetch are simply absent.
func orderSummaries(fetched []models.MessageSummary, requested []uint32) []models.MessageSummary {
	wanted := make(map[uint32]struct{}, len(requested))
	for _, uid := range requested {
		wanted[uid] = struct{}{}
	}

	result := make([]models.MessageSummary, 0, len(fetched))
	for _, summary := range fetched {
		if _, ok := wanted[summary.UID]; !ok {
			continue
		}
		delete(wanted, summary.UID)
		result = append(result, summary)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UID < result[j].UID })
	return result
}
