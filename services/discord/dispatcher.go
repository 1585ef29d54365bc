package discord

import (
	"context"

	"github.com/opentracing/opentracing-go"

	"github.com/customeros/mailnotify/interfaces"
	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
	"github.com/customeros/mailnotify/internal/logger"
	"github.com/customeros/mailnotify/internal/models"
	"github.com/customeros/mailnotify/internal/tracing"
)

// Dispatcher sends one direct message per new mail to a single recipient.
// Failed deliveries are reported and never retried.
type Dispatcher struct {
	client    interfaces.ChatClient
	recipient string
	log       logger.Logger
}

func NewDispatcher(client interfaces.ChatClient, recipient string, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		client:    client,
		recipient: recipient,
		log:       log,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, summary models.MessageSummary) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Dispatcher.Notify")
	defer span.Finish()
	tracing.TagComponentChatClient(span)
	span.SetTag("uid", summary.UID)

	if d.recipient == "" {
		err := mailnotify_errors.NewDeliveryError(summary.UID, d.recipient, mailnotify_errors.ErrRecipientNotSet)
		tracing.TraceErr(span, err)
		d.log.Errorw("Notification not delivered", "uid", summary.UID, "error", err)
		return err
	}

	if err := d.client.SendDirectMessage(ctx, d.recipient, FormatNotification(summary)); err != nil {
		err = mailnotify_errors.NewDeliveryError(summary.UID, d.recipient, err)
		tracing.TraceErr(span, err)
		d.log.Errorw("Notification not delivered",
			"uid", summary.UID, "from", summary.From, "subject", summary.Subject, "error", err)
		return err
	}

	d.log.Infow("Notification delivered",
		"uid", summary.UID, "from", summary.From, "subject", summary.Subject)
	return nil
}
