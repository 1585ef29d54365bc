package discord

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
	"github.com/customeros/mailnotify/internal/models"
	"github.com/customeros/mailnotify/internal/testutil"
)

type mockChatClient struct {
	mock.Mock
}

func (m *mockChatClient) SendDirectMessage(ctx context.Context, userID, text string) error {
	args := m.Called(ctx, userID, text)
	return args.Error(0)
}

var testSummary = models.MessageSummary{UID: 42, From: "Jane Doe <jane@example.com>", Subject: "Hello"}

func TestDispatcher_Notify(t *testing.T) {
	// Arrange
	client := &mockChatClient{}
	client.On("SendDirectMessage", mock.Anything, "123456789", FormatNotification(testSummary)).Return(nil)
	log, logs := testutil.ObservedLogger()
	dispatcher := NewDispatcher(client, "123456789", log)

	// Act
	err := dispatcher.Notify(context.Background(), testSummary)

	// Assert
	require.NoError(t, err)
	client.AssertExpectations(t)
	assert.Equal(t, 1, logs.FilterMessage("Notification delivered").Len())
}

func TestDispatcher_Notify_SendFailure(t *testing.T) {
	// Arrange
	client := &mockChatClient{}
	client.On("SendDirectMessage", mock.Anything, "123456789", mock.Anything).Return(errors.New("HTTP 403 Forbidden"))
	log, logs := testutil.ObservedLogger()
	dispatcher := NewDispatcher(client, "123456789", log)

	// Act
	err := dispatcher.Notify(context.Background(), testSummary)

	// Assert
	require.Error(t, err)
	var deliveryErr *mailnotify_errors.DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Equal(t, uint32(42), deliveryErr.UID)
	assert.Equal(t, "123456789", deliveryErr.Recipient)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	client.AssertNumberOfCalls(t, "SendDirectMessage", 1)
}

func TestDispatcher_Notify_MissingRecipient(t *testing.T) {
	client := &mockChatClient{}
	log, _ := testutil.ObservedLogger()
	dispatcher := NewDispatcher(client, "", log)

	err := dispatcher.Notify(context.Background(), testSummary)

	assert.True(t, mailnotify_errors.IsDeliveryError(err))
	assert.True(t, errors.Is(err, mailnotify_errors.ErrRecipientNotSet))
	client.AssertNotCalled(t, "SendDirectMessage", mock.Anything, mock.Anything, mock.Anything)
}
