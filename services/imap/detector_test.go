package imap

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
	"github.com/customeros/mailnotify/internal/models"
	"github.com/customeros/mailnotify/internal/testutil"
)

const (
	testMailbox = "someone@example.com"
	testFolder  = "INBOX"
)

func openSession(t *testing.T, server *testutil.FakeMailServer) *testutil.FakeSession {
	t.Helper()
	transport, err := server.Connect(context.Background(), "imap.example.com", 993)
	require.NoError(t, err)
	_, err = transport.Login(testMailbox, "secret")
	require.NoError(t, err)
	return server.Session()
}

func uidsOf(summaries []models.MessageSummary) []uint32 {
	uids := make([]uint32, 0, len(summaries))
	for _, s := range summaries {
		uids = append(uids, s.UID)
	}
	return uids
}

func TestPollNew_FirstRunSetsBaselineWithoutNotifying(t *testing.T) {
	// Arrange
	server := testutil.NewFakeMailServer(testFolder, 7)
	server.AddMessage("a@example.com", "one")
	server.AddMessage("b@example.com", "two")
	server.AddMessage("c@example.com", "three")
	log, _ := testutil.ObservedLogger()
	detector := NewChangeDetector(testMailbox, testFolder, 0, log)

	// Act
	summaries, next, err := detector.PollNew(context.Background(), openSession(t, server), models.MailboxCursor{})

	// Assert
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.True(t, next.Initialized)
	assert.Equal(t, uint32(7), next.UIDValidity)
	assert.Equal(t, uint32(3), next.LastUID)
	assert.Equal(t, testMailbox, next.Mailbox)
	assert.Equal(t, testFolder, next.Folder)
}

func TestPollNew_FirstRunOnEmptyFolder(t *testing.T) {
	server := testutil.NewFakeMailServer(testFolder, 7)
	log, _ := testutil.ObservedLogger()
	detector := NewChangeDetector(testMailbox, testFolder, 0, log)
	session := openSession(t, server)

	summaries, cursor, err := detector.PollNew(context.Background(), session, models.MailboxCursor{})
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.True(t, cursor.Initialized)
	assert.Equal(t, uint32(0), cursor.LastUID)

	server.AddMessage("a@example.com", "hello")
	summaries, cursor, err = detector.PollNew(context.Background(), session, cursor)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1}, uidsOf(summaries))
	assert.Equal(t, uint32(1), cursor.LastUID)
}

func TestPollNew_ReturnsNewMessagesOldestFirst(t *testing.T) {
	// Arrange
	server := testutil.NewFakeMailServer(testFolder, 7)
	server.SetNextUID(101)
	server.AddMessage("a@example.com", "first")
	server.AddMessage("b@example.com", "second")
	server.AddMessage("c@example.com", "third")
	log, _ := testutil.ObservedLogger()
	detector := NewChangeDetector(testMailbox, testFolder, 0, log)
	cursor := models.MailboxCursor{UIDValidity: 7, LastUID: 100, Initialized: true}

	// Act
	summaries, next, err := detector.PollNew(context.Background(), openSession(t, server), cursor)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []uint32{101, 102, 103}, uidsOf(summaries))
	assert.Equal(t, "first", summaries[0].Subject)
	assert.Equal(t, uint32(103), next.LastUID)
	assert.Equal(t, uint32(100), cursor.LastUID, "input cursor must not change")
}

func TestPollNew_NoNewMessages(t *testing.T) {
	server := testutil.NewFakeMailServer(testFolder, 7)
	server.AddMessage("a@example.com", "old")
	server.StarQuirk = true
	log, _ := testutil.ObservedLogger()
	detector := NewChangeDetector(testMailbox, testFolder, 0, log)
	cursor := models.MailboxCursor{UIDValidity: 7, LastUID: 1, Initialized: true}

	summaries, next, err := detector.PollNew(context.Background(), openSession(t, server), cursor)

	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Equal(t, cursor, next)
}

func TestPollNew_FetchFailureKeepsCursor(t *testing.T) {
	// Arrange
	server := testutil.NewFakeMailServer(testFolder, 7)
	server.AddMessage("a@example.com", "one")
	server.AddMessage("b@example.com", "two")
	log, _ := testutil.ObservedLogger()
	detector := NewChangeDetector(testMailbox, testFolder, 0, log)
	session := openSession(t, server)
	cursor := models.MailboxCursor{UIDValidity: 7, LastUID: 0, Initialized: true}
	server.FailNextFetch(errors.New("connection reset by peer"))

	// Act
	summaries, next, err := detector.PollNew(context.Background(), session, cursor)

	// Assert
	require.Error(t, err)
	assert.True(t, mailnotify_errors.IsProtocolError(err))
	assert.Nil(t, summaries)
	assert.Equal(t, cursor, next)

	// the same messages are found on the next attempt
	summaries, next, err = detector.PollNew(context.Background(), session, next)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, uidsOf(summaries))
	assert.Equal(t, uint32(2), next.LastUID)
}

func TestPollNew_SelectFailure(t *testing.T) {
	server := testutil.NewFakeMailServer(testFolder, 7)
	log, _ := testutil.ObservedLogger()
	detector := NewChangeDetector(testMailbox, testFolder, 0, log)
	session := openSession(t, server)
	server.FailNextSelect(errors.New("BYE server shutting down"))
	cursor := models.MailboxCursor{UIDValidity: 7, LastUID: 3, Initialized: true}

	_, next, err := detector.PollNew(context.Background(), session, cursor)

	require.Error(t, err)
	var protoErr *mailnotify_errors.ProtocolError
	require.True(t, errors.As(err, &protoErr))
	assert.Equal(t, "select", protoErr.Op)
	assert.Equal(t, cursor, next)
}

func TestPollNew_UIDValidityChangeResetsCursor(t *testing.T) {
	// Arrange
	server := testutil.NewFakeMailServer(testFolder, 7)
	for i := 0; i < 5; i++ {
		server.AddMessage("a@example.com", "msg")
	}
	log, logs := testutil.ObservedLogger()
	detector := NewChangeDetector(testMailbox, testFolder, 0, log)
	session := openSession(t, server)
	cursor := models.MailboxCursor{UIDValidity: 7, LastUID: 5, Initialized: true}
	server.Rebuild(8)

	// Act
	summaries, next, err := detector.PollNew(context.Background(), session, cursor)

	// Assert
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Equal(t, uint32(8), next.UIDValidity)
	assert.Equal(t, uint32(5), next.LastUID)

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).FilterMessageSnippet("cursor reset").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "uid validity changed", warnings[0].ContextMap()["reason"])

	// detection resumes from the new baseline
	server.AddMessage("b@example.com", "after rebuild")
	summaries, next, err = detector.PollNew(context.Background(), session, next)
	require.NoError(t, err)
	assert.Equal(t, []uint32{6}, uidsOf(summaries))
	assert.Equal(t, uint32(6), next.LastUID)
}

func TestPollNew_UIDNextBelowCursorResetsCursor(t *testing.T) {
	server := testutil.NewFakeMailServer(testFolder, 7)
	server.AddMessage("a@example.com", "one")
	server.AddMessage("a@example.com", "two")
	log, logs := testutil.ObservedLogger()
	detector := NewChangeDetector(testMailbox, testFolder, 0, log)
	cursor := models.MailboxCursor{UIDValidity: 7, LastUID: 50, Initialized: true}

	summaries, next, err := detector.PollNew(context.Background(), openSession(t, server), cursor)

	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Equal(t, uint32(2), next.LastUID)
	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Equal(t, "folder uids below cursor", warnings[0].ContextMap()["reason"])
}

func TestPollNew_MaxBatchDefersTheRest(t *testing.T) {
	// Arrange
	server := testutil.NewFakeMailServer(testFolder, 7)
	for i := 0; i < 5; i++ {
		server.AddMessage("a@example.com", "msg")
	}
	log, _ := testutil.ObservedLogger()
	detector := NewChangeDetector(testMailbox, testFolder, 2, log)
	session := openSession(t, server)
	cursor := models.MailboxCursor{UIDValidity: 7, LastUID: 0, Initialized: true}

	// Act
	var seen []uint32
	for i := 0; i < 3; i++ {
		summaries, next, err := detector.PollNew(context.Background(), session, cursor)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(summaries), 2)
		seen = append(seen, uidsOf(summaries)...)
		cursor = next
	}

	// Assert
	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, seen)
	assert.Equal(t, uint32(5), cursor.LastUID)
}

func TestNewUIDs(t *testing.T) {
	assert.Equal(t, []uint32{4, 5, 9}, newUIDs([]uint32{9, 3, 4, 5, 4, 1}, 3))
	assert.Empty(t, newUIDs([]uint32{3}, 3))
	assert.Empty(t, newUIDs(nil, 0))
}

func TestOrderSummaries_DropsUnrequestedAndDuplicates(t *testing.T) {
	fetched := []models.MessageSummary{{UID: 12}, {UID: 10}, {UID: 99}, {UID: 12}}

	result := orderSummaries(fetched, []uint32{10, 11, 12})

	assert.Equal(t, []uint32{10, 12}, uidsOf(result))
}
