package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMailboxCursor_Advance(t *testing.T) {
	cursor := MailboxCursor{UIDValidity: 1, LastUID: 10, Initialized: true}

	assert.Equal(t, uint32(12), cursor.Advance(12).LastUID)
	assert.Equal(t, uint32(10), cursor.Advance(3).LastUID)
	assert.Equal(t, uint32(10), cursor.LastUID)
}

func TestMailboxCursor_Reset(t *testing.T) {
	cursor := MailboxCursor{Mailbox: "someone@example.com", UIDValidity: 1, LastUID: 500}

	next := cursor.Reset(2, 7)

	assert.Equal(t, uint32(2), next.UIDValidity)
	assert.Equal(t, uint32(7), next.LastUID)
	assert.True(t, next.Initialized)
	assert.Equal(t, "someone@example.com", next.Mailbox)
}
