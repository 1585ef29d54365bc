package testutil

import (
	"context"
	"sync"
)

type SentMessage struct {
	UserID string
	Text   string
}

// FakeChatClient records direct messages. Failures queued with FailNext are
// returned one per send.
type FakeChatClient struct {
	mu       sync.Mutex
	sent     []SentMessage
	failures []error
}

func NewFakeChatClient() *FakeChatClient {
	return &FakeChatClient{}
}

func (c *FakeChatClient) FailNext(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, errs...)
}

func (c *FakeChatClient) SendDirectMessage(ctx context.Context, userID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.failures) > 0 {
		err := c.failures[0]
		c.failures = c.failures[1:]
		if err != nil {
			return err
		}
	}
	c.sent = append(c.sent, SentMessage{UserID: userID, Text: text})
	return nil
}

func (c *FakeChatClient) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentMessage(nil), c.sent...)
}
