package discord

import (
	"context"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/customeros/mailnotify/config"
)

// Client talks to the Discord REST API only; no gateway connection is opened.
type Client struct {
	session *discordgo.Session

	channelsMutex sync.Mutex
	dmChannels    map[string]string
}

func NewClient(cfg *config.DiscordConfig) (*Client, error) {
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discord session")
	}

	session.Client = &http.Client{Timeout: cfg.RequestTimeout}
	// A rate limited message is dropped, not waited for.
	session.ShouldRetryOnRateLimit = false
	session.MaxRestRetries = 1

	return &Client{
		session:    session,
		dmChannels: make(map[string]string),
	}, nil
}

func (c *Client) SendDirectMessage(ctx context.Context, userID, text string) error {
	channelID, err := c.dmChannel(ctx, userID)
	if err != nil {
		return err
	}

	if _, err := c.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		c.forgetChannel(userID)
		return errors.Wrap(err, "failed to send discord message")
	}
	return nil
}

func (c *Client) dmChannel(ctx context.Context, userID string) (string, error) {
	c.channelsMutex.Lock()
	defer c.channelsMutex.Unlock()

	if id, ok := c.dmChannels[userID]; ok {
		return id, nil
	}

	channel, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(err, "failed to create DM channel")
	}
	c.dmChannels[userID] = channel.ID
	return channel.ID, nil
}

func (c *Client) forgetChannel(userID string) {
	c.channelsMutex.Lock()
	defer c.channelsMutex.Unlock()
	delete(c.dmChannels, userID)
}
