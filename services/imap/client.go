package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/customeros/mailnotify/config"
	"github.com/customeros/mailnotify/interfaces"
	"github.com/customeros/mailnotify/internal/logger"
	"github.com/customeros/mailnotify/internal/models"
)

// Connector dials the IMAP server over implicit TLS. There is no plaintext or
// STARTTLS path.
type Connector struct {
	cfg       *config.ImapConfig
	log       logger.Logger
	tlsConfig *tls.Config
}

func NewConnector(cfg *config.ImapConfig, log logger.Logger) *Connector {
	return &Connector{cfg: cfg, log: log}
}

// Connect bounds the dial, TLS handshake and greeting by DialTimeout. Cancelling
// ctx interrupts any of them.
func (c *Connector) Connect(ctx context.Context, host string, port int) (interfaces.MailTransport, error) {
	serverAddr := fmt.Sprintf("%s:%d", host, port)

	dialer := &net.Dialer{
		Timeout:   c.cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}
	conn, err := dialer.DialContext(ctx, "tcp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
	}

	tlsConfig := c.tlsConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			ServerName: host,
			MinVersion: tls.VersionTLS12,
		}
	}
	tlsConn := tls.Client(conn, tlsConfig)

	if c.cfg.DialTimeout > 0 {
		if err := tlsConn.SetDeadline(time.Now().Add(c.cfg.DialTimeout)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = tlsConn.SetDeadline(time.Now())
	})
	imapClient, err := client.New(tlsConn)
	interrupted := !stop()
	if err != nil {
		_ = tlsConn.Close()
		if interrupted && ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("failed to read greeting from %s: %w", serverAddr, err)
	}
	if interrupted {
		_ = imapClient.Terminate()
		return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, ctx.Err())
	}
	// per-command deadlines take over from here
	if err := tlsConn.SetDeadline(time.Time{}); err != nil {
		_ = imapClient.Terminate()
		return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr, err)
	}
	imapClient.Timeout = c.cfg.CommandTimeout

	caps, err := imapClient.Capability()
	if err != nil {
		_ = imapClient.Terminate()
		return nil, fmt.Errorf("failed to get capabilities: %w", err)
	}
	c.log.Debugf("Server capabilities for %s: %v", serverAddr, caps)

	return &transport{client: imapClient, cfg: c.cfg}, nil
}

type transport struct {
	client *client.Client
	cfg    *config.ImapConfig
}

func (t *transport) Login(username, secret string) (interfaces.MailSession, error) {
	if err := t.client.Login(username, secret); err != nil {
		return nil, fmt.Errorf("failed to login as %s: %w", username, err)
	}
	return &session{client: t.client, cfg: t.cfg}, nil
}

func (t *transport) Logout() error {
	return logout(t.client, t.cfg.LogoutTimeout)
}

type session struct {
	client *client.Client
	cfg    *config.ImapConfig
}

func (s *session) Select(folder string) (*models.FolderStatus, error) {
	// EXAMINE keeps the notifier from touching \Recent or \Seen.
	mbox, err := s.client.Select(folder, true)
	if err != nil {
		return nil, fmt.Errorf("error selecting folder %s: %w", folder, err)
	}
	return &models.FolderStatus{
		Name:        mbox.Name,
		Messages:    mbox.Messages,
		UIDValidity: mbox.UidValidity,
		UIDNext:     mbox.UidNext,
	}, nil
}

func (s *session) Noop() error {
	return s.client.Noop()
}

func (s *session) HighestUID() (uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Uid = new(imap.SeqSet)
	criteria.Uid.AddNum(0) // "*"

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return 0, fmt.Errorf("error searching for highest uid: %w", err)
	}

	var highest uint32
	for _, uid := range uids {
		if uid > highest {
			highest = uid
		}
	}
	return highest, nil
}

func (s *session) SearchSince(lastUID uint32) ([]uint32, error) {
	if lastUID == math.MaxUint32 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	criteria.Uid = new(imap.SeqSet)
	criteria.Uid.AddRange(lastUID+1, 0) // From lastUID+1 to infinity

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("error searching for new messages: %w", err)
	}

	// n:* always matches the last message, even when its uid is below n
	result := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		if uid > lastUID {
			result = append(result, uid)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })

	return result, nil
}

func (s *session) FetchHeaders(uids []uint32) ([]models.MessageSummary, error) {
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	items := []imap.FetchItem{
		imap.FetchUid,
		imap.FetchEnvelope,
	}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	summaries := make([]models.MessageSummary, 0, len(uids))
	for msg := range messages {
		summaries = append(summaries, summarize(msg))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("error fetching messages: %w", err)
	}

	return summaries, nil
}

func (s *session) Logout() error {
	return logout(s.client, s.cfg.LogoutTimeout)
}

func logout(c *client.Client, timeout time.Duration) error {
	if c == nil {
		return nil
	}
	c.Timeout = timeout
	if err := c.Logout(); err != nil {
		_ = c.Terminate()
		return err
	}
	return nil
}

func summarize(msg *imap.Message) models.MessageSummary {
	summary := models.MessageSummary{
		UID: msg.Uid,
	}
	if msg.Envelope == nil {
		summary.From = formatSender("", "")
		summary.Subject = formatSubject("")
		return summary
	}

	var name, address string
	if len(msg.Envelope.From) > 0 && msg.Envelope.From[0] != nil {
		from := msg.Envelope.From[0]
		name = from.PersonalName
		if from.MailboxName != "" && from.HostName != "" {
			address = from.Address()
		}
	}

	summary.From = formatSender(name, address)
	summary.Subject = formatSubject(msg.Envelope.Subject)
	summary.Date = msg.Envelope.Date
	return summary
}
