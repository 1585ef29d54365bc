package imap

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"

	"github.com/customeros/mailnotify/config"
	"github.com/customeros/mailnotify/interfaces"
	"github.com/customeros/mailnotify/internal/enum"
	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
	"github.com/customeros/mailnotify/internal/logger"
	"github.com/customeros/mailnotify/internal/tracing"
)

// SessionManager owns the single authenticated IMAP session. Only the poll loop
// calls into it; the mutex exists so status readers see a consistent state.
type SessionManager struct {
	cfg       *config.ImapConfig
	connector interfaces.MailConnector
	log       logger.Logger

	session interfaces.MailSession

	stateMutex sync.RWMutex
	state      enum.ConnectionState
}

func NewSessionManager(cfg *config.ImapConfig, connector interfaces.MailConnector, log logger.Logger) *SessionManager {
	return &SessionManager{
		cfg:       cfg,
		connector: connector,
		log:       log,
		state:     enum.ConnectionDisconnected,
	}
}

func (m *SessionManager) State() enum.ConnectionState {
	m.stateMutex.RLock()
	defer m.stateMutex.RUnlock()
	return m.state
}

func (m *SessionManager) setState(state enum.ConnectionState) {
	m.stateMutex.Lock()
	defer m.stateMutex.Unlock()
	m.state = state
}

// EnsureSession returns the current session if it still answers NOOP, and
// otherwise builds a new one from scratch.
func (m *SessionManager) EnsureSession(ctx context.Context) (interfaces.MailSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SessionManager.EnsureSession")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMailbox(span, m.cfg.Email, m.cfg.Folder)

	if m.session != nil && m.State() == enum.ConnectionAuthenticated {
		err := m.session.Noop()
		if err == nil {
			span.LogFields(tracingLog.Bool("reused", true))
			return m.session, nil
		}
		m.log.Warnw("Existing IMAP session failed liveness check, reconnecting",
			"mailbox", m.cfg.Email, "error", err)
	}

	m.closeSession()
	m.setState(enum.ConnectionConnecting)

	session, err := m.connect(ctx)
	if err != nil {
		m.setState(enum.ConnectionFaulted)
		tracing.TraceErr(span, err)
		return nil, err
	}

	m.session = session
	m.setState(enum.ConnectionAuthenticated)
	span.LogFields(tracingLog.Bool("reused", false))
	return session, nil
}

func (m *SessionManager) connect(ctx context.Context) (interfaces.MailSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SessionManager.connect")
	defer span.Finish()
	tracing.TagComponentMailClient(span)
	span.SetTag("server", m.cfg.Host)
	span.SetTag("port", m.cfg.Port)

	if err := ctx.Err(); err != nil {
		return nil, mailnotify_errors.NewConnectionError(mailnotify_errors.Retryable, "connect", err)
	}

	transport, err := m.connector.Connect(ctx, m.cfg.Host, m.cfg.Port)
	if err != nil {
		err = mailnotify_errors.NewConnectionError(classifyError(err), "connect", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	session, err := transport.Login(m.cfg.Email, m.cfg.AppPassword)
	if err != nil {
		_ = transport.Logout()
		err = mailnotify_errors.NewConnectionError(classifyLoginError(err), "login", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	status, err := session.Select(m.cfg.Folder)
	if err != nil {
		_ = session.Logout()
		err = mailnotify_errors.NewConnectionError(classifyError(err), "select", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	m.log.Infow("Connected to IMAP server",
		"server", m.cfg.Host,
		"mailbox", m.cfg.Email,
		"folder", m.cfg.Folder,
		"messages", status.Messages,
		"uidValidity", status.UIDValidity)
	span.SetTag("success", true)

	return session, nil
}

// Invalidate drops a session that produced an error so the next EnsureSession
// reconnects even if NOOP would still succeed.
func (m *SessionManager) Invalidate(cause error) {
	if m.session != nil {
		m.log.Warnw("Invalidating IMAP session", "mailbox", m.cfg.Email, "cause", cause)
	}
	m.closeSession()
	m.setState(enum.ConnectionFaulted)
}

// Close logs out on shutdown.
func (m *SessionManager) Close() error {
	m.closeSession()
	m.setState(enum.ConnectionDisconnected)
	return nil
}

func (m *SessionManager) closeSession() {
	if m.session == nil {
		return
	}
	if err := m.session.Logout(); err != nil {
		m.log.Debugf("Error during IMAP logout for %s: %v", m.cfg.Email, err)
	} else {
		m.log.Debugf("Logged out of IMAP session for %s", m.cfg.Email)
	}
	m.session = nil
}
