package imap

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
)

// Response codes (RFC 5530) that mean the account itself was refused.
var credentialResponseCodes = map[string]struct{}{
	"AUTHENTICATIONFAILED": {},
	"AUTHORIZATIONFAILED":  {},
	"EXPIRED":              {},
}

// Reply texts that mark a refused LOGIN as temporary. The client library drops
// the response code, so the human-readable part is all that is left.
var temporaryLoginReplies = []string{
	"unavailable",
	"try again",
	"too many",
	"temporar",
	"limit",
}

// classifyError decides whether a failure is worth paging the operator about.
// Anything not explicitly a credential refusal is retryable.
func classifyError(err error) mailnotify_errors.ConnectionErrorKind {
	var statusErr *imap.ErrStatusResp
	if stderrors.As(err, &statusErr) && statusErr.Resp != nil {
		code := strings.ToUpper(string(statusErr.Resp.Code))
		if _, ok := credentialResponseCodes[code]; ok {
			return mailnotify_errors.CredentialRejected
		}
	}
	return mailnotify_errors.Retryable
}

// classifyLoginError treats a LOGIN the server answered with NO or BAD as a
// credential refusal. Transport failures and replies that say "later" stay
// retryable.
func classifyLoginError(err error) mailnotify_errors.ConnectionErrorKind {
	if err == nil {
		return mailnotify_errors.Retryable
	}
	if classifyError(err) == mailnotify_errors.CredentialRejected {
		return mailnotify_errors.CredentialRejected
	}
	if isConnectionError(err) {
		return mailnotify_errors.Retryable
	}
	if stderrors.Is(err, client.ErrAlreadyLoggedIn) ||
		stderrors.Is(err, client.ErrLoginDisabled) ||
		stderrors.Is(err, client.ErrNotLoggedIn) ||
		stderrors.Is(err, client.ErrAlreadyLoggedOut) {
		return mailnotify_errors.Retryable
	}

	reply := strings.ToLower(err.Error())
	for _, marker := range temporaryLoginReplies {
		if strings.Contains(reply, marker) {
			return mailnotify_errors.Retryable
		}
	}
	return mailnotify_errors.CredentialRejected
}

func isConnectionError(err error) bool {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if stderrors.Is(err, io.EOF) || stderrors.Is(err, io.ErrUnexpectedEOF) || stderrors.Is(err, net.ErrClosed) {
		return true
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection closed") ||
		strings.Contains(errStr, "i/o timeout") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "broken pipe")
}
