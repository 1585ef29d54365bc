package imap

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"

	goimap "github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	mailnotify_errors "github.com/customeros/mailnotify/internal/errors"
)

func statusErr(code goimap.StatusRespCode) error {
	return &goimap.ErrStatusResp{Resp: &goimap.StatusResp{Type: goimap.StatusRespNo, Code: code, Info: "refused"}}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want mailnotify_errors.ConnectionErrorKind
	}{
		{"authentication failed", statusErr("AUTHENTICATIONFAILED"), mailnotify_errors.CredentialRejected},
		{"authorization failed", statusErr("AUTHORIZATIONFAILED"), mailnotify_errors.CredentialRejected},
		{"expired", statusErr("EXPIRED"), mailnotify_errors.CredentialRejected},
		{"wrapped", fmt.Errorf("failed to login: %w", statusErr("AUTHENTICATIONFAILED")), mailnotify_errors.CredentialRejected},
		{"server unavailable", statusErr("UNAVAILABLE"), mailnotify_errors.Retryable},
		{"no code", statusErr(""), mailnotify_errors.Retryable},
		{"network", errors.New("connection refused"), mailnotify_errors.Retryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyError(tt.err))
		})
	}
}

func TestClassifyLoginError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want mailnotify_errors.ConnectionErrorKind
	}{
		{"plain NO reply", fmt.Errorf("failed to login as a@b.c: %w", errors.New("Invalid credentials (Failure)")), mailnotify_errors.CredentialRejected},
		{"application-specific password required", errors.New("[ALERT] Application-specific password required"), mailnotify_errors.CredentialRejected},
		{"coded reply", statusErr("AUTHENTICATIONFAILED"), mailnotify_errors.CredentialRejected},
		{"connection closed mid command", errors.New("imap: connection closed during command execution"), mailnotify_errors.Retryable},
		{"closed", errors.New("imap: connection closed"), mailnotify_errors.Retryable},
		{"eof", fmt.Errorf("failed to login: %w", io.EOF), mailnotify_errors.Retryable},
		{"timeout", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("i/o timeout")}, mailnotify_errors.Retryable},
		{"context", context.DeadlineExceeded, mailnotify_errors.Retryable},
		{"login disabled", client.ErrLoginDisabled, mailnotify_errors.Retryable},
		{"too many connections", errors.New("[UNAVAILABLE] Too many simultaneous connections"), mailnotify_errors.Retryable},
		{"temporary failure", errors.New("Temporary System Problem. Try again later"), mailnotify_errors.Retryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyLoginError(tt.err))
		})
	}
}
