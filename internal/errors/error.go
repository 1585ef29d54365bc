package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// session errors
	ErrSessionClosed = errors.New("session closed")

	// configuration errors
	ErrMissingValue = errors.New("required value is missing")
	ErrInvalidValue = errors.New("value is invalid")

	// delivery errors
	ErrRecipientNotSet = errors.New("recipient not set")
)

// ConfigurationError is fatal and only ever produced at startup.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func NewConfigurationError(field string, err error) error {
	return &ConfigurationError{Field: field, Err: err}
}

type ConnectionErrorKind int

const (
	// Retryable covers network, timeout, TLS and unknown server responses.
	Retryable ConnectionErrorKind = iota
	// CredentialRejected means the server refused the login. Still retried.
	CredentialRejected
)

func (k ConnectionErrorKind) String() string {
	switch k {
	case CredentialRejected:
		return "credential_rejected"
	default:
		return "retryable"
	}
}

// ConnectionError is returned by the session manager when a session could not
// be established or verified.
type ConnectionError struct {
	Kind ConnectionErrorKind
	Op   string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error (%s) during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func NewConnectionError(kind ConnectionErrorKind, op string, err error) error {
	return &ConnectionError{Kind: kind, Op: op, Err: err}
}

// ProtocolError is a failure of an otherwise connected session.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error during %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func NewProtocolError(op string, err error) error {
	return &ProtocolError{Op: op, Err: err}
}

// DeliveryError is logged and swallowed by the poll loop.
type DeliveryError struct {
	UID       uint32
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery of uid %d to %s failed: %v", e.UID, e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func NewDeliveryError(uid uint32, recipient string, err error) error {
	return &DeliveryError{UID: uid, Recipient: recipient, Err: err}
}

func IsCredentialRejected(err error) bool {
	var connErr *ConnectionError
	return stderrors.As(err, &connErr) && connErr.Kind == CredentialRejected
}

func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return stderrors.As(err, &connErr)
}

func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return stderrors.As(err, &protoErr)
}

func IsDeliveryError(err error) bool {
	var deliveryErr *DeliveryError
	return stderrors.As(err, &deliveryErr)
}

func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return stderrors.As(err, &cfgErr)
}

// IsRetryable is true for every connection or protocol failure that is not a
// credential refusal.
func IsRetryable(err error) bool {
	var connErr *ConnectionError
	if stderrors.As(err, &connErr) {
		return connErr.Kind == Retryable
	}
	return IsProtocolError(err)
}
