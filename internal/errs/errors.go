// Package errs defines the structured error kinds shared by the ledger core and
// its boundaries. The core only ever returns kinds plus named parameters; turning
// them into user-facing text is the job of the message catalog at the edge.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Callers switch on kinds, never on message text.
type Kind string

const (
	KindValidation           Kind = "validation_error"
	KindNotFound             Kind = "not_found"
	KindInvalidSourceAccount Kind = "invalid_source_account"
	KindInvalidDestAccount   Kind = "invalid_dest_account"
	KindInsufficientBalance  Kind = "insufficient_balance"
	KindInvalidAmount        Kind = "invalid_amount"
	// KindStoreUnavailable is the only retryable kind.
	KindStoreUnavailable Kind = "store_unavailable"
)

// Error carries a kind, the catalog key describing the specific failure and the
// parameters needed to render it.
type Error struct {
	Kind   Kind
	Key    string
	Params map[string]string
	Err    error
}

// Sentinels for errors.Is. Any *Error matches the sentinel of its kind.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrInvalidSourceAccount = &Error{Kind: KindInvalidSourceAccount}
	ErrInvalidDestAccount   = &Error{Kind: KindInvalidDestAccount}
	ErrInsufficientBalance  = &Error{Kind: KindInsufficientBalance}
	ErrInvalidAmount        = &Error{Kind: KindInvalidAmount}
	ErrStoreUnavailable     = &Error{Kind: KindStoreUnavailable}
)

// New builds an error of the given kind. An empty key defaults to the kind name.
func New(kind Kind, key string, params map[string]string) *Error {
	return &Error{Kind: kind, Key: key, Params: params}
}

// NotFound reports a missing entity using the catalog key for it (e.g. "account_not_found").
func NotFound(key string) *Error { return New(KindNotFound, key, nil) }

// Unavailable wraps a backend failure. The cause is kept for logs only.
func Unavailable(cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Key: string(KindStoreUnavailable), Err: cause}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Key != "" && e.Key != msg {
		msg += ": " + e.Key
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of key or params.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// MessageKey returns the catalog key for e.
func (e *Error) MessageKey() string {
	if e.Key == "" {
		return string(e.Kind)
	}
	return e.Key
}

// Retryable reports whether repeating the operation may succeed.
func (e *Error) Retryable() bool { return e.Kind == KindStoreUnavailable }

// KindOf extracts the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool { return KindOf(err) == KindStoreUnavailable }
