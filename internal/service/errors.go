// Package service holds the business rules of the coaching practice: session
// handling, user and client management and the coaching log ledger.  Every
// failure a caller should see is one of the *Error values below; anything
// else is unexpected and surfaces as 500.
package service

import (
	"errors"

	"github.com/iliyamo/coaching-practice/internal/authz"
)

// Kind classifies an Error for the transport layer.
type Kind int

const (
	KindUnauthenticated Kind = iota + 1
	KindInactive
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalid
)

// Error is a user-facing failure with a stable detail message.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string { return e.Detail }

var (
	ErrCredentials        = &Error{KindUnauthenticated, "Could not validate credentials"}
	ErrLoginFailed        = &Error{KindUnauthenticated, "Incorrect username or password"}
	ErrIncorrectPassword  = &Error{KindUnauthenticated, "Incorrect password"}
	ErrInactiveUser       = &Error{KindInactive, "Inactive user"}
	ErrNotPermitted       = &Error{KindForbidden, "Operation not permitted"}
	ErrUnauthorizedAccess = &Error{KindForbidden, "Unauthorized access"}
	ErrLockedLog          = &Error{KindForbidden, "Accessing locked files"}
	ErrLogNotFound        = &Error{KindNotFound, "Coaching log not found"}
	ErrUsernameNotFound   = &Error{KindNotFound, "Username not found"}
	ErrClientNotFound     = &Error{KindNotFound, "Client ID not found"}
	ErrUsernameExists     = &Error{KindConflict, "Username exists"}
	ErrLogDataNotObject   = &Error{KindInvalid, "Coaching log data must be a JSON object"}
	ErrPasswordTooLong    = &Error{KindInvalid, "Password must be at most 72 bytes"}
)

// AsError extracts the *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// denied translates an authz decision into its user-facing error.
func denied(err error) error {
	if !authz.IsDenied(err) {
		return err
	}
	if errors.Is(err, authz.ErrNotOwner) {
		return ErrUnauthorizedAccess
	}
	return ErrNotPermitted
}
