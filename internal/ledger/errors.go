// Package ledger defines the remote ledger ports and the classified error
// taxonomy shared by every adapter.
package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure. The classification drives the remedy:
// transport failures are retryable, permission failures need a deployment
// fix, remote-logic failures carry the remote's own message, and validation
// failures never reached the network at all.
type Kind int

const (
	KindTransport Kind = iota + 1
	KindPermission
	KindRemoteLogic
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindPermission:
		return "permission"
	case KindRemoteLogic:
		return "remote_logic"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Kind sentinels for errors.Is checks.
var (
	ErrTransport   = errors.New("ledger: transport failure")
	ErrPermission  = errors.New("ledger: endpoint not accessible")
	ErrRemoteLogic = errors.New("ledger: remote reported failure")
	ErrValidation  = errors.New("ledger: invalid input")
)

// Error is a classified ledger failure. Message is displayable as-is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels so callers can write
// errors.Is(err, ledger.ErrPermission) without unwrapping manually.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrPermission:
		return e.Kind == KindPermission
	case ErrRemoteLogic:
		return e.Kind == KindRemoteLogic
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func TransportErr(message string, err error) *Error {
	return newError(KindTransport, message, err)
}

func PermissionErr(message string, err error) *Error {
	return newError(KindPermission, message, err)
}

func RemoteLogicErr(message string, err error) *Error {
	return newError(KindRemoteLogic, message, err)
}

func ValidationErr(message string, err error) *Error {
	return newError(KindValidation, message, err)
}

// KindOf extracts the classification from any error in the chain. Returns
// zero when the error is not a classified ledger failure.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return 0
}

// DisplayMessage returns a message safe to surface to the client. For
// classified errors that is the carried message; anything else collapses to
// the plain error text.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	var le *Error
	if errors.As(err, &le) && le.Message != "" {
		return le.Message
	}
	return err.Error()
}
