package task

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for lifecycle operations. Every rejection wraps one of
// these with a reason: fmt.Errorf("%w: only the task owner can select a bid", ErrPermissionDenied).
var (
	// ErrPermissionDenied is returned when the caller lacks the role an event requires.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidState is returned when an event is not valid in the task's current status.
	ErrInvalidState = errors.New("invalid state")

	// ErrNotFound is returned when a referenced task, bid or notification does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable is returned when the underlying store call fails.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrPaymentFailed is returned when the payment gateway rejects or times out.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrConflict is returned when concurrent writers kept winning until retries ran out.
	ErrConflict = errors.New("concurrent update conflict")
)

// kinds is checked in order when restoring errors that crossed a module boundary.
var kinds = []error{
	ErrPermissionDenied,
	ErrInvalidState,
	ErrValidation,
	ErrNotFound,
	ErrPaymentFailed,
	ErrConflict,
	ErrStoreUnavailable,
}

// RemoteError carries a lifecycle error whose concrete value was lost when it
// was serialized across a request-reply boundary.
type RemoteError struct {
	kind    error
	message string
}

func (e *RemoteError) Error() string {
	return e.message
}

func (e *RemoteError) Unwrap() error {
	return e.kind
}

// FromRemote restores the sentinel of an error returned by a request-reply call.
// The outermost sentinel wins: reasons may quote other text (a gateway
// response body, say) that happens to contain another sentinel's marker.
// The error text is trimmed to start at the sentinel so callers can show it as is.
// Errors that carry no known sentinel are returned unchanged.
func FromRemote(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var (
		found error
		first = -1
	)
	for _, kind := range kinds {
		idx := strings.Index(msg, kind.Error()+":")
		if idx >= 0 && (first < 0 || idx < first) {
			found, first = kind, idx
		}
	}
	if found == nil {
		return err
	}
	return &RemoteError{kind: found, message: msg[first:]}
}

// Reason returns the human-readable part of a lifecycle error, without the sentinel prefix.
func Reason(err error) string {
	msg := err.Error()
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			if rest, ok := strings.CutPrefix(msg, kind.Error()+": "); ok {
				return rest
			}
		}
	}
	return msg
}

func denied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPermissionDenied, fmt.Sprintf(format, args...))
}

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
