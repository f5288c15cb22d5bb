package session

import "errors"

var (
	// ErrBusy rejects a second network-bound operation while one is in
	// flight. At-most-one-in-flight is enforced here, not in the view layer.
	ErrBusy = errors.New("session: another operation is in flight")

	// ErrLocked gates analysis and uploads behind a successful unlock.
	ErrLocked = errors.New("session: session is locked")

	// ErrNotEntitled means the entitlement check completed and denied access.
	ErrNotEntitled = errors.New("session: no active subscription found")

	// ErrNoActiveVersion means an update was requested with no version selected.
	ErrNoActiveVersion = errors.New("session: no active resume version")

	ErrVersionNotFound     = errors.New("session: resume version not found")
	ErrApplicationNotFound = errors.New("session: application not found")
	ErrRecordNotFound      = errors.New("session: analysis record not found")
)

// ValidationError reports missing or malformed input, detected before any
// external call is made.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(msg string) error {
	return &ValidationError{Msg: msg}
}
