package domain

import "fmt"

// ValidationError reports malformed or rejected caller input. Batch
// callers collect them per row instead of aborting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DeviceNotConnectedError aborts an operation that needs a live session.
type DeviceNotConnectedError struct {
	DeviceName string
	Status     string
}

func (e *DeviceNotConnectedError) Error() string {
	return fmt.Sprintf("device %s is not connected (status %s)", e.DeviceName, e.Status)
}

// InvalidTransitionError rejects a status write outside the transition
// table. It is logged and dropped, never surfaced to API callers.
type InvalidTransitionError struct {
	MessageID int64
	From      string
	To        string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("message %d: invalid status transition %s -> %s", e.MessageID, e.From, e.To)
}

// TransportError wraps a send failure from the WhatsApp layer. The job is
// marked failed and the batch continues.
type TransportError struct {
	DeviceName string
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("device %s: transport error: %v", e.DeviceName, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthFailureError reports a rejected or expired device credential.
type AuthFailureError struct {
	DeviceName string
	Reason     string
}

func (e *AuthFailureError) Error() string {
	return fmt.Sprintf("device %s: authentication failed: %s", e.DeviceName, e.Reason)
}
