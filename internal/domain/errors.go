package domain

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable classification of a core error.
type Kind string

const (
	// KindRemoteUnavailable marks a transient remote failure that
	// exhausted its retry budget.
	KindRemoteUnavailable Kind = "remote_unavailable"
	// KindRemoteAuthFailed marks a 401/403 from the remote system. This
	// is a configuration problem and is never retried.
	KindRemoteAuthFailed Kind = "remote_auth_failed"
	// KindRemoteRejected marks a non-retryable 4xx from the remote.
	KindRemoteRejected Kind = "remote_rejected"
	// KindConcurrentModification marks a version-control ref that moved
	// between read and commit, after the single automatic retry.
	KindConcurrentModification Kind = "concurrent_modification"
	// KindInvalidPayload marks a workflow payload that failed structural
	// validation before any write happened.
	KindInvalidPayload Kind = "invalid_payload"
	// KindBackupInProgress marks a rejected attempt because another
	// backup for the same workflow id is still running.
	KindBackupInProgress Kind = "backup_in_progress"
	// KindCancelled marks a caller-initiated cancellation.
	KindCancelled Kind = "cancelled"
	// KindNotFound marks a missing file or snapshot.
	KindNotFound Kind = "not_found"
)

// Error is the kinded error surfaced by the core. It carries enough
// context (workflow id, phase) for the caller to act without parsing the
// message.
type Error struct {
	Kind       Kind
	WorkflowID string
	Phase      Phase
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.WorkflowID != "" {
		return fmt.Sprintf("%s: workflow %s: %s", e.Kind, e.WorkflowID, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match two core errors by kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// NewError builds a kinded error wrapping err.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or "" if err is not a core error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
