package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoValidRecipients is returned when resolution leaves no usable target.
	ErrNoValidRecipients = errors.New("no valid recipients after normalization")

	// ErrScheduleInPast is returned when a requested fire time is not in the future.
	ErrScheduleInPast = errors.New("scheduled time must be in the future")

	// ErrTransportNotReady aborts a batch before any send is attempted.
	ErrTransportNotReady = errors.New("messaging transport is not ready")

	// ErrEmptyContent rejects a submission with an empty message body.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrNoTargets guards the dispatcher against a job that skipped resolution.
	ErrNoTargets = errors.New("dispatch job has no targets")

	// ErrAmbiguousRecipientMode rejects a submission that mixes recipient
	// input modes or provides none.
	ErrAmbiguousRecipientMode = errors.New("exactly one recipient input mode must be provided")
)

// UnresolvedRecipientsError names contact or group identifiers that had
// no match in the directory. Unlike malformed phone numbers, unknown
// identifiers fail the whole submission.
type UnresolvedRecipientsError struct {
	IDs []string
}

func (e *UnresolvedRecipientsError) Error() string {
	return fmt.Sprintf("unresolved recipients: %s", strings.Join(e.IDs, ", "))
}

func NewUnresolvedRecipients(ids []string) error {
	return &UnresolvedRecipientsError{IDs: ids}
}
