package pipeline

import (
	"errors"
	"fmt"
)

// Agent handlers classify every dependency failure as transient or permanent
// before returning it. The state machine branches only on this classification
// and never inspects collaborator-specific error types.

// TransientDependencyError marks a failure worth retrying (timeouts,
// collaborator 5xx). The state machine re-queues with backoff until the
// per-state attempt limit is reached.
type TransientDependencyError struct {
	Err error
}

func (e *TransientDependencyError) Error() string {
	return fmt.Sprintf("TransientDependencyError: %v", e.Err)
}

func (e *TransientDependencyError) Unwrap() error {
	return e.Err
}

// PermanentDependencyError marks a failure that retrying cannot fix
// (collaborator validation rejections). The instance goes straight to
// failedTerminal.
type PermanentDependencyError struct {
	Err error
}

func (e *PermanentDependencyError) Error() string {
	return fmt.Sprintf("PermanentDependencyError: %v", e.Err)
}

func (e *PermanentDependencyError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientDependencyError{Err: err}
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentDependencyError{Err: err}
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var t *TransientDependencyError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is classified as non-retryable.
func IsPermanent(err error) bool {
	var p *PermanentDependencyError
	return errors.As(err, &p)
}
