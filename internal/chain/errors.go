package chain

import (
	"errors"
	"fmt"

	"github.com/arclabs/causalchain/internal/ir"
)

// ChainError represents an error detected while operating on the ledger.
//
// ChainError includes structured fields for diagnostics and recovery.
type ChainError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Lineage identifies the affected lineage, when known.
	Lineage string

	// ActionID identifies the affected action, when known.
	ActionID string

	// Violations carries the field-level failures for INVALID_DRAFT.
	Violations []ir.DraftError

	// Details contains additional context.
	Details map[string]string

	cause error
}

// ErrorCode categorizes chain errors.
type ErrorCode string

const (
	// ErrCodeInvalidDraft indicates the draft failed structural validation.
	ErrCodeInvalidDraft ErrorCode = "INVALID_DRAFT"

	// ErrCodeAppendConflict indicates the append lost the sequence race
	// repeatedly and gave up.
	ErrCodeAppendConflict ErrorCode = "APPEND_CONFLICT"

	// ErrCodeIntegrity indicates hash verification found a broken link.
	ErrCodeIntegrity ErrorCode = "INTEGRITY"

	// ErrCodeReplayDivergence indicates replay produced a different chain
	// than the ledger records.
	ErrCodeReplayDivergence ErrorCode = "REPLAY_DIVERGENCE"

	// ErrCodeIdempotencyViolation indicates a reused idempotency key with a
	// different payload.
	ErrCodeIdempotencyViolation ErrorCode = "IDEMPOTENCY_VIOLATION"

	// ErrCodeNotFound indicates a referenced action, lineage, or checkpoint
	// does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
)

// Error implements the error interface.
func (e *ChainError) Error() string {
	switch {
	case e.Lineage != "" && e.ActionID != "":
		return fmt.Sprintf("%s: %s (lineage=%s, action=%s)", e.Code, e.Message, e.Lineage, e.ActionID)
	case e.Lineage != "":
		return fmt.Sprintf("%s: %s (lineage=%s)", e.Code, e.Message, e.Lineage)
	case e.ActionID != "":
		return fmt.Sprintf("%s: %s (action=%s)", e.Code, e.Message, e.ActionID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *ChainError) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of a (possibly wrapped) ChainError, or "" when
// err is not one.
func CodeOf(err error) ErrorCode {
	var ce *ChainError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// IsInvalidDraft reports whether err is an INVALID_DRAFT error.
func IsInvalidDraft(err error) bool { return CodeOf(err) == ErrCodeInvalidDraft }

// IsAppendConflict reports whether err is an APPEND_CONFLICT error.
func IsAppendConflict(err error) bool { return CodeOf(err) == ErrCodeAppendConflict }

// IsIntegrityError reports whether err is an INTEGRITY error.
func IsIntegrityError(err error) bool { return CodeOf(err) == ErrCodeIntegrity }

// IsReplayDivergence reports whether err is a REPLAY_DIVERGENCE error.
func IsReplayDivergence(err error) bool { return CodeOf(err) == ErrCodeReplayDivergence }

// IsIdempotencyViolation reports whether err is an IDEMPOTENCY_VIOLATION
// error.
func IsIdempotencyViolation(err error) bool { return CodeOf(err) == ErrCodeIdempotencyViolation }

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return CodeOf(err) == ErrCodeNotFound }

// NewInvalidDraftError creates a ChainError carrying all field violations.
func NewInvalidDraftError(lineage string, violations []ir.DraftError) *ChainError {
	msg := "draft failed validation"
	if len(violations) > 0 {
		msg = fmt.Sprintf("draft failed validation: %s: %s", violations[0].Field, violations[0].Message)
	}
	return &ChainError{
		Code:       ErrCodeInvalidDraft,
		Message:    msg,
		Lineage:    lineage,
		Violations: violations,
	}
}

// NewAppendConflictError creates a ChainError for an exhausted append retry
// loop.
func NewAppendConflictError(lineage string, attempts int, cause error) *ChainError {
	return &ChainError{
		Code:    ErrCodeAppendConflict,
		Message: fmt.Sprintf("lost sequence race %d times", attempts),
		Lineage: lineage,
		cause:   cause,
	}
}

// NewIdempotencyViolationError creates a ChainError for a key reused with a
// different payload.
func NewIdempotencyViolationError(lineage, key, existingActionID string) *ChainError {
	return &ChainError{
		Code:     ErrCodeIdempotencyViolation,
		Message:  fmt.Sprintf("idempotency key %q reused with a different payload", key),
		Lineage:  lineage,
		ActionID: existingActionID,
		Details:  map[string]string{"idempotency_key": key},
	}
}

// NewReplayDivergenceError creates a ChainError for a resume whose recorded
// prefix can no longer be trusted. The verification failure stays reachable
// through Unwrap.
func NewReplayDivergenceError(lineage, actionID string, cause error) *ChainError {
	return &ChainError{
		Code:     ErrCodeReplayDivergence,
		Message:  "ledger prefix no longer verifies",
		Lineage:  lineage,
		ActionID: actionID,
		cause:    cause,
	}
}

// NewIntegrityError creates a ChainError for a failed verification.
func NewIntegrityError(lineage, actionID string, cause error) *ChainError {
	return &ChainError{
		Code:     ErrCodeIntegrity,
		Message:  "hash chain verification failed",
		Lineage:  lineage,
		ActionID: actionID,
		cause:    cause,
	}
}

// NewNotFoundError creates a ChainError for a missing reference.
func NewNotFoundError(what, id string) *ChainError {
	return &ChainError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s %s not found", what, id),
		ActionID: id,
	}
}
