package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Error codes carried by the consistency engine's typed errors.
const (
	CodeAlreadyExists     = "ALREADY_EXISTS"
	CodeSiblingInvalid    = "SIBLING_INVALID"
	CodeRankExhausted     = "RANK_EXHAUSTED"
	CodeTransactionFailed = "TRANSACTION_FAILED"
	CodeInvariant         = "INVARIANT_VIOLATION"
)

// NewAlreadyExistsError reports an attempt to create an aggregate that already exists.
func NewAlreadyExistsError(resource string, ids ...string) *AppError {
	return NewConflictError(fmt.Sprintf("%s already exists: %s", resource, strings.Join(ids, ", "))).
		WithCode(CodeAlreadyExists).
		WithDetail("resource", resource).
		WithDetail("ids", ids)
}

// NewInvalidReferenceError reports a reorder relative to a sibling that does not exist,
// lives in another collection, or is not ready.
func NewInvalidReferenceError(resource, id string) *AppError {
	return NewValidationError(fmt.Sprintf("invalid %s reference: %s", resource, id)).
		WithCode(CodeSiblingInvalid).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// NewRankExhaustedError reports that no rank strictly between lower and upper is representable.
func NewRankExhaustedError(lower, upper float64) *AppError {
	return NewConflictError(fmt.Sprintf("no rank available between %v and %v", lower, upper)).
		WithCode(CodeRankExhausted).
		WithDetail("lower", lower).
		WithDetail("upper", upper)
}

// NewTransactionFailedError reports a cancelled multi-item write whose failing item had
// no caller-supplied error.
func NewTransactionFailedError(index int, cause error) *AppError {
	return newAppError(ErrorTypeDatabase, http.StatusConflict,
		fmt.Sprintf("transaction failed at item %d", index)).
		WithCode(CodeTransactionFailed).
		WithDetail("failedIndex", index).
		WithCause(cause)
}

// NewInvariantError reports a state the engine treats as a programming error.
func NewInvariantError(message string) *AppError {
	return NewInternalError(message).WithCode(CodeInvariant)
}

func IsAlreadyExists(err error) bool     { return HasCode(err, CodeAlreadyExists) }
func IsInvalidReference(err error) bool  { return HasCode(err, CodeSiblingInvalid) }
func IsRankExhausted(err error) bool     { return HasCode(err, CodeRankExhausted) }
func IsTransactionFailed(err error) bool { return HasCode(err, CodeTransactionFailed) }
