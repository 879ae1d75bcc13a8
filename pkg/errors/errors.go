// Package errors defines the error taxonomy shared by every dataset
// component. Callers match failures with errors.Is against the sentinels;
// DatasetError carries the failing operation and a human-readable message.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrOutOfRange         = errors.New("index out of range")
	ErrCorruptShard       = errors.New("corrupt shard")
	ErrDecode             = errors.New("decode error")
	ErrConfig             = errors.New("configuration error")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrEmptyCandidatePool = errors.New("empty candidate pool")
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
)

// DatasetError wraps one of the sentinels with the operation that failed.
type DatasetError struct {
	Err     error
	Op      string
	Message string
}

func (e *DatasetError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Err.Error(), e.Message)
}

func (e *DatasetError) Unwrap() error {
	return e.Err
}

func New(sentinel error, op string, message string) *DatasetError {
	return &DatasetError{
		Err:     sentinel,
		Op:      op,
		Message: message,
	}
}

func Newf(sentinel error, op string, format string, args ...any) *DatasetError {
	return &DatasetError{
		Err:     sentinel,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Is reports whether err matches target. It mirrors the standard library so
// callers importing this package under its own name do not need both.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As mirrors errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Kind returns a stable label for err, used as a metrics label value.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrCorruptShard):
		return "corrupt_shard"
	case errors.Is(err, ErrDecode):
		return "decode_error"
	case errors.Is(err, ErrConfig):
		return "config_error"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	case errors.Is(err, ErrEmptyCandidatePool):
		return "empty_candidate_pool"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

// HTTPStatusCode maps err onto the status the dataset HTTP API responds with.
func HTTPStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrOutOfRange), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrDecode),
		errors.Is(err, ErrCorruptShard),
		errors.Is(err, ErrInvariantViolation),
		errors.Is(err, ErrEmptyCandidatePool):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrConfig):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var kinds = map[string]error{
	"out_of_range":         ErrOutOfRange,
	"corrupt_shard":        ErrCorruptShard,
	"decode_error":         ErrDecode,
	"config_error":         ErrConfig,
	"invariant_violation":  ErrInvariantViolation,
	"empty_candidate_pool": ErrEmptyCandidatePool,
	"not_found":            ErrNotFound,
	"invalid_input":        ErrInvalidInput,
}

// FromKind rebuilds an error from a Kind label and message, so a failure
// reported across a process boundary still matches its sentinel. Unknown
// kinds produce a plain error.
func FromKind(kind, op, message string) error {
	if sentinel, ok := kinds[kind]; ok {
		return New(sentinel, op, message)
	}
	return fmt.Errorf("%s: %s", op, message)
}
