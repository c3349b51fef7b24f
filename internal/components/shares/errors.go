package shares

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound covers both a missing record and one owned by someone else.
	ErrNotFound = errors.New("share not found")

	// ErrExpiredOrLimited means the record exists but may not be served.
	ErrExpiredOrLimited = errors.New("share expired or download limit reached")

	// ErrTokenConflict is returned by Repo.Create when the token is taken.
	ErrTokenConflict = errors.New("share token already in use")

	// ErrTooLarge is returned when an upload exceeds the configured limit.
	ErrTooLarge = errors.New("upload exceeds size limit")
)

// Field reason codes.
const (
	ReasonMissing = "missing_field"
	ReasonInvalid = "invalid_field"
)

// FieldError names one rejected upload parameter.
type FieldError struct {
	Field   string
	Reason  string
	Message string
}

// ValidationError lists every rejected parameter of a create request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "invalid share: " + strings.Join(msgs, "; ")
}
