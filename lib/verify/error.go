package verify

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMismatch         = errors.New("verify: claimed digest does not match the data")
	ErrInsufficientWork = errors.New("verify: digest does not meet the difficulty")
	ErrMissingField     = errors.New("verify: missing field")
	ErrInvalidFormat    = errors.New("verify: field has invalid format")
)

func NewError(verb, publicReason string, privateReason error) *Error {
	status := http.StatusUnprocessableEntity
	if errors.Is(privateReason, ErrMissingField) || errors.Is(privateReason, ErrInvalidFormat) {
		status = http.StatusBadRequest
	}

	return &Error{
		Verb:          verb,
		PublicReason:  publicReason,
		PrivateReason: privateReason,
		StatusCode:    status,
	}
}

// Error is returned by Verify and ParseRequest. PublicReason is safe to show
// to a client; PrivateReason may include the expected digest.
type Error struct {
	PrivateReason error
	Verb          string
	PublicReason  string
	StatusCode    int
}

func (e *Error) Error() string {
	return fmt.Sprintf("verify: error when processing proof: %s: %v", e.Verb, e.PrivateReason)
}

func (e *Error) Unwrap() error {
	return e.PrivateReason
}
