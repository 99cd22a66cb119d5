package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	ErrUnsupportedMedia     = errors.New("unsupported media")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrUnavailable          = errors.New("unavailable")
	ErrInvalidInput         = errors.New("invalid input")
)
