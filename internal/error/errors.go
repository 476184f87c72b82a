package error

import "errors"

var (
	ErrInvalidBudget   = errors.New("invalid token budget")
	ErrEmptyCompletion = errors.New("completion contained no choices")
	ErrMissingChannel  = errors.New("channel id is required")
	ErrMissingAuthor   = errors.New("author id is required")
	ErrEmptyText       = errors.New("message text is empty")
)
