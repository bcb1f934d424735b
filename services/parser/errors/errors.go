package errors

import "errors"

var (
	ErrSyntax         = errors.New("syntax error")
	ErrEmptyQuery     = errors.New("empty query")
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingKey     = errors.New("missing key")
	ErrMissingValue   = errors.New("missing value")
	ErrBadLimit       = errors.New("invalid 'LIMIT'")
)
