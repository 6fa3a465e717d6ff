package domain

import "errors"

var (
	ErrSendFailed          = errors.New("device send failed")
	ErrUnsupportedCommand  = errors.New("unsupported command")
	ErrInvalidCommandValue = errors.New("invalid command value")
	ErrUnknownEntity       = errors.New("unknown entity")
	ErrUnknownDevice       = errors.New("unknown device")
)
