package models

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrRevisionConflict = errors.New("revision conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrValidation       = errors.New("validation error")
)
