package models

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("unique constraint conflict")
	ErrValidation = errors.New("validation failed")
)
