package models

import "errors"

// Custom errors
var (
	ErrNotFound      = errors.New("record not found")
	ErrUnknownSource = errors.New("unknown source")
)
