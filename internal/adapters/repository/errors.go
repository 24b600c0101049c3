package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound  = errors.New("lesson not found")
	ErrClosed    = errors.New("store closed")
	ErrEmptyID   = errors.New("empty lesson id")
	ErrBadRecord = errors.New("malformed lesson record")
)
