package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidWindow = errors.New("invalid strategy window")
)
