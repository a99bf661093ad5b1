package domain

import "errors"

var (
	ErrInvalidEmail     = errors.New("a valid email is required")
	ErrInvalidServiceID = errors.New("a valid service_id is required")
)
