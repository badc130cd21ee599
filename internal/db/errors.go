package db

import "errors"

// Domain-level database error sentinels.
var (
	// Keyword errors
	ErrEmptyKeyword = errors.New("keyword must not be empty")
	ErrInvalidSort  = errors.New("invalid sort")

	// User errors
	ErrUserNotFound = errors.New("user not found")
)
