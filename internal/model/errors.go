package model

import "errors"

// Common errors used across the application
var (
	ErrAccountNotFound = errors.New("account not found")
)
