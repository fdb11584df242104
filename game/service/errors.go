package service

import "errors"

// Lookup failures shared by the session and config managers so transports
// can match them without importing storage packages.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("configuration not found")
)
