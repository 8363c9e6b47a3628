package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrEmptyPlayerID = errors.New("player id must not be empty")

	// Command errors
	ErrInvalidPosition     = errors.New("invalid hud position: must be 1-5")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrUnknownMutation     = errors.New("unknown settings mutation")
)
