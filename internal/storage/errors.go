package storage

import "errors"

var (
	// ErrNotFound means the provider has no record for the player
	ErrNotFound = errors.New("settings not found")
	// ErrMalformed means a stored record exists but cannot be interpreted
	ErrMalformed = errors.New("malformed settings record")
	// ErrNotInitialized is returned by providers used before Initialize succeeds
	ErrNotInitialized = errors.New("provider not initialized")
	// ErrInvalidIdentifier rejects custom data table/column names that are not plain identifiers
	ErrInvalidIdentifier = errors.New("invalid sql identifier")
)
