package router

import (
	"errors"

	"github.com/mcoot/ingamehud/internal/model"
)

// ErrDisconnected is reported by every operation when no provider could be
// initialized
var ErrDisconnected = errors.New("no storage provider available")

// InitAttempt records one provider's Initialize outcome
type InitAttempt struct {
	Provider string
	Err      error
}

// InitResult describes how the active provider was chosen
type InitResult struct {
	// Provider is the adopted provider's name, empty when disconnected
	Provider string
	Attempts []InitAttempt
}

// Connected reports whether a provider was adopted
func (r InitResult) Connected() bool {
	return r.Provider != ""
}

// LoadResult always carries usable settings. Found is false when defaults
// were substituted, either because no record exists or because it could not
// be read.
type LoadResult struct {
	Settings model.PlayerSettings
	Found    bool
	Err      error
}

// SaveResult reports whether a record was persisted
type SaveResult struct {
	Err error
}

// OK reports whether the save succeeded
func (r SaveResult) OK() bool {
	return r.Err == nil
}

// CustomDataResult carries whatever values resolved. Err joins the failures
// of the fields that did not.
type CustomDataResult struct {
	Values map[string]string
	Err    error
}

// BulkResult reports a batch save
type BulkResult struct {
	Saved  int
	Failed []model.PlayerID
	Err    error
}

// OK reports whether every record was persisted
func (r BulkResult) OK() bool {
	return r.Err == nil && len(r.Failed) == 0
}
