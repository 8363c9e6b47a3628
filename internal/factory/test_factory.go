package factory

import (
	"time"

	"github.com/mcoot/ingamehud/internal/config"
	"github.com/mcoot/ingamehud/internal/dependencies/mocks"
	"github.com/mcoot/ingamehud/internal/storage"
	"github.com/mcoot/ingamehud/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock    *mocks.MockClock
	MockDisplay  *mocks.MockDisplay
	MockProvider *mocks.MockProvider
}

// NewTestApp creates an App over a single mock provider with the event
// bridge and admin API disabled
func NewTestApp() *TestApp {
	cfg := config.Default()
	cfg.Events.Enabled = false
	cfg.Admin.Enabled = false
	cfg.Storage.RetryInterval = time.Millisecond
	cfg.Storage.DisconnectTimeout = time.Second
	cfg.Sync.TickInterval = time.Millisecond

	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockDisplay := mocks.NewMockDisplay()
	mockProvider := mocks.NewMockProvider("mock")

	app := newWithDependencies(cfg, []storage.Provider{mockProvider}, mockClock, mockDisplay, testutil.NopLogger())

	return &TestApp{
		App:          app,
		MockClock:    mockClock,
		MockDisplay:  mockDisplay,
		MockProvider: mockProvider,
	}
}
