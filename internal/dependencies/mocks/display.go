package mocks

import (
	"sync"

	"github.com/mcoot/ingamehud/internal/display"
	"github.com/mcoot/ingamehud/internal/model"
)

// MockDisplay records show and remove requests
type MockDisplay struct {
	mu      sync.Mutex
	shown   map[model.PlayerID]model.PlayerSettings
	shows   map[model.PlayerID]int
	removes map[model.PlayerID]int
}

// Ensure MockDisplay implements Display
var _ display.Display = (*MockDisplay)(nil)

// NewMockDisplay creates an empty MockDisplay
func NewMockDisplay() *MockDisplay {
	return &MockDisplay{
		shown:   make(map[model.PlayerID]model.PlayerSettings),
		shows:   make(map[model.PlayerID]int),
		removes: make(map[model.PlayerID]int),
	}
}

func (d *MockDisplay) Show(settings model.PlayerSettings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown[settings.ID] = settings.Clone()
	d.shows[settings.ID]++
}

func (d *MockDisplay) Remove(id model.PlayerID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.shown, id)
	d.removes[id]++
}

// Visible returns what is currently shown for id
func (d *MockDisplay) Visible(id model.PlayerID) (model.PlayerSettings, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.shown[id]
	return s, ok
}

// Shows reports how many times id was shown
func (d *MockDisplay) Shows(id model.PlayerID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shows[id]
}

// Removes reports how many times id was removed
func (d *MockDisplay) Removes(id model.PlayerID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.removes[id]
}
