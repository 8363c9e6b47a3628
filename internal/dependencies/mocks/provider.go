package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/mcoot/ingamehud/internal/model"
	"github.com/mcoot/ingamehud/internal/storage"
	"github.com/mcoot/ingamehud/internal/storage/memory"
)

// ErrInjected is returned by MockProvider when a failure is configured
var ErrInjected = errors.New("injected failure")

// MockProvider wraps the memory provider with failure injection and call
// counting. It has no batch path, so bulk saves go through SaveSettings.
type MockProvider struct {
	mem  *memory.Storage
	name string

	mu          sync.Mutex
	InitErr     error
	SaveErr     error
	LoadErr     error
	CustomErr   error
	BlockSaves  bool
	failSaves   int
	saveCalls   int
	loadCalls   int
	customCalls int
	closed      bool
}

// Ensure MockProvider implements Provider
var _ storage.Provider = (*MockProvider)(nil)

// NewMockProvider creates a MockProvider reporting the given name
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{mem: memory.New(), name: name}
}

func (p *MockProvider) Name() string {
	return p.name
}

func (p *MockProvider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	err := p.InitErr
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.mem.Initialize(ctx)
}

// SaveSettings fails with SaveErr when set. With BlockSaves it waits for the
// context to end, simulating a hung connection.
func (p *MockProvider) SaveSettings(ctx context.Context, settings model.PlayerSettings) error {
	p.mu.Lock()
	p.saveCalls++
	err, block := p.SaveErr, p.BlockSaves
	if err == nil && p.failSaves > 0 {
		p.failSaves--
		err = ErrInjected
	}
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err != nil {
		return err
	}
	return p.mem.SaveSettings(ctx, settings)
}

func (p *MockProvider) LoadSettings(ctx context.Context, id model.PlayerID) (model.PlayerSettings, error) {
	p.mu.Lock()
	p.loadCalls++
	err := p.LoadErr
	p.mu.Unlock()
	if err != nil {
		return model.PlayerSettings{}, err
	}
	return p.mem.LoadSettings(ctx, id)
}

func (p *MockProvider) GetCustomData(ctx context.Context, id model.PlayerID) (map[string]string, error) {
	p.mu.Lock()
	p.customCalls++
	err := p.CustomErr
	p.mu.Unlock()

	values, _ := p.mem.GetCustomData(ctx, id)
	return values, err
}

func (p *MockProvider) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.mem.Close()
}

// Memory exposes the backing store for seeding and inspection
func (p *MockProvider) Memory() *memory.Storage {
	return p.mem
}

// SetSaveErr changes the save failure while operations may be running
func (p *MockProvider) SetSaveErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SaveErr = err
}

// FailNextSaves makes the next n saves fail with ErrInjected
func (p *MockProvider) FailNextSaves(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failSaves = n
}

// SetBlockSaves makes saves hang until their context ends
func (p *MockProvider) SetBlockSaves(block bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.BlockSaves = block
}

// SaveCalls reports how many saves were attempted
func (p *MockProvider) SaveCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveCalls
}

// LoadCalls reports how many loads were attempted
func (p *MockProvider) LoadCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadCalls
}

// CustomCalls reports how many custom data lookups were attempted
func (p *MockProvider) CustomCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.customCalls
}

// Closed reports whether Close was called
func (p *MockProvider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
