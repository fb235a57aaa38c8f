package testing

import (
	"context"
	"sync"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockPriceSource is a testify mock of domain.PriceSource
type MockPriceSource struct {
	mock.Mock
}

// Fetch implements domain.PriceSource
func (m *MockPriceSource) Fetch(ctx context.Context, assets []domain.Asset, venue domain.Venue) ([]domain.Asset, error) {
	args := m.Called(ctx, assets, venue)
	var out []domain.Asset
	if v := args.Get(0); v != nil {
		out = v.([]domain.Asset)
	}
	return out, args.Error(1)
}

// MockExecutor is a testify mock of domain.Executor
type MockExecutor struct {
	mock.Mock
}

// Execute implements domain.Executor
func (m *MockExecutor) Execute(ctx context.Context, action domain.RebalanceAction, settings domain.Settings) (domain.TradeLog, error) {
	args := m.Called(ctx, action, settings)
	return args.Get(0).(domain.TradeLog), args.Error(1)
}

// MockNotifier is a testify mock of domain.Notifier
type MockNotifier struct {
	mock.Mock
}

// Send implements domain.Notifier
func (m *MockNotifier) Send(ctx context.Context, message string) bool {
	args := m.Called(ctx, message)
	return args.Bool(0)
}

// MemoryTradeLogStore is an in-memory append-only domain.TradeLogStore
type MemoryTradeLogStore struct {
	mu        sync.Mutex
	logs      []domain.TradeLog
	AppendErr error
}

// NewMemoryTradeLogStore creates an empty store
func NewMemoryTradeLogStore() *MemoryTradeLogStore {
	return &MemoryTradeLogStore{}
}

// Append implements domain.TradeLogStore
func (s *MemoryTradeLogStore) Append(_ context.Context, log domain.TradeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	s.logs = append(s.logs, log)
	return nil
}

// ListAll implements domain.TradeLogStore (newest first)
func (s *MemoryTradeLogStore) ListAll(_ context.Context) ([]domain.TradeLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TradeLog, 0, len(s.logs))
	for i := len(s.logs) - 1; i >= 0; i-- {
		out = append(out, s.logs[i])
	}
	return out, nil
}

// Appended returns receipts in insertion order
func (s *MemoryTradeLogStore) Appended() []domain.TradeLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TradeLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// StaticSettings is a domain.SettingsProvider returning fixed settings
type StaticSettings struct {
	mu       sync.RWMutex
	settings domain.Settings
}

// NewStaticSettings wraps s
func NewStaticSettings(s domain.Settings) *StaticSettings {
	return &StaticSettings{settings: s}
}

// Current implements domain.SettingsProvider
func (p *StaticSettings) Current() domain.Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// Set replaces the settings
func (p *StaticSettings) Set(s domain.Settings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settings = s
}
