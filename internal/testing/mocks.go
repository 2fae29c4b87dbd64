package testing

import (
	"context"
	"sync"

	"github.com/aristath/folio/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockQuoteSource is a testify mock implementing domain.QuoteSource.
// Supports is answered from a fixed identifier set so tests only have
// to set expectations on the network-facing methods.
type MockQuoteSource struct {
	mock.Mock

	name string

	mu         sync.RWMutex
	supported  map[string]bool
	supportAll bool
}

// NewMockQuoteSource creates a mock source. With no identifiers it supports everything.
func NewMockQuoteSource(name string, identifiers ...string) *MockQuoteSource {
	m := &MockQuoteSource{
		name:      name,
		supported: make(map[string]bool, len(identifiers)),
	}
	m.supportAll = len(identifiers) == 0
	for _, id := range identifiers {
		m.supported[domain.NormalizeIdentifier(id)] = true
	}
	return m
}

// Name returns the mock source name.
func (m *MockQuoteSource) Name() string {
	return m.name
}

// Supports reports whether the identifier was registered.
func (m *MockQuoteSource) Supports(identifier string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.supportAll || m.supported[domain.NormalizeIdentifier(identifier)]
}

// SetSupported replaces the supported identifier set.
func (m *MockQuoteSource) SetSupported(identifiers ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supportAll = false
	m.supported = make(map[string]bool, len(identifiers))
	for _, id := range identifiers {
		m.supported[domain.NormalizeIdentifier(id)] = true
	}
}

func (m *MockQuoteSource) FetchQuote(ctx context.Context, identifier string) (*domain.Quote, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quote), args.Error(1)
}

func (m *MockQuoteSource) FetchBatch(ctx context.Context, identifiers []string) (map[string]*domain.Quote, error) {
	args := m.Called(ctx, identifiers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Quote), args.Error(1)
}

// MockSearchSource is a MockQuoteSource that also implements domain.Searcher.
type MockSearchSource struct {
	*MockQuoteSource
}

// NewMockSearchSource creates a searchable mock source.
func NewMockSearchSource(name string, identifiers ...string) *MockSearchSource {
	return &MockSearchSource{MockQuoteSource: NewMockQuoteSource(name, identifiers...)}
}

func (m *MockSearchSource) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}

// MockQuoteResolver is a testify mock for consumers of the resolver
// (portfolio service, snapshot job, HTTP handlers).
type MockQuoteResolver struct {
	mock.Mock
}

func (m *MockQuoteResolver) ResolveQuote(ctx context.Context, identifier string) (*domain.Quote, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Quote), args.Error(1)
}

func (m *MockQuoteResolver) ResolveBatch(ctx context.Context, identifiers []string, preferred map[string]string) (map[string]*domain.Quote, error) {
	args := m.Called(ctx, identifiers, preferred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Quote), args.Error(1)
}

func (m *MockQuoteResolver) ResolveSearch(ctx context.Context, query string) ([]domain.SearchResult, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SearchResult), args.Error(1)
}
