package oracle

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when no quote exists for a symbol.
	ErrNotFound = errors.New("oracle: quote not found")
	// ErrStale is returned when a quote's publish time falls outside the
	// configured freshness window.
	ErrStale = errors.New("oracle: quote is stale")
	// ErrUnmappedSymbol is returned when a symbol has no registered feed.
	ErrUnmappedSymbol = errors.New("oracle: symbol has no feed mapping")
)

// Quote carries a single already-verified price observation. The USD unit
// price is Price * 10^Exponent; the ledger never persists quotes.
type Quote struct {
	Symbol      string
	Price       int64
	Confidence  uint64
	Exponent    int32
	PublishTime int64
}

// Source resolves the latest quote for a symbol. Implementations are
// expected to have performed any upstream verification already.
type Source interface {
	GetPrice(symbol string) (Quote, error)
}

// FeedRegistry maps asset symbols to the opaque feed identifiers used to
// correlate a bank's mint with its upstream price feed.
type FeedRegistry interface {
	FeedID(symbol string) (string, error)
	PutFeedID(symbol, feedID string) error
}

// Gateway validates quotes from a Source against the feed registry and a
// freshness window before handing them to the risk engine.
type Gateway struct {
	source Source
	feeds  FeedRegistry
	// MaxAge bounds the accepted quote age in seconds. Zero disables the
	// staleness check.
	maxAge int64
}

// NewGateway constructs a gateway around the given source and registry.
func NewGateway(source Source, feeds FeedRegistry, maxAgeSeconds int64) (*Gateway, error) {
	if source == nil {
		return nil, fmt.Errorf("oracle: source required")
	}
	if feeds == nil {
		return nil, fmt.Errorf("oracle: feed registry required")
	}
	if maxAgeSeconds < 0 {
		maxAgeSeconds = 0
	}
	return &Gateway{source: source, feeds: feeds, maxAge: maxAgeSeconds}, nil
}

// GetPrice returns a validated quote for the symbol as of now (epoch
// seconds). A missing feed mapping, a missing quote, a non-positive price or
// a quote older than the freshness window all fail the lookup.
func (g *Gateway) GetPrice(symbol string, now int64) (Quote, error) {
	if g == nil {
		return Quote{}, ErrNotFound
	}
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Quote{}, ErrUnmappedSymbol
	}
	feedID, err := g.feeds.FeedID(symbol)
	if err != nil || strings.TrimSpace(feedID) == "" {
		return Quote{}, ErrUnmappedSymbol
	}
	quote, err := g.source.GetPrice(symbol)
	if err != nil {
		return Quote{}, err
	}
	if quote.Price <= 0 {
		return Quote{}, ErrNotFound
	}
	if g.maxAge > 0 && now-quote.PublishTime > g.maxAge {
		return Quote{}, ErrStale
	}
	return quote, nil
}

// RegisterFeed stores or replaces the feed identifier for a symbol.
func (g *Gateway) RegisterFeed(symbol, feedID string) error {
	if g == nil {
		return fmt.Errorf("oracle: gateway not configured")
	}
	symbol = strings.TrimSpace(symbol)
	feedID = strings.TrimSpace(feedID)
	if symbol == "" || feedID == "" {
		return fmt.Errorf("oracle: symbol and feed id required")
	}
	return g.feeds.PutFeedID(symbol, feedID)
}

// StaticSource serves quotes from an in-memory map. It backs tests and
// devnet deployments where prices are pinned by configuration.
type StaticSource struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewStaticSource seeds a static source with the provided quotes.
func NewStaticSource(quotes ...Quote) *StaticSource {
	src := &StaticSource{quotes: make(map[string]Quote, len(quotes))}
	for _, q := range quotes {
		src.quotes[strings.ToUpper(strings.TrimSpace(q.Symbol))] = q
	}
	return src
}

// SetPrice installs or replaces the quote for a symbol.
func (s *StaticSource) SetPrice(q Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[strings.ToUpper(strings.TrimSpace(q.Symbol))] = q
}

// GetPrice implements Source.
func (s *StaticSource) GetPrice(symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quote, ok := s.quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Quote{}, ErrNotFound
	}
	return quote, nil
}

// MemoryRegistry keeps feed mappings in memory. The bbolt-backed ledger
// store provides the persistent implementation.
type MemoryRegistry struct {
	mu    sync.RWMutex
	feeds map[string]string
}

// NewMemoryRegistry constructs an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{feeds: make(map[string]string)}
}

// FeedID implements FeedRegistry.
func (r *MemoryRegistry) FeedID(symbol string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.feeds[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return "", ErrUnmappedSymbol
	}
	return id, nil
}

// PutFeedID implements FeedRegistry.
func (r *MemoryRegistry) PutFeedID(symbol, feedID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feeds[strings.ToUpper(strings.TrimSpace(symbol))] = feedID
	return nil
}
