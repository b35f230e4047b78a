package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// Quote is a normalized price record for one symbol.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Volume        int64     `json:"volume"`
	PERatio       *float64  `json:"pe_ratio"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// MarketIndex names an index symbol for display.
type MarketIndex struct {
	Symbol string
	Name   string
}

var defaultIndices = []MarketIndex{
	{Symbol: "^GSPC", Name: "S&P 500"},
	{Symbol: "^DJI", Name: "Dow Jones"},
	{Symbol: "^IXIC", Name: "NASDAQ"},
	{Symbol: "^TWII", Name: "台股加權"},
}

// QuoteRecorder receives every freshly fetched quote. The database
// implements it to keep snapshots.
type QuoteRecorder interface {
	RecordQuote(q Quote) error
}

// MarketDataClient normalizes provider quotes and caches them per symbol.
type MarketDataClient struct {
	provider QuoteProvider
	recorder QuoteRecorder
	cache    *TTLCache[Quote]
	ttl      time.Duration
	indices  []MarketIndex
	log      *slog.Logger
	now      func() time.Time
}

func NewMarketDataClient(provider QuoteProvider, recorder QuoteRecorder, ttl time.Duration, log *slog.Logger) *MarketDataClient {
	if log == nil {
		log = discardLogger()
	}
	return &MarketDataClient{
		provider: provider,
		recorder: recorder,
		cache:    NewTTLCache[Quote](),
		ttl:      ttl,
		indices:  defaultIndices,
		log:      log,
		now:      time.Now,
	}
}

// GetQuote returns the quote for symbol, served from cache within the TTL.
func (m *MarketDataClient) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, fmt.Errorf("%w: symbol", ErrEmptyQuery)
	}
	return m.cache.GetOrFetchContext(ctx, symbol, m.ttl, func(ctx context.Context) (Quote, error) {
		return m.fetch(ctx, symbol)
	})
}

func (m *MarketDataClient) fetch(ctx context.Context, symbol string) (Quote, error) {
	raw, err := m.provider.FetchQuote(ctx, symbol)
	if err != nil {
		m.log.Warn("quote fetch failed", "symbol", symbol, "error", err)
		return Quote{}, err
	}

	q, err := normalizeQuote(raw, m.now())
	if err != nil {
		return Quote{}, err
	}

	if m.recorder != nil {
		if err := m.recorder.RecordQuote(q); err != nil {
			m.log.Warn("recording quote snapshot", "symbol", symbol, "error", err)
		}
	}
	return q, nil
}

func normalizeQuote(raw *RawQuote, fetchedAt time.Time) (Quote, error) {
	if raw == nil || raw.Close <= 0 {
		return Quote{}, ErrNoQuoteData
	}
	if raw.PreviousClose <= 0 {
		return Quote{}, fmt.Errorf("%w: missing previous close for %s", ErrNoQuoteData, raw.Symbol)
	}

	change := raw.Close - raw.PreviousClose
	q := Quote{
		Symbol:        raw.Symbol,
		Name:          raw.Name,
		Price:         roundToDecimal(raw.Close, 2),
		Change:        roundToDecimal(change, 2),
		ChangePercent: roundToDecimal(change/raw.PreviousClose*100, 2),
		Volume:        raw.Volume,
		FetchedAt:     fetchedAt,
	}
	if q.Name == "" {
		q.Name = raw.Symbol
	}
	if raw.TrailingPE != nil {
		pe := roundToDecimal(*raw.TrailingPE, 2)
		q.PERatio = &pe
	}
	return q, nil
}

// GetIndices returns quotes for the fixed index list keyed by display name.
// Indices that fail are left out.
func (m *MarketDataClient) GetIndices(ctx context.Context) map[string]Quote {
	out := make(map[string]Quote, len(m.indices))
	for _, idx := range m.indices {
		q, err := m.GetQuote(ctx, idx.Symbol)
		if err != nil {
			continue
		}
		out[idx.Name] = q
	}
	return out
}

// RefreshQuote drops any cached quote for symbol and fetches it again.
func (m *MarketDataClient) RefreshQuote(ctx context.Context, symbol string) (Quote, error) {
	m.cache.Delete(strings.ToUpper(strings.TrimSpace(symbol)))
	return m.GetQuote(ctx, symbol)
}

// ClearCache forces the next lookup of every symbol to hit the provider.
func (m *MarketDataClient) ClearCache() {
	m.cache.Clear()
}

// roundToDecimal rounds value to the given number of decimal places.
func roundToDecimal(value float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(value*factor) / factor
}
