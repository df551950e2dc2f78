// Package rates fetches and caches currency exchange rates.
//
// The provider keeps a single snapshot of multipliers relative to one base
// currency and refreshes it from an external HTTP document when the cache is
// older than the freshness window. Stale snapshots are never reused for
// money-moving decisions: a failed refresh surfaces ErrRateSourceUnavailable.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"fintrack/internal/core"
)

const (
	DefaultTTL          = 5 * time.Minute
	DefaultFetchTimeout = 10 * time.Second
)

// Config holds the provider's external source settings.
type Config struct {
	SourceURL    string
	BaseCurrency string
	TTL          time.Duration
	FetchTimeout time.Duration
}

// Provider caches one rate snapshot with a TTL. Concurrent cache misses are
// collapsed into a single outbound fetch shared by all waiters; the source
// is a slow external document and must not see a fetch storm.
type Provider struct {
	cfg    Config
	client *http.Client
	group  singleflight.Group
	now    func() time.Time

	mu   sync.RWMutex
	snap core.RateSnapshot
}

func NewProvider(cfg Config) *Provider {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.FetchTimeout},
		now:    time.Now,
	}
}

// Snapshot returns the cached snapshot if it is still fresh, refreshing it
// from the source otherwise. On refresh failure the call fails; the stale
// cache is not silently reused past the freshness window.
func (p *Provider) Snapshot(ctx context.Context) (core.RateSnapshot, error) {
	if snap, ok := p.fresh(); ok {
		return snap, nil
	}

	v, err, _ := p.group.Do("rates", func() (any, error) {
		// A waiter queued behind the winning fetch sees its result here.
		if snap, ok := p.fresh(); ok {
			return snap, nil
		}
		snap, err := p.fetch(ctx)
		if err != nil {
			return core.RateSnapshot{}, err
		}
		p.mu.Lock()
		p.snap = snap
		p.mu.Unlock()
		return snap, nil
	})
	if err != nil {
		slog.WarnContext(ctx, "Rate refresh failed",
			"source", p.cfg.SourceURL,
			"error", err)
		return core.RateSnapshot{}, fmt.Errorf("%w: %v", core.ErrRateSourceUnavailable, err)
	}
	return v.(core.RateSnapshot), nil
}

func (p *Provider) fresh() (core.RateSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.snap.FetchedAt.IsZero() {
		return core.RateSnapshot{}, false
	}
	if p.now().Sub(p.snap.FetchedAt) >= p.cfg.TTL {
		return core.RateSnapshot{}, false
	}
	return p.snap, true
}

// rateDocument is the external source's wire shape. Rates may be quoted per
// Multiplier units (e.g. 100) rather than per unit.
type rateDocument struct {
	Base       string             `json:"base"`
	Multiplier float64            `json:"multiplier"`
	Rates      map[string]float64 `json:"rates"`
}

func (p *Provider) fetch(ctx context.Context) (core.RateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.SourceURL, nil)
	if err != nil {
		return core.RateSnapshot{}, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return core.RateSnapshot{}, fmt.Errorf("fetch rate document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.RateSnapshot{}, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var doc rateDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return core.RateSnapshot{}, fmt.Errorf("decode rate document: %w", err)
	}
	if len(doc.Rates) == 0 {
		return core.RateSnapshot{}, fmt.Errorf("rate document has no rates")
	}

	base := doc.Base
	if base == "" {
		base = p.cfg.BaseCurrency
	}

	multiplier := decimal.NewFromInt(1)
	if doc.Multiplier > 0 {
		multiplier = decimal.NewFromFloat(doc.Multiplier)
	}

	snap := core.RateSnapshot{
		Base:      base,
		Rates:     make(map[string]decimal.Decimal, len(doc.Rates)+1),
		FetchedAt: p.now(),
	}
	for code, rate := range doc.Rates {
		if rate <= 0 {
			continue
		}
		snap.Rates[code] = decimal.NewFromFloat(rate).Div(multiplier)
	}
	// The base trades 1:1 against itself.
	snap.Rates[base] = decimal.NewFromInt(1)

	slog.InfoContext(ctx, "Rate snapshot refreshed",
		"base", base,
		"currencies", len(snap.Rates))

	return snap, nil
}
