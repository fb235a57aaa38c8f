package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aristath/rebalancer/internal/clients/marketdata"
	"github.com/aristath/rebalancer/internal/domain"
	"github.com/aristath/rebalancer/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// DefaultPriceCacheTTL is the window in which repeated fetches reuse cached quotes
const DefaultPriceCacheTTL = 5 * time.Second

// ErrNoPrices is returned when no provider priced any non-stable asset
var ErrNoPrices = errors.New("no prices available from any provider")

// guardedProvider pairs a provider with its circuit breaker
type guardedProvider struct {
	provider marketdata.Provider
	breaker  *gobreaker.CircuitBreaker
}

// PriceService resolves best-available USD prices through a provider chain.
// Each provider is asked only for the symbols still missing.
type PriceService struct {
	providers []guardedProvider
	cacheTTL  time.Duration
	now       func() time.Time
	metrics   *metrics.Registry
	log       zerolog.Logger

	mu       sync.Mutex
	cache    map[string]float64
	cachedAt time.Time
}

// NewPriceService creates a price service over providers, tried in order
func NewPriceService(providers []marketdata.Provider, cacheTTL time.Duration, m *metrics.Registry, log zerolog.Logger) *PriceService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultPriceCacheTTL
	}
	s := &PriceService{
		cacheTTL: cacheTTL,
		now:      time.Now,
		metrics:  m,
		log:      log.With().Str("service", "price").Logger(),
		cache:    make(map[string]float64),
	}
	for _, p := range providers {
		s.providers = append(s.providers, guardedProvider{provider: p, breaker: newBreaker(p.Name(), s.log)})
	}
	return s
}

func newBreaker(name string, log zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("Price provider breaker changed state")
		},
	})
}

// Fetch implements domain.PriceSource. Venue does not influence pricing:
// quotes always come from mainnet sources. Unpriced assets are returned
// unchanged and stable assets are pinned to 1.00.
func (s *PriceService) Fetch(ctx context.Context, assets []domain.Asset, venue domain.Venue) ([]domain.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if len(s.cache) > 0 && now.Sub(s.cachedAt) < s.cacheTTL {
		return applyQuotes(assets, s.cache), nil
	}

	missing := unpricedSymbols(assets)
	if len(missing) == 0 {
		return applyQuotes(assets, nil), nil
	}

	fetched := make(map[string]float64, len(missing))
	for _, gp := range s.providers {
		if len(missing) == 0 {
			break
		}
		quotes, err := s.query(ctx, gp, missing)
		if err != nil {
			continue
		}
		for symbol, price := range quotes {
			if price > 0 {
				fetched[strings.ToUpper(symbol)] = price
			}
		}
		missing = remaining(missing, fetched)
	}

	if len(fetched) == 0 {
		s.log.Warn().Str("venue", string(venue)).Msg("No provider returned prices")
		return applyQuotes(assets, nil), ErrNoPrices
	}

	for symbol, price := range fetched {
		s.cache[symbol] = price
	}
	s.cachedAt = now

	if len(missing) > 0 {
		s.log.Debug().Strs("symbols", missing).Msg("Symbols left unpriced")
	}
	return applyQuotes(assets, fetched), nil
}

func (s *PriceService) query(ctx context.Context, gp guardedProvider, symbols []string) (map[string]float64, error) {
	name := gp.provider.Name()
	out, err := gp.breaker.Execute(func() (interface{}, error) {
		return gp.provider.Quotes(ctx, symbols)
	})
	s.metrics.ObservePriceFetch(name, err == nil)
	if err != nil {
		event := s.log.Warn()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			event = s.log.Debug()
		}
		event.Err(err).Str("provider", name).Strs("symbols", symbols).Msg("Price provider failed")
		return nil, fmt.Errorf("provider %s: %w", name, err)
	}
	return out.(map[string]float64), nil
}

// Invalidate drops cached quotes so the next Fetch hits the providers
func (s *PriceService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]float64)
	s.cachedAt = time.Time{}
}

// unpricedSymbols returns the sorted unique upper-case symbols of non-stable assets
func unpricedSymbols(assets []domain.Asset) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(assets))
	for _, a := range assets {
		sym := strings.ToUpper(strings.TrimSpace(a.Symbol))
		if a.IsStable || sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func remaining(symbols []string, priced map[string]float64) []string {
	out := symbols[:0:0]
	for _, sym := range symbols {
		if _, ok := priced[sym]; !ok {
			out = append(out, sym)
		}
	}
	return out
}

func applyQuotes(assets []domain.Asset, quotes map[string]float64) []domain.Asset {
	out := domain.CloneAssets(assets)
	for i := range out {
		if out[i].IsStable {
			out[i].Price = 1
			continue
		}
		if price, ok := quotes[strings.ToUpper(out[i].Symbol)]; ok && price > 0 {
			out[i].Price = price
		}
	}
	return out
}
