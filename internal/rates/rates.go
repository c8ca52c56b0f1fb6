// Package rates serves SOL fiat prices for the price and convert commands,
// backed by a CoinGecko-style simple-price endpoint with a Redis TTL cache.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sushantdhakal00/discord-bot/internal/backoff"
	"github.com/sushantdhakal00/discord-bot/internal/models"
)

const (
	keySolPrice = "rates:sol:%s"

	defaultCurrencies = "usd,eur,gbp"
)

type Service struct {
	url   string
	http  *http.Client
	redis *redis.Client // nil when Redis is not configured
	ttl   time.Duration
	log   *zap.Logger

	// Last successful fetch, kept so a feed outage degrades to stale prices
	// instead of failures.
	mu   sync.RWMutex
	last map[string]float64
}

func New(url string, rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		url:   url,
		http:  &http.Client{Timeout: 10 * time.Second},
		redis: rdb,
		ttl:   ttl,
		log:   log,
		last:  map[string]float64{},
	}
}

// Run pre-warms the cache on an interval so interactive commands rarely pay
// the upstream round trip.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	backoff.Loop(ctx, interval, func(ctx context.Context) {
		if _, err := s.refresh(ctx); err != nil {
			s.log.Warn("price refresh failed", zap.Error(err))
		}
	})
}

// SolPrice returns the SOL price in the given fiat currency, from Redis if
// fresh, otherwise from the feed, otherwise from the last known value.
func (s *Service) SolPrice(ctx context.Context, currency string) (float64, error) {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "usd"
	}

	if s.redis != nil {
		val, err := s.redis.Get(ctx, fmt.Sprintf(keySolPrice, currency)).Result()
		if err == nil {
			if price, perr := strconv.ParseFloat(val, 64); perr == nil {
				return price, nil
			}
		} else if err != redis.Nil {
			s.log.Warn("price cache read failed", zap.Error(err))
		}
	}

	prices, err := s.refresh(ctx)
	if err != nil {
		s.mu.RLock()
		stale, ok := s.last[currency]
		s.mu.RUnlock()
		if ok {
			s.log.Warn("price feed down, serving stale price",
				zap.String("currency", currency), zap.Error(err))
			return stale, nil
		}
		return 0, err
	}

	price, ok := prices[currency]
	if !ok {
		return 0, fmt.Errorf("feed has no %s price: %w", currency, models.ErrNotFound)
	}
	return price, nil
}

// Convert values an amount of SOL in the given currency.
func (s *Service) Convert(ctx context.Context, sol decimal.Decimal, currency string) (decimal.Decimal, error) {
	price, err := s.SolPrice(ctx, currency)
	if err != nil {
		return decimal.Zero, err
	}
	return sol.Mul(decimal.NewFromFloat(price)), nil
}

// refresh fetches the feed and caches whatever currencies it returned. A
// partial response is fine; only the currencies present get refreshed.
func (s *Service) refresh(ctx context.Context) (map[string]float64, error) {
	url := fmt.Sprintf("%s?ids=solana&vs_currencies=%s", s.url, defaultCurrencies)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price feed: %v: %w", err, models.ErrExternalUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price feed: status %d: %w", resp.StatusCode, models.ErrExternalUnavailable)
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("price feed: decode: %w", err)
	}
	prices := payload["solana"]
	if len(prices) == 0 {
		return nil, fmt.Errorf("price feed: empty response: %w", models.ErrExternalUnavailable)
	}

	s.mu.Lock()
	for currency, price := range prices {
		s.last[currency] = price
	}
	s.mu.Unlock()

	if s.redis != nil {
		for currency, price := range prices {
			key := fmt.Sprintf(keySolPrice, currency)
			if err := s.redis.Set(ctx, key, strconv.FormatFloat(price, 'f', -1, 64), s.ttl).Err(); err != nil {
				s.log.Warn("price cache write failed", zap.Error(err))
				break
			}
		}
	}
	return prices, nil
}
