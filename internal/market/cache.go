package market

import (
	"context"
	"sync"
	"time"
)

type priceEntry struct {
	v       Price
	expires time.Time
}

type indicatorEntry struct {
	v       Indicators
	expires time.Time
}

// Cache fronts a Data source with per-entry TTLs. It owns its entries and
// takes an injectable clock so tests control time and eviction
// deterministically. Klines are never cached; the backtester always wants
// fresh history.
type Cache struct {
	Source       Data
	PriceTTL     time.Duration
	IndicatorTTL time.Duration
	Now          func() time.Time

	mu         sync.RWMutex
	prices     map[string]priceEntry
	indicators map[string]indicatorEntry
}

func NewCache(source Data, priceTTL, indicatorTTL time.Duration) *Cache {
	return &Cache{
		Source:       source,
		PriceTTL:     priceTTL,
		IndicatorTTL: indicatorTTL,
		Now:          time.Now,
		prices:       map[string]priceEntry{},
		indicators:   map[string]indicatorEntry{},
	}
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Cache) GetPrice(ctx context.Context, symbol string) (Price, bool, error) {
	key := BaseAsset(symbol)
	now := c.now()
	c.mu.RLock()
	it, ok := c.prices[key]
	c.mu.RUnlock()
	if ok && now.Before(it.expires) {
		return it.v, true, nil
	}
	if c.Source == nil {
		return Price{}, false, nil
	}
	v, found, err := c.Source.GetPrice(ctx, symbol)
	if err != nil || !found {
		return Price{}, false, err
	}
	c.mu.Lock()
	c.prices[key] = priceEntry{v: v, expires: now.Add(c.PriceTTL)}
	c.mu.Unlock()
	return v, true, nil
}

func (c *Cache) GetIndicators(ctx context.Context, symbol, timeframe string) (Indicators, bool, error) {
	key := BaseAsset(symbol) + ":" + timeframe
	now := c.now()
	c.mu.RLock()
	it, ok := c.indicators[key]
	c.mu.RUnlock()
	if ok && now.Before(it.expires) {
		return it.v, true, nil
	}
	if c.Source == nil {
		return Indicators{}, false, nil
	}
	v, found, err := c.Source.GetIndicators(ctx, symbol, timeframe)
	if err != nil || !found {
		return Indicators{}, false, err
	}
	c.mu.Lock()
	c.indicators[key] = indicatorEntry{v: v, expires: now.Add(c.IndicatorTTL)}
	c.mu.Unlock()
	return v, true, nil
}

func (c *Cache) GetKlines(ctx context.Context, symbol, interval string, from time.Time, limit int) ([]Candle, error) {
	if c.Source == nil {
		return nil, nil
	}
	return c.Source.GetKlines(ctx, symbol, interval, from, limit)
}
