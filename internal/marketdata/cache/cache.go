// Package cache provides a Redis read-through layer over any MarketData
// implementation. Daily bars are immutable once published, so they cache
// well; cache failures degrade to the underlying provider rather than
// failing the simulation step.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"simtrade/internal/model"
)

// Config configures the Redis bar cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // 0 = keep forever
}

// Provider wraps an upstream MarketData with a Redis cache.
type Provider struct {
	upstream model.MarketData
	client   *goredis.Client
	ttl      time.Duration
}

// New creates the cache layer and pings Redis.
func New(upstream model.MarketData, cfg Config) (*Provider, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[bar-cache] connected to %s", cfg.Addr)
	return &Provider{upstream: upstream, client: client, ttl: cfg.TTL}, nil
}

func daysKey(start, end string) string {
	return "simtrade:days:" + start + ":" + end
}

func barKey(symbol, date string) string {
	return "simtrade:bar:" + symbol + ":" + date
}

// TradingDays returns the cached calendar for the exact range, falling back
// to the upstream provider on a miss.
func (p *Provider) TradingDays(ctx context.Context, start, end string) ([]string, error) {
	key := daysKey(start, end)
	if raw, err := p.client.Get(ctx, key).Result(); err == nil {
		var days []string
		if err := json.Unmarshal([]byte(raw), &days); err == nil {
			return days, nil
		}
		// Corrupt entry — drop it and refetch.
		p.client.Del(ctx, key)
	}

	days, err := p.upstream.TradingDays(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(days); err == nil {
		if err := p.client.Set(ctx, key, data, p.ttl).Err(); err != nil {
			log.Printf("[bar-cache] set %s failed: %v", key, err)
		}
	}
	return days, nil
}

// DailyBars serves per-symbol bars from cache and batches the misses into a
// single upstream call. A symbol the upstream doesn't return is cached as a
// tombstone so repeated steps don't refetch known holes.
func (p *Provider) DailyBars(ctx context.Context, symbols []string, date string) (map[string]model.Bar, error) {
	out := make(map[string]model.Bar, len(symbols))
	var misses []string

	for _, sym := range symbols {
		raw, err := p.client.Get(ctx, barKey(sym, date)).Result()
		if err != nil {
			misses = append(misses, sym)
			continue
		}
		if raw == "" {
			continue // tombstone: known no-bar day
		}
		var bar model.Bar
		if err := json.Unmarshal([]byte(raw), &bar); err != nil {
			misses = append(misses, sym)
			continue
		}
		out[sym] = bar
	}

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := p.upstream.DailyBars(ctx, misses, date)
	if err != nil {
		return nil, err
	}
	for _, sym := range misses {
		key := barKey(sym, date)
		bar, ok := fetched[sym]
		if !ok {
			if err := p.client.Set(ctx, key, "", p.ttl).Err(); err != nil {
				log.Printf("[bar-cache] set tombstone %s failed: %v", key, err)
			}
			continue
		}
		out[sym] = bar
		if data, err := json.Marshal(bar); err == nil {
			if err := p.client.Set(ctx, key, data, p.ttl).Err(); err != nil {
				log.Printf("[bar-cache] set %s failed: %v", key, err)
			}
		}
	}
	return out, nil
}

// Close releases the Redis connection.
func (p *Provider) Close() error {
	return p.client.Close()
}
