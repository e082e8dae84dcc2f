// Package cache provides the two-tier scoring result cache: an in-memory
// expirable LRU for hot entries and Redis for the distributed tier. The
// Redis tier sits behind a circuit breaker; when Redis is unavailable the
// cache degrades to memory-only and scoring results are simply recomputed.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/genecurator/gene-validity-server/internal/domain"
)

const scoreKeyPrefix = "score"

// Stats tracks cache performance per tier.
type Stats struct {
	MemoryHits   int64     `json:"memory_hits"`
	MemoryMisses int64     `json:"memory_misses"`
	RedisHits    int64     `json:"redis_hits"`
	RedisMisses  int64     `json:"redis_misses"`
	RedisErrors  int64     `json:"redis_errors"`
	LastReset    time.Time `json:"last_reset"`
}

// ScoreCache is the two-tier domain.ScoreCache implementation. Entries are
// keyed by curation ID and version, so a version bump naturally misses and
// stale results are unreachable even before invalidation.
type ScoreCache struct {
	memory  *expirable.LRU[string, *domain.ScoringResult]
	redis   *redis.Client
	breaker *gobreaker.CircuitBreaker

	redisTTL time.Duration
	logger   *logrus.Logger

	statsMu sync.Mutex
	stats   Stats
}

// Options configures the score cache. A nil Redis client yields a
// memory-only cache.
type Options struct {
	MemorySize int
	MemoryTTL  time.Duration
	RedisTTL   time.Duration
}

// New creates a score cache. Zero option fields fall back to defaults.
func New(redisClient *redis.Client, opts Options, logger *logrus.Logger) *ScoreCache {
	if opts.MemorySize <= 0 {
		opts.MemorySize = 1000
	}
	if opts.MemoryTTL <= 0 {
		opts.MemoryTTL = 15 * time.Minute
	}
	if opts.RedisTTL <= 0 {
		opts.RedisTTL = 24 * time.Hour
	}

	cache := &ScoreCache{
		memory:   expirable.NewLRU[string, *domain.ScoringResult](opts.MemorySize, nil, opts.MemoryTTL),
		redis:    redisClient,
		redisTTL: opts.RedisTTL,
		logger:   logger,
		stats:    Stats{LastReset: time.Now().UTC()},
	}

	if redisClient != nil {
		cache.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "score-cache-redis",
			MaxRequests: 5,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Score cache circuit breaker state changed")
			},
		})
	}

	return cache
}

// NewMemoryOnly creates a cache with no Redis tier, for single-process
// deployments and tests.
func NewMemoryOnly(opts Options, logger *logrus.Logger) *ScoreCache {
	return New(nil, opts, logger)
}

// Get returns the cached scoring result for (curationID, version). A
// Redis-tier hit is promoted into memory.
func (c *ScoreCache) Get(ctx context.Context, curationID string, version int64) (*domain.ScoringResult, bool) {
	key := scoreKey(curationID, version)

	if result, ok := c.memory.Get(key); ok {
		c.bump(func(s *Stats) { s.MemoryHits++ })
		return result, true
	}
	c.bump(func(s *Stats) { s.MemoryMisses++ })

	if c.redis == nil {
		return nil, false
	}

	raw, err := c.breaker.Execute(func() (interface{}, error) {
		return c.redis.Get(ctx, key).Result()
	})
	if err != nil {
		if err != redis.Nil {
			c.bump(func(s *Stats) { s.RedisErrors++ })
			c.logger.WithFields(logrus.Fields{
				"curation_id": curationID,
				"error":       err,
			}).Debug("Score cache Redis read failed")
		} else {
			c.bump(func(s *Stats) { s.RedisMisses++ })
		}
		return nil, false
	}

	var result domain.ScoringResult
	if err := json.Unmarshal([]byte(raw.(string)), &result); err != nil {
		// Drop the corrupted entry and treat as a miss.
		c.breaker.Execute(func() (interface{}, error) {
			return nil, c.redis.Del(ctx, key).Err()
		})
		return nil, false
	}
	c.bump(func(s *Stats) { s.RedisHits++ })

	c.memory.Add(key, &result)
	return &result, true
}

// Set caches a scoring result in both tiers.
func (c *ScoreCache) Set(ctx context.Context, curationID string, version int64, result *domain.ScoringResult) {
	key := scoreKey(curationID, version)
	c.memory.Add(key, result)

	if c.redis == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.WithField("curation_id", curationID).Warn("Score cache marshal failed")
		return
	}
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, key, payload, c.redisTTL).Err()
	})
	if err != nil {
		c.bump(func(s *Stats) { s.RedisErrors++ })
		c.logger.WithFields(logrus.Fields{
			"curation_id": curationID,
			"error":       err,
		}).Debug("Score cache Redis write failed")
	}
}

// Invalidate drops all cached versions for a curation from both tiers.
func (c *ScoreCache) Invalidate(ctx context.Context, curationID string) {
	prefix := scoreKeyPrefix + ":" + curationID + ":"
	for _, key := range c.memory.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.memory.Remove(key)
		}
	}

	if c.redis == nil {
		return
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		keys, err := c.redis.Keys(ctx, prefix+"*").Result()
		if err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, nil
		}
		return nil, c.redis.Del(ctx, keys...).Err()
	})
	if err != nil {
		c.bump(func(s *Stats) { s.RedisErrors++ })
		c.logger.WithFields(logrus.Fields{
			"curation_id": curationID,
			"error":       err,
		}).Debug("Score cache Redis invalidation failed")
	}
}

// GetStats returns a snapshot of cache performance counters.
func (c *ScoreCache) GetStats() Stats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// Ping verifies the Redis tier is reachable. Memory-only caches always
// report healthy.
func (c *ScoreCache) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Ping(ctx).Err()
	})
	return err
}

// Close releases the Redis connection.
func (c *ScoreCache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}

func (c *ScoreCache) bump(update func(*Stats)) {
	c.statsMu.Lock()
	update(&c.stats)
	c.statsMu.Unlock()
}

func scoreKey(curationID string, version int64) string {
	return fmt.Sprintf("%s:%s:v%d", scoreKeyPrefix, curationID, version)
}

// NewRedisClient parses the configured URL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}
	return client, nil
}
