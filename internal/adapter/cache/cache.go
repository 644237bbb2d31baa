// Package cache provides Redis read-through decorators for the primary
// store repositories. Resumes and jobs are immutable once ingested, so
// cached copies only ever expire, never invalidate.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// DefaultTTL bounds staleness for cached reads.
const DefaultTTL = time.Hour

// NewClient creates a Redis client from a redis:// URL.
func NewClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("op=cache.new_client: %w", err)
	}
	return redis.NewClient(opts), nil
}

// ResumeCache wraps a ResumeRepository with a Redis read-through layer.
type ResumeCache struct {
	next domain.ResumeRepository
	rdb  *redis.Client
	ttl  time.Duration
}

// NewResumeCache decorates next with caching. A zero ttl uses DefaultTTL.
func NewResumeCache(next domain.ResumeRepository, rdb *redis.Client, ttl time.Duration) *ResumeCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResumeCache{next: next, rdb: rdb, ttl: ttl}
}

// Get returns the cached resume or falls through to the wrapped repository.
// Cache failures degrade to direct reads.
func (c *ResumeCache) Get(ctx domain.Context, id string) (domain.Resume, error) {
	key := "resume:" + id
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var r domain.Resume
		if err := json.Unmarshal(raw, &r); err == nil {
			return r, nil
		}
		slog.Warn("cache entry corrupt", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	r, err := c.next.Get(ctx, id)
	if err != nil {
		return domain.Resume{}, err
	}
	c.store(ctx, key, r)
	return r, nil
}

func (c *ResumeCache) store(ctx domain.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
	}
}

// JobCache wraps a JobRepository with a Redis read-through layer.
type JobCache struct {
	next domain.JobRepository
	rdb  *redis.Client
	ttl  time.Duration
}

// NewJobCache decorates next with caching. A zero ttl uses DefaultTTL.
func NewJobCache(next domain.JobRepository, rdb *redis.Client, ttl time.Duration) *JobCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JobCache{next: next, rdb: rdb, ttl: ttl}
}

// Get returns the cached job or falls through to the wrapped repository.
func (c *JobCache) Get(ctx domain.Context, id string) (domain.Job, error) {
	key := "job:" + id
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var j domain.Job
		if err := json.Unmarshal(raw, &j); err == nil {
			return j, nil
		}
		slog.Warn("cache entry corrupt", slog.String("key", key))
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	j, err := c.next.Get(ctx, id)
	if err != nil {
		return domain.Job{}, err
	}
	raw, err := json.Marshal(j)
	if err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			slog.Warn("cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return j, nil
}
