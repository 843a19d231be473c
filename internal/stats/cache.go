package stats

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Shivanand-hulikatti/explore-with-me/internal/config"
)

// CachedAggregator keeps view counts in Redis for a short TTL in front of
// another Aggregator. Concurrent identical misses are collapsed into one
// upstream query. Redis failures fall through to the upstream.
//
// Cached counts are keyed by URI, uniqueness and window start only, so a
// count may lag by up to the TTL.
type CachedAggregator struct {
	next    Aggregator
	client  *redis.Client
	enabled bool
	ttl     time.Duration
	group   singleflight.Group
	log     zerolog.Logger
}

// NewCachedAggregator wraps next. With the cache disabled every call goes
// straight to next.
func NewCachedAggregator(next Aggregator, cfg config.RedisConfig, log zerolog.Logger) (*CachedAggregator, error) {
	c := &CachedAggregator{next: next, ttl: cfg.TTL, log: log}
	if !cfg.Enabled {
		return c, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	c.client = client
	c.enabled = true
	return c, nil
}

// RecordHit forwards to the upstream aggregator.
func (c *CachedAggregator) RecordHit(ctx context.Context, hit Hit) error {
	return c.next.RecordHit(ctx, hit)
}

// QueryViews answers from Redis where it can and asks the upstream for the
// rest.
func (c *CachedAggregator) QueryViews(ctx context.Context, q ViewQuery) (map[string]int64, error) {
	if !c.enabled || len(q.URIs) == 0 {
		return c.next.QueryViews(ctx, q)
	}

	out := make(map[string]int64, len(q.URIs))
	missing, err := c.lookup(ctx, q, out)
	if err != nil {
		c.log.Warn().Err(err).Msg("view cache read failed")
		missing = q.URIs
	}
	if len(missing) == 0 {
		return out, nil
	}

	sort.Strings(missing)
	key := fmt.Sprintf("%t|%d|%s", q.Unique, q.Start.Unix(), strings.Join(missing, ","))
	v, err, _ := c.group.Do(key, func() (any, error) {
		sub := q
		sub.URIs = missing
		counts, err := c.next.QueryViews(ctx, sub)
		if err != nil {
			return nil, err
		}
		if err := c.store(ctx, q, missing, counts); err != nil {
			c.log.Warn().Err(err).Msg("view cache write failed")
		}
		return counts, nil
	})
	if err != nil {
		return nil, err
	}
	for uri, n := range v.(map[string]int64) {
		out[uri] = n
	}
	return out, nil
}

// Close releases the Redis connection.
func (c *CachedAggregator) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *CachedAggregator) lookup(ctx context.Context, q ViewQuery, out map[string]int64) ([]string, error) {
	keys := make([]string, len(q.URIs))
	for i, uri := range q.URIs {
		keys[i] = viewsKey(q, uri)
	}
	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read cached views")
	}

	var missing []string
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, q.URIs[i])
			continue
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			missing = append(missing, q.URIs[i])
			continue
		}
		if n > 0 {
			out[q.URIs[i]] = n
		}
	}
	return missing, nil
}

func (c *CachedAggregator) store(ctx context.Context, q ViewQuery, uris []string, counts map[string]int64) error {
	pipe := c.client.Pipeline()
	for _, uri := range uris {
		pipe.Set(ctx, viewsKey(q, uri), counts[uri], c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to cache views")
	}
	return nil
}

func viewsKey(q ViewQuery, uri string) string {
	mode := "all"
	if q.Unique {
		mode = "unique"
	}
	return fmt.Sprintf("views:%s:%d:%s", mode, q.Start.Unix(), uri)
}
