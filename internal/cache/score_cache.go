// Package cache keeps a Redis copy of target scores, used to rank the front page.
package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/emilythestrangee/forum/backend/internal/voting"
)

const keyPrefix = "forum:scores:"

// NewClient parses a redis URL (e.g. "redis://localhost:6379/0") and verifies the connection.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// ScoreCache stores scores in one sorted set per target kind.
type ScoreCache struct {
	client *redis.Client
}

func NewScoreCache(client *redis.Client) *ScoreCache {
	return &ScoreCache{client: client}
}

func key(kind voting.Kind) string {
	return keyPrefix + kind.String()
}

func (c *ScoreCache) SetScore(ctx context.Context, target voting.Target, score int) error {
	err := c.client.ZAdd(ctx, key(target.Kind()), redis.Z{
		Score:  float64(score),
		Member: strconv.Itoa(target.ID()),
	}).Err()
	if err != nil {
		return fmt.Errorf("caching score for %s: %w", target, err)
	}
	return nil
}

// IncrScore shifts a cached score by delta. A missing member is created at delta.
func (c *ScoreCache) IncrScore(ctx context.Context, target voting.Target, delta int) error {
	if err := c.client.ZIncrBy(ctx, key(target.Kind()), float64(delta), strconv.Itoa(target.ID())).Err(); err != nil {
		return fmt.Errorf("incrementing cached score for %s: %w", target, err)
	}
	return nil
}

func (c *ScoreCache) Remove(ctx context.Context, target voting.Target) error {
	if err := c.client.ZRem(ctx, key(target.Kind()), strconv.Itoa(target.ID())).Err(); err != nil {
		return fmt.Errorf("removing cached score for %s: %w", target, err)
	}
	return nil
}

// TopPosts returns up to limit post ids, highest score first.
func (c *ScoreCache) TopPosts(ctx context.Context, limit int) ([]int, error) {
	members, err := c.client.ZRevRange(ctx, key(voting.KindPost), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading post ranking: %w", err)
	}

	ids := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("malformed ranking member %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WarmPosts replaces the post ranking with the given scores.
func (c *ScoreCache) WarmPosts(ctx context.Context, scores map[int]int) error {
	k := key(voting.KindPost)

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		if len(scores) == 0 {
			return nil
		}
		members := make([]redis.Z, 0, len(scores))
		for id, score := range scores {
			members = append(members, redis.Z{Score: float64(score), Member: strconv.Itoa(id)})
		}
		pipe.ZAdd(ctx, k, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("warming post ranking: %w", err)
	}
	return nil
}
