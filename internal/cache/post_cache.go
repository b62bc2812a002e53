package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/d60-Lab/gin-blog/internal/model"
)

const (
	tagsKey        = "posts:tags"
	tagsVersionKey = "posts:tags:ver"
)

func postKey(id string) string        { return fmt.Sprintf("post:%s", id) }
func postVersionKey(id string) string { return fmt.Sprintf("post:%s:ver", id) }

// PostCache caches single posts as JSON strings and the tag index as a redis list.
//
// Every entry has a version counter that invalidation bumps. Readers take the
// version before loading from the store and pass it back to Set; the write is
// skipped when the counter moved meanwhile, so a load that raced an
// invalidation cannot repopulate the key with stale data.
type PostCache struct {
	client *redis.Client
	ttl    time.Duration

	hits   atomic.Int64
	misses atomic.Int64
	stale  atomic.Int64
}

// NewRedisClient builds a client and verifies connectivity.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

func NewPostCache(client *redis.Client, ttl time.Duration) *PostCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PostCache{client: client, ttl: ttl}
}

func (c *PostCache) GetPost(ctx context.Context, id string) (*model.Post, bool, error) {
	data, err := c.client.Get(ctx, postKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var p model.Post
	if err := json.Unmarshal(data, &p); err != nil {
		// corrupt entry: drop it and fall through to the store
		_ = c.client.Del(ctx, postKey(id)).Err()
		c.misses.Add(1)
		return nil, false, nil
	}
	c.hits.Add(1)
	return &p, true, nil
}

// PostVersion returns the invalidation counter to pass to SetPost.
func (c *PostCache) PostVersion(ctx context.Context, id string) (int64, error) {
	return c.version(ctx, postVersionKey(id))
}

// SetPost stores post unless it was invalidated after version was taken.
func (c *PostCache) SetPost(ctx context.Context, post *model.Post, version int64) error {
	payload, err := json.Marshal(post)
	if err != nil {
		return err
	}
	return c.setIfVersion(ctx, postVersionKey(post.ID), version, func(p redis.Pipeliner) {
		p.Set(ctx, postKey(post.ID), payload, c.ttl)
	})
}

func (c *PostCache) DeletePost(ctx context.Context, id string) error {
	return c.invalidate(ctx, postKey(id), postVersionKey(id))
}

func (c *PostCache) GetTags(ctx context.Context) ([]string, bool, error) {
	exists, err := c.client.Exists(ctx, tagsKey).Result()
	if err != nil {
		return nil, false, err
	}
	if exists == 0 {
		c.misses.Add(1)
		return nil, false, nil
	}
	tags, err := c.client.LRange(ctx, tagsKey, 0, -1).Result()
	if err != nil {
		return nil, false, err
	}
	c.hits.Add(1)
	return tags, true, nil
}

func (c *PostCache) TagsVersion(ctx context.Context) (int64, error) {
	return c.version(ctx, tagsVersionKey)
}

// SetTags stores the sorted tag list. An empty list is not cached.
func (c *PostCache) SetTags(ctx context.Context, tags []string, version int64) error {
	if len(tags) == 0 {
		return nil
	}
	return c.setIfVersion(ctx, tagsVersionKey, version, func(p redis.Pipeliner) {
		p.Del(ctx, tagsKey)
		p.RPush(ctx, tagsKey, interfaceSlice(tags)...)
		p.Expire(ctx, tagsKey, c.ttl)
	})
}

func (c *PostCache) DeleteTags(ctx context.Context) error {
	return c.invalidate(ctx, tagsKey, tagsVersionKey)
}

func (c *PostCache) version(ctx context.Context, verKey string) (int64, error) {
	v, err := c.client.Get(ctx, verKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// setIfVersion runs write in a MULTI guarded by WATCH on verKey.
// A moved counter or a concurrent bump both mean the load is stale: skip.
func (c *PostCache) setIfVersion(ctx context.Context, verKey string, version int64, write func(redis.Pipeliner)) error {
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, verKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != version {
			c.stale.Add(1)
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			write(p)
			return nil
		})
		return err
	}, verKey)
	if errors.Is(err, redis.TxFailedErr) {
		c.stale.Add(1)
		return nil
	}
	return err
}

// invalidate drops the entry and bumps its counter. The counter lives for two
// ttls; an expired counter reads as 0, which only makes older versions mismatch.
func (c *PostCache) invalidate(ctx context.Context, key, verKey string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.Incr(ctx, verKey)
	pipe.Expire(ctx, verKey, 2*c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func interfaceSlice(strs []string) []interface{} {
	result := make([]interface{}, len(strs))
	for i, s := range strs {
		result[i] = s
	}
	return result
}

// Stats reports cache hits and misses since start.
func (c *PostCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// StaleSkips counts Set calls dropped because the entry was invalidated mid-load.
func (c *PostCache) StaleSkips() int64 { return c.stale.Load() }
