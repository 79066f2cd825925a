package repository

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 256

// RedisRepo stores records as plain string values under "<prefix><key>".
// SET replaces a value atomically. Keys are enumerated with SCAN so a large
// store never blocks the server with KEYS.
type RedisRepo struct {
	client *redis.Client
	prefix string
}

// NewRedisRepo creates a Redis-backed repository. Prefix may be empty.
func NewRedisRepo(client *redis.Client, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = "docstore:doc:"
	}
	return &RedisRepo{client: client, prefix: prefix}
}

func (r *RedisRepo) key(id uint64) string {
	return r.prefix + Key(id)
}

func (r *RedisRepo) Put(ctx context.Context, id uint64, data []byte) error {
	if err := r.client.Set(ctx, r.key(id), data, 0).Err(); err != nil {
		return fault("put", id, err)
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, id uint64) ([]byte, error) {
	b, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(id)
		}
		return nil, fault("get", id, err)
	}
	return b, nil
}

func (r *RedisRepo) Delete(ctx context.Context, id uint64) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fault("delete", id, err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

// scanKeys returns the raw redis keys under the prefix that parse as records.
func (r *RedisRepo) scanKeys(ctx context.Context) ([]string, []uint64, error) {
	var (
		cursor uint64
		keys   []string
		ids    []uint64
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, r.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, nil, err
		}
		for _, k := range batch {
			id, ok := ParseKey(strings.TrimPrefix(k, r.prefix))
			if !ok {
				continue
			}
			keys = append(keys, k)
			ids = append(ids, id)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, ids, nil
}

func (r *RedisRepo) Keys(ctx context.Context) ([]uint64, error) {
	_, ids, err := r.scanKeys(ctx)
	if err != nil {
		return nil, fault("keys", 0, err)
	}
	// SCAN may return a key more than once
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := ids[:0]
	for _, id := range ids {
		if len(out) > 0 && out[len(out)-1] == id {
			continue
		}
		out = append(out, id)
	}
	if out == nil {
		out = []uint64{}
	}
	return out, nil
}

func (r *RedisRepo) Clear(ctx context.Context) (int, error) {
	keys, _, err := r.scanKeys(ctx)
	if err != nil {
		return 0, fault("clear", 0, err)
	}
	removed := 0
	for start := 0; start < len(keys); start += scanBatch {
		end := start + scanBatch
		if end > len(keys) {
			end = len(keys)
		}
		n, err := r.client.Del(ctx, keys[start:end]...).Result()
		if err != nil {
			return removed, fault("clear", 0, err)
		}
		removed += int(n)
	}
	return removed, nil
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}

var _ Repository = (*RedisRepo)(nil)
