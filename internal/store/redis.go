package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"MarketAdvisor/internal/domain"
)

// Redis stores artifacts in a shared Redis so stages can run on different hosts.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis wraps an existing client; namespace is prepended to every key.
func NewRedis(client *redis.Client, namespace string) *Redis {
	return &Redis{client: client, prefix: namespace}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int, namespace string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return NewRedis(client, namespace), nil
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

// Put writes the artifact without expiry.
func (r *Redis) Put(ctx context.Context, key string, artifact domain.Artifact) error {
	raw, err := encode(artifact)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get reads the artifact stored under key.
func (r *Redis) Get(ctx context.Context, key string) (domain.Artifact, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Artifact{}, notFound(key)
	}
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("get %s: %w", key, err)
	}
	return decode(raw)
}

// List scans keys under prefix and returns them in key order.
func (r *Redis) List(ctx context.Context, prefix string) ([]domain.Artifact, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	sort.Strings(keys)

	out := make([]domain.Artifact, 0, len(keys))
	for _, k := range keys {
		raw, err := r.client.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", k, err)
		}
		a, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
