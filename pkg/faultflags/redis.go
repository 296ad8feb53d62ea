package faultflags

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/resiliencelab/chaos-go/pkg/types"
)

// DefaultKeyPrefix namespaces the flag keys
const DefaultKeyPrefix = "chaos:fault:"

// RedisClient is the part of *redis.Client the store needs
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps flags as expiring keys, prefix + service + ":" + dependency
type RedisStore struct {
	client RedisClient
	prefix string
}

// NewRedisClient dials the redis used for fault flags
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewRedisStore returns a store on client, DefaultKeyPrefix when prefix is empty
func NewRedisStore(client RedisClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Key returns the redis key of the flag for service and dependency
func (s *RedisStore) Key(service, dependency string) string {
	return s.prefix + service + ":" + dependency
}

func (s *RedisStore) Set(ctx context.Context, target types.ServiceTarget, flag Flag, ttl time.Duration) error {
	value, err := flag.Encode()
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(target.Name, flag.Dependency), value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "unable to set fault flag for %v -> %v", target.Name, flag.Dependency)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, target types.ServiceTarget, dependency string) error {
	if err := s.client.Del(ctx, s.Key(target.Name, dependency)).Err(); err != nil && err != redis.Nil {
		return errors.Wrapf(err, "unable to clear fault flag for %v -> %v", target.Name, dependency)
	}
	return nil
}
