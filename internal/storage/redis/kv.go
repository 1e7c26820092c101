// Package redis provides a key/value backend for the local store that lets
// several storefront processes share one device profile.
package redis

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// maxUpdateAttempts bounds optimistic retries when another writer changes a
// watched key.
const maxUpdateAttempts = 32

// KV namespaces every key under "storefront:<profile>:".
type KV struct {
	client *redis.Client
	prefix string
}

// New returns a KV for the given profile.
func New(client *redis.Client, profile string) *KV {
	if profile == "" {
		profile = "default"
	}
	return &KV{client: client, prefix: "storefront:" + profile + ":"}
}

func (s *KV) key(k string) string {
	return s.prefix + k
}

// Get returns the value stored under key.
func (s *KV) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "redis get %q", key)
	}
	return v, true, nil
}

// Set stores value under key without expiry.
func (s *KV) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return errors.Wrapf(err, "redis set %q", key)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *KV) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Wrapf(err, "redis del %q", key)
	}
	return nil
}

// Update runs fn on the value of key inside a WATCH/MULTI transaction and
// retries when another client modified the key in between.
func (s *KV) Update(ctx context.Context, key string, fn func(value string, ok bool) (string, bool, error)) error {
	k := s.key(key)
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Result()
		ok := true
		if errors.Is(err, redis.Nil) {
			ok, err = false, nil
		}
		if err != nil {
			return errors.Wrapf(err, "redis get %q", key)
		}
		next, write, err := fn(cur, ok)
		if err != nil || !write {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, next, 0)
			return nil
		})
		return err
	}

	for range maxUpdateAttempts {
		err := s.client.Watch(ctx, txf, k)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "redis update %q", key)
		}
		return nil
	}
	return errors.Errorf("redis update %q: gave up after %d conflicting attempts", key, maxUpdateAttempts)
}

// Clear deletes every key in the profile namespace.
func (s *KV) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "redis scan")
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}
