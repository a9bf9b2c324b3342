// cache_store.go: External cache tier contract and Redis implementation
//
// The external store is strictly an optimization tier. Every failure here is
// recovered by the cache as a miss or a dropped write; no store error ever
// reaches a caller of Execute.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by a CacheStore when the key is absent.
// It is the only store error the cache treats as expected.
var ErrCacheMiss = errors.New("cache store: key not found")

// CacheStore is the contract for the optional external cache tier.
//
// Implementations must be safe for concurrent use. Get returns ErrCacheMiss
// for absent keys; any other error is treated by the cache as a degraded
// store and logged, never propagated.
type CacheStore interface {
	// Get retrieves the payload stored under key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores payload under key with the given time-to-live.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Close releases any resources held by the store.
	Close() error
}

// redisKeyPrefix namespaces decision cache entries inside a shared Redis.
const redisKeyPrefix = "decision:"

// RedisCacheStore implements CacheStore on a Redis client.
//
// Entries are written with SET ... EX so Redis enforces the TTL server-side;
// the local tier re-checks TTL anyway, so clock skew between tiers only costs
// a recomputation, never staleness beyond the configured TTL.
type RedisCacheStore struct {
	client *redis.Client
	prefix string
}

// NewRedisCacheStore wraps an existing Redis client as a cache store.
// The caller keeps ownership of client configuration (pooling, auth, TLS).
func NewRedisCacheStore(client *redis.Client) *RedisCacheStore {
	return &RedisCacheStore{
		client: client,
		prefix: redisKeyPrefix,
	}
}

// Get implements CacheStore.
func (s *RedisCacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return payload, nil
}

// Set implements CacheStore.
func (s *RedisCacheStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, payload, ttl).Err()
}

// Close implements CacheStore.
func (s *RedisCacheStore) Close() error {
	return s.client.Close()
}

// gzipMagic identifies a compressed payload on decode. Compression is a
// per-cache setting, but payloads are self-describing so a cache can be
// reconfigured without invalidating the external tier.
var gzipMagic = []byte{0x1f, 0x8b}

// encodeCachePayload serializes a DecisionResult for the external tier,
// optionally gzip-compressing it.
func encodeCachePayload(result *DecisionResult, compress bool) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, NewCacheEncodingError(err)
	}
	if !compress {
		return raw, nil
	}

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(raw); err != nil {
		return nil, NewCacheEncodingError(err)
	}
	if err := writer.Close(); err != nil {
		return nil, NewCacheEncodingError(err)
	}
	return buf.Bytes(), nil
}

// decodeCachePayload deserializes an external-tier payload, transparently
// decompressing gzip-framed data.
func decodeCachePayload(payload []byte) (*DecisionResult, error) {
	if bytes.HasPrefix(payload, gzipMagic) {
		reader, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, NewCacheEncodingError(err)
		}
		defer func() { _ = reader.Close() }()

		payload, err = io.ReadAll(reader)
		if err != nil {
			return nil, NewCacheEncodingError(err)
		}
	}

	var result DecisionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, NewCacheEncodingError(err)
	}
	return &result, nil
}
