// Package redis keeps transfer Idempotency-Key records in Redis so replays are
// recognised across service instances sharing one database.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tinoosan/bankledger/internal/errs"
	"github.com/tinoosan/bankledger/internal/ledger"
)

const keyPrefix = "ledger:idempotency:transfer:"

// IdempotencyStore stores one record per key with a TTL.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, opts Options) (*IdempotencyStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, opts.TTL), nil
}

// New wraps an existing client. A zero ttl keeps keys forever.
func New(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) Close() error { return s.rdb.Close() }

func (s *IdempotencyStore) Ready(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

// ReserveTransferKey claims key with SETNX on a pending record. When the key is
// taken the current record is read back.
func (s *IdempotencyStore) ReserveTransferKey(ctx context.Context, key, bodyHash string) (ledger.IdempotencyRecord, bool, error) {
	pending := ledger.IdempotencyRecord{BodyHash: bodyHash}
	b, err := json.Marshal(pending)
	if err != nil {
		return ledger.IdempotencyRecord{}, false, err
	}
	ok, err := s.rdb.SetNX(ctx, keyPrefix+key, string(b), s.ttl).Result()
	if err != nil {
		return ledger.IdempotencyRecord{}, false, errs.Unavailable(fmt.Errorf("redis setnx: %w", err))
	}
	if ok {
		return pending, true, nil
	}

	raw, err := s.rdb.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// released or expired since SETNX; the owner is still in flight
		return pending, false, nil
	}
	if err != nil {
		return ledger.IdempotencyRecord{}, false, errs.Unavailable(fmt.Errorf("redis get: %w", err))
	}
	var rec ledger.IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return ledger.IdempotencyRecord{}, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return rec, false, nil
}

// CompleteTransferKey overwrites the pending record with the committed one.
func (s *IdempotencyStore) CompleteTransferKey(ctx context.Context, key string, transactionID int64) error {
	raw, err := s.rdb.Get(ctx, keyPrefix+key).Result()
	if err != nil {
		return errs.Unavailable(fmt.Errorf("redis get: %w", err))
	}
	var rec ledger.IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return fmt.Errorf("decode idempotency record: %w", err)
	}
	rec.TransactionID = transactionID
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, keyPrefix+key, string(b), s.ttl).Err(); err != nil {
		return errs.Unavailable(fmt.Errorf("redis set: %w", err))
	}
	return nil
}

func (s *IdempotencyStore) ReleaseTransferKey(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errs.Unavailable(fmt.Errorf("redis del: %w", err))
	}
	return nil
}
