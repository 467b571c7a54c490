package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record as a JSON string under prefix+key with the
// TTL window as expiry.
type RedisStore struct {
	rdb       redis.UniversalClient
	prefix    string
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore returns a Redis backed Store.
func NewRedisStore(rdb redis.UniversalClient, prefix string, ttlWindow time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "idempotency:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttlWindow: ttlWindow, nowFunc: time.Now}
}

func (s *RedisStore) newRecord(key string) ([]byte, error) {
	now := s.nowFunc().UTC()
	return json.Marshal(Record{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.ttlWindow).Unix(),
	})
}

// CreateIfNotExists implements Store: SETNX for a fresh key, and an
// optimistic WATCH transaction to take over a FAILED one.
func (s *RedisStore) CreateIfNotExists(ctx context.Context, key string) (bool, error) {
	fresh, err := s.newRecord(key)
	if err != nil {
		return false, fmt.Errorf("marshal record: %w", err)
	}
	rk := s.prefix + key

	ok, err := s.rdb.SetNX(ctx, rk, fresh, s.ttlWindow).Result()
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		return true, nil
	}

	claimed := false
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := decode(tx.Get(ctx, rk))
		if err != nil {
			return err
		}
		if rec != nil && rec.Status != StatusFailed {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, rk, fresh, s.ttlWindow)
			return nil
		})
		if err == nil {
			claimed = true
		}
		return err
	}, rk)
	if errors.Is(err, redis.TxFailedErr) {
		// someone else changed the key between WATCH and EXEC
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reclaim: %w", err)
	}
	return claimed, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	rec, err := decode(s.rdb.Get(ctx, s.prefix+key))
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return rec, nil
}

// MarkDone implements Store.
func (s *RedisStore) MarkDone(ctx context.Context, key, orderID, responseBody string, responseStatus int) error {
	return s.update(ctx, key, func(r *Record) {
		r.Status = StatusDone
		r.OrderID = orderID
		r.ResponseBody = responseBody
		r.ResponseStatus = responseStatus
	})
}

// MarkFailed implements Store.
func (s *RedisStore) MarkFailed(ctx context.Context, key, note string) error {
	return s.update(ctx, key, func(r *Record) {
		r.Status = StatusFailed
		r.Note = note
	})
}

func (s *RedisStore) update(ctx context.Context, key string, mutate func(*Record)) error {
	rk := s.prefix + key
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := decode(tx.Get(ctx, rk))
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("record %s not found", key)
		}
		mutate(rec)
		rec.UpdatedAt = s.nowFunc().UTC()
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, rk, raw, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}, rk)
	if err != nil {
		return fmt.Errorf("update %s: %w", key, err)
	}
	return nil
}

func decode(cmd *redis.StringCmd) (*Record, error) {
	raw, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}
