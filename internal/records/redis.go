package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists records in Redis. Record bodies are JSON under
// per-code keys, the set of codes lives in one set, and share tokens
// index back to codes as plain string keys.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed record store. The caller
// keeps ownership of the client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, code string) (*Record, error) {
	data, err := s.client.Get(ctx, RecordKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := s.client.Set(ctx, RecordKey(rec.Code), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	if err := s.client.SAdd(ctx, KeyAllRecords, rec.Code).Err(); err != nil {
		return fmt.Errorf("failed to index record: %w", err)
	}
	if rec.ShareToken != "" {
		if err := s.client.Set(ctx, ShareKey(rec.ShareToken), rec.Code, 0).Err(); err != nil {
			return fmt.Errorf("failed to index share token: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	rec, err := s.Get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if rec.ShareToken != "" {
		if err := s.client.Del(ctx, ShareKey(rec.ShareToken)).Err(); err != nil {
			return fmt.Errorf("failed to delete share index: %w", err)
		}
	}
	if err := s.client.Del(ctx, RecordKey(code)).Err(); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	if err := s.client.SRem(ctx, KeyAllRecords, code).Err(); err != nil {
		return fmt.Errorf("failed to unindex record: %w", err)
	}
	return nil
}

func (s *RedisStore) All(ctx context.Context) ([]*Record, error) {
	codes, err := s.client.SMembers(ctx, KeyAllRecords).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list record codes: %w", err)
	}

	recs := make([]*Record, 0, len(codes))
	for _, code := range codes {
		rec, err := s.Get(ctx, code)
		if errors.Is(err, ErrNotFound) {
			// The set can lag behind deletions.
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *RedisStore) CodeForShareToken(ctx context.Context, token string) (string, error) {
	code, err := s.client.Get(ctx, ShareKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to resolve share token: %w", err)
	}
	return code, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op; the client belongs to the caller.
func (s *RedisStore) Close() error {
	return nil
}
