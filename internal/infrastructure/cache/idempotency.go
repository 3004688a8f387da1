package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"stockcore/internal/core/apperror"
)

const (
	idempotencyPrefix = "idem:"

	statePending  = "pending"
	stateComplete = "complete"

	defaultPendingTTL = 30 * time.Second
)

// StoredResponse is a replayable HTTP response.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body"`
}

type idempotencyRecord struct {
	State       string          `json:"state"`
	Fingerprint string          `json:"fingerprint"`
	Response    *StoredResponse `json:"response,omitempty"`
}

// IdempotencyStore remembers the first response for an idempotency key.
//
// Acquire claims a key with SET NX; the winner runs the request and calls
// Complete or Fail. Later callers either get the stored response replayed
// or a conflict while the first request is still running.
type IdempotencyStore struct {
	client     *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

// NewIdempotencyStore creates a store. ttl bounds how long completed
// responses are kept.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl, pendingTTL: defaultPendingTTL}
}

// WithPendingTTL overrides how long an in-flight claim blocks duplicates.
func (s *IdempotencyStore) WithPendingTTL(d time.Duration) *IdempotencyStore {
	s.pendingTTL = d
	return s
}

// Acquire claims key for a request with the given fingerprint. It returns
// the stored response when the key already completed, nil when the caller
// now owns the key, and an error when the key is in flight or was used for
// a different request.
func (s *IdempotencyStore) Acquire(ctx context.Context, key, fingerprint string) (*StoredResponse, error) {
	pending, err := json.Marshal(idempotencyRecord{State: statePending, Fingerprint: fingerprint})
	if err != nil {
		return nil, fmt.Errorf("marshal idempotency record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, pending, s.pendingTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}

	rec, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// Expired between SETNX and GET.
		return s.Acquire(ctx, key, fingerprint)
	}
	if rec.Fingerprint != fingerprint {
		return nil, apperror.NewIdempotencyMismatch(key)
	}
	if rec.State != stateComplete || rec.Response == nil {
		return nil, apperror.NewIdempotencyConflict(key)
	}
	return rec.Response, nil
}

// Complete stores resp as the outcome for key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, fingerprint string, resp StoredResponse) error {
	raw, err := json.Marshal(idempotencyRecord{State: stateComplete, Fingerprint: fingerprint, Response: &resp})
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, idempotencyPrefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store idempotent response: %w", err)
	}
	return nil
}

// Fail releases key so the request can be retried.
func (s *IdempotencyStore) Fail(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, idempotencyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) load(ctx context.Context, key string) (*idempotencyRecord, error) {
	raw, err := s.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}
	var rec idempotencyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}
