package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fire-team/ticket-router/internal/cache"
	"github.com/fire-team/ticket-router/internal/models"
)

// Entry is a stored response for one Idempotency-Key.
type Entry struct {
	RequestHash string          `json:"request_hash"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Backend is the subset of the cache the store needs.
type Backend interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
}

type Store struct {
	backend Backend
	ttl     time.Duration
}

func NewStore(backend Backend, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{backend: backend, ttl: ttl}
}

func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func cacheKey(scope, key string) string {
	return "idem:" + scope + ":" + key
}

// Lookup returns the stored entry for key, nil when there is none, or an error
// wrapping models.ErrConflict when the key was used with a different body.
func (s *Store) Lookup(ctx context.Context, scope, key, requestHash string) (*Entry, error) {
	var e Entry
	err := s.backend.Get(ctx, cacheKey(scope, key), &e)
	if errors.Is(err, cache.ErrMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if e.RequestHash != requestHash {
		return nil, fmt.Errorf("%w: idempotency key %q reused with a different request body", models.ErrConflict, key)
	}
	return &e, nil
}

// Save records the response. A concurrent save of the same key with another
// body loses with models.ErrConflict.
func (s *Store) Save(ctx context.Context, scope, key, requestHash string, status int, body []byte) error {
	e := Entry{
		RequestHash: requestHash,
		Status:      status,
		Body:        json.RawMessage(body),
		CreatedAt:   time.Now().UTC(),
	}
	ok, err := s.backend.SetNX(ctx, cacheKey(scope, key), e, s.ttl)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := s.Lookup(ctx, scope, key, requestHash); err != nil {
		return err
	}
	return s.backend.Set(ctx, cacheKey(scope, key), e, s.ttl)
}
