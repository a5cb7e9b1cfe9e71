package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// Tokens is the credential pair the Graph client authenticates with
type Tokens struct {
	UserToken string `json:"user_token"`
	PageToken string `json:"page_token"`
}

// TokenHolder is the single place the current tokens live. Readers always
// see a complete pair; Swap replaces it atomically.
type TokenHolder struct {
	current atomic.Pointer[Tokens]
	store   TokenStore
}

// TokenStore persists tokens across restarts
type TokenStore interface {
	Load(ctx context.Context) (*Tokens, error)
	Save(ctx context.Context, t Tokens) error
}

// NewTokenHolder seeds the holder with initial tokens. store may be nil.
func NewTokenHolder(initial Tokens, store TokenStore) *TokenHolder {
	h := &TokenHolder{store: store}
	h.current.Store(&initial)
	return h
}

// Get returns the current tokens
func (h *TokenHolder) Get() Tokens {
	return *h.current.Load()
}

// Swap installs new tokens and persists them when a store is configured.
// The in-memory swap happens even if persisting fails.
func (h *TokenHolder) Swap(ctx context.Context, t Tokens) error {
	h.current.Store(&t)
	if h.store == nil {
		return nil
	}
	if err := h.store.Save(ctx, t); err != nil {
		return fmt.Errorf("failed to persist social tokens: %w", err)
	}
	return nil
}

// Restore replaces the seeded tokens with the persisted ones, if any
func (h *TokenHolder) Restore(ctx context.Context) (bool, error) {
	if h.store == nil {
		return false, nil
	}
	t, err := h.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if t == nil || t.UserToken == "" {
		return false, nil
	}
	h.current.Store(t)
	return true, nil
}

// RedisTokenStore keeps the tokens under one key
type RedisTokenStore struct {
	client *redis.Client
	key    string
}

// NewRedisTokenStore creates a Redis backed token store
func NewRedisTokenStore(client *redis.Client, key string) *RedisTokenStore {
	if key == "" {
		key = "propertyhub:social:tokens"
	}
	return &RedisTokenStore{client: client, key: key}
}

// Load returns nil when nothing was saved yet
func (s *RedisTokenStore) Load(ctx context.Context) (*Tokens, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read social tokens: %w", err)
	}
	var t Tokens
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to decode social tokens: %w", err)
	}
	return &t, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, t Tokens) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, raw, 0).Err()
}
