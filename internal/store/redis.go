package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront-service/internal/domain"
)

// maxTxAttempts bounds how often an optimistic cart update is re-run after
// another writer touched the same cart.
const maxTxAttempts = 16

// RedisCartStore implements CartStorer with one JSON value per cart. Keys
// expire after ttl, matching the lifetime of the session cookie; every read
// and write extends it.
type RedisCartStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCartStore creates a cart store on top of rdb.
func NewRedisCartStore(rdb *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{rdb: rdb, ttl: ttl}
}

func (s *RedisCartStore) Key(id string) string {
	return fmt.Sprintf("storefront:cart:%s", id)
}

func (s *RedisCartStore) CreateCart(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	doc, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("store: CreateCart failed to encode cart: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.Key(cart.ID), doc, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("store: CreateCart failed: %w", err)
	}
	if !ok {
		return nil, ErrCartExists
	}
	return cart.Clone(), nil
}

// GetCart reads the cart and resets its expiry, since the session cookie is
// reissued on every read.
func (s *RedisCartStore) GetCart(ctx context.Context, id string) (*domain.Cart, error) {
	doc, err := s.rdb.GetEx(ctx, s.Key(id), s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("store: GetCart failed: %w", err)
	}
	return decodeCart(doc)
}

// UpdateCart watches the cart key, applies fn and writes the result in a
// MULTI/EXEC block. If the key changed in between, EXEC aborts and the whole
// read-modify-write runs again on the fresh value.
func (s *RedisCartStore) UpdateCart(ctx context.Context, id string, fn func(cart *domain.Cart) error) (*domain.Cart, error) {
	key := s.Key(id)
	var result *domain.Cart

	txf := func(tx *redis.Tx) error {
		doc, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrCartNotFound
			}
			return fmt.Errorf("store: UpdateCart failed to read cart: %w", err)
		}
		cart, err := decodeCart(doc)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}
		updated, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("store: UpdateCart failed to encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		result = cart
		return nil
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("store: UpdateCart for %s kept conflicting after %d attempts", id, maxTxAttempts)
}

func (s *RedisCartStore) DeleteCart(ctx context.Context, id string) error {
	n, err := s.rdb.Del(ctx, s.Key(id)).Result()
	if err != nil {
		return fmt.Errorf("store: DeleteCart failed: %w", err)
	}
	if n == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (s *RedisCartStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisCartStore) Close() error {
	return s.rdb.Close()
}
