package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"storefront-service/internal/domain"
)

// Schema creates the carts table. Each cart is one JSONB document; the
// timestamps are duplicated in columns for housekeeping queries.
const Schema = `
		CREATE SCHEMA IF NOT EXISTS storefront;
		CREATE TABLE IF NOT EXISTS storefront.carts (
			id         TEXT PRIMARY KEY,
			document   JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS carts_updated_at_idx ON storefront.carts (updated_at);
	`

// PostgresCartStore implements the CartStorer interface using PostgreSQL.
type PostgresCartStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPostgresCartStore creates a new PostgresCartStore instance.
func NewPostgresCartStore(db *sql.DB, logger *zap.Logger) *PostgresCartStore {
	return &PostgresCartStore{db: db, logger: logger}
}

// EnsureSchema creates the carts table if it does not exist.
func (s *PostgresCartStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("store: EnsureSchema failed: %w", err)
	}
	return nil
}

func (s *PostgresCartStore) CreateCart(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	query := `
		INSERT INTO storefront.carts (id, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4);
	`
	doc, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("store: CreateCart failed to encode cart: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, cart.ID, doc, cart.CreatedAt, cart.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // Unique violation
			if strings.Contains(pqErr.Constraint, "carts_pkey") || strings.Contains(pqErr.Detail, "Key (id)") {
				return nil, ErrCartExists
			}
		}
		return nil, fmt.Errorf("store: CreateCart failed to insert cart: %w", err)
	}
	return cart.Clone(), nil
}

func (s *PostgresCartStore) GetCart(ctx context.Context, id string) (*domain.Cart, error) {
	query := `
		SELECT document
		FROM storefront.carts
		WHERE id = $1;
	`
	var doc []byte
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("store: GetCart failed to scan row: %w", err)
	}
	return decodeCart(doc)
}

// UpdateCart locks the cart row for the duration of fn, so concurrent updates
// of one cart queue up behind each other in the database.
func (s *PostgresCartStore) UpdateCart(ctx context.Context, id string, fn func(cart *domain.Cart) error) (*domain.Cart, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: UpdateCart failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.logger.Warn("cart update rollback failed", zap.String("cart_id", id), zap.Error(err))
		}
	}()

	selectQuery := `
		SELECT document
		FROM storefront.carts
		WHERE id = $1
		FOR UPDATE;
	`
	var doc []byte
	if err := tx.QueryRowContext(ctx, selectQuery, id).Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("store: UpdateCart failed to lock cart: %w", err)
	}

	cart, err := decodeCart(doc)
	if err != nil {
		return nil, err
	}
	if err := fn(cart); err != nil {
		return nil, err
	}

	updated, err := json.Marshal(cart)
	if err != nil {
		return nil, fmt.Errorf("store: UpdateCart failed to encode cart: %w", err)
	}

	updateQuery := `
		UPDATE storefront.carts
		SET document = $1, updated_at = $2
		WHERE id = $3;
	`
	if _, err := tx.ExecContext(ctx, updateQuery, updated, cart.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("store: UpdateCart failed to write cart: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: UpdateCart failed to commit: %w", err)
	}
	return cart, nil
}

func (s *PostgresCartStore) DeleteCart(ctx context.Context, id string) error {
	query := `DELETE FROM storefront.carts WHERE id = $1;`
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("store: DeleteCart failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteCart failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (s *PostgresCartStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresCartStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Info("Closing database connection pool")
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database connection pool", zap.Error(err))
		return err
	}
	return nil
}

func decodeCart(doc []byte) (*domain.Cart, error) {
	var cart domain.Cart
	if err := json.Unmarshal(doc, &cart); err != nil {
		return nil, fmt.Errorf("store: failed to decode cart document: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItem{}
	}
	return &cart, nil
}
