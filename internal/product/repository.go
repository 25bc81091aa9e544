package product

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository resolves listings owned by the product store.
type Repository interface {
	FindByID(ctx context.Context, id string) (Reference, error)
}

// PostgresRepository reads listings from PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindByID fetches the current price and owner of a listing.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Reference, error) {
	row := r.db.QueryRow(ctx, `SELECT id, price, user_id FROM products WHERE id = $1`, id)
	var ref Reference
	if err := row.Scan(&ref.ID, &ref.Price, &ref.OwnerID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reference{}, fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return Reference{}, err
	}
	return ref, nil
}
