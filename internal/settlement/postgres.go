package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAttempts stores purchase attempts in PostgreSQL.
type PostgresAttempts struct {
	db *pgxpool.Pool
}

// NewPostgresAttempts constructs a Postgres-backed attempt log.
func NewPostgresAttempts(db *pgxpool.Pool) *PostgresAttempts {
	return &PostgresAttempts{db: db}
}

// Record inserts an attempt row.
func (r *PostgresAttempts) Record(ctx context.Context, a Attempt) error {
	id, err := uuid.Parse(a.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO purchase_attempts
        (id, product_id, payer_id, payer_number, amount, status, provider_ref, failure, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, a.ProductID, a.PayerID, a.PayerNumber, a.Amount, a.Status, a.ProviderRef, a.Failure, a.CreatedAt.UTC())
	return err
}

// ListByProduct returns attempts for a product, newest first.
func (r *PostgresAttempts) ListByProduct(ctx context.Context, productID string) ([]Attempt, error) {
	rows, err := r.db.Query(ctx, `SELECT id, product_id, payer_id, payer_number, amount, status, provider_ref, failure, created_at
        FROM purchase_attempts WHERE product_id = $1 ORDER BY created_at DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Attempt, 0)
	for rows.Next() {
		var (
			a  Attempt
			id uuid.UUID
		)
		if err := rows.Scan(&id, &a.ProductID, &a.PayerID, &a.PayerNumber, &a.Amount, &a.Status, &a.ProviderRef, &a.Failure, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ID = id.String()
		a.CreatedAt = a.CreatedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}
