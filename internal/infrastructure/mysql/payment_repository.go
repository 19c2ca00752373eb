package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/minimart/storefront/internal/domain/payment"
)

type PaymentRepository struct {
	db *sql.DB
}

func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Insert relies on the unique order_id key for the one-payment-per-order
// invariant; a duplicate-entry rejection maps to ErrConflict.
func (r *PaymentRepository) Insert(ctx context.Context, p *domain.Payment) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, user_id, amount, method, status, transaction_id, processed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrderID, p.UserID, p.Amount, p.Method, p.Status, p.TransactionID,
		p.ProcessedAt, p.CreatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByOrder(ctx context.Context, orderID string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_id, user_id, amount, method, status, transaction_id, processed_at, created_at
		FROM payments WHERE order_id = ?`, orderID,
	).Scan(&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.Method, &p.Status, &p.TransactionID, &p.ProcessedAt, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment: %w", err)
	}
	return &p, nil
}
