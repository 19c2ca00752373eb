package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	domain "github.com/minimart/storefront/internal/domain/order"
)

const mysqlErrDuplicateEntry = 1062

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, idempotency_key, total_amount, status, payment_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, nullable(o.IdempotencyKey), o.TotalAmount, o.Status, o.PaymentID,
		o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range o.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, unit_price, display_name)
			VALUES (?, ?, ?, ?, ?)`,
			o.ID, line.ProductID, line.Quantity, line.UnitPrice, line.DisplayName,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	return tx.Commit()
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := r.scanOrder(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, COALESCE(idempotency_key, ''), total_amount, status, payment_id, created_at, updated_at
		FROM orders WHERE id = ?`, id,
	))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(idempotency_key, ''), total_amount, status, payment_id, created_at, updated_at
		FROM orders WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.IdempotencyKey, &o.TotalAmount, &o.Status, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, o := range out {
		if err := r.loadLines(ctx, o); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *OrderRepository) FindByIdempotency(ctx context.Context, userID, key string) (*domain.Order, error) {
	if key == "" {
		return nil, domain.ErrNotFound
	}
	o, err := r.scanOrder(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, COALESCE(idempotency_key, ''), total_amount, status, payment_id, created_at, updated_at
		FROM orders WHERE user_id = ? AND idempotency_key = ?`, userID, key,
	))
	if err != nil {
		return nil, err
	}
	if err := r.loadLines(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Transition performs the conditional status update: the WHERE clause
// pins the expected pre-state, so a lost race shows up as zero affected
// rows instead of a silent overwrite.
func (r *OrderRepository) Transition(ctx context.Context, id string, from, to domain.Status, paymentID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = ?, payment_id = IF(? = '', payment_id, ?), updated_at = ?
		WHERE id = ? AND status = ?`,
		to, paymentID, paymentID, time.Now().UTC(), id, from,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var current string
		err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("query order status: %w", err)
		}
		return domain.ErrInvalidState
	}
	return nil
}

func (r *OrderRepository) scanOrder(row *sql.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.IdempotencyKey, &o.TotalAmount, &o.Status, &o.PaymentID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) loadLines(ctx context.Context, o *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, display_name
		FROM order_items WHERE order_id = ?`, o.ID,
	)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.Line
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitPrice, &line.DisplayName); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Lines = append(o.Lines, line)
	}
	return rows.Err()
}

func isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlErrDuplicateEntry
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
