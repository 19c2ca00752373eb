package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		idempotency_key VARCHAR(64) NULL,
		total_amount BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL,
		payment_id VARCHAR(36) NOT NULL DEFAULT '',
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_orders_user_idem (user_id, idempotency_key),
		KEY idx_orders_user (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id VARCHAR(36) NOT NULL,
		product_id VARCHAR(64) NOT NULL,
		quantity INT NOT NULL,
		unit_price BIGINT NOT NULL,
		display_name VARCHAR(255) NOT NULL DEFAULT '',
		PRIMARY KEY (order_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id VARCHAR(36) PRIMARY KEY,
		order_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(64) NOT NULL,
		amount BIGINT NOT NULL,
		method VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL,
		transaction_id VARCHAR(36) NOT NULL,
		processed_at DATETIME(6) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		UNIQUE KEY uq_payments_order (order_id)
	)`,
}

// EnsureSchema creates the tables when they are missing. Idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
