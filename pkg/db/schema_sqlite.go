package db

import (
	"context"
	"fmt"
)

// SQLite has no enum types, gen_random_uuid or jsonb, so local runs and tests
// use this schema instead of the goose migrations. Repositories assign ids
// and decimals are stored as text.
const ordersTable = `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal TEXT NOT NULL,
  delivery_fee TEXT NOT NULL,
  total TEXT NOT NULL,
  currency TEXT NOT NULL DEFAULT 'NGN',
  payment_reference TEXT NOT NULL UNIQUE,
  customer_email TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  shipped_at DATETIME,
  delivered_at DATETIME
);`

const transactionsTable = `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  gateway_transaction_id INTEGER NOT NULL,
  kind TEXT NOT NULL,
  payment_reference TEXT NOT NULL,
  amount TEXT NOT NULL,
  amount_in_kobo INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  channel TEXT,
  card_type TEXT,
  bank TEXT,
  last4 TEXT,
  fees TEXT NOT NULL DEFAULT '0',
  fees_breakdown TEXT,
  customer_email TEXT,
  customer_phone TEXT,
  customer_name TEXT,
  metadata TEXT,
  gateway_response TEXT,
  ip_address TEXT,
  paid_at DATETIME,
  failed_at DATETIME,
  refunded_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_transactions_gateway_kind ON transactions (gateway_transaction_id, kind);`

const outboxTable = `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`

// SQLiteSchema lists the statements that create the payment tables.
var SQLiteSchema = []string{ordersTable, transactionsTable, outboxTable}

// EnsureSQLiteSchema creates the payment tables on a sqlite connection.
func (c *Client) EnsureSQLiteSchema(ctx context.Context) error {
	if c.Dialect() != DriverSQLite {
		return fmt.Errorf("sqlite schema requested on %s connection", c.Dialect())
	}
	for _, stmt := range SQLiteSchema {
		if err := c.conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
