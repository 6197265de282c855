package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	seller_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	quantity    INTEGER NOT NULL CHECK (quantity >= 0),
	category    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products (category);
CREATE INDEX IF NOT EXISTS idx_products_seller ON products (seller_id);

CREATE TABLE IF NOT EXISTS reservations (
	id         TEXT PRIMARY KEY,
	order_id   TEXT NOT NULL DEFAULT '',
	product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
	qty        INTEGER NOT NULL CHECK (qty > 0),
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE reservations ADD COLUMN IF NOT EXISTS order_id TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS idx_reservations_open ON reservations (status, created_at);
`

// Migrate creates the inventory tables if they are missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
