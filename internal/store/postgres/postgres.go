package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"apotekpos/backend/internal/store/sqlstore"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS medicines (
		id BIGSERIAL PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		cost_price BIGINT NOT NULL CHECK (cost_price >= 0),
		sale_price BIGINT NOT NULL,
		stock INTEGER NOT NULL CHECK (stock >= 0),
		min_stock INTEGER NOT NULL DEFAULT 0,
		expiry_date DATE NOT NULL,
		batch TEXT NOT NULL DEFAULT '',
		barcode TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (sale_price >= cost_price)
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id BIGSERIAL PRIMARY KEY,
		transaction_number TEXT NOT NULL UNIQUE,
		cashier_id TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		total BIGINT NOT NULL CHECK (total >= 0),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sale_lines (
		sale_id BIGINT NOT NULL REFERENCES sales(id),
		line_no INTEGER NOT NULL,
		medicine_id BIGINT NOT NULL REFERENCES medicines(id),
		qty INTEGER NOT NULL CHECK (qty > 0),
		unit_price BIGINT NOT NULL CHECK (unit_price >= 0),
		subtotal BIGINT NOT NULL,
		PRIMARY KEY (sale_id, line_no)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id BIGSERIAL PRIMARY KEY,
		medicine_id BIGINT NOT NULL REFERENCES medicines(id),
		direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
		qty INTEGER NOT NULL CHECK (qty > 0),
		reason TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		actor_username TEXT NOT NULL DEFAULT '',
		sale_id BIGINT REFERENCES sales(id),
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_cashier ON sales (cashier_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_medicine ON stock_movements (medicine_id, id)`,
}

// Dialect locks medicine rows with SELECT ... FOR UPDATE inside each unit.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:              "postgres",
		LockClause:        " FOR UPDATE",
		Schema:            schema,
		IsUniqueViolation: isUniqueViolation,
		Time:              func(t time.Time) any { return t.UTC() },
		Date: func(t time.Time) any {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		},
	}
}

func New(ctx context.Context, databaseURL string) (*sqlstore.Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := sqlstore.New(db, Dialect())
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
