package sqlite

import (
	"context"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"apotekpos/backend/internal/store/sqlstore"
)

// Timestamps are stored as fixed-width UTC text and expiry as YYYY-MM-DD.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS medicines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		cost_price INTEGER NOT NULL CHECK (cost_price >= 0),
		sale_price INTEGER NOT NULL,
		stock INTEGER NOT NULL CHECK (stock >= 0),
		min_stock INTEGER NOT NULL DEFAULT 0,
		expiry_date TEXT NOT NULL,
		batch TEXT NOT NULL DEFAULT '',
		barcode TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK (sale_price >= cost_price)
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_number TEXT NOT NULL UNIQUE,
		cashier_id TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		total INTEGER NOT NULL CHECK (total >= 0),
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sale_lines (
		sale_id INTEGER NOT NULL REFERENCES sales(id),
		line_no INTEGER NOT NULL,
		medicine_id INTEGER NOT NULL REFERENCES medicines(id),
		qty INTEGER NOT NULL CHECK (qty > 0),
		unit_price INTEGER NOT NULL CHECK (unit_price >= 0),
		subtotal INTEGER NOT NULL,
		PRIMARY KEY (sale_id, line_no)
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		medicine_id INTEGER NOT NULL REFERENCES medicines(id),
		direction TEXT NOT NULL CHECK (direction IN ('in', 'out')),
		qty INTEGER NOT NULL CHECK (qty > 0),
		reason TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		actor_username TEXT NOT NULL DEFAULT '',
		sale_id INTEGER REFERENCES sales(id),
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		username TEXT PRIMARY KEY,
		password TEXT NOT NULL,
		role TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_cashier ON sales (cashier_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_stock_movements_medicine ON stock_movements (medicine_id, id)`,
}

// Dialect has no row lock clause: the pool holds a single connection, so
// units run one after another.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:              "sqlite",
		Schema:            schema,
		IsUniqueViolation: isUniqueViolation,
		Time:              sqlstore.TextTime,
		Date:              sqlstore.TextDate,
	}
}

// New opens (or creates) the database file at path and applies the schema.
func New(ctx context.Context, path string) (*sqlstore.Store, error) {
	db, err := sqlx.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
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

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	// Without extended result codes only the message tells the constraints apart.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
