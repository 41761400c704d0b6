package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

// Dialect carries what differs between the SQL engines the repository runs on.
type Dialect struct {
	Name string
	// LockClause is appended to the medicine row read inside a unit, e.g. " FOR UPDATE".
	LockClause string
	Schema     []string

	IsUniqueViolation func(error) bool
	// Time and Date turn Go values into query parameters for timestamp and date columns.
	Time func(time.Time) any
	Date func(time.Time) any
}

type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

func New(db *sqlx.DB, dialect Dialect) *Store {
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	if dialect.Time == nil {
		dialect.Time = func(t time.Time) any { return t.UTC() }
	}
	if dialect.Date == nil {
		dialect.Date = func(t time.Time) any { return dateOnly(t) }
	}
	return &Store{db: db, dialect: dialect}
}

func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", s.dialect.Name, err)
		}
	}
	return nil
}

const medicineColumns = `id, code, name, category, cost_price, sale_price, stock, min_stock,
	expiry_date, batch, barcode, created_at, updated_at`

type medicineRow struct {
	ID         int64          `db:"id"`
	Code       string         `db:"code"`
	Name       string         `db:"name"`
	Category   string         `db:"category"`
	CostPrice  int64          `db:"cost_price"`
	SalePrice  int64          `db:"sale_price"`
	Stock      int            `db:"stock"`
	MinStock   int            `db:"min_stock"`
	ExpiryDate dbTime         `db:"expiry_date"`
	Batch      string         `db:"batch"`
	Barcode    sql.NullString `db:"barcode"`
	CreatedAt  dbTime         `db:"created_at"`
	UpdatedAt  dbTime         `db:"updated_at"`
}

func (r medicineRow) toDomain() domain.Medicine {
	return domain.Medicine{
		ID:         r.ID,
		Code:       r.Code,
		Name:       r.Name,
		Category:   r.Category,
		CostPrice:  r.CostPrice,
		SalePrice:  r.SalePrice,
		Stock:      r.Stock,
		MinStock:   r.MinStock,
		ExpiryDate: r.ExpiryDate.Time,
		Batch:      r.Batch,
		Barcode:    r.Barcode.String,
		CreatedAt:  r.CreatedAt.Time,
		UpdatedAt:  r.UpdatedAt.Time,
	}
}

type saleRow struct {
	ID                int64  `db:"id"`
	TransactionNumber string `db:"transaction_number"`
	CashierID         string `db:"cashier_id"`
	PaymentMethod     string `db:"payment_method"`
	Total             int64  `db:"total"`
	ItemCount         int    `db:"item_count"`
	CreatedAt         dbTime `db:"created_at"`
}

type saleLineRow struct {
	LineNo       int    `db:"line_no"`
	MedicineID   int64  `db:"medicine_id"`
	MedicineName string `db:"medicine_name"`
	Qty          int    `db:"qty"`
	UnitPrice    int64  `db:"unit_price"`
	Subtotal     int64  `db:"subtotal"`
}

type movementRow struct {
	ID            int64         `db:"id"`
	MedicineID    int64         `db:"medicine_id"`
	Direction     string        `db:"direction"`
	Qty           int           `db:"qty"`
	Reason        string        `db:"reason"`
	Note          string        `db:"note"`
	ActorUsername string        `db:"actor_username"`
	SaleID        sql.NullInt64 `db:"sale_id"`
	CreatedAt     dbTime        `db:"created_at"`
}

func (r movementRow) toDomain() domain.StockMovement {
	return domain.StockMovement{
		ID:            r.ID,
		MedicineID:    r.MedicineID,
		Direction:     r.Direction,
		Qty:           r.Qty,
		Reason:        r.Reason,
		Note:          r.Note,
		ActorUsername: r.ActorUsername,
		SaleID:        r.SaleID.Int64,
		CreatedAt:     r.CreatedAt.Time,
	}
}

type userRow struct {
	Username  string `db:"username"`
	Password  string `db:"password"`
	Role      string `db:"role"`
	Active    bool   `db:"active"`
	CreatedAt dbTime `db:"created_at"`
}

func (s *Store) CreateMedicine(ctx context.Context, med domain.Medicine, actor string) (*domain.Medicine, error) {
	if err := store.ValidateMedicine(med); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO medicines (code, name, category, cost_price, sale_price, stock, min_stock,
			expiry_date, batch, barcode, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
		RETURNING id
	`), med.Code, med.Name, med.Category, med.CostPrice, med.SalePrice, med.Stock, med.MinStock,
		s.dialect.Date(med.ExpiryDate), med.Batch, nullIfEmpty(med.Barcode), s.dialect.Time(now), s.dialect.Time(now)).Scan(&med.ID)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: medicine code %s already exists", store.ErrInvalidArgument, med.Code)
		}
		return nil, err
	}

	if med.Stock > 0 {
		if _, err := s.insertMovement(ctx, tx, domain.StockMovement{
			MedicineID:    med.ID,
			Direction:     domain.DirectionIn,
			Qty:           med.Stock,
			Reason:        domain.ReasonOpening,
			Note:          "initial stock",
			ActorUsername: actor,
			CreatedAt:     now,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	med.ExpiryDate = dateOnly(med.ExpiryDate)
	med.CreatedAt = now
	med.UpdatedAt = now
	return &med, nil
}

func (s *Store) GetMedicine(ctx context.Context, id int64) (*domain.Medicine, error) {
	var row medicineRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+medicineColumns+` FROM medicines WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	med := row.toDomain()
	return &med, nil
}

func (s *Store) ListMedicines(ctx context.Context, filter domain.MedicineFilter) ([]domain.Medicine, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(code) LIKE ?)")
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		where = append(where, "LOWER(category) = LOWER(?)")
		args = append(args, category)
	}
	if filter.LowStockOnly {
		where = append(where, "stock <= min_stock")
	}

	query := `SELECT ` + medicineColumns + ` FROM medicines`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name ASC`

	var rows []medicineRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	meds := make([]domain.Medicine, 0, len(rows))
	for _, row := range rows {
		meds = append(meds, row.toDomain())
	}
	return meds, nil
}

func (s *Store) CommitSale(ctx context.Context, sale domain.Sale, opts store.CommitOptions) (*domain.Sale, error) {
	if err := store.ValidateSale(sale); err != nil {
		return nil, err
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := sqlx.In(`SELECT `+medicineColumns+` FROM medicines WHERE id IN (?) ORDER BY id ASC`+s.dialect.LockClause, store.SortedMedicineIDs(sale.Lines))
	if err != nil {
		return nil, err
	}
	var rows []medicineRow
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
		return nil, err
	}
	locked := make(map[int64]domain.Medicine, len(rows))
	for _, row := range rows {
		locked[row.ID] = row.toDomain()
	}

	if err := store.CheckLines(sale.Lines, locked, opts); err != nil {
		return nil, err
	}

	err = tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO sales (transaction_number, cashier_id, payment_method, total, created_at)
		VALUES (?,?,?,?,?)
		RETURNING id
	`), sale.TransactionNumber, sale.CashierID, sale.PaymentMethod, sale.Total, s.dialect.Time(opts.Now)).Scan(&sale.ID)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return nil, store.ErrDuplicateTransactionNumber
		}
		return nil, err
	}

	lines := make([]domain.SaleLine, len(sale.Lines))
	for i, line := range sale.Lines {
		line.LineNo = i + 1
		line.MedicineName = locked[line.MedicineID].Name

		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO sale_lines (sale_id, line_no, medicine_id, qty, unit_price, subtotal)
			VALUES (?,?,?,?,?,?)
		`), sale.ID, line.LineNo, line.MedicineID, line.Qty, line.UnitPrice, line.Subtotal); err != nil {
			return nil, err
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE medicines
			SET stock = stock - ?, updated_at = ?
			WHERE id = ? AND stock >= ?
		`), line.Qty, s.dialect.Time(opts.Now), line.MedicineID, line.Qty)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, &store.LineError{Index: i, MedicineID: line.MedicineID, MedicineName: line.MedicineName, Err: store.ErrInsufficientStock}
		}

		if _, err := s.insertMovement(ctx, tx, domain.StockMovement{
			MedicineID:    line.MedicineID,
			Direction:     domain.DirectionOut,
			Qty:           line.Qty,
			Reason:        domain.ReasonSale,
			Note:          sale.TransactionNumber,
			ActorUsername: sale.CashierID,
			SaleID:        sale.ID,
			CreatedAt:     opts.Now,
		}); err != nil {
			return nil, err
		}
		lines[i] = line
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sale.Lines = lines
	sale.CreatedAt = opts.Now.UTC()
	return &sale, nil
}

func (s *Store) FindSaleByID(ctx context.Context, id int64) (*domain.Sale, error) {
	var header saleRow
	err := s.db.GetContext(ctx, &header, s.db.Rebind(`
		SELECT id, transaction_number, cashier_id, payment_method, total, 0 AS item_count, created_at
		FROM sales
		WHERE id = ?
	`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var lineRows []saleLineRow
	if err := s.db.SelectContext(ctx, &lineRows, s.db.Rebind(`
		SELECT l.line_no, l.medicine_id, m.name AS medicine_name, l.qty, l.unit_price, l.subtotal
		FROM sale_lines l
		JOIN medicines m ON m.id = l.medicine_id
		WHERE l.sale_id = ?
		ORDER BY l.line_no ASC
	`), id); err != nil {
		return nil, err
	}

	sale := &domain.Sale{
		ID:                header.ID,
		TransactionNumber: header.TransactionNumber,
		CashierID:         header.CashierID,
		PaymentMethod:     header.PaymentMethod,
		Total:             header.Total,
		CreatedAt:         header.CreatedAt.Time,
		Lines:             make([]domain.SaleLine, 0, len(lineRows)),
	}
	for _, row := range lineRows {
		sale.Lines = append(sale.Lines, domain.SaleLine{
			LineNo:       row.LineNo,
			MedicineID:   row.MedicineID,
			MedicineName: row.MedicineName,
			Qty:          row.Qty,
			UnitPrice:    row.UnitPrice,
			Subtotal:     row.Subtotal,
		})
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.SaleSummary, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if !filter.From.IsZero() {
		where = append(where, "s.created_at >= ?")
		args = append(args, s.dialect.Time(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "s.created_at < ?")
		args = append(args, s.dialect.Time(filter.To))
	}
	if filter.CashierID != "" {
		where = append(where, "s.cashier_id = ?")
		args = append(args, filter.CashierID)
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	query := `
		SELECT s.id, s.transaction_number, s.cashier_id, s.payment_method, s.total,
			COALESCE(SUM(l.qty), 0) AS item_count, s.created_at
		FROM sales s
		LEFT JOIN sale_lines l ON l.sale_id = s.id`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += `
		GROUP BY s.id, s.transaction_number, s.cashier_id, s.payment_method, s.total, s.created_at
		ORDER BY s.id DESC
		LIMIT ?`
	args = append(args, limit)

	var rows []saleRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	summaries := make([]domain.SaleSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, domain.SaleSummary{
			ID:                row.ID,
			TransactionNumber: row.TransactionNumber,
			CashierID:         row.CashierID,
			PaymentMethod:     row.PaymentMethod,
			Total:             row.Total,
			ItemCount:         row.ItemCount,
			CreatedAt:         row.CreatedAt.Time,
		})
	}
	return summaries, nil
}

func (s *Store) AdjustStock(ctx context.Context, adj domain.StockAdjustment) (*domain.StockMovement, int, error) {
	if err := store.ValidateAdjustment(adj); err != nil {
		return nil, 0, err
	}
	if adj.At.IsZero() {
		adj.At = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var stock int
	err = tx.QueryRowxContext(ctx, tx.Rebind(`SELECT stock FROM medicines WHERE id = ?`+s.dialect.LockClause), adj.MedicineID).Scan(&stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, store.ErrNotFound
		}
		return nil, 0, err
	}

	delta := adj.Qty
	if adj.Direction == domain.DirectionOut {
		if stock < adj.Qty {
			return nil, 0, store.ErrInsufficientStock
		}
		delta = -adj.Qty
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE medicines SET stock = stock + ?, updated_at = ? WHERE id = ?
	`), delta, s.dialect.Time(adj.At), adj.MedicineID); err != nil {
		return nil, 0, err
	}

	movement, err := s.insertMovement(ctx, tx, domain.StockMovement{
		MedicineID:    adj.MedicineID,
		Direction:     adj.Direction,
		Qty:           adj.Qty,
		Reason:        adj.Reason,
		Note:          adj.Note,
		ActorUsername: adj.ActorUsername,
		CreatedAt:     adj.At,
	})
	if err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(); err != nil {
		return nil, 0, err
	}
	return movement, stock + delta, nil
}

func (s *Store) ListStockMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if filter.MedicineID != 0 {
		where = append(where, "medicine_id = ?")
		args = append(args, filter.MedicineID)
	}
	if !filter.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, s.dialect.Time(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, s.dialect.Time(filter.To))
	}

	query := `
		SELECT id, medicine_id, direction, qty, reason, note, actor_username, sale_id, created_at
		FROM stock_movements`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []movementRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	movements := make([]domain.StockMovement, 0, len(rows))
	for _, row := range rows {
		movements = append(movements, row.toDomain())
	}
	return movements, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidArgument
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO users (username, password, role, active, created_at)
		VALUES (?,?,?,?,?)
	`), user.Username, user.Password, user.Role, user.Active, s.dialect.Time(user.CreatedAt))
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return store.ErrInvalidArgument
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username ASC
	`); err != nil {
		return nil, err
	}
	users := make([]domain.UserAccount, 0, len(rows))
	for _, row := range rows {
		users = append(users, domain.UserAccount{
			Username:  row.Username,
			Password:  row.Password,
			Role:      row.Role,
			Active:    row.Active,
			CreatedAt: row.CreatedAt.Time,
		})
	}
	return users, nil
}

func (s *Store) FindUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`
		SELECT username, password, role, active, created_at
		FROM users
		WHERE username = ?
	`), strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &domain.UserAccount{
		Username:  row.Username,
		Password:  row.Password,
		Role:      row.Role,
		Active:    row.Active,
		CreatedAt: row.CreatedAt.Time,
	}, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidArgument
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET password = ? WHERE username = ?`), password, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) insertMovement(ctx context.Context, tx *sqlx.Tx, mv domain.StockMovement) (*domain.StockMovement, error) {
	var saleID any
	if mv.SaleID != 0 {
		saleID = mv.SaleID
	}
	err := tx.QueryRowxContext(ctx, tx.Rebind(`
		INSERT INTO stock_movements (medicine_id, direction, qty, reason, note, actor_username, sale_id, created_at)
		VALUES (?,?,?,?,?,?,?,?)
		RETURNING id
	`), mv.MedicineID, mv.Direction, mv.Qty, mv.Reason, mv.Note, mv.ActorUsername, saleID, s.dialect.Time(mv.CreatedAt)).Scan(&mv.ID)
	if err != nil {
		return nil, err
	}
	mv.CreatedAt = mv.CreatedAt.UTC()
	return &mv, nil
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
