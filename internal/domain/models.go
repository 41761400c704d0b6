package domain

import "time"

type Medicine struct {
	ID         int64     `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	CostPrice  int64     `json:"cost_price"`
	SalePrice  int64     `json:"sale_price"`
	Stock      int       `json:"stock"`
	MinStock   int       `json:"min_stock"`
	ExpiryDate time.Time `json:"expiry_date"`
	Batch      string    `json:"batch"`
	Barcode    string    `json:"barcode,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ExpiredAt reports whether the medicine may no longer be sold at t.
// An expiry equal to t counts as expired.
func (m Medicine) ExpiredAt(t time.Time) bool {
	return !m.ExpiryDate.After(t)
}

func (m Medicine) LowStock() bool {
	return m.Stock <= m.MinStock
}

type MedicineFilter struct {
	Search       string
	Category     string
	LowStockOnly bool
}

type SaleItem struct {
	MedicineID int64 `json:"medicine_id"`
	Qty        int   `json:"qty"`
	UnitPrice  int64 `json:"unit_price"`
}

// SaleRequest is a submitted cart. CashierID is optional; an admin may set it
// to record a sale for another cashier.
type SaleRequest struct {
	Items         []SaleItem `json:"items"`
	PaymentMethod string     `json:"payment_method"`
	CashierID     string     `json:"cashier_id,omitempty"`
}

type SaleReceipt struct {
	ID                int64  `json:"id"`
	TransactionNumber string `json:"transaction_number"`
	Total             int64  `json:"total"`
	ItemCount         int    `json:"item_count"`
	CreatedAt         string `json:"created_at"`
}

type SaleLine struct {
	LineNo       int    `json:"line_no"`
	MedicineID   int64  `json:"medicine_id"`
	MedicineName string `json:"medicine_name,omitempty"`
	Qty          int    `json:"qty"`
	UnitPrice    int64  `json:"unit_price"`
	Subtotal     int64  `json:"subtotal"`
}

type Sale struct {
	ID                int64      `json:"id"`
	TransactionNumber string     `json:"transaction_number"`
	CashierID         string     `json:"cashier_id"`
	PaymentMethod     string     `json:"payment_method"`
	Total             int64      `json:"total"`
	CreatedAt         time.Time  `json:"created_at"`
	Lines             []SaleLine `json:"lines"`
}

type SaleSummary struct {
	ID                int64     `json:"id"`
	TransactionNumber string    `json:"transaction_number"`
	CashierID         string    `json:"cashier_id"`
	PaymentMethod     string    `json:"payment_method"`
	Total             int64     `json:"total"`
	ItemCount         int       `json:"item_count"`
	CreatedAt         time.Time `json:"created_at"`
}

// SaleFilter bounds are half-open: From <= created_at < To. Zero values are unbounded.
type SaleFilter struct {
	From      time.Time
	To        time.Time
	CashierID string
	Limit     int
}

// SaleListQuery is the caller-facing form of SaleFilter. Dates are YYYY-MM-DD
// and both ends are inclusive.
type SaleListQuery struct {
	From      string
	To        string
	CashierID string
	Limit     int
}

type SaleListResponse struct {
	Sales []SaleSummary `json:"sales"`
}

type StockMovement struct {
	ID            int64     `json:"id"`
	MedicineID    int64     `json:"medicine_id"`
	Direction     string    `json:"direction"`
	Qty           int       `json:"qty"`
	Reason        string    `json:"reason"`
	Note          string    `json:"note,omitempty"`
	ActorUsername string    `json:"actor_username,omitempty"`
	SaleID        int64     `json:"sale_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type MovementFilter struct {
	MedicineID int64
	From       time.Time
	To         time.Time
	Limit      int
}

type StockInRequest struct {
	Qty  int    `json:"qty"`
	Note string `json:"note"`
}

type StockOutRequest struct {
	Qty    int    `json:"qty"`
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

// StockAdjustment is one manual change to a medicine's stock.
type StockAdjustment struct {
	MedicineID    int64
	Direction     string
	Qty           int
	Reason        string
	Note          string
	ActorUsername string
	At            time.Time
}

type StockAdjustmentResponse struct {
	Movement StockMovement `json:"movement"`
	Stock    int           `json:"stock"`
}

type MovementListResponse struct {
	Movements []StockMovement `json:"movements"`
}

type StockAtResponse struct {
	MedicineID int64  `json:"medicine_id"`
	At         string `json:"at"`
	Stock      int    `json:"stock"`
	Movements  int    `json:"movements"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// Cashier is the public view of a cashier account.
type Cashier struct {
	Username  string    `json:"username"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type CashierListResponse struct {
	Cashiers []Cashier `json:"cashiers"`
}

// MeResponse describes the caller behind a bearer token.
type MeResponse struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expires_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const (
	PaymentCash    = "tunai"
	PaymentDebit   = "debit"
	PaymentEwallet = "ewallet"
)

const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

const (
	ReasonOpening    = "opening"
	ReasonRestock    = "restock"
	ReasonSale       = "sale"
	ReasonDamaged    = "damaged"
	ReasonExpired    = "expired"
	ReasonAdjustment = "adjustment"
)

func IsPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentDebit, PaymentEwallet:
		return true
	default:
		return false
	}
}

// IsManualOutReason reports whether reason may be used for a manual stock-out.
// Sale movements are written only by the sale commit.
func IsManualOutReason(reason string) bool {
	switch reason {
	case ReasonDamaged, ReasonExpired, ReasonAdjustment:
		return true
	default:
		return false
	}
}

// NormalizeOutReason maps the Indonesian labels used at the counter onto the
// stored reason codes.
func NormalizeOutReason(reason string) string {
	switch reason {
	case "rusak":
		return ReasonDamaged
	case "kadaluarsa", "kedaluwarsa":
		return ReasonExpired
	case "penyesuaian":
		return ReasonAdjustment
	default:
		return reason
	}
}

// SaleTotal returns the sum of line subtotals.
func SaleTotal(lines []SaleLine) int64 {
	var total int64
	for _, line := range lines {
		total += line.Subtotal
	}
	return total
}

func ItemCount(lines []SaleLine) int {
	count := 0
	for _, line := range lines {
		count += line.Qty
	}
	return count
}
