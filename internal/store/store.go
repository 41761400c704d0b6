package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"apotekpos/backend/internal/domain"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrExpired           = errors.New("medicine expired")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInternal          = errors.New("internal error")

	// ErrDuplicateTransactionNumber is returned when a sale collides with the
	// unique transaction number constraint. Nothing from that unit was kept.
	ErrDuplicateTransactionNumber = errors.New("duplicate transaction number")
)

// LineError reports the first cart line that failed, so the caller can correct
// that line and resubmit.
type LineError struct {
	Index        int
	MedicineID   int64
	MedicineName string
	Err          error
}

func (e *LineError) Error() string {
	if e.MedicineName != "" {
		return fmt.Sprintf("item %d (%s, id %d): %v", e.Index+1, e.MedicineName, e.MedicineID, e.Err)
	}
	return fmt.Sprintf("item %d (medicine %d): %v", e.Index+1, e.MedicineID, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// CommitOptions controls validation inside a sale unit.
type CommitOptions struct {
	// Now is the validation instant used for the expiry gate and as the sale timestamp.
	Now time.Time
	// EnforceCatalogPrice rejects lines whose unit price differs from the catalog sale price.
	EnforceCatalogPrice bool
}

type Repository interface {
	CreateMedicine(ctx context.Context, medicine domain.Medicine, actor string) (*domain.Medicine, error)
	GetMedicine(ctx context.Context, id int64) (*domain.Medicine, error)
	ListMedicines(ctx context.Context, filter domain.MedicineFilter) ([]domain.Medicine, error)

	// CommitSale runs one atomic unit: it locks the referenced medicines in
	// ascending id order, validates every line, and writes the header, lines,
	// stock decrements and ledger entries. On error nothing is kept.
	CommitSale(ctx context.Context, sale domain.Sale, opts CommitOptions) (*domain.Sale, error)
	FindSaleByID(ctx context.Context, id int64) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.SaleSummary, error)

	// AdjustStock applies a manual stock-in or stock-out and appends its
	// ledger entry in the same unit. It returns the movement and the new stock.
	AdjustStock(ctx context.Context, adj domain.StockAdjustment) (*domain.StockMovement, int, error)
	ListStockMovements(ctx context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	// FindUser returns ErrNotFound for an unknown username.
	FindUser(ctx context.Context, username string) (*domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// ValidateSale checks the shape of a priced sale before a unit is opened.
func ValidateSale(sale domain.Sale) error {
	if strings.TrimSpace(sale.TransactionNumber) == "" || strings.TrimSpace(sale.CashierID) == "" {
		return ErrInvalidArgument
	}
	if !domain.IsPaymentMethod(sale.PaymentMethod) {
		return ErrInvalidArgument
	}
	if len(sale.Lines) == 0 {
		return ErrInvalidArgument
	}

	var total int64
	for i, line := range sale.Lines {
		if line.MedicineID < 1 || line.Qty < 1 || line.UnitPrice < 0 {
			return &LineError{Index: i, MedicineID: line.MedicineID, Err: ErrInvalidArgument}
		}
		if line.UnitPrice > 0 && int64(line.Qty) > math.MaxInt64/line.UnitPrice {
			return &LineError{Index: i, MedicineID: line.MedicineID, Err: ErrInvalidArgument}
		}
		if line.Subtotal != int64(line.Qty)*line.UnitPrice {
			return &LineError{Index: i, MedicineID: line.MedicineID, Err: ErrInvalidArgument}
		}
		if total > math.MaxInt64-line.Subtotal {
			return ErrInvalidArgument
		}
		total += line.Subtotal
	}
	if total != sale.Total {
		return ErrInvalidArgument
	}
	return nil
}

// CheckLines validates the cart against locked medicine rows, in cart order.
// Quantities for a medicine that appears on several lines are cumulative.
func CheckLines(lines []domain.SaleLine, medicines map[int64]domain.Medicine, opts CommitOptions) error {
	requested := make(map[int64]int, len(medicines))
	for i, line := range lines {
		med, ok := medicines[line.MedicineID]
		if !ok {
			return &LineError{Index: i, MedicineID: line.MedicineID, Err: ErrNotFound}
		}
		if med.ExpiredAt(opts.Now) {
			return &LineError{Index: i, MedicineID: med.ID, MedicineName: med.Name, Err: ErrExpired}
		}
		if opts.EnforceCatalogPrice && line.UnitPrice != med.SalePrice {
			return &LineError{Index: i, MedicineID: med.ID, MedicineName: med.Name, Err: fmt.Errorf("%w: unit price %d differs from catalog price %d", ErrInvalidArgument, line.UnitPrice, med.SalePrice)}
		}
		requested[med.ID] += line.Qty
		if requested[med.ID] > med.Stock {
			return &LineError{Index: i, MedicineID: med.ID, MedicineName: med.Name, Err: ErrInsufficientStock}
		}
	}
	return nil
}

// LineIndex returns the first cart index that references medicineID, or -1.
func LineIndex(lines []domain.SaleLine, medicineID int64) int {
	for i, line := range lines {
		if line.MedicineID == medicineID {
			return i
		}
	}
	return -1
}

// SortedMedicineIDs returns the distinct medicine ids of lines in ascending
// order, which is the lock acquisition order for every repository.
func SortedMedicineIDs(lines []domain.SaleLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.MedicineID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func ValidateMedicine(med domain.Medicine) error {
	if strings.TrimSpace(med.Code) == "" || strings.TrimSpace(med.Name) == "" {
		return ErrInvalidArgument
	}
	if med.CostPrice < 0 || med.SalePrice < med.CostPrice {
		return fmt.Errorf("%w: sale price must be >= cost price", ErrInvalidArgument)
	}
	if med.Stock < 0 || med.MinStock < 0 || med.ExpiryDate.IsZero() {
		return ErrInvalidArgument
	}
	return nil
}

func ValidateAdjustment(adj domain.StockAdjustment) error {
	if adj.MedicineID < 1 || adj.Qty < 1 {
		return ErrInvalidArgument
	}
	switch adj.Direction {
	case domain.DirectionIn:
		if adj.Reason != domain.ReasonRestock {
			return ErrInvalidArgument
		}
	case domain.DirectionOut:
		if !domain.IsManualOutReason(adj.Reason) {
			return ErrInvalidArgument
		}
	default:
		return ErrInvalidArgument
	}
	return nil
}

// Kind names the taxonomy member err belongs to.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	default:
		return "internal"
	}
}

// IsKnown reports whether err already carries a taxonomy kind other than internal.
func IsKnown(err error) bool {
	return Kind(err) != "internal" && err != nil
}
