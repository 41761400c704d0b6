package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/events"
	"apotekpos/backend/internal/store"
	"apotekpos/backend/internal/txnum"
)

// maxCommitAttempts bounds how often a sale is re-run after a transaction
// number collision. Cart failures are never retried.
const maxCommitAttempts = 3

const (
	defaultSaleLimit = 100
	maxSaleLimit     = 500
	publishTimeout   = 3 * time.Second
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type NumberGenerator interface {
	Next() string
}

type Options struct {
	// Location is used for YYYY-MM-DD filters and receipt timestamps.
	Location            *time.Location
	EnforceCatalogPrice bool
	SaleCacheTTL        time.Duration
	Now                 func() time.Time
}

type Service struct {
	repo      store.Repository
	cache     cache.SaleCache
	publisher events.Publisher
	numbers   NumberGenerator
	logger    *zap.Logger

	loc          *time.Location
	enforcePrice bool
	cacheTTL     time.Duration
	now          func() time.Time
}

func New(repo store.Repository, saleCache cache.SaleCache, publisher events.Publisher, numbers NumberGenerator, logger *zap.Logger, opts Options) *Service {
	if saleCache == nil {
		saleCache = cache.NoopSaleCache{}
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if numbers == nil {
		numbers = txnum.New(txnum.DefaultPrefix, txnum.WithLocation(opts.Location))
	}
	if opts.SaleCacheTTL <= 0 {
		opts.SaleCacheTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:         repo,
		cache:        saleCache,
		publisher:    publisher,
		numbers:      numbers,
		logger:       logger.Named("service"),
		loc:          opts.Location,
		enforcePrice: opts.EnforceCatalogPrice,
		cacheTTL:     opts.SaleCacheTTL,
		now:          opts.Now,
	}
}

// SubmitSale validates the cart and commits it as one atomic unit: header,
// lines, stock decrements and ledger entries are kept together or not at all.
func (s *Service) SubmitSale(ctx context.Context, req domain.SaleRequest) (domain.SaleReceipt, error) {
	actor, err := requireActor(ctx, domain.RoleCashier, domain.RoleAdmin)
	if err != nil {
		return domain.SaleReceipt{}, err
	}

	cashierID := strings.ToLower(strings.TrimSpace(req.CashierID))
	if cashierID == "" {
		cashierID = actor.Username
	}
	if cashierID != actor.Username {
		if actor.Role == domain.RoleCashier {
			return domain.SaleReceipt{}, fmt.Errorf("%w: cashiers may only record their own sales", store.ErrPermissionDenied)
		}
		if err := s.checkCashier(ctx, cashierID); err != nil {
			return domain.SaleReceipt{}, err
		}
	}

	paymentMethod := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if !domain.IsPaymentMethod(paymentMethod) {
		return domain.SaleReceipt{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrInvalidArgument, req.PaymentMethod)
	}
	if len(req.Items) == 0 {
		return domain.SaleReceipt{}, fmt.Errorf("%w: cart is empty", store.ErrInvalidArgument)
	}

	lines := make([]domain.SaleLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.SaleLine{
			MedicineID: item.MedicineID,
			Qty:        item.Qty,
			UnitPrice:  item.UnitPrice,
			Subtotal:   int64(item.Qty) * item.UnitPrice,
		})
	}
	sale := domain.Sale{
		CashierID:     cashierID,
		PaymentMethod: paymentMethod,
		Total:         domain.SaleTotal(lines),
		Lines:         lines,
	}

	var committed *domain.Sale
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		sale.TransactionNumber = s.numbers.Next()
		if attempt == 1 {
			// Shape errors are reported before any unit is opened.
			if err := store.ValidateSale(sale); err != nil {
				return domain.SaleReceipt{}, err
			}
		}

		committed, err = s.repo.CommitSale(ctx, sale, store.CommitOptions{
			Now:                 s.now().UTC(),
			EnforceCatalogPrice: s.enforcePrice,
		})
		if !errors.Is(err, store.ErrDuplicateTransactionNumber) {
			break
		}
		s.logger.Warn("transaction number collision, regenerating",
			zap.String("transaction_number", sale.TransactionNumber),
			zap.Int("attempt", attempt),
		)
	}
	if err != nil {
		return domain.SaleReceipt{}, s.fail("submit sale", err, zap.String("cashier_id", cashierID), zap.Int("lines", len(lines)))
	}

	s.logger.Info("sale committed",
		zap.Int64("sale_id", committed.ID),
		zap.String("transaction_number", committed.TransactionNumber),
		zap.String("cashier_id", committed.CashierID),
		zap.Int64("total", committed.Total),
	)
	s.afterCommit(ctx, committed)

	return domain.SaleReceipt{
		ID:                committed.ID,
		TransactionNumber: committed.TransactionNumber,
		Total:             committed.Total,
		ItemCount:         domain.ItemCount(committed.Lines),
		CreatedAt:         committed.CreatedAt.In(s.loc).Format(time.RFC3339),
	}, nil
}

// checkCashier resolves a sale attributed to someone other than the caller.
// Sales are immutable, so only active cashier accounts are accepted.
func (s *Service) checkCashier(ctx context.Context, username string) error {
	user, err := s.repo.FindUser(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: unknown cashier %q", store.ErrInvalidArgument, username)
	}
	if err != nil {
		return s.fail("resolve cashier", err, zap.String("cashier_id", username))
	}
	if !user.Active {
		return fmt.Errorf("%w: cashier %q is inactive", store.ErrInvalidArgument, username)
	}
	if user.Role != domain.RoleCashier {
		return fmt.Errorf("%w: %q is not a cashier account", store.ErrInvalidArgument, username)
	}
	return nil
}

// ListCashiers returns the accounts a sale may be attributed to, without credentials.
func (s *Service) ListCashiers(ctx context.Context) (domain.CashierListResponse, error) {
	if _, err := requireActor(ctx, domain.RoleAdmin); err != nil {
		return domain.CashierListResponse{}, err
	}
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return domain.CashierListResponse{}, s.fail("list cashiers", err)
	}

	cashiers := make([]domain.Cashier, 0, len(users))
	for _, user := range users {
		if user.Role != domain.RoleCashier {
			continue
		}
		cashiers = append(cashiers, domain.Cashier{
			Username:  user.Username,
			Active:    user.Active,
			CreatedAt: user.CreatedAt,
		})
	}
	slices.SortFunc(cashiers, func(a, b domain.Cashier) int {
		return strings.Compare(a.Username, b.Username)
	})
	return domain.CashierListResponse{Cashiers: cashiers}, nil
}

// afterCommit fills the read cache and publishes the sale. Neither may undo the commit.
func (s *Service) afterCommit(ctx context.Context, sale *domain.Sale) {
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.cache.Set(bg, sale, s.cacheTTL); err != nil {
		s.logger.Warn("sale cache write failed", zap.Int64("sale_id", sale.ID), zap.Error(err))
	}
	s.publish(bg, events.EventSaleCommitted, fmt.Sprintf("sale-%d", sale.ID), sale)
}

func (s *Service) publish(ctx context.Context, eventType string, key string, data any) {
	payload, err := events.Encode(eventType, s.now(), data)
	if err != nil {
		s.logger.Warn("event encode failed", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, eventType, payload, key); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", eventType), zap.String("key", key), zap.Error(err))
	}
}

// GetSale returns the sale with its lines in cart order. A cashier asking for
// another cashier's sale gets ErrNotFound.
func (s *Service) GetSale(ctx context.Context, id int64) (domain.Sale, error) {
	actor, err := requireActor(ctx, domain.RoleCashier, domain.RoleAdmin)
	if err != nil {
		return domain.Sale{}, err
	}
	if id < 1 {
		return domain.Sale{}, store.ErrInvalidArgument
	}

	sale, hit, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("sale cache read failed", zap.Int64("sale_id", id), zap.Error(err))
	}
	if !hit || sale == nil {
		sale, err = s.repo.FindSaleByID(ctx, id)
		if err != nil {
			return domain.Sale{}, s.fail("get sale", err, zap.Int64("sale_id", id))
		}
		if err := s.cache.Set(ctx, sale, s.cacheTTL); err != nil {
			s.logger.Warn("sale cache write failed", zap.Int64("sale_id", id), zap.Error(err))
		}
	}

	if actor.Role == domain.RoleCashier && sale.CashierID != actor.Username {
		return domain.Sale{}, store.ErrNotFound
	}
	return *sale, nil
}

// ListSales returns summaries newest first. Cashiers only ever see their own.
func (s *Service) ListSales(ctx context.Context, query domain.SaleListQuery) (domain.SaleListResponse, error) {
	actor, err := requireActor(ctx, domain.RoleCashier, domain.RoleAdmin)
	if err != nil {
		return domain.SaleListResponse{}, err
	}

	filter := domain.SaleFilter{
		CashierID: strings.ToLower(strings.TrimSpace(query.CashierID)),
		Limit:     query.Limit,
	}
	if actor.Role == domain.RoleCashier {
		filter.CashierID = actor.Username
	}
	switch {
	case filter.Limit < 0:
		return domain.SaleListResponse{}, store.ErrInvalidArgument
	case filter.Limit == 0:
		filter.Limit = defaultSaleLimit
	case filter.Limit > maxSaleLimit:
		filter.Limit = maxSaleLimit
	}

	if query.From != "" {
		from, err := s.parseDate(query.From)
		if err != nil {
			return domain.SaleListResponse{}, err
		}
		filter.From = from
	}
	if query.To != "" {
		to, err := s.parseDate(query.To)
		if err != nil {
			return domain.SaleListResponse{}, err
		}
		filter.To = to.AddDate(0, 0, 1)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return domain.SaleListResponse{}, fmt.Errorf("%w: from must not be after to", store.ErrInvalidArgument)
	}

	sales, err := s.repo.ListSales(ctx, filter)
	if err != nil {
		return domain.SaleListResponse{}, s.fail("list sales", err)
	}
	return domain.SaleListResponse{Sales: sales}, nil
}

func (s *Service) GetMedicine(ctx context.Context, id int64) (domain.Medicine, error) {
	if id < 1 {
		return domain.Medicine{}, store.ErrInvalidArgument
	}
	med, err := s.repo.GetMedicine(ctx, id)
	if err != nil {
		return domain.Medicine{}, s.fail("get medicine", err, zap.Int64("medicine_id", id))
	}
	return *med, nil
}

func (s *Service) ListMedicines(ctx context.Context, filter domain.MedicineFilter) ([]domain.Medicine, error) {
	meds, err := s.repo.ListMedicines(ctx, filter)
	if err != nil {
		return nil, s.fail("list medicines", err)
	}
	return meds, nil
}

func (s *Service) StockIn(ctx context.Context, medicineID int64, req domain.StockInRequest) (domain.StockAdjustmentResponse, error) {
	return s.adjust(ctx, domain.StockAdjustment{
		MedicineID: medicineID,
		Direction:  domain.DirectionIn,
		Qty:        req.Qty,
		Reason:     domain.ReasonRestock,
		Note:       strings.TrimSpace(req.Note),
	})
}

func (s *Service) StockOut(ctx context.Context, medicineID int64, req domain.StockOutRequest) (domain.StockAdjustmentResponse, error) {
	reason := domain.NormalizeOutReason(strings.ToLower(strings.TrimSpace(req.Reason)))
	if !domain.IsManualOutReason(reason) {
		return domain.StockAdjustmentResponse{}, fmt.Errorf("%w: reason must be damaged, expired or adjustment", store.ErrInvalidArgument)
	}
	return s.adjust(ctx, domain.StockAdjustment{
		MedicineID: medicineID,
		Direction:  domain.DirectionOut,
		Qty:        req.Qty,
		Reason:     reason,
		Note:       strings.TrimSpace(req.Note),
	})
}

func (s *Service) adjust(ctx context.Context, adj domain.StockAdjustment) (domain.StockAdjustmentResponse, error) {
	actor, err := requireActor(ctx, domain.RoleAdmin)
	if err != nil {
		return domain.StockAdjustmentResponse{}, err
	}
	if adj.MedicineID < 1 || adj.Qty < 1 {
		return domain.StockAdjustmentResponse{}, store.ErrInvalidArgument
	}
	adj.ActorUsername = actor.Username
	adj.At = s.now().UTC()

	movement, stock, err := s.repo.AdjustStock(ctx, adj)
	if err != nil {
		return domain.StockAdjustmentResponse{}, s.fail("adjust stock", err,
			zap.Int64("medicine_id", adj.MedicineID),
			zap.String("direction", adj.Direction),
		)
	}

	s.logger.Info("stock adjusted",
		zap.Int64("medicine_id", movement.MedicineID),
		zap.String("direction", movement.Direction),
		zap.Int("qty", movement.Qty),
		zap.String("reason", movement.Reason),
		zap.Int("stock", stock),
		zap.String("actor", actor.Username),
	)
	resp := domain.StockAdjustmentResponse{Movement: *movement, Stock: stock}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	s.publish(bg, events.EventStockAdjusted, fmt.Sprintf("medicine-%d", movement.MedicineID), resp)

	return resp, nil
}

func (s *Service) ListStockMovements(ctx context.Context, filter domain.MovementFilter) (domain.MovementListResponse, error) {
	if _, err := requireActor(ctx, domain.RoleAdmin); err != nil {
		return domain.MovementListResponse{}, err
	}
	if filter.MedicineID < 1 || filter.Limit < 0 {
		return domain.MovementListResponse{}, store.ErrInvalidArgument
	}
	if _, err := s.repo.GetMedicine(ctx, filter.MedicineID); err != nil {
		return domain.MovementListResponse{}, s.fail("list stock movements", err)
	}

	movements, err := s.repo.ListStockMovements(ctx, filter)
	if err != nil {
		return domain.MovementListResponse{}, s.fail("list stock movements", err, zap.Int64("medicine_id", filter.MedicineID))
	}
	return domain.MovementListResponse{Movements: movements}, nil
}

// StockAt replays the ledger of a medicine up to and including at.
func (s *Service) StockAt(ctx context.Context, medicineID int64, at time.Time) (domain.StockAtResponse, error) {
	if _, err := requireActor(ctx, domain.RoleAdmin); err != nil {
		return domain.StockAtResponse{}, err
	}
	if medicineID < 1 {
		return domain.StockAtResponse{}, store.ErrInvalidArgument
	}
	if at.IsZero() {
		at = s.now()
	}
	if _, err := s.repo.GetMedicine(ctx, medicineID); err != nil {
		return domain.StockAtResponse{}, s.fail("stock at", err)
	}

	movements, err := s.repo.ListStockMovements(ctx, domain.MovementFilter{MedicineID: medicineID, To: at.UTC()})
	if err != nil {
		return domain.StockAtResponse{}, s.fail("stock at", err, zap.Int64("medicine_id", medicineID))
	}
	return domain.StockAtResponse{
		MedicineID: medicineID,
		At:         at.In(s.loc).Format(time.RFC3339),
		Stock:      ReplayStock(movements),
		Movements:  len(movements),
	}, nil
}

// ReplayStock is Σin − Σout over movements.
func ReplayStock(movements []domain.StockMovement) int {
	stock := 0
	for _, mv := range movements {
		switch mv.Direction {
		case domain.DirectionIn:
			stock += mv.Qty
		case domain.DirectionOut:
			stock -= mv.Qty
		}
	}
	return stock
}

func (s *Service) parseDate(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", store.ErrInvalidArgument, value)
	}
	return parsed, nil
}

// fail passes taxonomy errors through and turns anything else into ErrInternal
// after logging the detail.
func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	if store.IsKnown(err) {
		return err
	}
	s.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	return fmt.Errorf("%w: %w", store.ErrInternal, err)
}

func requireActor(ctx context.Context, roles ...string) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.Actor{}, fmt.Errorf("%w: no authenticated caller", store.ErrPermissionDenied)
	}
	for _, role := range roles {
		if actor.Role == role {
			return actor, nil
		}
	}
	return domain.Actor{}, fmt.Errorf("%w: role %q not allowed", store.ErrPermissionDenied, actor.Role)
}
