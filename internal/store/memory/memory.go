package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

// Store keeps everything in process memory. Stock of a medicine only changes
// while its row lock is held; rowLocks are always taken in ascending id order.
type Store struct {
	mu sync.RWMutex

	rowLocks   map[int64]*sync.Mutex
	medicines  map[int64]domain.Medicine
	sales      map[int64]*domain.Sale
	saleOrder  []int64
	saleNumber map[string]int64
	movements  []domain.StockMovement
	users      map[string]domain.UserAccount

	nextMedicineID int64
	nextSaleID     int64
	nextMovementID int64
}

func New() *Store {
	return &Store{
		rowLocks:   make(map[int64]*sync.Mutex),
		medicines:  make(map[int64]domain.Medicine),
		sales:      make(map[int64]*domain.Sale),
		saleOrder:  make([]int64, 0, 64),
		saleNumber: make(map[string]int64),
		movements:  make([]domain.StockMovement, 0, 128),
		users:      make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// hardcoded dev defaults are used with a warning when they are unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"kasir1", cashierPwd, domain.RoleCashier},
		{"kasir2", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with demo users and a small catalog.
func NewSeeded() *Store {
	s := New()
	s.users = seedUsers()

	expiry := time.Now().UTC().AddDate(1, 0, 0).Truncate(24 * time.Hour)
	for _, med := range []domain.Medicine{
		{Code: "OBT-001", Name: "Paracetamol 500mg", Category: "analgesik", CostPrice: 3500, SalePrice: 5000, Stock: 120, MinStock: 20, Batch: "PCT2401"},
		{Code: "OBT-002", Name: "Amoxicillin 500mg", Category: "antibiotik", CostPrice: 11000, SalePrice: 15000, Stock: 80, MinStock: 15, Batch: "AMX2402"},
		{Code: "OBT-003", Name: "Vitamin C 1000mg", Category: "vitamin", CostPrice: 18000, SalePrice: 25000, Stock: 60, MinStock: 10, Batch: "VTC2403"},
		{Code: "OBT-004", Name: "Antasida Doen", Category: "lambung", CostPrice: 6000, SalePrice: 8500, Stock: 50, MinStock: 10, Batch: "ANT2404"},
		{Code: "OBT-005", Name: "OBH Combi 100ml", Category: "batuk", CostPrice: 14000, SalePrice: 19000, Stock: 40, MinStock: 8, Batch: "OBH2405"},
	} {
		med.ExpiryDate = expiry
		if _, err := s.CreateMedicine(context.Background(), med, "seed"); err != nil {
			log.Fatalf("[memory-store] failed to seed medicine %s: %v", med.Code, err)
		}
	}
	return s
}

func (s *Store) CreateMedicine(_ context.Context, med domain.Medicine, actor string) (*domain.Medicine, error) {
	if err := store.ValidateMedicine(med); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.medicines {
		if strings.EqualFold(existing.Code, med.Code) {
			return nil, store.ErrInvalidArgument
		}
	}

	now := time.Now().UTC()
	s.nextMedicineID++
	med.ID = s.nextMedicineID
	med.CreatedAt = now
	med.UpdatedAt = now
	s.medicines[med.ID] = med
	s.rowLocks[med.ID] = &sync.Mutex{}

	if med.Stock > 0 {
		s.appendMovementLocked(domain.StockMovement{
			MedicineID:    med.ID,
			Direction:     domain.DirectionIn,
			Qty:           med.Stock,
			Reason:        domain.ReasonOpening,
			Note:          "initial stock",
			ActorUsername: actor,
			CreatedAt:     now,
		})
	}

	created := med
	return &created, nil
}

func (s *Store) GetMedicine(_ context.Context, id int64) (*domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	med, ok := s.medicines[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &med, nil
}

func (s *Store) ListMedicines(_ context.Context, filter domain.MedicineFilter) ([]domain.Medicine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	category := strings.TrimSpace(filter.Category)

	result := make([]domain.Medicine, 0, len(s.medicines))
	for _, med := range s.medicines {
		if search != "" && !strings.Contains(strings.ToLower(med.Name), search) && !strings.Contains(strings.ToLower(med.Code), search) {
			continue
		}
		if category != "" && !strings.EqualFold(med.Category, category) {
			continue
		}
		if filter.LowStockOnly && !med.LowStock() {
			continue
		}
		result = append(result, med)
	}
	slices.SortFunc(result, func(a, b domain.Medicine) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

// lockRows takes the row lock of every id in ascending order and returns the
// matching unlock. Unknown ids are skipped; validation reports them.
func (s *Store) lockRows(ids []int64) func() {
	s.mu.RLock()
	locks := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		if l, ok := s.rowLocks[id]; ok {
			locks = append(locks, l)
		}
	}
	s.mu.RUnlock()

	for _, l := range locks {
		l.Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

func (s *Store) CommitSale(ctx context.Context, sale domain.Sale, opts store.CommitOptions) (*domain.Sale, error) {
	if err := store.ValidateSale(sale); err != nil {
		return nil, err
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}

	ids := store.SortedMedicineIDs(sale.Lines)
	unlock := s.lockRows(ids)
	defer unlock()

	s.mu.RLock()
	locked := make(map[int64]domain.Medicine, len(ids))
	for _, id := range ids {
		if med, ok := s.medicines[id]; ok {
			locked[id] = med
		}
	}
	s.mu.RUnlock()

	if err := store.CheckLines(sale.Lines, locked, opts); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.saleNumber[sale.TransactionNumber]; exists {
		return nil, store.ErrDuplicateTransactionNumber
	}

	s.nextSaleID++
	sale.ID = s.nextSaleID
	sale.CreatedAt = opts.Now
	lines := make([]domain.SaleLine, len(sale.Lines))
	for i, line := range sale.Lines {
		med := s.medicines[line.MedicineID]
		med.Stock -= line.Qty
		med.UpdatedAt = opts.Now
		s.medicines[med.ID] = med

		line.LineNo = i + 1
		line.MedicineName = med.Name
		lines[i] = line

		s.appendMovementLocked(domain.StockMovement{
			MedicineID:    med.ID,
			Direction:     domain.DirectionOut,
			Qty:           line.Qty,
			Reason:        domain.ReasonSale,
			Note:          sale.TransactionNumber,
			ActorUsername: sale.CashierID,
			SaleID:        sale.ID,
			CreatedAt:     opts.Now,
		})
	}
	sale.Lines = lines

	stored := cloneSale(&sale)
	s.sales[sale.ID] = stored
	s.saleOrder = append(s.saleOrder, sale.ID)
	s.saleNumber[sale.TransactionNumber] = sale.ID

	return cloneSale(stored), nil
}

func (s *Store) FindSaleByID(_ context.Context, id int64) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.sales[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.SaleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = 200
	}

	result := make([]domain.SaleSummary, 0, min(limit, len(s.saleOrder)))
	for i := len(s.saleOrder) - 1; i >= 0 && len(result) < limit; i-- {
		sale := s.sales[s.saleOrder[i]]
		if !filter.From.IsZero() && sale.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !sale.CreatedAt.Before(filter.To) {
			continue
		}
		if filter.CashierID != "" && sale.CashierID != filter.CashierID {
			continue
		}
		result = append(result, domain.SaleSummary{
			ID:                sale.ID,
			TransactionNumber: sale.TransactionNumber,
			CashierID:         sale.CashierID,
			PaymentMethod:     sale.PaymentMethod,
			Total:             sale.Total,
			ItemCount:         domain.ItemCount(sale.Lines),
			CreatedAt:         sale.CreatedAt,
		})
	}
	return result, nil
}

func (s *Store) AdjustStock(ctx context.Context, adj domain.StockAdjustment) (*domain.StockMovement, int, error) {
	if err := store.ValidateAdjustment(adj); err != nil {
		return nil, 0, err
	}
	if adj.At.IsZero() {
		adj.At = time.Now().UTC()
	}

	unlock := s.lockRows([]int64{adj.MedicineID})
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	med, ok := s.medicines[adj.MedicineID]
	if !ok {
		return nil, 0, store.ErrNotFound
	}
	switch adj.Direction {
	case domain.DirectionIn:
		med.Stock += adj.Qty
	case domain.DirectionOut:
		if med.Stock < adj.Qty {
			return nil, 0, store.ErrInsufficientStock
		}
		med.Stock -= adj.Qty
	}
	med.UpdatedAt = adj.At
	s.medicines[med.ID] = med

	movement := s.appendMovementLocked(domain.StockMovement{
		MedicineID:    med.ID,
		Direction:     adj.Direction,
		Qty:           adj.Qty,
		Reason:        adj.Reason,
		Note:          adj.Note,
		ActorUsername: adj.ActorUsername,
		CreatedAt:     adj.At,
	})
	return &movement, med.Stock, nil
}

func (s *Store) ListStockMovements(_ context.Context, filter domain.MovementFilter) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := filter.Limit
	if limit < 1 {
		limit = len(s.movements)
	}

	result := make([]domain.StockMovement, 0, min(limit, len(s.movements)))
	for _, mv := range s.movements {
		if len(result) >= limit {
			break
		}
		if filter.MedicineID != 0 && mv.MedicineID != filter.MedicineID {
			continue
		}
		if !filter.From.IsZero() && mv.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && mv.CreatedAt.After(filter.To) {
			continue
		}
		result = append(result, mv)
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidArgument
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return store.ErrInvalidArgument
	}
	user.Username = username
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	return users, nil
}

func (s *Store) FindUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[user.Username] = user
	return nil
}

// appendMovementLocked assigns the next ledger id. Callers hold s.mu.
func (s *Store) appendMovementLocked(mv domain.StockMovement) domain.StockMovement {
	s.nextMovementID++
	mv.ID = s.nextMovementID
	s.movements = append(s.movements, mv)
	return mv
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	dupLines := make([]domain.SaleLine, len(src.Lines))
	copy(dupLines, src.Lines)
	dup.Lines = dupLines
	return &dup
}
