package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"apotekpos/backend/internal/cache"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/events"
	"apotekpos/backend/internal/store"
	"apotekpos/backend/internal/store/memory"
	"apotekpos/backend/internal/store/sqlite"
	"apotekpos/backend/internal/txnum"
)

var (
	cashierCtx = WithActor(context.Background(), domain.Actor{Username: "kasir1", Role: domain.RoleCashier})
	otherCtx   = WithActor(context.Background(), domain.Actor{Username: "kasir2", Role: domain.RoleCashier})
	adminCtx   = WithActor(context.Background(), domain.Actor{Username: "admin", Role: domain.RoleAdmin})
)

type repoFactory struct {
	name string
	new  func(t *testing.T) store.Repository
}

func repoFactories() []repoFactory {
	return []repoFactory{
		{name: "memory", new: func(*testing.T) store.Repository { return memory.New() }},
		{name: "sqlite", new: func(t *testing.T) store.Repository {
			s, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "pos.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ []byte, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return p.err
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == eventType {
			n++
		}
	}
	return n
}

type scriptedNumbers struct {
	mu      sync.Mutex
	numbers []string
}

func (g *scriptedNumbers) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.numbers[0]
	if len(g.numbers) > 1 {
		g.numbers = g.numbers[1:]
	}
	return n
}

func newTestService(t *testing.T, repo store.Repository, publisher events.Publisher, numbers NumberGenerator) *Service {
	t.Helper()
	if numbers == nil {
		numbers = txnum.New("TRX", txnum.WithLocation(time.UTC))
	}
	return New(repo, cache.NoopSaleCache{}, publisher, numbers, zaptest.NewLogger(t), Options{Location: time.UTC})
}

func addMedicine(t *testing.T, repo store.Repository, code string, price int64, stock int, expiry time.Time) domain.Medicine {
	t.Helper()
	med, err := repo.CreateMedicine(context.Background(), domain.Medicine{
		Code:       code,
		Name:       "Obat " + code,
		Category:   "umum",
		CostPrice:  price / 2,
		SalePrice:  price,
		Stock:      stock,
		ExpiryDate: expiry,
	}, "test")
	require.NoError(t, err)
	return *med
}

func nextYear() time.Time {
	return time.Now().AddDate(1, 0, 0)
}

func stockOf(t *testing.T, repo store.Repository, id int64) int {
	t.Helper()
	med, err := repo.GetMedicine(context.Background(), id)
	require.NoError(t, err)
	return med.Stock
}

func TestSubmitSaleWorkedExample(t *testing.T) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			repo := f.new(t)
			pub := &recordingPublisher{}
			svc := newTestService(t, repo, pub, nil)
			a := addMedicine(t, repo, "A", 5000, 10, nextYear())
			b := addMedicine(t, repo, "B", 15000, 5, nextYear())

			receipt, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{
				Items: []domain.SaleItem{
					{MedicineID: a.ID, Qty: 2, UnitPrice: 5000},
					{MedicineID: b.ID, Qty: 1, UnitPrice: 15000},
				},
				PaymentMethod: "tunai",
			})
			require.NoError(t, err)
			assert.Equal(t, int64(25000), receipt.Total)
			assert.Equal(t, 3, receipt.ItemCount)
			assert.Regexp(t, `^TRX\d{14}$`, receipt.TransactionNumber)

			assert.Equal(t, 8, stockOf(t, repo, a.ID))
			assert.Equal(t, 4, stockOf(t, repo, b.ID))

			sale, err := svc.GetSale(cashierCtx, receipt.ID)
			require.NoError(t, err)
			assert.Equal(t, "kasir1", sale.CashierID)
			assert.Equal(t, domain.PaymentCash, sale.PaymentMethod)
			require.Len(t, sale.Lines, 2)
			assert.Equal(t, int64(10000), sale.Lines[0].Subtotal)
			assert.Equal(t, sale.Total, domain.SaleTotal(sale.Lines))

			assert.Equal(t, 1, pub.count(events.EventSaleCommitted))
		})
	}
}

func TestSubmitSaleAtomicForEveryFailingLine(t *testing.T) {
	const lines = 4
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			for k := 0; k < lines; k++ {
				t.Run(fmt.Sprintf("fail_at_%d", k), func(t *testing.T) {
					repo := f.new(t)
					svc := newTestService(t, repo, nil, nil)

					meds := make([]domain.Medicine, lines)
					items := make([]domain.SaleItem, lines)
					for i := range meds {
						meds[i] = addMedicine(t, repo, fmt.Sprintf("M%d", i), 1000, 5, nextYear())
						items[i] = domain.SaleItem{MedicineID: meds[i].ID, Qty: 2, UnitPrice: 1000}
					}
					items[k].Qty = 6

					_, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentDebit})
					require.ErrorIs(t, err, store.ErrInsufficientStock)

					var lineErr *store.LineError
					require.ErrorAs(t, err, &lineErr)
					assert.Equal(t, k, lineErr.Index)
					assert.Equal(t, meds[k].ID, lineErr.MedicineID)

					for _, med := range meds {
						assert.Equal(t, 5, stockOf(t, repo, med.ID))
					}
					list, err := svc.ListSales(adminCtx, domain.SaleListQuery{})
					require.NoError(t, err)
					assert.Empty(t, list.Sales)
				})
			}
		})
	}
}

func TestLedgerConservation(t *testing.T) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			repo := f.new(t)
			svc := newTestService(t, repo, nil, nil)
			a := addMedicine(t, repo, "A", 2000, 20, nextYear())
			b := addMedicine(t, repo, "B", 3000, 7, nextYear())

			_, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{
				Items:         []domain.SaleItem{{MedicineID: a.ID, Qty: 3, UnitPrice: 2000}, {MedicineID: a.ID, Qty: 1, UnitPrice: 2000}},
				PaymentMethod: domain.PaymentEwallet,
			})
			require.NoError(t, err)
			_, err = svc.StockIn(adminCtx, b.ID, domain.StockInRequest{Qty: 5, Note: "PO-1"})
			require.NoError(t, err)
			_, err = svc.StockOut(adminCtx, a.ID, domain.StockOutRequest{Qty: 2, Reason: "rusak"})
			require.NoError(t, err)
			_, err = svc.SubmitSale(cashierCtx, domain.SaleRequest{
				Items:         []domain.SaleItem{{MedicineID: b.ID, Qty: 12, UnitPrice: 3000}},
				PaymentMethod: domain.PaymentCash,
			})
			require.NoError(t, err)

			for _, med := range []domain.Medicine{a, b} {
				resp, err := svc.ListStockMovements(adminCtx, domain.MovementFilter{MedicineID: med.ID})
				require.NoError(t, err)
				assert.Equal(t, stockOf(t, repo, med.ID), ReplayStock(resp.Movements), med.Code)
			}
			assert.Equal(t, 14, stockOf(t, repo, a.ID))
			assert.Equal(t, 0, stockOf(t, repo, b.ID))
		})
	}
}

func TestConcurrentSubmitNeverOversells(t *testing.T) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			repo := f.new(t)
			svc := newTestService(t, repo, nil, nil)
			a := addMedicine(t, repo, "A", 1000, 30, nextYear())
			b := addMedicine(t, repo, "B", 1000, 30, nextYear())

			const workers = 40
			var wg sync.WaitGroup
			var mu sync.Mutex
			numbers := make(map[string]struct{})
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					items := []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: 1000}, {MedicineID: b.ID, Qty: 1, UnitPrice: 1000}}
					if i%2 == 0 {
						items[0], items[1] = items[1], items[0]
					}
					receipt, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash})
					if err != nil {
						assert.ErrorIs(t, err, store.ErrInsufficientStock)
						return
					}
					mu.Lock()
					numbers[receipt.TransactionNumber] = struct{}{}
					mu.Unlock()
				}(i)
			}
			wg.Wait()

			assert.Len(t, numbers, 30)
			assert.Zero(t, stockOf(t, repo, a.ID))
			assert.Zero(t, stockOf(t, repo, b.ID))
		})
	}
}

func TestSubmitSaleExpiryGate(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, repo, nil, nil)
	fresh := addMedicine(t, repo, "F", 1000, 5, nextYear())
	expired := addMedicine(t, repo, "X", 1000, 5, time.Now().Add(-time.Hour))

	_, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{
		Items:         []domain.SaleItem{{MedicineID: fresh.ID, Qty: 1, UnitPrice: 1000}, {MedicineID: expired.ID, Qty: 1, UnitPrice: 1000}},
		PaymentMethod: domain.PaymentCash,
	})
	require.ErrorIs(t, err, store.ErrExpired)
	var lineErr *store.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 1, lineErr.Index)
	assert.Equal(t, 5, stockOf(t, repo, fresh.ID))
}

func TestSubmitSaleValidation(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, repo, nil, nil)
	a := addMedicine(t, repo, "A", 1000, 5, nextYear())

	cases := map[string]domain.SaleRequest{
		"empty cart":      {PaymentMethod: domain.PaymentCash},
		"bad payment":     {Items: []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: 1000}}, PaymentMethod: "bon"},
		"missing payment": {Items: []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: 1000}}},
		"zero qty":        {Items: []domain.SaleItem{{MedicineID: a.ID, Qty: 0, UnitPrice: 1000}}, PaymentMethod: domain.PaymentCash},
		"negative price":  {Items: []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: -1}}, PaymentMethod: domain.PaymentCash},
		"zero id":         {Items: []domain.SaleItem{{MedicineID: 0, Qty: 1, UnitPrice: 1}}, PaymentMethod: domain.PaymentCash},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SubmitSale(cashierCtx, req)
			assert.ErrorIs(t, err, store.ErrInvalidArgument)
		})
	}

	_, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: []domain.SaleItem{{MedicineID: 999, Qty: 1, UnitPrice: 1}}, PaymentMethod: domain.PaymentCash})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 5, stockOf(t, repo, a.ID))
}

func TestCatalogPriceGuard(t *testing.T) {
	repo := memory.New()
	svc := New(repo, nil, nil, nil, zaptest.NewLogger(t), Options{Location: time.UTC, EnforceCatalogPrice: true})
	a := addMedicine(t, repo, "A", 1000, 5, nextYear())

	_, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: 1}}, PaymentMethod: domain.PaymentCash})
	require.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: 1000}}, PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)
}

func addUser(t *testing.T, repo store.Repository, username, role string, active bool) {
	t.Helper()
	require.NoError(t, repo.CreateUser(context.Background(), domain.UserAccount{
		Username: username,
		Password: "$2a$10$placeholderplaceholderplaceholderplaceholderplacehold",
		Role:     role,
		Active:   active,
	}))
}

func TestSubmitSalePermissions(t *testing.T) {
	repo := memory.New()
	addUser(t, repo, "kasir2", domain.RoleCashier, true)
	svc := newTestService(t, repo, nil, nil)
	a := addMedicine(t, repo, "A", 1000, 10, nextYear())
	items := []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: 1000}}

	_, err := svc.SubmitSale(context.Background(), domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash})
	assert.ErrorIs(t, err, store.ErrPermissionDenied)

	_, err = svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash, CashierID: "kasir2"})
	assert.ErrorIs(t, err, store.ErrPermissionDenied)

	receipt, err := svc.SubmitSale(adminCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash, CashierID: "kasir2"})
	require.NoError(t, err)

	_, err = svc.GetSale(cashierCtx, receipt.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	sale, err := svc.GetSale(otherCtx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, "kasir2", sale.CashierID)

	mine, err := svc.ListSales(cashierCtx, domain.SaleListQuery{CashierID: "kasir2"})
	require.NoError(t, err)
	assert.Empty(t, mine.Sales)

	all, err := svc.ListSales(adminCtx, domain.SaleListQuery{})
	require.NoError(t, err)
	assert.Len(t, all.Sales, 1)

	_, err = svc.StockIn(cashierCtx, a.ID, domain.StockInRequest{Qty: 1})
	assert.ErrorIs(t, err, store.ErrPermissionDenied)
	_, err = svc.StockAt(cashierCtx, a.ID, time.Time{})
	assert.ErrorIs(t, err, store.ErrPermissionDenied)
}

func TestSubmitSaleRetriesNumberCollision(t *testing.T) {
	repo := memory.New()
	numbers := &scriptedNumbers{numbers: []string{"TRX1", "TRX1", "TRX2"}}
	svc := newTestService(t, repo, nil, numbers)
	a := addMedicine(t, repo, "A", 1000, 10, nextYear())
	items := []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: 1000}}

	first, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)
	second, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)

	assert.Equal(t, "TRX1", first.TransactionNumber)
	assert.Equal(t, "TRX2", second.TransactionNumber)
	assert.Equal(t, 8, stockOf(t, repo, a.ID))
}

func TestSubmitSaleGivesUpAfterRepeatedCollisions(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, repo, nil, &scriptedNumbers{numbers: []string{"TRX1"}})
	a := addMedicine(t, repo, "A", 1000, 10, nextYear())
	items := []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: 1000}}

	_, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)
	_, err = svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash})
	require.ErrorIs(t, err, store.ErrInternal)
	assert.Equal(t, 9, stockOf(t, repo, a.ID))
}

type brokenRepo struct {
	store.Repository
}

func (brokenRepo) CommitSale(context.Context, domain.Sale, store.CommitOptions) (*domain.Sale, error) {
	return nil, errors.New("connection reset by peer")
}

func TestSubmitSaleMapsUnknownErrorsToInternal(t *testing.T) {
	svc := newTestService(t, brokenRepo{Repository: memory.New()}, nil, nil)

	_, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: []domain.SaleItem{{MedicineID: 1, Qty: 1, UnitPrice: 1}}, PaymentMethod: domain.PaymentCash})
	require.ErrorIs(t, err, store.ErrInternal)
	assert.Equal(t, "internal", store.Kind(err))
}

func TestPublishFailureDoesNotUndoSale(t *testing.T) {
	repo := memory.New()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(t, repo, pub, nil)
	a := addMedicine(t, repo, "A", 1000, 10, nextYear())

	_, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: []domain.SaleItem{{MedicineID: a.ID, Qty: 4, UnitPrice: 1000}}, PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)
	assert.Equal(t, 6, stockOf(t, repo, a.ID))
	assert.Equal(t, 1, pub.count(events.EventSaleCommitted))
}

func TestListSalesDateFilters(t *testing.T) {
	repo := memory.New()
	jakarta := time.FixedZone("WIB", 7*3600)
	current := time.Date(2024, time.March, 4, 23, 30, 0, 0, jakarta)
	svc := New(repo, nil, nil, nil, zaptest.NewLogger(t), Options{Location: jakarta, Now: func() time.Time { return current }})
	a := addMedicine(t, repo, "A", 1000, 10, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	items := []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: 1000}}

	_, err := svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)
	current = current.Add(time.Hour)
	_, err = svc.SubmitSale(cashierCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash})
	require.NoError(t, err)

	day4, err := svc.ListSales(adminCtx, domain.SaleListQuery{From: "2024-03-04", To: "2024-03-04"})
	require.NoError(t, err)
	assert.Len(t, day4.Sales, 1)

	both, err := svc.ListSales(adminCtx, domain.SaleListQuery{From: "2024-03-04", To: "2024-03-05"})
	require.NoError(t, err)
	assert.Len(t, both.Sales, 2)

	_, err = svc.ListSales(adminCtx, domain.SaleListQuery{From: "04/03/2024"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = svc.ListSales(adminCtx, domain.SaleListQuery{From: "2024-03-05", To: "2024-03-04"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestStockAdjustmentsAndStockAt(t *testing.T) {
	repo := memory.New()
	pub := &recordingPublisher{}
	current := time.Now()
	svc := New(repo, nil, pub, nil, zaptest.NewLogger(t), Options{Location: time.UTC, Now: func() time.Time { return current }})
	a := addMedicine(t, repo, "A", 1000, 10, nextYear())

	current = current.Add(time.Minute)
	in, err := svc.StockIn(adminCtx, a.ID, domain.StockInRequest{Qty: 5})
	require.NoError(t, err)
	assert.Equal(t, 15, in.Stock)
	assert.Equal(t, "admin", in.Movement.ActorUsername)
	checkpoint := current

	current = current.Add(time.Minute)
	out, err := svc.StockOut(adminCtx, a.ID, domain.StockOutRequest{Qty: 3, Reason: "penyesuaian"})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonAdjustment, out.Movement.Reason)
	assert.Equal(t, 12, out.Stock)

	_, err = svc.StockOut(adminCtx, a.ID, domain.StockOutRequest{Qty: 1, Reason: "sale"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
	_, err = svc.StockOut(adminCtx, a.ID, domain.StockOutRequest{Qty: 100, Reason: "damaged"})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	at, err := svc.StockAt(adminCtx, a.ID, checkpoint)
	require.NoError(t, err)
	assert.Equal(t, 15, at.Stock)
	assert.Equal(t, 2, at.Movements)

	now, err := svc.StockAt(adminCtx, a.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 12, now.Stock)

	_, err = svc.StockAt(adminCtx, 999, time.Time{})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 2, pub.count(events.EventStockAdjusted))
}

func TestSubmitSaleOnBehalfRequiresActiveCashier(t *testing.T) {
	for _, f := range repoFactories() {
		t.Run(f.name, func(t *testing.T) {
			repo := f.new(t)
			svc := newTestService(t, repo, nil, nil)
			a := addMedicine(t, repo, "A", 5000, 10, nextYear())
			addUser(t, repo, "kasir2", domain.RoleCashier, true)
			addUser(t, repo, "kasir9", domain.RoleCashier, false)
			addUser(t, repo, "apoteker", domain.RoleAdmin, true)
			items := []domain.SaleItem{{MedicineID: a.ID, Qty: 1, UnitPrice: 5000}}

			for _, cashierID := range []string{"ghost-typo", "kasir9", "apoteker"} {
				_, err := svc.SubmitSale(adminCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash, CashierID: cashierID})
				assert.ErrorIs(t, err, store.ErrInvalidArgument, cashierID)
			}
			assert.Equal(t, 10, stockOf(t, repo, a.ID))
			list, err := svc.ListSales(adminCtx, domain.SaleListQuery{})
			require.NoError(t, err)
			assert.Empty(t, list.Sales)

			receipt, err := svc.SubmitSale(adminCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash, CashierID: " Kasir2 "})
			require.NoError(t, err)
			sale, err := svc.GetSale(adminCtx, receipt.ID)
			require.NoError(t, err)
			assert.Equal(t, "kasir2", sale.CashierID)

			// An admin recording its own sale needs no cashier account.
			_, err = svc.SubmitSale(adminCtx, domain.SaleRequest{Items: items, PaymentMethod: domain.PaymentCash})
			require.NoError(t, err)
		})
	}
}

func TestListCashiers(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, repo, nil, nil)
	addUser(t, repo, "kasir2", domain.RoleCashier, true)
	addUser(t, repo, "kasir1", domain.RoleCashier, false)
	addUser(t, repo, "admin", domain.RoleAdmin, true)

	_, err := svc.ListCashiers(cashierCtx)
	require.ErrorIs(t, err, store.ErrPermissionDenied)

	resp, err := svc.ListCashiers(adminCtx)
	require.NoError(t, err)
	require.Len(t, resp.Cashiers, 2)
	assert.Equal(t, "kasir1", resp.Cashiers[0].Username)
	assert.False(t, resp.Cashiers[0].Active)
	assert.Equal(t, "kasir2", resp.Cashiers[1].Username)
}
