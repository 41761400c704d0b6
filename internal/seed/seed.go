package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

// Target is the part of the repository a seed file writes to.
type Target interface {
	CreateMedicine(ctx context.Context, medicine domain.Medicine, actor string) (*domain.Medicine, error)
	ListMedicines(ctx context.Context, filter domain.MedicineFilter) ([]domain.Medicine, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
}

type File struct {
	Medicines []MedicineEntry `yaml:"medicines"`
	Users     []UserEntry     `yaml:"users"`
}

type MedicineEntry struct {
	Code      string `yaml:"code"`
	Name      string `yaml:"name"`
	Category  string `yaml:"category"`
	CostPrice int64  `yaml:"cost_price"`
	SalePrice int64  `yaml:"sale_price"`
	Stock     int    `yaml:"stock"`
	MinStock  int    `yaml:"min_stock"`
	// Expiry is YYYY-MM-DD.
	Expiry  string `yaml:"expiry"`
	Batch   string `yaml:"batch"`
	Barcode string `yaml:"barcode"`
}

type UserEntry struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

type Result struct {
	Medicines int
	Users     int
}

func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("parse seed file: %w", err)
	}
	return f, nil
}

func LoadFile(ctx context.Context, target Target, path string, logger *zap.Logger) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer file.Close()

	f, err := Parse(file)
	if err != nil {
		return Result{}, err
	}
	return Apply(ctx, target, f, logger)
}

// Apply loads the catalog only into an empty store and users only into an
// empty user table, so restarts never double the opening stock. Every entry
// is checked before the first write. A write that still fails reports how
// many rows were already stored in Result and in the error.
func Apply(ctx context.Context, target Target, f File, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var res Result

	existing, err := target.ListMedicines(ctx, domain.MedicineFilter{})
	if err != nil {
		return res, err
	}
	var medicines []domain.Medicine
	if len(existing) == 0 {
		medicines, err = prepareMedicines(f.Medicines, logger)
		if err != nil {
			return res, err
		}
	} else if len(f.Medicines) > 0 {
		logger.Info("catalog already populated, medicine seed skipped", zap.Int("existing", len(existing)))
	}

	users, err := target.ListUsers(ctx)
	if err != nil {
		return res, err
	}
	var accounts []domain.UserAccount
	if len(users) == 0 {
		accounts, err = prepareUsers(f.Users)
		if err != nil {
			return res, err
		}
	}

	for _, med := range medicines {
		if _, err := target.CreateMedicine(ctx, med, "seed"); err != nil {
			return res, fmt.Errorf("seed medicine %s (%d of %d already stored): %w", med.Code, res.Medicines, len(medicines), err)
		}
		res.Medicines++
	}
	for _, account := range accounts {
		if err := target.CreateUser(ctx, account); err != nil {
			return res, fmt.Errorf("seed user %s (%d of %d already stored): %w", account.Username, res.Users, len(accounts), err)
		}
		res.Users++
	}

	logger.Info("seed applied", zap.Int("medicines", res.Medicines), zap.Int("users", res.Users))
	return res, nil
}

// prepareMedicines converts and validates the catalog entries. Entries the
// catalog would reject are skipped with a warning; unreadable ones fail the seed.
func prepareMedicines(entries []MedicineEntry, logger *zap.Logger) ([]domain.Medicine, error) {
	out := make([]domain.Medicine, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		med, err := entry.toDomain()
		if err != nil {
			return nil, err
		}
		if err := store.ValidateMedicine(med); err != nil {
			logger.Warn("skipping seed medicine", zap.String("code", entry.Code), zap.Error(err))
			continue
		}
		key := strings.ToLower(med.Code)
		if seen[key] {
			logger.Warn("skipping duplicate seed medicine", zap.String("code", entry.Code))
			continue
		}
		seen[key] = true
		out = append(out, med)
	}
	return out, nil
}

func prepareUsers(entries []UserEntry) ([]domain.UserAccount, error) {
	out := make([]domain.UserAccount, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		username := strings.ToLower(strings.TrimSpace(entry.Username))
		if username == "" {
			return nil, fmt.Errorf("seed user: %w: username is required", store.ErrInvalidArgument)
		}
		if strings.TrimSpace(entry.Password) == "" {
			return nil, fmt.Errorf("seed user %s: %w: password is required", username, store.ErrInvalidArgument)
		}
		if seen[username] {
			return nil, fmt.Errorf("seed user %s: %w: listed twice", username, store.ErrInvalidArgument)
		}
		seen[username] = true

		hash, err := bcrypt.GenerateFromPassword([]byte(entry.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", username, err)
		}
		role := strings.ToLower(strings.TrimSpace(entry.Role))
		if role != domain.RoleAdmin {
			role = domain.RoleCashier
		}
		out = append(out, domain.UserAccount{
			Username:  username,
			Password:  string(hash),
			Role:      role,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		})
	}
	return out, nil
}

func (e MedicineEntry) toDomain() (domain.Medicine, error) {
	expiry, err := time.Parse("2006-01-02", strings.TrimSpace(e.Expiry))
	if err != nil {
		return domain.Medicine{}, fmt.Errorf("seed medicine %s: expiry %q: %w", e.Code, e.Expiry, err)
	}
	return domain.Medicine{
		Code:       strings.TrimSpace(e.Code),
		Name:       strings.TrimSpace(e.Name),
		Category:   strings.TrimSpace(e.Category),
		CostPrice:  e.CostPrice,
		SalePrice:  e.SalePrice,
		Stock:      e.Stock,
		MinStock:   e.MinStock,
		ExpiryDate: expiry,
		Batch:      strings.TrimSpace(e.Batch),
		Barcode:    strings.TrimSpace(e.Barcode),
	}, nil
}
