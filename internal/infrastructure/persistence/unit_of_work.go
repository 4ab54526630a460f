package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	appallocation "github.com/erp/allocation/internal/application/allocation"
	"github.com/erp/allocation/internal/domain/allocation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ParseIsolationLevel maps a config value to a sql isolation level.
// Unknown or empty values yield sql.LevelDefault.
func ParseIsolationLevel(level string) sql.IsolationLevel {
	switch strings.ToLower(level) {
	case "read_committed":
		return sql.LevelReadCommitted
	case "repeatable_read":
		return sql.LevelRepeatableRead
	case "serializable":
		return sql.LevelSerializable
	default:
		return sql.LevelDefault
	}
}

// GormUnitOfWorkFactory opens database transactions as units of work
type GormUnitOfWorkFactory struct {
	db        *gorm.DB
	isolation sql.IsolationLevel
	logger    *zap.Logger
}

// UnitOfWorkOption configures a GormUnitOfWorkFactory
type UnitOfWorkOption func(*GormUnitOfWorkFactory)

// WithIsolationLevel sets the transaction isolation level
func WithIsolationLevel(level sql.IsolationLevel) UnitOfWorkOption {
	return func(f *GormUnitOfWorkFactory) {
		f.isolation = level
	}
}

// WithLogger sets the logger used for rollback failures
func WithLogger(logger *zap.Logger) UnitOfWorkOption {
	return func(f *GormUnitOfWorkFactory) {
		f.logger = logger
	}
}

// NewGormUnitOfWorkFactory creates a factory over db. Transactions default to
// REPEATABLE READ.
func NewGormUnitOfWorkFactory(db *gorm.DB, opts ...UnitOfWorkOption) *GormUnitOfWorkFactory {
	f := &GormUnitOfWorkFactory{
		db:        db,
		isolation: sql.LevelRepeatableRead,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Begin starts a transaction
func (f *GormUnitOfWorkFactory) Begin(ctx context.Context) (appallocation.UnitOfWork, error) {
	var tx *gorm.DB
	if f.isolation == sql.LevelDefault {
		tx = f.db.WithContext(ctx).Begin()
	} else {
		tx = f.db.WithContext(ctx).Begin(&sql.TxOptions{Isolation: f.isolation})
	}
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	return &gormUnitOfWork{
		tx:       tx,
		products: newGormProductRepository(tx),
		logger:   f.logger,
	}, nil
}

// gormUnitOfWork is a single transaction. Writes happen on Commit: each
// tracked product runs its version fence, then its batches and allocations
// are written.
type gormUnitOfWork struct {
	tx       *gorm.DB
	products *GormProductRepository
	logger   *zap.Logger
	done     bool
}

func (u *gormUnitOfWork) Products() allocation.ProductRepository {
	return u.products
}

func (u *gormUnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}

	if err := u.products.flush(ctx); err != nil {
		u.rollback()
		return err
	}

	if err := u.tx.Commit().Error; err != nil {
		u.done = true
		return translateError(err, u.firstSKU(), "commit")
	}
	u.done = true
	return nil
}

func (u *gormUnitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	return u.rollback()
}

func (u *gormUnitOfWork) rollback() error {
	u.done = true
	if err := u.tx.Rollback().Error; err != nil && err != sql.ErrTxDone {
		u.logger.Warn("Rollback failed", zap.Error(err))
		return err
	}
	return nil
}

func (u *gormUnitOfWork) firstSKU() string {
	skus := make([]string, 0, len(u.products.tracked))
	for sku := range u.products.tracked {
		skus = append(skus, sku)
	}
	if len(skus) == 0 {
		return ""
	}
	sort.Strings(skus)
	return skus[0]
}
