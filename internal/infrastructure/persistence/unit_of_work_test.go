package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/allocation/internal/domain/allocation"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockFactory creates a unit of work factory over a mocked PostgreSQL connection
func newMockFactory(t *testing.T) (*GormUnitOfWorkFactory, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, GormConfig(nil, "silent"))
	require.NoError(t, err)

	return NewGormUnitOfWorkFactory(gormDB, WithIsolationLevel(sql.LevelDefault)), mock
}

// trackLoaded registers a product as if Get had loaded it at revision 0
func trackLoaded(t *testing.T, uow *gormUnitOfWork, snap allocation.ProductSnapshot) *allocation.Product {
	t.Helper()
	return trackLoadedAt(t, uow, snap, 0)
}

// trackLoadedAt registers a product as if Get had loaded it at the snapshot's
// version and the given revision
func trackLoadedAt(t *testing.T, uow *gormUnitOfWork, snap allocation.ProductSnapshot, revision int) *allocation.Product {
	t.Helper()
	p := allocation.FromSnapshot(snap)
	ids := make(map[string]uint, len(snap.Batches))
	for i, b := range snap.Batches {
		ids[b.Reference] = uint(i + 1)
	}
	uow.products.tracked[snap.SKU] = &trackedProduct{
		product:        p,
		loadedVersion:  snap.VersionNumber,
		loadedRevision: revision,
		batchIDs:       ids,
	}
	return p
}

func beginMock(t *testing.T, factory *GormUnitOfWorkFactory, mock sqlmock.Sqlmock) *gormUnitOfWork {
	t.Helper()
	mock.ExpectBegin()
	uow, err := factory.Begin(context.Background())
	require.NoError(t, err)
	return uow.(*gormUnitOfWork)
}

func TestGormUnitOfWork_VersionFence(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when the version still matches", func(t *testing.T) {
		factory, mock := newMockFactory(t)
		uow := beginMock(t, factory, mock)
		trackLoaded(t, uow, allocation.ProductSnapshot{SKU: "CHAIR", VersionNumber: 3})

		mock.ExpectExec(`UPDATE "products" SET .*"version_number"=.* WHERE sku = .* AND version_number = `).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, uow.Commit(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows affected is a concurrent update", func(t *testing.T) {
		factory, mock := newMockFactory(t)
		uow := beginMock(t, factory, mock)
		p := trackLoaded(t, uow, allocation.ProductSnapshot{
			SKU:           "CHAIR",
			VersionNumber: 3,
			Batches:       []allocation.BatchSnapshot{{Reference: "b1", SKU: "CHAIR", PurchasedQuantity: 10}},
		})
		_, err := p.Allocate(allocation.OrderLine{OrderID: "o1", SKU: "CHAIR", Qty: 2})
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "products" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = uow.Commit(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Contains(t, err.Error(), "CHAIR")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("serialization failure is a concurrent update", func(t *testing.T) {
		factory, mock := newMockFactory(t)
		uow := beginMock(t, factory, mock)
		trackLoaded(t, uow, allocation.ProductSnapshot{SKU: "CHAIR", VersionNumber: 1})

		mock.ExpectExec(`UPDATE "products" SET`).
			WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
		mock.ExpectRollback()

		assert.ErrorIs(t, uow.Commit(ctx), shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deadlock is a concurrent update", func(t *testing.T) {
		factory, mock := newMockFactory(t)
		uow := beginMock(t, factory, mock)
		trackLoaded(t, uow, allocation.ProductSnapshot{SKU: "CHAIR", VersionNumber: 1})

		mock.ExpectExec(`UPDATE "products" SET`).
			WillReturnError(&pgconn.PgError{Code: "40P01"})
		mock.ExpectRollback()

		assert.ErrorIs(t, uow.Commit(ctx), shared.ErrConcurrencyConflict)
	})

	t.Run("other database errors are wrapped", func(t *testing.T) {
		factory, mock := newMockFactory(t)
		uow := beginMock(t, factory, mock)
		trackLoaded(t, uow, allocation.ProductSnapshot{SKU: "CHAIR", VersionNumber: 1})

		mock.ExpectExec(`UPDATE "products" SET`).WillReturnError(assert.AnError)
		mock.ExpectRollback()

		err := uow.Commit(ctx)
		require.Error(t, err)
		assert.False(t, IsConflict(err))
		assert.True(t, errors.Is(err, assert.AnError))
	})

	t.Run("products are flushed in sku order", func(t *testing.T) {
		factory, mock := newMockFactory(t)
		uow := beginMock(t, factory, mock)
		trackLoaded(t, uow, allocation.ProductSnapshot{SKU: "TABLE", VersionNumber: 1})
		trackLoaded(t, uow, allocation.ProductSnapshot{SKU: "CHAIR", VersionNumber: 1})

		mock.ExpectExec(`UPDATE "products" SET`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "CHAIR", 1, 0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "products" SET`).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "TABLE", 1, 0).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, uow.Commit(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a deallocation still advances the revision", func(t *testing.T) {
		factory, mock := newMockFactory(t)
		uow := beginMock(t, factory, mock)
		p := trackLoadedAt(t, uow, allocation.ProductSnapshot{
			SKU:           "CHAIR",
			VersionNumber: 1,
			Batches: []allocation.BatchSnapshot{{
				Reference:         "b1",
				SKU:               "CHAIR",
				PurchasedQuantity: 10,
				Allocations:       []allocation.OrderLine{{OrderID: "o1", SKU: "CHAIR", Qty: 2}},
			}},
		}, 4)
		require.True(t, p.Deallocate("o1", "CHAIR"))

		// SET revision, version_number, updated_at WHERE sku, version_number, revision
		mock.ExpectExec(`UPDATE "products" SET "revision"=.*"version_number"=.* WHERE sku = .* AND version_number = .* AND revision = `).
			WithArgs(5, 1, sqlmock.AnyArg(), "CHAIR", 1, 4).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM "allocations" WHERE batch_id = `).
			WithArgs(1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, uow.Commit(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("a revision moved by another commit is a concurrent update", func(t *testing.T) {
		factory, mock := newMockFactory(t)
		uow := beginMock(t, factory, mock)
		p := trackLoadedAt(t, uow, allocation.ProductSnapshot{
			SKU:           "CHAIR",
			VersionNumber: 1,
			Batches: []allocation.BatchSnapshot{{
				Reference:         "b1",
				SKU:               "CHAIR",
				PurchasedQuantity: 10,
				Allocations:       []allocation.OrderLine{{OrderID: "o1", SKU: "CHAIR", Qty: 2}},
			}},
		}, 4)
		// Same version, but a deallocation committed in between and took the
		// revision to 5, so the row no longer matches.
		_, err := p.Allocate(allocation.OrderLine{OrderID: "o2", SKU: "CHAIR", Qty: 1})
		require.NoError(t, err)

		mock.ExpectExec(`UPDATE "products" SET`).
			WithArgs(5, 2, sqlmock.AnyArg(), "CHAIR", 1, 4).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		assert.ErrorIs(t, uow.Commit(ctx), shared.ErrConcurrencyConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed begin is reported", func(t *testing.T) {
		factory, mock := newMockFactory(t)
		mock.ExpectBegin().WillReturnError(assert.AnError)

		_, err := factory.Begin(ctx)
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil, "X", "op"))
	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound, "X", "op"), shared.ErrNotFound)
	assert.ErrorIs(t, translateError(gorm.ErrDuplicatedKey, "X", "op"), shared.ErrConcurrencyConflict)
	assert.ErrorIs(t, translateError(&pgconn.PgError{Code: "23505"}, "X", "op"), shared.ErrConcurrencyConflict)

	outOfStock := allocation.NewOutOfStockError("X")
	assert.Same(t, error(outOfStock), translateError(outOfStock, "X", "op"))

	wrapped := translateError(assert.AnError, "X", "load product")
	assert.Contains(t, wrapped.Error(), "load product")
}
