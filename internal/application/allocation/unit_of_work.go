package allocation

import (
	"context"

	"github.com/erp/allocation/internal/domain/allocation"
)

// UnitOfWork is one transaction over the product store. Products loaded
// through Products() belong to this unit of work until it ends.
//
// Commit persists every product touched in the scope together with its
// version. It fails with a CONCURRENCY_CONFLICT domain error when another
// transaction committed a newer version of any of those products first, and
// in that case nothing is written.
//
// Rollback discards pending writes. Calling it after Commit, or twice, is a
// no-op, so it can always be deferred.
type UnitOfWork interface {
	Products() allocation.ProductRepository
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFactory opens units of work
type UnitOfWorkFactory interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}

// Execute opens a unit of work, runs fn with it and rolls back whatever fn
// did not commit, including when fn returns an error or panics.
func Execute(ctx context.Context, factory UnitOfWorkFactory, fn func(uow UnitOfWork) error) error {
	uow, err := factory.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()
	return fn(uow)
}
