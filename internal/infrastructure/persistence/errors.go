package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/allocation/internal/domain/allocation"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// PostgreSQL error codes that mean another transaction won the race
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// translateError maps driver errors to domain errors at the repository
// boundary. Anything not recognised is wrapped with op for context.
func translateError(err error, sku, op string) error {
	if err == nil {
		return nil
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return allocation.NewConcurrentUpdateError(sku)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return allocation.NewConcurrentUpdateError(sku)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// IsConflict reports whether err is a concurrency conflict
func IsConflict(err error) bool {
	return errors.Is(err, shared.ErrConcurrencyConflict)
}
