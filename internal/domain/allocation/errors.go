package allocation

import "github.com/erp/allocation/internal/domain/shared"

// Error codes raised by the allocation domain
const (
	CodeOutOfStock  = "OUT_OF_STOCK"
	CodeInvalidSku  = "INVALID_SKU"
	CodeSkuMismatch = "SKU_MISMATCH"
)

// Sentinels for errors.Is checks. Errors returned by the domain carry the
// offending SKU in their message and match these by code.
var (
	ErrOutOfStock  = shared.NewDomainError(CodeOutOfStock, "Out of stock")
	ErrInvalidSku  = shared.NewDomainError(CodeInvalidSku, "Invalid sku")
	ErrSkuMismatch = shared.NewDomainError(CodeSkuMismatch, "Batch sku does not match product sku")
)

// NewOutOfStockError is returned when no batch of the product can take an order line
func NewOutOfStockError(sku string) *shared.DomainError {
	return shared.NewDomainErrorf(CodeOutOfStock, "Out of stock for sku: %s", sku)
}

// NewInvalidSkuError is returned when no product exists for the requested sku
func NewInvalidSkuError(sku string) *shared.DomainError {
	return shared.NewDomainErrorf(CodeInvalidSku, "Invalid sku: %s", sku)
}

// NewConcurrentUpdateError is returned when another transaction committed a
// newer version of the product after it was loaded
func NewConcurrentUpdateError(sku string) *shared.DomainError {
	return shared.NewDomainErrorf(
		shared.ErrConcurrencyConflict.Code,
		"Product %s was modified by another transaction, please retry", sku,
	)
}
