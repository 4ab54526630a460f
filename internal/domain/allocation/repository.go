package allocation

import "context"

// ProductRepository loads and registers products inside a unit of work.
// Implementations are bound to the transaction of the unit of work that
// handed them out; changes are written when that unit of work commits.
type ProductRepository interface {
	// Get returns the product for sku, or shared.ErrNotFound
	Get(ctx context.Context, sku string) (*Product, error)

	// Add registers a new product to be inserted on commit
	Add(ctx context.Context, product *Product) error
}
