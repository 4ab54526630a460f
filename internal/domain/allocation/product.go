package allocation

import (
	"strings"

	"github.com/erp/allocation/internal/domain/shared"
)

// Product is the aggregate root for all batches of one SKU. Its version is
// the optimistic concurrency fence: it advances by one on every successful
// allocation and on nothing else.
type Product struct {
	shared.BaseAggregateRoot
	SKU     string
	batches []*Batch
}

// NewProduct creates a product at version 0 with no batches
func NewProduct(sku string) (*Product, error) {
	if strings.TrimSpace(sku) == "" {
		return nil, shared.NewDomainError("INVALID_SKU_VALUE", "SKU cannot be empty")
	}
	return &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(0),
		SKU:               sku,
		batches:           make([]*Batch, 0),
	}, nil
}

// VersionNumber returns the current version of the product
func (p *Product) VersionNumber() int {
	return p.GetVersion()
}

// Batches returns the product's batches in insertion order
func (p *Product) Batches() []*Batch {
	out := make([]*Batch, len(p.batches))
	copy(out, p.batches)
	return out
}

// Batch returns the batch with the given reference, or nil
func (p *Product) Batch(reference string) *Batch {
	for _, b := range p.batches {
		if b.Reference == reference {
			return b
		}
	}
	return nil
}

// AddBatch appends a batch to the product. The batch must belong to the
// product's SKU and its reference must not already be in use.
func (p *Product) AddBatch(batch *Batch) error {
	if batch.SKU != p.SKU {
		return shared.NewDomainErrorf(CodeSkuMismatch,
			"Batch %s has sku %s, expected %s", batch.Reference, batch.SKU, p.SKU)
	}
	if p.Batch(batch.Reference) != nil {
		return shared.NewDomainErrorf(shared.ErrAlreadyExists.Code,
			"Batch %s already exists", batch.Reference)
	}
	p.batches = append(p.batches, batch)
	p.AddDomainEvent(NewBatchCreatedEvent(batch))
	return nil
}

// Allocate assigns the line to the most preferred batch that can take it
// and returns that batch's reference.
func (p *Product) Allocate(line OrderLine) (string, error) {
	for _, b := range SortBatches(p.batches) {
		if !b.CanAllocate(line) {
			continue
		}
		b.Allocate(line)
		p.IncrementVersion()
		p.AddDomainEvent(NewAllocatedEvent(line, b.Reference))
		return b.Reference, nil
	}
	return "", NewOutOfStockError(line.SKU)
}

// Deallocate removes the (orderID, sku) allocation from the first batch in
// insertion order that holds it. It does not change the version.
func (p *Product) Deallocate(orderID, sku string) bool {
	for _, b := range p.batches {
		if line, ok := b.Deallocate(orderID, sku); ok {
			p.AddDomainEvent(NewDeallocatedEvent(line, b.Reference))
			return true
		}
	}
	return false
}

// AvailableQuantity returns the total available quantity across batches
func (p *Product) AvailableQuantity() int {
	total := 0
	for _, b := range p.batches {
		total += b.AvailableQuantity()
	}
	return total
}
