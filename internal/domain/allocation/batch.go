package allocation

import (
	"sort"
	"strings"
	"time"

	"github.com/erp/allocation/internal/domain/shared"
)

// Batch is a quantity of stock for one SKU. A nil ETA means the stock is
// already in the warehouse; otherwise it is a shipment expected on ETA.
type Batch struct {
	Reference         string
	SKU               string
	PurchasedQuantity int
	ETA               *time.Time
	allocations       map[lineKey]OrderLine
}

// NewBatch creates a new batch with no allocations
func NewBatch(reference, sku string, qty int, eta *time.Time) (*Batch, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, shared.NewDomainError("INVALID_BATCH_REF", "Batch reference cannot be empty")
	}
	if strings.TrimSpace(sku) == "" {
		return nil, shared.NewDomainError("INVALID_SKU_VALUE", "SKU cannot be empty")
	}
	if qty < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Purchased quantity cannot be negative")
	}
	return &Batch{
		Reference:         reference,
		SKU:               sku,
		PurchasedQuantity: qty,
		ETA:               eta,
		allocations:       make(map[lineKey]OrderLine),
	}, nil
}

// CanAllocate reports whether the line fits in this batch right now
func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.SKU == line.SKU && b.AvailableQuantity() >= line.Qty
}

// Allocate adds the line to the batch when it fits. A line that does not fit,
// or that is already allocated here, leaves the batch untouched.
func (b *Batch) Allocate(line OrderLine) {
	if !b.CanAllocate(line) {
		return
	}
	if b.HasAllocation(line.OrderID, line.SKU) {
		return
	}
	b.allocations[line.key()] = line
}

// Deallocate removes the allocation for (orderID, sku), returning the removed
// line and true, or false if the batch held no such allocation.
func (b *Batch) Deallocate(orderID, sku string) (OrderLine, bool) {
	k := lineKey{orderID: orderID, sku: sku}
	line, ok := b.allocations[k]
	if !ok {
		return OrderLine{}, false
	}
	delete(b.allocations, k)
	return line, true
}

// HasAllocation reports whether the batch holds the (orderID, sku) line
func (b *Batch) HasAllocation(orderID, sku string) bool {
	_, ok := b.allocations[lineKey{orderID: orderID, sku: sku}]
	return ok
}

// AllocatedQuantity returns the sum of allocated quantities
func (b *Batch) AllocatedQuantity() int {
	total := 0
	for _, line := range b.allocations {
		total += line.Qty
	}
	return total
}

// AvailableQuantity returns purchased minus allocated quantity
func (b *Batch) AvailableQuantity() int {
	return b.PurchasedQuantity - b.AllocatedQuantity()
}

// Allocations returns the allocated lines ordered by order ID
func (b *Batch) Allocations() []OrderLine {
	lines := make([]OrderLine, 0, len(b.allocations))
	for _, line := range b.allocations {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].OrderID != lines[j].OrderID {
			return lines[i].OrderID < lines[j].OrderID
		}
		return lines[i].SKU < lines[j].SKU
	})
	return lines
}

// IsInStock returns true if the batch has no ETA
func (b *Batch) IsInStock() bool {
	return b.ETA == nil
}

// Less reports whether b is preferred over other for allocation: in-stock
// batches come before shipments, and earlier shipments before later ones.
// Two in-stock batches, or two shipments with the same ETA, are equal.
func (b *Batch) Less(other *Batch) bool {
	if b.IsInStock() {
		return !other.IsInStock()
	}
	if other.IsInStock() {
		return false
	}
	return b.ETA.Before(*other.ETA)
}

// SortBatches returns a copy of batches in allocation preference order.
// Equal batches keep their relative order.
func SortBatches(batches []*Batch) []*Batch {
	sorted := make([]*Batch, len(batches))
	copy(sorted, batches)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Less(sorted[j])
	})
	return sorted
}
