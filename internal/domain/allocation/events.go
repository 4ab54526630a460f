package allocation

import (
	"time"

	"github.com/erp/allocation/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeProduct = "Product"

// Event type constants
const (
	EventTypeBatchCreated = "BatchCreated"
	EventTypeAllocated    = "Allocated"
	EventTypeDeallocated  = "Deallocated"
)

// BatchCreatedEvent is raised when a batch is added to a product
type BatchCreatedEvent struct {
	shared.BaseDomainEvent
	Reference string     `json:"ref"`
	SKU       string     `json:"sku"`
	Qty       int        `json:"qty"`
	ETA       *time.Time `json:"eta,omitempty"`
}

// NewBatchCreatedEvent creates a new BatchCreatedEvent
func NewBatchCreatedEvent(batch *Batch) *BatchCreatedEvent {
	return &BatchCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBatchCreated, AggregateTypeProduct, batch.SKU),
		Reference:       batch.Reference,
		SKU:             batch.SKU,
		Qty:             batch.PurchasedQuantity,
		ETA:             batch.ETA,
	}
}

// AllocatedEvent is raised when an order line is allocated to a batch
type AllocatedEvent struct {
	shared.BaseDomainEvent
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batch_ref"`
}

// NewAllocatedEvent creates a new AllocatedEvent
func NewAllocatedEvent(line OrderLine, batchRef string) *AllocatedEvent {
	return &AllocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocated, AggregateTypeProduct, line.SKU),
		OrderID:         line.OrderID,
		SKU:             line.SKU,
		Qty:             line.Qty,
		BatchRef:        batchRef,
	}
}

// DeallocatedEvent is raised when an allocation is removed from a batch
type DeallocatedEvent struct {
	shared.BaseDomainEvent
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batch_ref"`
}

// NewDeallocatedEvent creates a new DeallocatedEvent
func NewDeallocatedEvent(line OrderLine, batchRef string) *DeallocatedEvent {
	return &DeallocatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDeallocated, AggregateTypeProduct, line.SKU),
		OrderID:         line.OrderID,
		SKU:             line.SKU,
		Qty:             line.Qty,
		BatchRef:        batchRef,
	}
}
