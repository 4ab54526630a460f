package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics collector is built without a meter
var ErrMeterNil = errors.New("telemetry: meter is nil")

// AllocationMetrics counts allocation outcomes per SKU. All methods are safe
// to call on a nil receiver, which records nothing.
type AllocationMetrics struct {
	allocations   *Counter
	allocatedQty  *Counter
	outOfStock    *Counter
	conflicts     *Counter
	deallocations *Counter
	batchesAdded  *Counter
	logger        *zap.Logger
}

// NewAllocationMetrics registers the allocation counters on meter
func NewAllocationMetrics(meter metric.Meter, logger *zap.Logger) (*AllocationMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &AllocationMetrics{logger: logger}
	counters := []struct {
		target      **Counter
		name        string
		description string
		unit        string
	}{
		{&m.allocations, "allocation_allocations_total", "Order lines allocated to a batch", "{allocation}"},
		{&m.allocatedQty, "allocation_allocated_quantity_total", "Units allocated to batches", "{unit}"},
		{&m.outOfStock, "allocation_out_of_stock_total", "Allocations rejected for lack of stock", "{allocation}"},
		{&m.conflicts, "allocation_conflicts_total", "Commits rejected by the product version check", "{conflict}"},
		{&m.deallocations, "allocation_deallocations_total", "Allocations released", "{allocation}"},
		{&m.batchesAdded, "allocation_batches_added_total", "Batches added to products", "{batch}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	logger.Debug("Allocation metrics registered")
	return m, nil
}

// RecordAllocated counts a successful allocation of qty units
func (m *AllocationMetrics) RecordAllocated(ctx context.Context, sku string, qty int) {
	if m == nil {
		return
	}
	m.allocations.Inc(ctx, AttrSKU.String(sku))
	m.allocatedQty.Add(ctx, int64(qty), AttrSKU.String(sku))
}

// RecordOutOfStock counts an allocation rejected for lack of stock
func (m *AllocationMetrics) RecordOutOfStock(ctx context.Context, sku string) {
	if m == nil {
		return
	}
	m.outOfStock.Inc(ctx, AttrSKU.String(sku))
}

// RecordConflict counts a commit that lost the version race
func (m *AllocationMetrics) RecordConflict(ctx context.Context, sku, operation string) {
	if m == nil {
		return
	}
	m.conflicts.Inc(ctx, AttrSKU.String(sku), AttrOperation.String(operation))
}

// RecordDeallocated counts a released allocation
func (m *AllocationMetrics) RecordDeallocated(ctx context.Context, sku string) {
	if m == nil {
		return
	}
	m.deallocations.Inc(ctx, AttrSKU.String(sku))
}

// RecordBatchAdded counts a new batch
func (m *AllocationMetrics) RecordBatchAdded(ctx context.Context, sku string) {
	if m == nil {
		return
	}
	m.batchesAdded.Inc(ctx, AttrSKU.String(sku))
}
