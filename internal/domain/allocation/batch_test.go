package allocation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func mustBatch(t *testing.T, ref, sku string, qty int, eta *time.Time) *Batch {
	t.Helper()
	b, err := NewBatch(ref, sku, qty, eta)
	require.NoError(t, err)
	return b
}

func mustLine(t *testing.T, orderID, sku string, qty int) OrderLine {
	t.Helper()
	line, err := NewOrderLine(orderID, sku, qty)
	require.NoError(t, err)
	return line
}

func TestNewOrderLine(t *testing.T) {
	t.Run("valid line", func(t *testing.T) {
		line, err := NewOrderLine("order-1", "RED-CHAIR", 3)
		require.NoError(t, err)
		assert.Equal(t, OrderLine{OrderID: "order-1", SKU: "RED-CHAIR", Qty: 3}, line)
	})

	t.Run("rejects empty order id", func(t *testing.T) {
		_, err := NewOrderLine("  ", "RED-CHAIR", 3)
		assert.Error(t, err)
	})

	t.Run("rejects empty sku", func(t *testing.T) {
		_, err := NewOrderLine("order-1", "", 3)
		assert.Error(t, err)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := NewOrderLine("order-1", "RED-CHAIR", 0)
		assert.Error(t, err)
		_, err = NewOrderLine("order-1", "RED-CHAIR", -2)
		assert.Error(t, err)
	})
}

func TestNewBatch(t *testing.T) {
	t.Run("starts with full availability", func(t *testing.T) {
		b := mustBatch(t, "batch-001", "SMALL-TABLE", 20, nil)
		assert.Equal(t, 20, b.AvailableQuantity())
		assert.Empty(t, b.Allocations())
		assert.True(t, b.IsInStock())
	})

	t.Run("rejects empty reference", func(t *testing.T) {
		_, err := NewBatch("", "SMALL-TABLE", 20, nil)
		assert.Error(t, err)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		_, err := NewBatch("batch-001", "SMALL-TABLE", -1, nil)
		assert.Error(t, err)
	})
}

func TestBatch_Allocate(t *testing.T) {
	t.Run("allocating reduces available quantity", func(t *testing.T) {
		b := mustBatch(t, "batch-001", "SMALL-TABLE", 20, date(2011, 1, 1))
		b.Allocate(mustLine(t, "order-ref", "SMALL-TABLE", 2))
		assert.Equal(t, 18, b.AvailableQuantity())
	})

	t.Run("exact quantity drains the batch", func(t *testing.T) {
		b := mustBatch(t, "batch-001", "ELEGANT-LAMP", 2, nil)
		b.Allocate(mustLine(t, "order-ref", "ELEGANT-LAMP", 2))
		assert.Equal(t, 0, b.AvailableQuantity())
	})

	t.Run("allocation is idempotent", func(t *testing.T) {
		b := mustBatch(t, "batch-001", "ANGULAR-DESK", 20, nil)
		line := mustLine(t, "order-ref", "ANGULAR-DESK", 2)
		b.Allocate(line)
		b.Allocate(line)
		assert.Equal(t, 18, b.AvailableQuantity())
		assert.Len(t, b.Allocations(), 1)
	})

	t.Run("a different sku leaves the batch untouched", func(t *testing.T) {
		b := mustBatch(t, "batch-001", "UNCOMFORTABLE-CHAIR", 100, nil)
		b.Allocate(mustLine(t, "order-123", "EXPENSIVE-TOASTER", 10))
		assert.Equal(t, 100, b.AvailableQuantity())
		assert.Empty(t, b.Allocations())
	})

	t.Run("too large a line leaves the batch untouched", func(t *testing.T) {
		b := mustBatch(t, "batch-001", "ELEGANT-LAMP", 2, nil)
		b.Allocate(mustLine(t, "order-ref", "ELEGANT-LAMP", 3))
		assert.Equal(t, 2, b.AvailableQuantity())
	})
}

func TestBatch_CanAllocate(t *testing.T) {
	tests := []struct {
		name      string
		batchQty  int
		lineQty   int
		lineSKU   string
		canFitted bool
	}{
		{"available greater than required", 20, 2, "ELEGANT-LAMP", true},
		{"available equal to required", 2, 2, "ELEGANT-LAMP", true},
		{"available smaller than required", 2, 20, "ELEGANT-LAMP", false},
		{"sku does not match", 20, 2, "OTHER-LAMP", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := mustBatch(t, "batch-001", "ELEGANT-LAMP", tt.batchQty, nil)
			line := mustLine(t, "order-123", tt.lineSKU, tt.lineQty)
			assert.Equal(t, tt.canFitted, b.CanAllocate(line))
			assert.Equal(t, tt.batchQty, b.AvailableQuantity())
		})
	}
}

func TestBatch_Deallocate(t *testing.T) {
	t.Run("restores availability", func(t *testing.T) {
		b := mustBatch(t, "batch-001", "DECORATIVE-TRINKET", 20, nil)
		b.Allocate(mustLine(t, "order-1", "DECORATIVE-TRINKET", 5))

		line, ok := b.Deallocate("order-1", "DECORATIVE-TRINKET")
		assert.True(t, ok)
		assert.Equal(t, 5, line.Qty)
		assert.Equal(t, 20, b.AvailableQuantity())
	})

	t.Run("unknown line is a no-op", func(t *testing.T) {
		b := mustBatch(t, "batch-001", "DECORATIVE-TRINKET", 20, nil)
		b.Allocate(mustLine(t, "order-1", "DECORATIVE-TRINKET", 5))

		_, ok := b.Deallocate("order-2", "DECORATIVE-TRINKET")
		assert.False(t, ok)
		assert.Equal(t, 15, b.AvailableQuantity())
	})
}

func TestBatch_HasAllocation(t *testing.T) {
	b := mustBatch(t, "batch-1", "SMALL-TABLE", 20, date(2030, 1, 1))
	assert.False(t, b.IsInStock())

	b.Allocate(mustLine(t, "order-1", "SMALL-TABLE", 2))
	assert.True(t, b.HasAllocation("order-1", "SMALL-TABLE"))
	assert.False(t, b.HasAllocation("order-2", "SMALL-TABLE"))

	b.Allocate(mustLine(t, "order-1", "SMALL-TABLE", 5))
	assert.Equal(t, 18, b.AvailableQuantity())

	_, ok := b.Deallocate("order-1", "SMALL-TABLE")
	require.True(t, ok)
	assert.False(t, b.HasAllocation("order-1", "SMALL-TABLE"))
}

func TestBatch_Less(t *testing.T) {
	inStock := mustBatch(t, "in-stock", "SKU", 10, nil)
	otherInStock := mustBatch(t, "in-stock-2", "SKU", 10, nil)
	early := mustBatch(t, "early", "SKU", 10, date(2000, 1, 1))
	late := mustBatch(t, "late", "SKU", 10, date(2030, 1, 1))

	t.Run("in-stock before any shipment", func(t *testing.T) {
		assert.True(t, inStock.Less(early))
		assert.True(t, inStock.Less(late))
		assert.False(t, early.Less(inStock))
	})

	t.Run("two in-stock batches are equal", func(t *testing.T) {
		assert.False(t, inStock.Less(otherInStock))
		assert.False(t, otherInStock.Less(inStock))
	})

	t.Run("earlier shipment first", func(t *testing.T) {
		assert.True(t, early.Less(late))
		assert.False(t, late.Less(early))
		assert.False(t, early.Less(early))
	})
}

func TestSortBatches(t *testing.T) {
	t.Run("orders in-stock then by eta", func(t *testing.T) {
		late := mustBatch(t, "late", "SKU", 10, date(2030, 1, 1))
		inStock := mustBatch(t, "in-stock", "SKU", 10, nil)
		early := mustBatch(t, "early", "SKU", 10, date(2000, 1, 1))

		sorted := SortBatches([]*Batch{late, inStock, early})

		assert.Equal(t, []string{"in-stock", "early", "late"}, refs(sorted))
	})

	t.Run("keeps insertion order for equal batches", func(t *testing.T) {
		a := mustBatch(t, "a", "SKU", 10, nil)
		b := mustBatch(t, "b", "SKU", 10, nil)
		c := mustBatch(t, "c", "SKU", 10, date(2020, 5, 5))
		d := mustBatch(t, "d", "SKU", 10, date(2020, 5, 5))

		for i := 0; i < 5; i++ {
			assert.Equal(t, []string{"a", "b", "c", "d"}, refs(SortBatches([]*Batch{c, a, d, b})))
			assert.Equal(t, []string{"a", "b", "c", "d"}, refs(SortBatches([]*Batch{a, b, c, d})))
			assert.Equal(t, []string{"b", "a", "d", "c"}, refs(SortBatches([]*Batch{d, b, c, a})))
		}
	})

	t.Run("does not reorder the input", func(t *testing.T) {
		late := mustBatch(t, "late", "SKU", 10, date(2030, 1, 1))
		inStock := mustBatch(t, "in-stock", "SKU", 10, nil)
		input := []*Batch{late, inStock}

		SortBatches(input)

		assert.Equal(t, []string{"late", "in-stock"}, refs(input))
	})
}

func refs(batches []*Batch) []string {
	out := make([]string, 0, len(batches))
	for _, b := range batches {
		out = append(out, b.Reference)
	}
	return out
}
