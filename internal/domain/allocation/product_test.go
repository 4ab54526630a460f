package allocation

import (
	"errors"
	"testing"

	"github.com/erp/allocation/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProduct(t *testing.T, sku string, batches ...*Batch) *Product {
	t.Helper()
	p, err := NewProduct(sku)
	require.NoError(t, err)
	for _, b := range batches {
		require.NoError(t, p.AddBatch(b))
	}
	p.ClearDomainEvents()
	return p
}

func TestNewProduct(t *testing.T) {
	p, err := NewProduct("RETRO-CLOCK")
	require.NoError(t, err)
	assert.Equal(t, "RETRO-CLOCK", p.SKU)
	assert.Equal(t, 0, p.VersionNumber())
	assert.Empty(t, p.Batches())

	_, err = NewProduct("")
	assert.Error(t, err)
}

func TestProduct_Allocate(t *testing.T) {
	t.Run("prefers in-stock batches to shipments", func(t *testing.T) {
		shipment := mustBatch(t, "b1", "RETRO-CLOCK", 100, date(2000, 1, 1))
		inStock := mustBatch(t, "b2", "RETRO-CLOCK", 100, nil)
		p := newProduct(t, "RETRO-CLOCK", shipment, inStock)

		ref, err := p.Allocate(mustLine(t, "o1", "RETRO-CLOCK", 10))

		require.NoError(t, err)
		assert.Equal(t, "b2", ref)
		assert.Equal(t, 100, shipment.AvailableQuantity())
		assert.Equal(t, 90, inStock.AvailableQuantity())
	})

	t.Run("prefers earlier shipments", func(t *testing.T) {
		earliest := mustBatch(t, "speedy", "MINIMALIST-SPOON", 100, date(2020, 1, 1))
		medium := mustBatch(t, "normal", "MINIMALIST-SPOON", 100, date(2020, 1, 2))
		latest := mustBatch(t, "slow", "MINIMALIST-SPOON", 100, date(2020, 3, 1))
		p := newProduct(t, "MINIMALIST-SPOON", latest, medium, earliest)

		ref, err := p.Allocate(mustLine(t, "o1", "MINIMALIST-SPOON", 10))

		require.NoError(t, err)
		assert.Equal(t, "speedy", ref)
		assert.Equal(t, 90, earliest.AvailableQuantity())
		assert.Equal(t, 100, medium.AvailableQuantity())
		assert.Equal(t, 100, latest.AvailableQuantity())
	})

	t.Run("falls through to the next batch when the preferred one is short", func(t *testing.T) {
		inStock := mustBatch(t, "in-stock", "HIGHBROW-POSTER", 5, nil)
		shipment := mustBatch(t, "shipment", "HIGHBROW-POSTER", 100, date(2020, 1, 1))
		p := newProduct(t, "HIGHBROW-POSTER", shipment, inStock)

		ref, err := p.Allocate(mustLine(t, "o1", "HIGHBROW-POSTER", 10))

		require.NoError(t, err)
		assert.Equal(t, "shipment", ref)
		assert.Equal(t, 5, inStock.AvailableQuantity())
	})

	t.Run("increments version by one on success", func(t *testing.T) {
		p := newProduct(t, "SCANDI-PEN", mustBatch(t, "b1", "SCANDI-PEN", 100, nil))
		p.Version = 7

		_, err := p.Allocate(mustLine(t, "o1", "SCANDI-PEN", 10))

		require.NoError(t, err)
		assert.Equal(t, 8, p.VersionNumber())
	})

	t.Run("records an allocated event", func(t *testing.T) {
		p := newProduct(t, "SCANDI-PEN", mustBatch(t, "b1", "SCANDI-PEN", 100, nil))

		_, err := p.Allocate(mustLine(t, "o1", "SCANDI-PEN", 10))
		require.NoError(t, err)

		events := p.GetDomainEvents()
		require.Len(t, events, 1)
		evt, ok := events[0].(*AllocatedEvent)
		require.True(t, ok)
		assert.Equal(t, EventTypeAllocated, evt.EventType())
		assert.Equal(t, "SCANDI-PEN", evt.AggregateID())
		assert.Equal(t, "b1", evt.BatchRef)
		assert.Equal(t, 10, evt.Qty)
	})

	t.Run("out of stock after the only batch is drained", func(t *testing.T) {
		b := mustBatch(t, "b1", "SMALL-FORK", 10, nil)
		p := newProduct(t, "SMALL-FORK", b)

		ref, err := p.Allocate(mustLine(t, "o1", "SMALL-FORK", 10))
		require.NoError(t, err)
		assert.Equal(t, "b1", ref)
		assert.Equal(t, 0, b.AvailableQuantity())
		p.ClearDomainEvents()

		_, err = p.Allocate(mustLine(t, "o2", "SMALL-FORK", 1))

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOutOfStock))
		assert.Contains(t, err.Error(), "SMALL-FORK")
		assert.Equal(t, "Out of stock for sku: SMALL-FORK", err.Error())
	})

	t.Run("failure leaves the product unchanged", func(t *testing.T) {
		b := mustBatch(t, "b1", "SMALL-FORK", 5, nil)
		p := newProduct(t, "SMALL-FORK", b)

		_, err := p.Allocate(mustLine(t, "o1", "SMALL-FORK", 6))

		require.Error(t, err)
		assert.Equal(t, 0, p.VersionNumber())
		assert.Equal(t, 5, b.AvailableQuantity())
		assert.Empty(t, p.GetDomainEvents())
	})

	t.Run("out of stock with no batches", func(t *testing.T) {
		p := newProduct(t, "EMPTY-SHELF")

		_, err := p.Allocate(mustLine(t, "o1", "EMPTY-SHELF", 1))

		assert.ErrorIs(t, err, ErrOutOfStock)
	})
}

func TestProduct_Deallocate(t *testing.T) {
	t.Run("restores availability without changing version", func(t *testing.T) {
		b := mustBatch(t, "b1", "BLUE-VASE", 20, nil)
		p := newProduct(t, "BLUE-VASE", b)
		_, err := p.Allocate(mustLine(t, "o1", "BLUE-VASE", 5))
		require.NoError(t, err)
		p.ClearDomainEvents()

		removed := p.Deallocate("o1", "BLUE-VASE")

		assert.True(t, removed)
		assert.Equal(t, 20, b.AvailableQuantity())
		assert.Equal(t, 1, p.VersionNumber())
		require.Len(t, p.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeDeallocated, p.GetDomainEvents()[0].EventType())
	})

	t.Run("unknown allocation is a no-op", func(t *testing.T) {
		b := mustBatch(t, "b1", "BLUE-VASE", 20, nil)
		p := newProduct(t, "BLUE-VASE", b)

		removed := p.Deallocate("never-allocated", "BLUE-VASE")

		assert.False(t, removed)
		assert.Equal(t, 20, b.AvailableQuantity())
		assert.Equal(t, 0, p.VersionNumber())
		assert.Empty(t, p.GetDomainEvents())
	})

	t.Run("removes from the batch that holds the line", func(t *testing.T) {
		inStock := mustBatch(t, "in-stock", "BLUE-VASE", 2, nil)
		shipment := mustBatch(t, "shipment", "BLUE-VASE", 20, date(2020, 1, 1))
		p := newProduct(t, "BLUE-VASE", inStock, shipment)
		_, err := p.Allocate(mustLine(t, "o1", "BLUE-VASE", 2))
		require.NoError(t, err)
		ref, err := p.Allocate(mustLine(t, "o2", "BLUE-VASE", 5))
		require.NoError(t, err)
		require.Equal(t, "shipment", ref)

		p.Deallocate("o2", "BLUE-VASE")

		assert.Equal(t, 0, inStock.AvailableQuantity())
		assert.Equal(t, 20, shipment.AvailableQuantity())
	})
}

func TestProduct_AddBatch(t *testing.T) {
	t.Run("appends and records an event", func(t *testing.T) {
		p := newProduct(t, "OAK-TABLE")

		err := p.AddBatch(mustBatch(t, "b1", "OAK-TABLE", 10, nil))

		require.NoError(t, err)
		assert.Len(t, p.Batches(), 1)
		assert.NotNil(t, p.Batch("b1"))
		assert.Equal(t, 0, p.VersionNumber())
		require.Len(t, p.GetDomainEvents(), 1)
		assert.Equal(t, EventTypeBatchCreated, p.GetDomainEvents()[0].EventType())
	})

	t.Run("rejects a batch for another sku", func(t *testing.T) {
		p := newProduct(t, "OAK-TABLE")

		err := p.AddBatch(mustBatch(t, "b1", "PINE-TABLE", 10, nil))

		assert.ErrorIs(t, err, ErrSkuMismatch)
		assert.Empty(t, p.Batches())
	})

	t.Run("rejects a duplicate reference", func(t *testing.T) {
		p := newProduct(t, "OAK-TABLE", mustBatch(t, "b1", "OAK-TABLE", 10, nil))

		err := p.AddBatch(mustBatch(t, "b1", "OAK-TABLE", 5, nil))

		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		assert.Len(t, p.Batches(), 1)
	})

	t.Run("available quantity sums all batches", func(t *testing.T) {
		p := newProduct(t, "OAK-TABLE",
			mustBatch(t, "b1", "OAK-TABLE", 10, nil),
			mustBatch(t, "b2", "OAK-TABLE", 15, date(2021, 6, 1)),
		)
		assert.Equal(t, 25, p.AvailableQuantity())
	})
}

func TestProductSnapshot(t *testing.T) {
	t.Run("round trips state", func(t *testing.T) {
		eta := date(2024, 2, 29)
		p := newProduct(t, "WOOL-RUG",
			mustBatch(t, "b1", "WOOL-RUG", 10, nil),
			mustBatch(t, "b2", "WOOL-RUG", 30, eta),
		)
		_, err := p.Allocate(mustLine(t, "o1", "WOOL-RUG", 4))
		require.NoError(t, err)
		_, err = p.Allocate(mustLine(t, "o2", "WOOL-RUG", 8))
		require.NoError(t, err)

		restored := FromSnapshot(p.Snapshot())

		assert.Equal(t, p.Snapshot(), restored.Snapshot())
		assert.Equal(t, 2, restored.VersionNumber())
		assert.Equal(t, 6, restored.Batch("b1").AvailableQuantity())
		assert.Equal(t, 22, restored.Batch("b2").AvailableQuantity())
		assert.Empty(t, restored.GetDomainEvents())
	})

	t.Run("restored product is independent of the original", func(t *testing.T) {
		p := newProduct(t, "WOOL-RUG", mustBatch(t, "b1", "WOOL-RUG", 10, date(2024, 1, 1)))
		restored := FromSnapshot(p.Snapshot())

		_, err := restored.Allocate(mustLine(t, "o1", "WOOL-RUG", 4))
		require.NoError(t, err)

		assert.Equal(t, 10, p.Batch("b1").AvailableQuantity())
		assert.Equal(t, 0, p.VersionNumber())
	})
}
