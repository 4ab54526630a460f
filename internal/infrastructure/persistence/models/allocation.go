package models

import (
	"time"

	"github.com/erp/allocation/internal/domain/allocation"
)

// ProductModel is the persistence model for the Product aggregate root.
// VersionNumber and Revision are compared and swapped on every commit.
// Revision is storage-only and moves on each commit, including the ones
// that leave VersionNumber alone.
type ProductModel struct {
	SKU           string    `gorm:"type:varchar(255);primaryKey"`
	VersionNumber int       `gorm:"not null"`
	Revision      int       `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// BatchModel is the persistence model for a Batch
type BatchModel struct {
	ID                uint       `gorm:"primaryKey;autoIncrement"`
	Reference         string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_batches_reference"`
	SKU               string     `gorm:"type:varchar(255);not null;index:idx_batches_sku"`
	PurchasedQuantity int        `gorm:"not null"`
	ETA               *time.Time
	CreatedAt         time.Time  `gorm:"not null"`
	// Associations
	Allocations []AllocationModel `gorm:"foreignKey:BatchID;references:ID"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// AllocationModel records one order line held by a batch
type AllocationModel struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	BatchID uint   `gorm:"not null;uniqueIndex:idx_allocations_batch_line,priority:1"`
	OrderID string `gorm:"type:varchar(255);not null;uniqueIndex:idx_allocations_batch_line,priority:2"`
	SKU     string `gorm:"type:varchar(255);not null;uniqueIndex:idx_allocations_batch_line,priority:3"`
	Qty     int    `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the allocation row to an order line
func (m *AllocationModel) ToDomain() allocation.OrderLine {
	return allocation.OrderLine{OrderID: m.OrderID, SKU: m.SKU, Qty: m.Qty}
}

// ToSnapshot converts the batch row and its allocations to a batch snapshot
func (m *BatchModel) ToSnapshot() allocation.BatchSnapshot {
	s := allocation.BatchSnapshot{
		Reference:         m.Reference,
		SKU:               m.SKU,
		PurchasedQuantity: m.PurchasedQuantity,
		Allocations:       make([]allocation.OrderLine, 0, len(m.Allocations)),
	}
	if m.ETA != nil {
		eta := *m.ETA
		s.ETA = &eta
	}
	for i := range m.Allocations {
		s.Allocations = append(s.Allocations, m.Allocations[i].ToDomain())
	}
	return s
}

// BatchModelFromSnapshot builds a new batch row; allocations are written separately
func BatchModelFromSnapshot(s allocation.BatchSnapshot) *BatchModel {
	m := &BatchModel{
		Reference:         s.Reference,
		SKU:               s.SKU,
		PurchasedQuantity: s.PurchasedQuantity,
	}
	if s.ETA != nil {
		eta := *s.ETA
		m.ETA = &eta
	}
	return m
}

// AllocationModelsFromLines builds allocation rows for a batch
func AllocationModelsFromLines(batchID uint, lines []allocation.OrderLine) []AllocationModel {
	out := make([]AllocationModel, 0, len(lines))
	for _, line := range lines {
		out = append(out, AllocationModel{
			BatchID: batchID,
			OrderID: line.OrderID,
			SKU:     line.SKU,
			Qty:     line.Qty,
		})
	}
	return out
}

// ToDomain rebuilds the Product aggregate from the product row and its batches
func (m *ProductModel) ToDomain(batches []BatchModel) *allocation.Product {
	s := allocation.ProductSnapshot{
		SKU:           m.SKU,
		VersionNumber: m.VersionNumber,
		Batches:       make([]allocation.BatchSnapshot, 0, len(batches)),
	}
	for i := range batches {
		s.Batches = append(s.Batches, batches[i].ToSnapshot())
	}
	return allocation.FromSnapshot(s)
}

// ProductModelFromDomain builds the product row for a new aggregate
func ProductModelFromDomain(p *allocation.Product) *ProductModel {
	return &ProductModel{
		SKU:           p.SKU,
		VersionNumber: p.VersionNumber(),
	}
}

// AllModels returns every model in dependency order, for AutoMigrate
func AllModels() []any {
	return []any{&ProductModel{}, &BatchModel{}, &AllocationModel{}}
}
