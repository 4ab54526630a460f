package allocation

import "time"

// ProductSnapshot is the persisted state of a Product. Stores build one with
// Snapshot and rebuild the aggregate with FromSnapshot.
type ProductSnapshot struct {
	SKU           string
	VersionNumber int
	Batches       []BatchSnapshot
}

// BatchSnapshot is the persisted state of a Batch
type BatchSnapshot struct {
	Reference         string
	SKU               string
	PurchasedQuantity int
	ETA               *time.Time
	Allocations       []OrderLine
}

// Snapshot captures the product's current state. Pending domain events are
// not part of it.
func (p *Product) Snapshot() ProductSnapshot {
	s := ProductSnapshot{
		SKU:           p.SKU,
		VersionNumber: p.VersionNumber(),
		Batches:       make([]BatchSnapshot, 0, len(p.batches)),
	}
	for _, b := range p.batches {
		s.Batches = append(s.Batches, b.Snapshot())
	}
	return s
}

// Snapshot captures the batch's current state
func (b *Batch) Snapshot() BatchSnapshot {
	var eta *time.Time
	if b.ETA != nil {
		t := *b.ETA
		eta = &t
	}
	return BatchSnapshot{
		Reference:         b.Reference,
		SKU:               b.SKU,
		PurchasedQuantity: b.PurchasedQuantity,
		ETA:               eta,
		Allocations:       b.Allocations(),
	}
}

// FromSnapshot rebuilds a product without recording domain events
func FromSnapshot(s ProductSnapshot) *Product {
	p := &Product{
		SKU:     s.SKU,
		batches: make([]*Batch, 0, len(s.Batches)),
	}
	p.Version = s.VersionNumber
	for _, bs := range s.Batches {
		p.batches = append(p.batches, batchFromSnapshot(bs))
	}
	return p
}

func batchFromSnapshot(s BatchSnapshot) *Batch {
	b := &Batch{
		Reference:         s.Reference,
		SKU:               s.SKU,
		PurchasedQuantity: s.PurchasedQuantity,
		allocations:       make(map[lineKey]OrderLine, len(s.Allocations)),
	}
	if s.ETA != nil {
		t := *s.ETA
		b.ETA = &t
	}
	for _, line := range s.Allocations {
		b.allocations[line.key()] = line
	}
	return b
}
