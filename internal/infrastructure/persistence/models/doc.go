// Package models contains GORM persistence models for the allocation store.
// They are kept apart from the domain types so the domain stays free of ORM
// tags; ToDomain/FromDomain convert through the domain snapshots.
//
// Tables:
//   - products: one row per SKU carrying the optimistic version
//   - batches: purchased stock for a SKU, unique by reference
//   - allocations: order lines assigned to a batch
package models
