package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	appallocation "github.com/erp/allocation/internal/application/allocation"
	"github.com/erp/allocation/internal/domain/allocation"
	"github.com/erp/allocation/internal/domain/shared"
)

// MemoryStore is an in-process product store with the same fence as the
// database. Units of work read snapshots, so nothing a unit of work does is
// visible to others until it commits.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]storedProduct
}

// storedProduct is a committed snapshot. revision advances on every commit,
// including deallocations and added batches that leave the version alone.
type storedProduct struct {
	snapshot allocation.ProductSnapshot
	revision int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[string]storedProduct)}
}

// Begin implements appallocation.UnitOfWorkFactory
func (s *MemoryStore) Begin(ctx context.Context) (appallocation.UnitOfWork, error) {
	return &memoryUnitOfWork{
		store: s,
		repo:  &memoryProductRepository{store: s, tracked: make(map[string]*trackedProduct)},
	}, nil
}

// Snapshot returns the committed state for sku
func (s *MemoryStore) Snapshot(sku string) (allocation.ProductSnapshot, bool) {
	stored, ok := s.load(sku)
	return stored.snapshot, ok
}

func (s *MemoryStore) load(sku string) (storedProduct, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.products[sku]
	return stored, ok
}

// commit checks every fence before writing anything
func (s *MemoryStore) commit(tracked map[string]*trackedProduct) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	skus := make([]string, 0, len(tracked))
	for sku := range tracked {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	for _, sku := range skus {
		t := tracked[sku]
		current, exists := s.products[sku]
		switch {
		case t.isNew && exists:
			return allocation.NewConcurrentUpdateError(sku)
		case !t.isNew && (!exists ||
			current.snapshot.VersionNumber != t.loadedVersion ||
			current.revision != t.loadedRevision):
			return allocation.NewConcurrentUpdateError(sku)
		}
	}

	for _, sku := range skus {
		t := tracked[sku]
		s.products[sku] = storedProduct{
			snapshot: t.product.Snapshot(),
			revision: t.loadedRevision + 1,
		}
	}
	return nil
}

type memoryProductRepository struct {
	store   *MemoryStore
	tracked map[string]*trackedProduct
}

func (r *memoryProductRepository) Get(ctx context.Context, sku string) (*allocation.Product, error) {
	if t, ok := r.tracked[sku]; ok {
		return t.product, nil
	}
	stored, ok := r.store.load(sku)
	if !ok {
		return nil, shared.ErrNotFound
	}
	product := allocation.FromSnapshot(stored.snapshot)
	r.tracked[sku] = &trackedProduct{
		product:        product,
		loadedVersion:  stored.snapshot.VersionNumber,
		loadedRevision: stored.revision,
	}
	return product, nil
}

func (r *memoryProductRepository) Add(ctx context.Context, product *allocation.Product) error {
	if _, ok := r.tracked[product.SKU]; ok {
		return shared.NewDomainErrorf(shared.ErrAlreadyExists.Code, "Product %s already exists", product.SKU)
	}
	r.tracked[product.SKU] = &trackedProduct{
		product:       product,
		loadedVersion: product.VersionNumber(),
		isNew:         true,
	}
	return nil
}

type memoryUnitOfWork struct {
	store *MemoryStore
	repo  *memoryProductRepository
	done  bool
}

func (u *memoryUnitOfWork) Products() allocation.ProductRepository {
	return u.repo
}

func (u *memoryUnitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}
	u.done = true
	return u.store.commit(u.repo.tracked)
}

func (u *memoryUnitOfWork) Rollback(ctx context.Context) error {
	u.done = true
	return nil
}
