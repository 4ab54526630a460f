package persistence

import (
	"context"
	"errors"
	"sort"

	"github.com/erp/allocation/internal/domain/allocation"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// trackedProduct is a product loaded or added inside a unit of work together
// with what the store held when it was loaded.
type trackedProduct struct {
	product        *allocation.Product
	loadedVersion  int
	loadedRevision int
	isNew          bool
	batchIDs       map[string]uint // reference -> batches.id
}

// GormProductRepository is the ProductRepository bound to one transaction.
// It keeps an identity map so repeated Gets return the same aggregate.
type GormProductRepository struct {
	tx      *gorm.DB
	tracked map[string]*trackedProduct
}

// newGormProductRepository creates a repository over tx
func newGormProductRepository(tx *gorm.DB) *GormProductRepository {
	return &GormProductRepository{
		tx:      tx,
		tracked: make(map[string]*trackedProduct),
	}
}

// Get loads the product with its batches (insertion order) and allocations
func (r *GormProductRepository) Get(ctx context.Context, sku string) (*allocation.Product, error) {
	if t, ok := r.tracked[sku]; ok {
		return t.product, nil
	}

	var model models.ProductModel
	if err := r.tx.WithContext(ctx).Where("sku = ?", sku).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, translateError(err, sku, "load product")
	}

	var batches []models.BatchModel
	if err := r.tx.WithContext(ctx).
		Preload("Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("sku = ?", sku).
		Order("id").
		Find(&batches).Error; err != nil {
		return nil, translateError(err, sku, "load batches")
	}

	ids := make(map[string]uint, len(batches))
	for _, b := range batches {
		ids[b.Reference] = b.ID
	}

	product := model.ToDomain(batches)
	r.tracked[sku] = &trackedProduct{
		product:        product,
		loadedVersion:  model.VersionNumber,
		loadedRevision: model.Revision,
		batchIDs:       ids,
	}
	return product, nil
}

// Add registers a new product to be inserted on commit
func (r *GormProductRepository) Add(ctx context.Context, product *allocation.Product) error {
	if _, ok := r.tracked[product.SKU]; ok {
		return shared.NewDomainErrorf(shared.ErrAlreadyExists.Code, "Product %s already exists", product.SKU)
	}
	r.tracked[product.SKU] = &trackedProduct{
		product:       product,
		loadedVersion: product.VersionNumber(),
		isNew:         true,
		batchIDs:      make(map[string]uint),
	}
	return nil
}

// flush writes every tracked product in SKU order
func (r *GormProductRepository) flush(ctx context.Context) error {
	skus := make([]string, 0, len(r.tracked))
	for sku := range r.tracked {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	for _, sku := range skus {
		if err := r.flushProduct(ctx, r.tracked[sku]); err != nil {
			return err
		}
	}
	return nil
}

func (r *GormProductRepository) flushProduct(ctx context.Context, t *trackedProduct) error {
	db := r.tx.WithContext(ctx)
	snap := t.product.Snapshot()

	if t.isNew {
		if err := db.Create(models.ProductModelFromDomain(t.product)).Error; err != nil {
			return translateError(err, snap.SKU, "insert product")
		}
	} else {
		// The fence: succeeds only if nobody committed since we loaded.
		result := db.Model(&models.ProductModel{}).
			Where("sku = ? AND version_number = ? AND revision = ?", snap.SKU, t.loadedVersion, t.loadedRevision).
			Updates(map[string]any{
				"version_number": snap.VersionNumber,
				"revision":       t.loadedRevision + 1,
			})
		if result.Error != nil {
			return translateError(result.Error, snap.SKU, "update product version")
		}
		if result.RowsAffected == 0 {
			return allocation.NewConcurrentUpdateError(snap.SKU)
		}
	}

	for _, bs := range snap.Batches {
		batchID, ok := t.batchIDs[bs.Reference]
		if !ok {
			row := models.BatchModelFromSnapshot(bs)
			if err := db.Create(row).Error; err != nil {
				return translateError(err, snap.SKU, "insert batch")
			}
			batchID = row.ID
			t.batchIDs[bs.Reference] = batchID
		}

		if err := db.Where("batch_id = ?", batchID).Delete(&models.AllocationModel{}).Error; err != nil {
			return translateError(err, snap.SKU, "clear allocations")
		}
		if rows := models.AllocationModelsFromLines(batchID, bs.Allocations); len(rows) > 0 {
			if err := db.Create(&rows).Error; err != nil {
				return translateError(err, snap.SKU, "insert allocations")
			}
		}
	}
	return nil
}
