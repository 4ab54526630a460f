package handler

import (
	"context"
	"time"

	"github.com/erp/allocation/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// AllocationService is the application service behind the allocation routes
type AllocationService interface {
	Allocate(ctx context.Context, orderID, sku string, qty int) (string, error)
	Deallocate(ctx context.Context, orderID, sku string) error
	AddBatch(ctx context.Context, ref, sku string, qty int, eta *time.Time) error
}

// AllocationHandler serves allocations and batches
type AllocationHandler struct {
	BaseHandler
	service AllocationService
}

// NewAllocationHandler creates a new AllocationHandler
func NewAllocationHandler(service AllocationService) *AllocationHandler {
	return &AllocationHandler{service: service}
}

// Allocate handles POST /allocations
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	batchRef, err := h.service.Allocate(c.Request.Context(), req.OrderID, req.SKU, req.Qty)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.AllocateResponse{BatchRef: batchRef})
}

// Deallocate handles DELETE /allocations
func (h *AllocationHandler) Deallocate(c *gin.Context) {
	var req dto.DeallocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	if err := h.service.Deallocate(c.Request.Context(), req.OrderID, req.SKU); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// AddBatch handles POST /batches
func (h *AllocationHandler) AddBatch(c *gin.Context) {
	var req dto.AddBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	eta := req.ETATime()
	if err := h.service.AddBatch(c.Request.Context(), req.Ref, req.SKU, req.Qty, eta); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.AddBatchResponse{Ref: req.Ref, SKU: req.SKU, Qty: req.Qty, ETA: eta})
}

// RegisterRoutes mounts the handler under rg
func (h *AllocationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/allocations", h.Allocate)
	rg.DELETE("/allocations", h.Deallocate)
	rg.POST("/batches", h.AddBatch)
}
