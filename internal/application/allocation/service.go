package allocation

import (
	"context"
	"errors"
	"time"

	"github.com/erp/allocation/internal/domain/allocation"
	"github.com/erp/allocation/internal/domain/shared"
	"github.com/erp/allocation/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Service runs the allocation use cases. Each call is one unit of work; a
// CONCURRENCY_CONFLICT error is returned to the caller as is and never retried
// here.
type Service struct {
	uowFactory     UnitOfWorkFactory
	eventPublisher shared.EventPublisher
	metrics        *telemetry.AllocationMetrics
	logger         *zap.Logger
}

// NewService creates a new allocation Service
func NewService(uowFactory UnitOfWorkFactory, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		uowFactory: uowFactory,
		logger:     logger,
	}
}

// SetEventPublisher sets the publisher that receives domain events after commit
func (s *Service) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAllocationMetrics sets the allocation metrics collector
func (s *Service) SetAllocationMetrics(m *telemetry.AllocationMetrics) {
	s.metrics = m
}

// Allocate assigns the order line to the best batch of the sku and returns
// the batch reference.
func (s *Service) Allocate(ctx context.Context, orderID, sku string, qty int) (string, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "allocate",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID),
		telemetry.WithAttribute(telemetry.SpanAttrSKU, sku),
		telemetry.WithAttribute(telemetry.SpanAttrQuantity, qty),
	)
	defer span.End()

	line, err := allocation.NewOrderLine(orderID, sku, qty)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", err
	}

	var (
		batchRef string
		events   []shared.DomainEvent
	)
	err = Execute(ctx, s.uowFactory, func(uow UnitOfWork) error {
		product, err := uow.Products().Get(ctx, sku)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return allocation.NewInvalidSkuError(sku)
			}
			return err
		}

		batchRef, err = product.Allocate(line)
		if err != nil {
			return err
		}

		if err := uow.Commit(ctx); err != nil {
			return err
		}
		events = takeEvents(product)
		return nil
	})
	if err != nil {
		s.fail(ctx, span, "allocate", sku, err, zap.String("order_id", orderID), zap.Int("qty", qty))
		return "", err
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrBatchRef, batchRef)
	s.metrics.RecordAllocated(ctx, sku, qty)
	s.logger.Info("Order line allocated",
		zap.String("order_id", orderID),
		zap.String("sku", sku),
		zap.Int("qty", qty),
		zap.String("batch_ref", batchRef),
	)
	telemetry.SetOK(span)
	s.publish(ctx, events)
	return batchRef, nil
}

// Deallocate releases the (orderID, sku) allocation. Unknown skus and
// unknown allocations are no-ops.
func (s *Service) Deallocate(ctx context.Context, orderID, sku string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "deallocate",
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID),
		telemetry.WithAttribute(telemetry.SpanAttrSKU, sku),
	)
	defer span.End()

	var (
		removed bool
		events  []shared.DomainEvent
	)
	err := Execute(ctx, s.uowFactory, func(uow UnitOfWork) error {
		product, err := uow.Products().Get(ctx, sku)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil
			}
			return err
		}

		removed = product.Deallocate(orderID, sku)

		if err := uow.Commit(ctx); err != nil {
			return err
		}
		events = takeEvents(product)
		return nil
	})
	if err != nil {
		s.fail(ctx, span, "deallocate", sku, err, zap.String("order_id", orderID))
		return err
	}

	if removed {
		s.metrics.RecordDeallocated(ctx, sku)
		s.logger.Info("Order line deallocated",
			zap.String("order_id", orderID),
			zap.String("sku", sku),
		)
	}
	telemetry.SetOK(span)
	s.publish(ctx, events)
	return nil
}

// AddBatch adds a new batch, creating the product first if the sku is new
func (s *Service) AddBatch(ctx context.Context, ref, sku string, qty int, eta *time.Time) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "add_batch",
		telemetry.WithAttribute(telemetry.SpanAttrBatchRef, ref),
		telemetry.WithAttribute(telemetry.SpanAttrSKU, sku),
		telemetry.WithAttribute(telemetry.SpanAttrQuantity, qty),
	)
	defer span.End()

	batch, err := allocation.NewBatch(ref, sku, qty, eta)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	var events []shared.DomainEvent
	err = Execute(ctx, s.uowFactory, func(uow UnitOfWork) error {
		product, err := uow.Products().Get(ctx, sku)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			product, err = allocation.NewProduct(sku)
			if err != nil {
				return err
			}
			if err := uow.Products().Add(ctx, product); err != nil {
				return err
			}
		case err != nil:
			return err
		}

		if err := product.AddBatch(batch); err != nil {
			return err
		}

		if err := uow.Commit(ctx); err != nil {
			return err
		}
		events = takeEvents(product)
		return nil
	})
	if err != nil {
		s.fail(ctx, span, "add_batch", sku, err, zap.String("batch_ref", ref))
		return err
	}

	s.metrics.RecordBatchAdded(ctx, sku)
	s.logger.Info("Batch added",
		zap.String("batch_ref", ref),
		zap.String("sku", sku),
		zap.Int("qty", qty),
		zap.Timep("eta", eta),
	)
	telemetry.SetOK(span)
	s.publish(ctx, events)
	return nil
}

func takeEvents(product *allocation.Product) []shared.DomainEvent {
	events := product.GetDomainEvents()
	product.ClearDomainEvents()
	return events
}

// publish hands committed events to the publisher. The operation has already
// been committed, so a publishing failure is only logged.
func (s *Service) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish allocation events",
			zap.Int("event_count", len(events)),
			zap.Error(err),
		)
	}
}

func (s *Service) fail(ctx context.Context, span trace.Span, op, sku string, err error, fields ...zap.Field) {
	telemetry.RecordError(span, err)
	fields = append(fields, zap.String("operation", op), zap.String("sku", sku), zap.Error(err))

	switch {
	case errors.Is(err, allocation.ErrOutOfStock):
		s.metrics.RecordOutOfStock(ctx, sku)
		s.logger.Info("Allocation rejected: out of stock", fields...)
	case errors.Is(err, shared.ErrConcurrencyConflict):
		s.metrics.RecordConflict(ctx, sku, op)
		s.logger.Warn("Concurrent update on product", fields...)
	case errors.Is(err, allocation.ErrInvalidSku):
		s.logger.Info("Allocation rejected: unknown sku", fields...)
	default:
		var domainErr *shared.DomainError
		if errors.As(err, &domainErr) {
			s.logger.Info("Allocation request rejected", fields...)
			return
		}
		s.logger.Error("Allocation operation failed", fields...)
	}
}
