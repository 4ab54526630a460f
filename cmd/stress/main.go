package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	appallocation "github.com/erp/allocation/internal/application/allocation"
	"github.com/erp/allocation/internal/domain/allocation"
	"github.com/erp/allocation/internal/infrastructure/config"
	"github.com/erp/allocation/internal/infrastructure/logger"
	"github.com/erp/allocation/internal/infrastructure/persistence"
	"go.uber.org/zap"
)

type counters struct {
	allocated  atomic.Int32
	outOfStock atomic.Int32
	conflicts  atomic.Int32
	retried    atomic.Int32
	failed     atomic.Int32
}

func main() {
	var (
		memory   bool
		requests int
		stock    int
		qty      int
		retries  int
	)
	flag.BoolVar(&memory, "memory", false, "Use the in-memory store instead of PostgreSQL")
	flag.IntVar(&requests, "requests", 50, "Concurrent allocation requests")
	flag.IntVar(&stock, "stock", 20, "Units in the single batch")
	flag.IntVar(&qty, "qty", 1, "Units per order line")
	flag.IntVar(&retries, "retries", 0, "Retries after a concurrency conflict")
	flag.Parse()

	log, err := logger.New(&logger.Config{Level: "warn", Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	var factory appallocation.UnitOfWorkFactory
	if memory {
		factory = persistence.NewMemoryStore()
	} else {
		cfg, err := config.Load()
		if err != nil {
			log.Fatal("Failed to load configuration", zap.Error(err))
		}
		db, err := persistence.NewDatabase(&cfg.Database, log)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		factory = persistence.NewGormUnitOfWorkFactory(db.DB,
			persistence.WithIsolationLevel(persistence.ParseIsolationLevel(cfg.Database.IsolationLevel)),
			persistence.WithLogger(log),
		)
	}

	service := appallocation.NewService(factory, log)

	// Fresh sku per run so repeated runs against one database do not collide.
	sku := fmt.Sprintf("STRESS-%d", time.Now().UnixNano())
	if err := service.AddBatch(ctx, sku+"-batch", sku, stock, nil); err != nil {
		log.Fatal("Failed to seed batch", zap.Error(err))
	}

	var (
		c     counters
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			orderID := fmt.Sprintf("order-%d", i)
			for attempt := 0; ; attempt++ {
				_, err := service.Allocate(ctx, orderID, sku, qty)
				switch {
				case err == nil:
					c.allocated.Add(1)
				case errors.Is(err, allocation.ErrOutOfStock):
					c.outOfStock.Add(1)
				case persistence.IsConflict(err):
					if attempt < retries {
						c.retried.Add(1)
						continue
					}
					c.conflicts.Add(1)
				default:
					c.failed.Add(1)
					log.Error("Allocation failed", zap.String("order_id", orderID), zap.Error(err))
				}
				return
			}
		}(i)
	}

	began := time.Now()
	close(start)
	wg.Wait()
	elapsed := time.Since(began)

	allocated := int(c.allocated.Load())

	fmt.Println("========== ALLOCATION STRESS RESULTS ==========")
	fmt.Printf("Store:             %s\n", storeName(memory))
	fmt.Printf("SKU:               %s\n", sku)
	fmt.Printf("Batch stock:       %d\n", stock)
	fmt.Printf("Requests:          %d x %d\n", requests, qty)
	fmt.Printf("Allocated:         %d\n", allocated)
	fmt.Printf("Out of stock:      %d\n", c.outOfStock.Load())
	fmt.Printf("Conflicts:         %d\n", c.conflicts.Load())
	fmt.Printf("Conflict retries:  %d\n", c.retried.Load())
	fmt.Printf("Other failures:    %d\n", c.failed.Load())
	fmt.Printf("Duration:          %v\n", elapsed)
	fmt.Println("===============================================")

	if allocated*qty > stock {
		fmt.Printf("FAIL: allocated %d units from a batch of %d\n", allocated*qty, stock)
		os.Exit(1)
	}
	fmt.Println("PASS: no batch was over-allocated")
}

func storeName(memory bool) string {
	if memory {
		return "memory"
	}
	return "postgres"
}
