package services

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"cart-monitor-service/common/logger"
	"cart-monitor-service/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProductEnricher fills in product names from the catalog.
type ProductEnricher struct {
	catalog     ProductCatalog
	timeout     time.Duration
	concurrency int
	log         *zap.Logger
}

func NewProductEnricher(catalog ProductCatalog, timeout time.Duration, concurrency int, log *zap.Logger) *ProductEnricher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ProductEnricher{
		catalog:     catalog,
		timeout:     timeout,
		concurrency: concurrency,
		log:         log.With(zap.String("component", "product_enricher")),
	}
}

// ResolveName returns the display name of productID, or UnknownProductName
// when the lookup fails for any reason. Failures are logged, never returned.
func (e *ProductEnricher) ResolveName(ctx context.Context, productID string) string {
	name, _ := e.resolve(ctx, productID)
	return name
}

func (e *ProductEnricher) resolve(ctx context.Context, productID string) (string, bool) {
	name, err := e.lookup(ctx, productID)
	if err != nil {
		fields := []zap.Field{zap.String("product_id", productID), zap.Error(err)}
		if errors.Is(err, ErrProductNotFound) {
			logger.For(ctx, e.log).Warn("Product not found in catalog", fields...)
		} else {
			logger.For(ctx, e.log).Error("Catalog lookup failed", fields...)
		}
		return models.UnknownProductName, false
	}
	return name, true
}

func (e *ProductEnricher) lookup(ctx context.Context, productID string) (string, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	prod, err := e.catalog.GetProduct(ctx, productID)
	if err != nil {
		return "", err
	}
	if prod == nil || strings.TrimSpace(prod.Name) == "" {
		return "", ErrProductNotFound
	}
	return prod.Name, nil
}

// Enrich resolves names for every real item of a cart. Lookups run
// concurrently; the returned slice keeps the input order. Placeholder items
// are passed through untouched. The second value counts failed lookups.
func (e *ProductEnricher) Enrich(ctx context.Context, items []models.CartItem) ([]models.CartItem, int) {
	out := make([]models.CartItem, len(items))
	copy(out, items)

	var (
		failures atomic.Int64
		g        errgroup.Group
	)
	g.SetLimit(e.concurrency)
	for i := range out {
		if out[i].Placeholder {
			continue
		}
		i := i
		g.Go(func() error {
			name, ok := e.resolve(ctx, out[i].ProductID)
			if !ok {
				failures.Add(1)
			}
			out[i].ProductName = name
			return nil
		})
	}
	_ = g.Wait()

	return out, int(failures.Load())
}
