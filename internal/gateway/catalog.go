package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	productsQueue           = "products"
	validateProductsPattern = "validate_products"
)

// Product is the catalog's view of an item: the system of record for
// identity, unit price and display name.
type Product struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type CatalogGateway interface {
	// ValidateProducts resolves the given ids against the catalog service.
	// The reply contains only the ids the catalog knows; coverage checking
	// is the caller's job.
	ValidateProducts(ctx context.Context, ids []int64) ([]Product, error)
}

type CatalogHandler struct {
	caller  Caller
	timeout time.Duration
}

func NewCatalogHandler(caller Caller, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		caller:  caller,
		timeout: timeout,
	}
}

func (h *CatalogHandler) ValidateProducts(ctx context.Context, ids []int64) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	reply, err := h.caller.Call(ctx, productsQueue, validateProductsPattern, ids)
	if err != nil {
		return nil, fmt.Errorf("validate products: %w", err)
	}

	var products []Product
	if err := json.Unmarshal(reply, &products); err != nil {
		return nil, fmt.Errorf("unmarshal validate products reply: %w", err)
	}
	return products, nil
}
