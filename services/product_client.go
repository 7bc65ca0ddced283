package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductCatalog looks up products by id.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
}

// ProductClient calls the catalog service over HTTP: GET {baseURL}/products/{id}.
type ProductClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewProductClient builds a catalog client. rps <= 0 disables client side
// rate limiting.
func NewProductClient(baseURL string, timeout time.Duration, rps float64, burst int) *ProductClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	return &ProductClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *ProductClient) GetProduct(ctx context.Context, productID string) (*Product, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("catalog rate limit: %w", err)
	}

	endpoint := fmt.Sprintf("%s/products/%s", c.baseURL, url.PathEscape(productID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("product service returned %d", resp.StatusCode)
	}

	var prod Product
	if err := json.NewDecoder(resp.Body).Decode(&prod); err != nil {
		return nil, fmt.Errorf("decode product %s: %w", productID, err)
	}
	return &prod, nil
}
