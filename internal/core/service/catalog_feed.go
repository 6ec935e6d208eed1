package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	DefaultPageSize   = 20
	DefaultPageSettle = 500 * time.Millisecond
)

type AdvanceResult struct {
	Page      int  `json:"page"`
	Visible   int  `json:"visible"`
	Appended  int  `json:"appended"`
	Exhausted bool `json:"exhausted"`
	// Shared is set when the advance was handed to more than one caller.
	Shared bool `json:"shared"`
}

// CatalogFeed exposes the catalog as a window that grows one page at a time.
type CatalogFeed struct {
	products []domain.Product
	byID     map[int64]domain.Product
	pageSize int
	settle   time.Duration

	group singleflight.Group

	mu   sync.RWMutex
	page int
}

func NewCatalogFeed(products []domain.Product, pageSize int, settle time.Duration) *CatalogFeed {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	byID := make(map[int64]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &CatalogFeed{
		products: products,
		byID:     byID,
		pageSize: pageSize,
		settle:   settle,
		page:     1,
	}
}

// Products returns the currently visible window.
func (f *CatalogFeed) Products() []domain.Product {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := f.visibleLocked()
	return f.products[:n:n]
}

func (f *CatalogFeed) Page() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.page
}

func (f *CatalogFeed) Total() int {
	return len(f.products)
}

// Product looks up any catalog product, visible or not.
func (f *CatalogFeed) Product(id int64) (domain.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %d: %w", id, ErrUnknownProduct)
	}
	return p, nil
}

// Advance appends the next page once the settle delay has passed. Calls made
// while an advance is settling join it instead of appending another page.
// A caller whose ctx ends stops waiting; an advance already settling still
// completes for everyone else.
func (f *CatalogFeed) Advance(ctx context.Context) (AdvanceResult, error) {
	if err := ctx.Err(); err != nil {
		return AdvanceResult{}, err
	}

	ch := f.group.DoChan("advance", func() (any, error) {
		return f.advance(), nil
	})
	select {
	case res := <-ch:
		adv := res.Val.(AdvanceResult)
		adv.Shared = res.Shared
		return adv, nil
	case <-ctx.Done():
		return AdvanceResult{}, ctx.Err()
	}
}

func (f *CatalogFeed) advance() AdvanceResult {
	f.mu.RLock()
	page, visible := f.page, f.visibleLocked()
	f.mu.RUnlock()

	if visible >= len(f.products) {
		return AdvanceResult{Page: page, Visible: visible, Exhausted: true}
	}

	if f.settle > 0 {
		time.Sleep(f.settle)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.page++
	after := f.visibleLocked()
	return AdvanceResult{
		Page:      f.page,
		Visible:   after,
		Appended:  after - visible,
		Exhausted: after >= len(f.products),
	}
}

func (f *CatalogFeed) visibleLocked() int {
	return min(f.page*f.pageSize, len(f.products))
}
