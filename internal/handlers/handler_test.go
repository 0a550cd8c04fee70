// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler tests:
// an in-memory product store and a recording listing cache.
package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"sellout/internal/models"
)

type memStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]models.Product
	lists    int
	failList error
	moved    []string
}

func newMemStore(items ...models.Product) *memStore {
	s := &memStore{products: make(map[uuid.UUID]models.Product)}
	for _, p := range items {
		s.products[p.ID] = p
	}
	return s
}

func (s *memStore) List(ctx context.Context) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.failList != nil {
		return nil, s.failList
	}
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out, nil
}

func (s *memStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memStore) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.Visible() && in.OrderSellout != nil && p.Order() == *in.OrderSellout {
			return nil, models.ErrDuplicateOrder
		}
	}
	p := models.Product{
		ID:           uuid.New(),
		OrderSellout: in.OrderSellout,
		Title:        in.Title,
		Categories:   in.Categories,
		ProductURL:   in.ProductURL,
		ImageURL:     in.ImageURL,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		OfferState:   in.OfferState,
		CreatedAt:    time.Now(),
	}
	s.products[p.ID] = p
	return &p, nil
}

func (s *memStore) Update(ctx context.Context, id uuid.UUID, patch models.ProductPatch) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	p = patch.Apply(p)
	s.products[id] = p
	return &p, nil
}

func (s *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return models.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *memStore) TrailingOrderValue(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var highest float64
	for _, p := range s.products {
		highest = max(highest, p.Order())
	}
	if highest == 0 {
		return 100, nil
	}
	return highest + 100, nil
}

func (s *memStore) RebalanceAndMove(ctx context.Context, id uuid.UUID, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return models.ErrNotFound
	}
	s.moved = append(s.moved, id.String())
	return nil
}

type memCache struct {
	mu          sync.Mutex
	items       []models.Product
	warm        bool
	gen         int64
	invalidated int
}

func (c *memCache) Get(ctx context.Context) ([]models.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items, c.warm
}

func (c *memCache) Generation(ctx context.Context) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, true
}

func (c *memCache) Set(ctx context.Context, gen int64, items []models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.items, c.warm = items, true
}

func (c *memCache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items, c.warm = nil, false
	c.gen++
	c.invalidated++
}

// gatedStore holds its first List after reading the rows until release is
// closed, so a write can land while the listing is in flight.
type gatedStore struct {
	*memStore
	listed  chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(items ...models.Product) *gatedStore {
	return &gatedStore{
		memStore: newMemStore(items...),
		listed:   make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (s *gatedStore) List(ctx context.Context) ([]models.Product, error) {
	items, err := s.memStore.List(ctx)
	s.once.Do(func() {
		close(s.listed)
		<-s.release
	})
	return items, err
}

func sampleProduct(title string, order float64) models.Product {
	return models.Product{
		ID:           uuid.New(),
		OrderSellout: models.Float(order),
		Title:        title,
		Categories:   []string{"tech"},
		ProductURL:   "https://shop.example.com/p",
		ImageURL:     "https://cdn.example.com/p.jpg",
		StartDate:    models.NewDate(2026, time.June, 1),
		EndDate:      models.NewDate(2026, time.June, 30),
	}
}

// productRoutes mounts the product handlers the way the router does.
func productRoutes(h *Products) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/products", h.List)
	r.Post("/api/products", h.Create)
	r.Get("/api/products/trailing-order", h.TrailingOrder)
	r.Get("/api/products/{id}", h.Get)
	r.Patch("/api/products/{id}", h.Update)
	r.Delete("/api/products/{id}", h.Delete)
	r.Post("/api/rpc/rebalance-and-move", h.RebalanceAndMove)
	return r
}
