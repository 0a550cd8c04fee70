// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers of the sellout API. Handlers
// are grouped by concern (products, realtime) and receive their
// dependencies through the handler struct.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"sellout/internal/models"
)

// ProductStore is the persistence the product handlers need.
type ProductStore interface {
	List(ctx context.Context) ([]models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, in models.ProductInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, patch models.ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	TrailingOrderValue(ctx context.Context) (float64, error)
	RebalanceAndMove(ctx context.Context, id uuid.UUID, position int) error
}

// ListingCache caches the full product listing.
type ListingCache interface {
	Get(ctx context.Context) ([]models.Product, bool)
	Generation(ctx context.Context) (int64, bool)
	Set(ctx context.Context, gen int64, items []models.Product)
	Invalidate(ctx context.Context)
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Products groups the product API handlers.
type Products struct {
	store ProductStore
	cache ListingCache
}

// NewProducts creates the product handlers. cache may be nil.
func NewProducts(store ProductStore, cache ListingCache) *Products {
	return &Products{store: store, cache: cache}
}

// List returns every product, from the listing cache when it is warm.
func (h *Products) List(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if items, ok := h.cache.Get(r.Context()); ok {
			writeJSON(w, http.StatusOK, items)
			return
		}
	}

	// The generation is read before the query so a write that commits
	// while the query runs keeps its result out of the cache.
	var (
		gen       int64
		cacheable bool
	)
	if h.cache != nil {
		gen, cacheable = h.cache.Generation(r.Context())
	}
	items, err := h.store.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if cacheable {
		h.cache.Set(r.Context(), gen, items)
	}
	writeJSON(w, http.StatusOK, items)
}

// Get returns one product.
func (h *Products) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeError(w, models.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Create inserts a product from a JSON form body.
func (h *Products) Create(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if !decodeBody(w, r, &in) {
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.store.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r.Context())
	slog.Info("product created", "id", p.ID, "order_sellout", p.OrderSellout)
	writeJSON(w, http.StatusCreated, p)
}

// Update applies a partial update holding only the changed fields.
func (h *Products) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var patch models.ProductPatch
	if !decodeBody(w, r, &patch) {
		return
	}

	existing, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if existing == nil {
		writeError(w, models.ErrNotFound)
		return
	}
	if err := validatePatch(*existing, patch); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.store.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, p)
}

// Delete removes a product. Remaining order values keep their gaps.
func (h *Products) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r.Context())
	slog.Info("product deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// TrailingOrder returns the order value that appends after every visible
// product.
func (h *Products) TrailingOrder(w http.ResponseWriter, r *http.Request) {
	v, err := h.store.TrailingOrderValue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"order_sellout": v})
}

// RebalanceAndMove renumbers the visible products with one of them moved
// to a 1-based position, atomically.
func (h *Products) RebalanceAndMove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID       uuid.UUID `json:"id"`
		Position int       `json:"position"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.ID == uuid.Nil {
		writeError(w, &models.ValidationError{Field: "id", Message: "Product id is required."})
		return
	}
	if body.Position < 1 {
		writeError(w, &models.ValidationError{Field: "position", Message: "Position must be 1 or greater."})
		return
	}

	if err := h.store.RebalanceAndMove(r.Context(), body.ID, body.Position); err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r.Context())
	slog.Info("products rebalanced", "id", body.ID, "position", body.Position)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Products) invalidate(ctx context.Context) {
	if h.cache != nil {
		h.cache.Invalidate(ctx)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP statuses. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": verr.Message, "field": verr.Field})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
	case errors.Is(err, models.ErrDuplicateOrder):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order value already in use", "field": "order_sellout"})
	default:
		slog.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
