// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a catalog entry. Visible products are ranked by OrderSellout;
// hidden products carry no order value at all.
type Product struct {
	ID           uuid.UUID `json:"id"`
	OrderSellout *float64  `json:"order_sellout"`
	Hidden       bool      `json:"is_hidden"`
	Title        string    `json:"title"`
	Categories   []string  `json:"category"`
	ProductURL   string    `json:"url_product"`
	ImageURL     string    `json:"url_image"`
	StartDate    Date      `json:"start_date"`
	EndDate      Date      `json:"end_date"`
	OfferState   *string   `json:"offer_state"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Order returns the sellout order value, or 0 when the product has none.
func (p *Product) Order() float64 {
	if p.OrderSellout == nil {
		return 0
	}
	return *p.OrderSellout
}

// Visible reports whether the product takes part in the sellout order.
func (p *Product) Visible() bool {
	return !p.Hidden
}

// HasCategory reports whether the product is tagged with the given category.
func (p *Product) HasCategory(category string) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can hand products out of a shared
// collection without aliasing its pointers and slices.
func (p Product) Clone() Product {
	if p.OrderSellout != nil {
		v := *p.OrderSellout
		p.OrderSellout = &v
	}
	if p.OfferState != nil {
		s := *p.OfferState
		p.OfferState = &s
	}
	if p.Categories != nil {
		p.Categories = append([]string(nil), p.Categories...)
	}
	return p
}

// Float returns a pointer to v. Handy for building order values inline.
func Float(v float64) *float64 {
	return &v
}

// ProductInput holds the user-editable fields of a product, as submitted by
// the add and edit forms. OrderSellout is only honoured on create, where it
// carries the trailing value computed by the caller.
type ProductInput struct {
	OrderSellout *float64 `json:"order_sellout,omitempty"`
	Title        string   `json:"title"`
	Categories   []string `json:"category"`
	ProductURL   string   `json:"url_product"`
	ImageURL     string   `json:"url_image"`
	StartDate    Date     `json:"start_date"`
	EndDate      Date     `json:"end_date"`
	OfferState   *string  `json:"offer_state"`
}

// InputFrom extracts the editable fields of an existing product.
func InputFrom(p Product) ProductInput {
	c := p.Clone()
	return ProductInput{
		Title:      c.Title,
		Categories: c.Categories,
		ProductURL: c.ProductURL,
		ImageURL:   c.ImageURL,
		StartDate:  c.StartDate,
		EndDate:    c.EndDate,
		OfferState: c.OfferState,
	}
}

// ProductPatch describes a partial update. Nil fields are left untouched.
// ClearOrder sets order_sellout to NULL and takes precedence over
// OrderSellout; it is only valid together with Hidden=true.
type ProductPatch struct {
	OrderSellout *float64  `json:"order_sellout,omitempty"`
	ClearOrder   bool      `json:"clear_order,omitempty"`
	Hidden       *bool     `json:"is_hidden,omitempty"`
	Title        *string   `json:"title,omitempty"`
	Categories   *[]string `json:"category,omitempty"`
	ProductURL   *string   `json:"url_product,omitempty"`
	ImageURL     *string   `json:"url_image,omitempty"`
	StartDate    *Date     `json:"start_date,omitempty"`
	EndDate      *Date     `json:"end_date,omitempty"`
	OfferState   *string   `json:"offer_state,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p ProductPatch) IsEmpty() bool {
	return p.OrderSellout == nil && !p.ClearOrder && p.Hidden == nil &&
		p.Title == nil && p.Categories == nil && p.ProductURL == nil &&
		p.ImageURL == nil && p.StartDate == nil && p.EndDate == nil &&
		p.OfferState == nil
}

// HidePatch moves a product out of the sellout order.
func HidePatch() ProductPatch {
	hidden := true
	return ProductPatch{Hidden: &hidden, ClearOrder: true}
}

// UnhidePatch puts a product back into the sellout order at the given value.
func UnhidePatch(order float64) ProductPatch {
	hidden := false
	return ProductPatch{Hidden: &hidden, OrderSellout: &order}
}

// OrderPatch rewrites only the order value of a product.
func OrderPatch(order float64) ProductPatch {
	return ProductPatch{OrderSellout: &order}
}

// ChangedFields diffs an edited form against the stored product and returns a
// patch holding only the fields that differ. An empty OfferState in the form
// is treated the same as a NULL one.
func ChangedFields(orig Product, in ProductInput) ProductPatch {
	var patch ProductPatch

	if in.Title != orig.Title {
		v := in.Title
		patch.Title = &v
	}
	if !sameStrings(in.Categories, orig.Categories) {
		v := append([]string(nil), in.Categories...)
		patch.Categories = &v
	}
	if in.ProductURL != orig.ProductURL {
		v := in.ProductURL
		patch.ProductURL = &v
	}
	if in.ImageURL != orig.ImageURL {
		v := in.ImageURL
		patch.ImageURL = &v
	}
	if !in.StartDate.Equal(orig.StartDate) {
		v := in.StartDate
		patch.StartDate = &v
	}
	if !in.EndDate.Equal(orig.EndDate) {
		v := in.EndDate
		patch.EndDate = &v
	}
	if derefString(in.OfferState) != derefString(orig.OfferState) {
		v := derefString(in.OfferState)
		patch.OfferState = &v
	}

	return patch
}

// Apply returns a copy of p with the patch applied. It mirrors what the
// database does with the same patch and is used to predict the row a write
// will produce.
func (p ProductPatch) Apply(prod Product) Product {
	out := prod.Clone()
	if p.Hidden != nil {
		out.Hidden = *p.Hidden
	}
	if p.ClearOrder {
		out.OrderSellout = nil
	} else if p.OrderSellout != nil {
		out.OrderSellout = Float(*p.OrderSellout)
	}
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Categories != nil {
		out.Categories = append([]string(nil), (*p.Categories)...)
	}
	if p.ProductURL != nil {
		out.ProductURL = *p.ProductURL
	}
	if p.ImageURL != nil {
		out.ImageURL = *p.ImageURL
	}
	if p.StartDate != nil {
		out.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		out.EndDate = *p.EndDate
	}
	if p.OfferState != nil {
		if *p.OfferState == "" {
			out.OfferState = nil
		} else {
			s := *p.OfferState
			out.OfferState = &s
		}
	}
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
