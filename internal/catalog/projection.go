// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package catalog

import (
	"fmt"
	"strings"

	"sellout/internal/models"
	"sellout/internal/ordering"
)

// Mode selects which half of the catalog is displayed.
type Mode string

const (
	ModeVisible Mode = "visible"
	ModeHidden  Mode = "hidden"
)

// ParseMode converts user input into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeVisible, "":
		return ModeVisible, nil
	case ModeHidden:
		return ModeHidden, nil
	}
	return "", fmt.Errorf("unknown view mode %q", s)
}

// Project derives the displayed set from the canonical records. In visible
// mode it returns the non-hidden products sorted ascending by order value;
// in hidden mode the hidden products in canonical order. The result never
// aliases records.
func Project(records []models.Product, mode Mode) []models.Product {
	out := make([]models.Product, 0, len(records))
	for i := range records {
		if records[i].Hidden == (mode == ModeHidden) {
			out = append(out, records[i].Clone())
		}
	}
	if mode != ModeHidden {
		ordering.Sort(out)
	}
	return out
}

// Query narrows a projection for display. Zero value matches everything.
type Query struct {
	Search     string
	Categories []string
}

// IsZero reports whether the query filters nothing.
func (q Query) IsZero() bool {
	return strings.TrimSpace(q.Search) == "" && len(q.Categories) == 0
}

// Toggle adds the category to the query, or removes it if already present.
func (q Query) Toggle(category string) Query {
	out := Query{Search: q.Search}
	found := false
	for _, c := range q.Categories {
		if c == category {
			found = true
			continue
		}
		out.Categories = append(out.Categories, c)
	}
	if !found {
		out.Categories = append(out.Categories, category)
	}
	return out
}

// Filter applies a search term (case-insensitive title substring) and a
// category set (any match) on top of a projection, preserving its order.
func Filter(products []models.Product, q Query) []models.Product {
	if q.IsZero() {
		return products
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.Product, 0, len(products))
	for i := range products {
		p := &products[i]
		if term != "" && !strings.Contains(strings.ToLower(p.Title), term) {
			continue
		}
		if len(q.Categories) > 0 && !hasAny(p, q.Categories) {
			continue
		}
		out = append(out, *p)
	}
	return out
}

func hasAny(p *models.Product, categories []string) bool {
	for _, c := range categories {
		if p.HasCategory(c) {
			return true
		}
	}
	return false
}

// PageRange is the window of page links shown around the current page.
type PageRange struct {
	Pages             []int
	ShowLeftEllipsis  bool
	ShowRightEllipsis bool
}

// Paginate returns a window of at most display page numbers centred on
// current, shrunk by one at either side where an ellipsis is needed.
func Paginate(current, total, display int) PageRange {
	r := PageRange{
		ShowLeftEllipsis:  float64(current-1) > float64(display)/2,
		ShowRightEllipsis: float64(total-current+1) > float64(display)/2,
	}

	if total <= display {
		r.ShowLeftEllipsis, r.ShowRightEllipsis = false, false
		for i := 1; i <= total; i++ {
			r.Pages = append(r.Pages, i)
		}
		return r
	}

	half := display / 2
	start := max(1, current-half)
	end := min(total, current+half)

	if start == 1 {
		end = display
	}
	if end == total {
		start = total - display + 1
	}
	if r.ShowLeftEllipsis {
		start++
	}
	if r.ShowRightEllipsis {
		end--
	}

	for i := start; i <= end; i++ {
		r.Pages = append(r.Pages, i)
	}
	return r
}

// Page slices one page out of products. page is 0-based.
func Page(products []models.Product, page, size int) []models.Product {
	if size <= 0 {
		return products
	}
	start := page * size
	if start >= len(products) || start < 0 {
		return nil
	}
	end := min(start+size, len(products))
	return products[start:end]
}
