// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// Validation limits for product form fields. A full row must fit in one
// change notification, which PostgreSQL caps at 8000 bytes.
const (
	minTitleLen = 5
	maxTitleLen = 50

	maxURLBytes    = 2048
	maxCategories  = 10
	maxCategoryLen = 40
	maxOfferState  = 50
)

// ValidationError reports the first invalid field of a product form.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks a product form and returns the first error found, or nil.
func (in ProductInput) Validate() error {
	if len(in.Categories) == 0 {
		return &ValidationError{Field: "category", Message: "Category is required."}
	}
	if len(in.Categories) > maxCategories {
		return &ValidationError{Field: "category", Message: "Too many categories (max 10)."}
	}
	for _, c := range in.Categories {
		if strings.TrimSpace(c) == "" {
			return &ValidationError{Field: "category", Message: "Category names cannot be blank."}
		}
		if utf8.RuneCountInString(c) > maxCategoryLen {
			return &ValidationError{Field: "category", Message: "Category names are limited to 40 characters."}
		}
	}

	title := strings.TrimSpace(in.Title)
	if utf8.RuneCountInString(title) < minTitleLen {
		return &ValidationError{Field: "title", Message: "Title is required (min 5 characters)."}
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		return &ValidationError{Field: "title", Message: "Title is too long (max 50 characters)."}
	}

	if len(in.ProductURL) > maxURLBytes {
		return &ValidationError{Field: "url_product", Message: "Product URL is too long (max 2048 bytes)."}
	}
	if !isHTTPURL(in.ProductURL) {
		return &ValidationError{Field: "url_product", Message: "Product URL must be a valid http(s) URL."}
	}
	if len(in.ImageURL) > maxURLBytes {
		return &ValidationError{Field: "url_image", Message: "Image URL is too long (max 2048 bytes)."}
	}
	if !isHTTPURL(in.ImageURL) {
		return &ValidationError{Field: "url_image", Message: "Image URL must be a valid http(s) URL."}
	}

	if in.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Message: "Start date is required."}
	}
	if in.EndDate.IsZero() {
		return &ValidationError{Field: "end_date", Message: "End date is required."}
	}
	if in.StartDate.Equal(in.EndDate) {
		return &ValidationError{Field: "end_date", Message: "Start and end date cannot be the same day."}
	}
	if in.EndDate.Before(in.StartDate) {
		return &ValidationError{Field: "end_date", Message: "End date must be after the start date."}
	}

	if in.OfferState != nil && utf8.RuneCountInString(*in.OfferState) > maxOfferState {
		return &ValidationError{Field: "offer_state", Message: "Offer state is too long (max 50 characters)."}
	}

	if in.OrderSellout != nil && *in.OrderSellout <= 0 {
		return &ValidationError{Field: "order_sellout", Message: "Order sellout must be positive."}
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
