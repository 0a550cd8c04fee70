// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"sellout/internal/models"
)

// validatePatch checks a partial update against the row it will change and
// returns the first error found, or nil. The resulting row must still pass
// form validation, and a visible row must keep a positive order value.
func validatePatch(existing models.Product, patch models.ProductPatch) error {
	if patch.IsEmpty() {
		return &models.ValidationError{Field: "", Message: "No changes to save."}
	}
	if patch.OrderSellout != nil && !patch.ClearOrder && *patch.OrderSellout <= 0 {
		return &models.ValidationError{Field: "order_sellout", Message: "Order sellout must be positive."}
	}

	next := patch.Apply(existing)
	if next.Visible() && next.OrderSellout == nil {
		return &models.ValidationError{Field: "order_sellout", Message: "A visible product needs an order value."}
	}
	if next.Hidden && next.OrderSellout != nil {
		return &models.ValidationError{Field: "order_sellout", Message: "A hidden product cannot keep an order value."}
	}
	return models.InputFrom(next).Validate()
}
