// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import "errors"

var (
	// ErrNotFound is returned when a product id does not exist.
	ErrNotFound = errors.New("product not found")

	// ErrDuplicateOrder is returned when a write would give two visible
	// products the same order value.
	ErrDuplicateOrder = errors.New("order already exists")
)
