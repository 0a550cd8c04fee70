// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package ordering computes sellout order values. Moving or inserting a
// product rewrites only that product's value by bisecting the gap between
// its new neighbours; when the gaps run out the whole visible list must be
// renumbered server-side (see NeedsRebalancing).
package ordering

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"sellout/internal/models"
)

// Defaults for Config. The floor and spacing have changed over time, so
// they are configuration rather than constants.
const (
	DefaultSeed        = 100
	DefaultIncrement   = 100
	DefaultFloor       = 2
	DefaultMaxPosition = 999
)

var (
	// ErrInvalidTarget is returned when a requested position cannot be used.
	ErrInvalidTarget = errors.New("invalid target position")

	// ErrNoHeadroom is returned when bisection can no longer produce a value
	// strictly between two neighbours. Callers should rebalance instead.
	ErrNoHeadroom = errors.New("no headroom between neighbours")
)

// Config tunes the allocator.
type Config struct {
	// Seed is the value given to the first product of an empty list.
	Seed float64
	// Increment is added to the last value when appending.
	Increment float64
	// Floor is the rebalance threshold: once the smallest visible value
	// drops below it, moves go through the rebalance path.
	Floor float64
	// MaxPosition caps the 1-based position a user may type.
	MaxPosition int
}

// DefaultConfig returns the standard allocator settings.
func DefaultConfig() Config {
	return Config{
		Seed:        DefaultSeed,
		Increment:   DefaultIncrement,
		Floor:       DefaultFloor,
		MaxPosition: DefaultMaxPosition,
	}
}

// withDefaults fills zero fields so a partially specified Config is usable.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Seed <= 0 {
		c.Seed = d.Seed
	}
	if c.Increment <= 0 {
		c.Increment = d.Increment
	}
	if c.Floor <= 0 {
		c.Floor = d.Floor
	}
	if c.MaxPosition <= 0 {
		c.MaxPosition = d.MaxPosition
	}
	return c
}

// Allocator computes order values for moves and inserts.
type Allocator struct {
	cfg Config
}

// NewAllocator returns an Allocator using cfg, with zero fields defaulted.
func NewAllocator(cfg Config) *Allocator {
	return &Allocator{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (a *Allocator) Config() Config {
	return a.cfg
}

// Allocate returns the order value that places product id at the 1-based
// target position of visible. visible must be sorted ascending by order
// value; the product being placed is skipped if present.
//
// Before the first product the value is half the first one (Seed for an
// empty list), after the last it is last+Increment, otherwise it is the
// mean of the two neighbours.
func (a *Allocator) Allocate(visible []models.Product, target int, id uuid.UUID) (float64, error) {
	if target < 1 {
		return 0, fmt.Errorf("%w: position %d", ErrInvalidTarget, target)
	}

	rest := make([]float64, 0, len(visible))
	for i := range visible {
		if visible[i].ID == id {
			continue
		}
		rest = append(rest, visible[i].Order())
	}

	switch {
	case len(rest) == 0:
		return a.cfg.Seed, nil

	case target == 1:
		first := rest[0]
		v := first / 2
		if !(v > 0 && v < first) {
			return 0, fmt.Errorf("%w: before %v", ErrNoHeadroom, first)
		}
		return v, nil

	case target > len(rest):
		last := rest[len(rest)-1]
		return last + a.cfg.Increment, nil

	default:
		prev, next := rest[target-2], rest[target-1]
		v := prev + (next-prev)/2
		if !(v > prev && v < next) {
			return 0, fmt.Errorf("%w: between %v and %v", ErrNoHeadroom, prev, next)
		}
		return v, nil
	}
}

// Trailing returns the value for a product appended after visible.
func (a *Allocator) Trailing(visible []models.Product) float64 {
	highest := 0.0
	for i := range visible {
		if v := visible[i].Order(); v > highest {
			highest = v
		}
	}
	if highest == 0 {
		return a.cfg.Seed
	}
	return highest + a.cfg.Increment
}

// NeedsRebalancing reports whether the smallest order value among visible
// products has fallen below the configured floor.
func (a *Allocator) NeedsRebalancing(visible []models.Product) bool {
	return NeedsRebalancing(visible, a.cfg.Floor)
}

// ValidateTarget checks a user-typed position against the visible list.
func (a *Allocator) ValidateTarget(target, current, count int) error {
	return ValidateTarget(target, current, count, a.cfg.MaxPosition)
}

// NeedsRebalancing reports whether min(order value) over the visible
// products is below floor. Hidden products are ignored and an empty set
// never needs rebalancing.
func NeedsRebalancing(products []models.Product, floor float64) bool {
	found := false
	lowest := 0.0
	for i := range products {
		p := &products[i]
		if p.Hidden || p.OrderSellout == nil {
			continue
		}
		if !found || *p.OrderSellout < lowest {
			lowest = *p.OrderSellout
			found = true
		}
	}
	return found && lowest < floor
}

// ValidateTarget checks a requested 1-based position. target must be in
// [1, count], not above maxPosition, and differ from current (the product's
// present position, 0 if unknown).
func ValidateTarget(target, current, count, maxPosition int) error {
	switch {
	case target < 1:
		return fmt.Errorf("%w: must be a positive number", ErrInvalidTarget)
	case maxPosition > 0 && target > maxPosition:
		return fmt.Errorf("%w: must be at most %d", ErrInvalidTarget, maxPosition)
	case target > count:
		return fmt.Errorf("%w: only %d products are listed", ErrInvalidTarget, count)
	case target == current:
		return fmt.Errorf("%w: product is already at position %d", ErrInvalidTarget, target)
	}
	return nil
}

// PositionOf returns the 1-based position of id in products, or 0.
func PositionOf(products []models.Product, id uuid.UUID) int {
	for i := range products {
		if products[i].ID == id {
			return i + 1
		}
	}
	return 0
}

// Sort orders products in place: visible ones ascending by order value,
// then products without a value. Equal values fall back to the id.
func Sort(products []models.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return Less(&products[i], &products[j])
	})
}

// Less is the canonical ordering predicate used by Sort.
func Less(a, b *models.Product) bool {
	switch {
	case a.OrderSellout == nil:
		return false
	case b.OrderSellout == nil:
		return true
	case *a.OrderSellout != *b.OrderSellout:
		return *a.OrderSellout < *b.OrderSellout
	default:
		return a.ID.String() < b.ID.String()
	}
}
