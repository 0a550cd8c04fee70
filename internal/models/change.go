// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"

	"github.com/google/uuid"
)

// ChangeKind is the row-level operation carried by a change event.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"

	// ChangeReorder carries no rows. It is sent once when a rebalance has
	// renumbered the visible set, in place of one UPDATE per product.
	ChangeReorder ChangeKind = "REORDER"
)

// Change is a row-level event emitted by the products table trigger.
// New is set for INSERT and UPDATE, Old for UPDATE and DELETE. The Old of an
// UPDATE holds only the id.
type Change struct {
	Kind ChangeKind `json:"type"`
	New  *Product   `json:"new,omitempty"`
	Old  *Product   `json:"old,omitempty"`
}

// RecordID returns the id of the row the change refers to.
func (c Change) RecordID() uuid.UUID {
	if c.New != nil {
		return c.New.ID
	}
	if c.Old != nil {
		return c.Old.ID
	}
	return uuid.Nil
}

// Validate checks that the change carries the rows its kind requires.
func (c Change) Validate() error {
	switch c.Kind {
	case ChangeInsert, ChangeUpdate:
		if c.New == nil || c.New.ID == uuid.Nil {
			return fmt.Errorf("change %s: missing new row", c.Kind)
		}
	case ChangeDelete:
		if c.Old == nil || c.Old.ID == uuid.Nil {
			return fmt.Errorf("change %s: missing old row", c.Kind)
		}
	case ChangeReorder:
	default:
		return fmt.Errorf("change: unknown kind %q", c.Kind)
	}
	return nil
}
