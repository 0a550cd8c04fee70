// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func sample() Product {
	offer := "limited"
	return Product{
		ID:           uuid.New(),
		OrderSellout: Float(200),
		Title:        "Standing desk",
		Categories:   []string{"office", "home"},
		ProductURL:   "https://shop.example.com/desk",
		ImageURL:     "https://img.example.com/desk.png",
		StartDate:    NewDate(2026, time.March, 1),
		EndDate:      NewDate(2026, time.March, 31),
		OfferState:   &offer,
	}
}

// TestProductOrder verifies that hidden products report a zero order.
func TestProductOrder(t *testing.T) {
	p := sample()
	if got := p.Order(); got != 200 {
		t.Errorf("Order() = %v, want 200", got)
	}
	p.OrderSellout = nil
	if got := p.Order(); got != 0 {
		t.Errorf("Order() with nil value = %v, want 0", got)
	}
}

// TestProductClone verifies that a clone shares no mutable state.
func TestProductClone(t *testing.T) {
	p := sample()
	c := p.Clone()

	*c.OrderSellout = 999
	c.Categories[0] = "changed"
	*c.OfferState = "changed"

	if *p.OrderSellout != 200 || p.Categories[0] != "office" || *p.OfferState != "limited" {
		t.Errorf("mutating the clone changed the original: %+v", p)
	}
}

// TestChangedFields verifies that only differing fields end up in the patch.
func TestChangedFields(t *testing.T) {
	orig := sample()

	t.Run("unchanged form", func(t *testing.T) {
		if patch := ChangedFields(orig, InputFrom(orig)); !patch.IsEmpty() {
			t.Errorf("ChangedFields() = %+v, want empty", patch)
		}
	})

	t.Run("title and categories", func(t *testing.T) {
		in := InputFrom(orig)
		in.Title = "Standing desk XL"
		in.Categories = []string{"office"}

		patch := ChangedFields(orig, in)
		if patch.Title == nil || *patch.Title != "Standing desk XL" {
			t.Errorf("Title = %v, want new title", patch.Title)
		}
		if patch.Categories == nil || len(*patch.Categories) != 1 {
			t.Errorf("Categories = %v, want [office]", patch.Categories)
		}
		if patch.ProductURL != nil || patch.StartDate != nil || patch.OfferState != nil {
			t.Errorf("unexpected fields in patch: %+v", patch)
		}
		if patch.OrderSellout != nil || patch.Hidden != nil {
			t.Error("editing the form must never touch ordering fields")
		}
	})

	t.Run("empty offer equals null", func(t *testing.T) {
		noOffer := orig.Clone()
		noOffer.OfferState = nil
		in := InputFrom(noOffer)
		empty := ""
		in.OfferState = &empty
		if patch := ChangedFields(noOffer, in); !patch.IsEmpty() {
			t.Errorf("ChangedFields() = %+v, want empty", patch)
		}
	})

	t.Run("clear offer", func(t *testing.T) {
		in := InputFrom(orig)
		in.OfferState = nil
		patch := ChangedFields(orig, in)
		if patch.OfferState == nil || *patch.OfferState != "" {
			t.Errorf("OfferState = %v, want empty string", patch.OfferState)
		}
	})
}

// TestPatchApply verifies the row a patch predicts.
func TestPatchApply(t *testing.T) {
	orig := sample()

	hidden := HidePatch().Apply(orig)
	if !hidden.Hidden || hidden.OrderSellout != nil {
		t.Errorf("HidePatch().Apply() = hidden %v order %v, want hidden with no order", hidden.Hidden, hidden.OrderSellout)
	}

	back := UnhidePatch(500).Apply(hidden)
	if back.Hidden || back.Order() != 500 {
		t.Errorf("UnhidePatch(500).Apply() = hidden %v order %v", back.Hidden, back.Order())
	}

	moved := OrderPatch(150).Apply(orig)
	if moved.Order() != 150 || moved.Title != orig.Title {
		t.Errorf("OrderPatch(150).Apply() = %+v", moved)
	}
	if orig.Order() != 200 {
		t.Error("Apply must not modify its argument")
	}

	empty := ""
	cleared := ProductPatch{OfferState: &empty}.Apply(orig)
	if cleared.OfferState != nil {
		t.Errorf("OfferState = %v, want nil", *cleared.OfferState)
	}
}

// TestPatchJSON verifies that unset fields are omitted on the wire.
func TestPatchJSON(t *testing.T) {
	b, err := json.Marshal(OrderPatch(150))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got, want := string(b), `{"order_sellout":150}`; got != want {
		t.Errorf("Marshal(OrderPatch) = %s, want %s", got, want)
	}
}

// TestChangeValidate verifies that events carry the rows their kind needs.
func TestChangeValidate(t *testing.T) {
	p := sample()

	tests := []struct {
		name    string
		change  Change
		wantErr bool
	}{
		{name: "insert", change: Change{Kind: ChangeInsert, New: &p}},
		{name: "update", change: Change{Kind: ChangeUpdate, New: &p, Old: &p}},
		{name: "delete", change: Change{Kind: ChangeDelete, Old: &p}},
		{name: "reorder", change: Change{Kind: ChangeReorder}},
		{name: "insert without row", change: Change{Kind: ChangeInsert}, wantErr: true},
		{name: "delete without row", change: Change{Kind: ChangeDelete, New: &p}, wantErr: true},
		{name: "unknown kind", change: Change{Kind: "TRUNCATE", New: &p}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.change.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if got := (Change{Kind: ChangeDelete, Old: &p}).RecordID(); got != p.ID {
		t.Errorf("RecordID() = %v, want %v", got, p.ID)
	}
}
