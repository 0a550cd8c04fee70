// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"sellout/internal/database"
	"sellout/internal/models"
)

// listenChanges opens a dedicated connection listening to the products
// trigger channel.
func listenChanges(t *testing.T) *pgx.Conn {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, testDSN())
	if err != nil {
		t.Skipf("skipping integration test: cannot listen: %v", err)
	}
	t.Cleanup(func() { conn.Close(context.Background()) })
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{database.ChangeChannel}.Sanitize()); err != nil {
		t.Fatalf("listen: %v", err)
	}
	return conn
}

// nextChange waits for one notification, or returns false after wait. A
// timed out wait may close the connection.
func nextChange(t *testing.T, conn *pgx.Conn, wait time.Duration) (models.Change, int, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	n, err := conn.WaitForNotification(ctx)
	if err != nil {
		return models.Change{}, 0, false
	}
	var c models.Change
	if err := json.Unmarshal([]byte(n.Payload), &c); err != nil {
		t.Fatalf("decode payload %q: %v", n.Payload, err)
	}
	return c, len(n.Payload), true
}

func TestNotifications_LargestRowCanBeUpdated(t *testing.T) {
	s := testProductStore(t)
	conn := listenChanges(t)
	ctx := context.Background()

	long := "https://img.example.com/" + strings.Repeat("a", 2048-len("https://img.example.com/"))
	in := models.ProductInput{
		Title:      "Oversized product",
		Categories: []string{strings.Repeat("c", 40), strings.Repeat("d", 40)},
		ProductURL: long,
		ImageURL:   long,
		StartDate:  models.NewDate(2026, time.June, 1),
		EndDate:    models.NewDate(2026, time.June, 30),
	}
	if err := in.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	p, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Update(ctx, p.ID, models.HidePatch()); err != nil {
		t.Fatalf("hide: %v", err)
	}

	insert, _, ok := nextChange(t, conn, 5*time.Second)
	if !ok || insert.Kind != models.ChangeInsert {
		t.Fatalf("first notification: got %+v, want INSERT", insert)
	}
	update, size, ok := nextChange(t, conn, 5*time.Second)
	if !ok || update.Kind != models.ChangeUpdate {
		t.Fatalf("second notification: got %+v, want UPDATE", update)
	}
	if update.Old == nil || update.Old.ID != p.ID || update.Old.Title != "" {
		t.Errorf("update old row should carry only the id, got %+v", update.Old)
	}
	if size >= 8000 {
		t.Errorf("payload size %d exceeds the notification limit", size)
	}
}

func TestNotifications_RebalanceSendsOneReorder(t *testing.T) {
	s := testProductStore(t)
	ctx := context.Background()

	var created []models.Product
	for i := 0; i < 5; i++ {
		p, err := s.Create(ctx, models.ProductInput{
			Title:      "Product " + strings.Repeat("x", i+1),
			Categories: []string{"tech"},
			ProductURL: "https://shop.example.com/p",
			ImageURL:   "https://cdn.example.com/p.jpg",
			StartDate:  models.NewDate(2026, time.June, 1),
			EndDate:    models.NewDate(2026, time.June, 30),
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		created = append(created, *p)
	}

	conn := listenChanges(t)
	if err := s.RebalanceAndMove(ctx, created[4].ID, 1); err != nil {
		t.Fatalf("rebalance: %v", err)
	}

	c, _, ok := nextChange(t, conn, 5*time.Second)
	if !ok || c.Kind != models.ChangeReorder {
		t.Fatalf("notification: got %+v, want REORDER", c)
	}

	// Row notifications leaked by the rebalance would have arrived before
	// REORDER. Ordinary updates still notify once the transaction is over.
	if _, err := s.Update(ctx, created[0].ID, models.OrderPatch(1000)); err != nil {
		t.Fatalf("update: %v", err)
	}
	c, _, ok = nextChange(t, conn, 5*time.Second)
	if !ok || c.Kind != models.ChangeUpdate || c.RecordID() != created[0].ID || c.New.Order() != 1000 {
		t.Errorf("notification after rebalance: got %+v, want UPDATE of %s to 1000", c, created[0].ID)
	}
}
