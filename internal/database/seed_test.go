// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"testing"
)

func TestSeedIdempotent(t *testing.T) {
	db, err := Connect(testDSN())
	if err != nil {
		t.Skipf("skipping: DB not available: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Seed should be callable safely. It creates data only when tables are
	// empty. We call it twice to verify idempotency. We don't clear the
	// database first because other test packages may be running
	// concurrently against the same database.
	if err := Seed(db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		t.Fatalf("count products: %v", err)
	}
	if count < 1 {
		t.Errorf("expected at least 1 product, got %d", count)
	}

	// Visible seeds never share an order value.
	var dupes int
	err = db.QueryRow(`
		SELECT COUNT(*) FROM (
			SELECT order_sellout FROM products WHERE NOT is_hidden
			GROUP BY order_sellout HAVING COUNT(*) > 1
		) d`).Scan(&dupes)
	if err != nil {
		t.Fatalf("count duplicate orders: %v", err)
	}
	if dupes != 0 {
		t.Errorf("duplicate visible order values: %d", dupes)
	}
}
