// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type seedProduct struct {
	title    string
	category []string
	slug     string
	days     int
}

var seedProducts = []seedProduct{
	{"Noise Cancelling Headphones", []string{"tech"}, "headphones", 14},
	{"Espresso Machine Deluxe", []string{"home", "kitchen"}, "espresso", 7},
	{"Trail Running Shoes", []string{"sport"}, "trail-shoes", 21},
	{"Ergonomic Office Chair", []string{"home", "office"}, "office-chair", 30},
	{"Smartwatch Series 5", []string{"tech", "sport"}, "smartwatch", 10},
}

// Seed populates an empty products table with development data spaced by
// the default order increment. It does nothing when products already exist.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return fmt.Errorf("seed check products: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO products (order_sellout, title, category, url_product, url_image, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("seed prepare: %w", err)
	}
	defer stmt.Close()

	start := time.Now().UTC().Truncate(24 * time.Hour)
	for i, p := range seedProducts {
		_, err := stmt.Exec(
			float64(i+1)*100,
			p.title,
			p.category,
			"https://shop.example.com/products/"+p.slug,
			"https://cdn.example.com/images/"+p.slug+".jpg",
			start,
			start.AddDate(0, 0, p.days),
		)
		if err != nil {
			return fmt.Errorf("seed insert %q: %w", p.title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with sample products", "count", len(seedProducts))
	return nil
}
