// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"sellout/internal/models"
	"sellout/internal/ordering"
)

// PostgreSQL error codes mapped onto domain errors.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// ProductStore manages products in the database.
type ProductStore struct {
	db  *sql.DB
	cfg ordering.Config
}

// NewProductStore returns a new ProductStore. cfg supplies the seed and
// spacing used for trailing values and rebalancing.
func NewProductStore(db *sql.DB, cfg ordering.Config) *ProductStore {
	return &ProductStore{db: db, cfg: ordering.NewAllocator(cfg).Config()}
}

const productColumns = `id, order_sellout, is_hidden, title, category, url_product, url_image,
	start_date, end_date, offer_state, created_at, updated_at`

// scanProduct scans a row into a Product struct. The category array needs
// pgtype's help to scan through database/sql.
func scanProduct(m *pgtype.Map, scanner interface{ Scan(...any) error }) (*models.Product, error) {
	var p models.Product
	err := scanner.Scan(
		&p.ID, &p.OrderSellout, &p.Hidden, &p.Title, m.SQLScanner(&p.Categories),
		&p.ProductURL, &p.ImageURL, &p.StartDate, &p.EndDate, &p.OfferState,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	return &p, nil
}

// List returns every product: visible ones by order value, then hidden ones
// by creation time.
func (s *ProductStore) List(ctx context.Context) ([]models.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY is_hidden, order_sellout NULLS LAST, created_at`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	m := pgtype.NewMap()
	items := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(m, rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		items = append(items, *p)
	}
	return items, rows.Err()
}

// FindByID retrieves a product by ID. Returns nil if not found.
func (s *ProductStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(pgtype.NewMap(), row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find product by id: %w", err)
	}
	return p, nil
}

// Create inserts a product and returns it. Without an explicit order value
// the product is appended after every visible one.
func (s *ProductStore) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	order := in.OrderSellout
	if order == nil {
		v, err := s.TrailingOrderValue(ctx)
		if err != nil {
			return nil, err
		}
		order = &v
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO products (order_sellout, title, category, url_product, url_image,
		                      start_date, end_date, offer_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		*order, strings.TrimSpace(in.Title), in.Categories, in.ProductURL, in.ImageURL,
		in.StartDate, in.EndDate, nullIfEmpty(in.OfferState),
	)
	p, err := scanProduct(pgtype.NewMap(), row)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", classify(err))
	}
	return p, nil
}

// Update applies a partial update and returns the resulting row.
func (s *ProductStore) Update(ctx context.Context, id uuid.UUID, patch models.ProductPatch) (*models.Product, error) {
	sets, args := patchAssignments(patch)
	if len(sets) == 0 {
		p, err := s.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, models.ErrNotFound
		}
		return p, nil
	}

	args = append(args, id)
	query := `UPDATE products SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()
		WHERE id = $` + fmt.Sprint(len(args)) + `
		RETURNING ` + productColumns

	p, err := scanProduct(pgtype.NewMap(), s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update product: %w", classify(err))
	}
	return p, nil
}

// patchAssignments builds the SET clause for a patch. Column order is
// fixed so the generated SQL is stable.
func patchAssignments(p models.ProductPatch) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	switch {
	case p.ClearOrder:
		sets = append(sets, "order_sellout = NULL")
	case p.OrderSellout != nil:
		add("order_sellout", *p.OrderSellout)
	}
	if p.Hidden != nil {
		add("is_hidden", *p.Hidden)
	}
	if p.Title != nil {
		add("title", strings.TrimSpace(*p.Title))
	}
	if p.Categories != nil {
		add("category", *p.Categories)
	}
	if p.ProductURL != nil {
		add("url_product", *p.ProductURL)
	}
	if p.ImageURL != nil {
		add("url_image", *p.ImageURL)
	}
	if p.StartDate != nil {
		add("start_date", *p.StartDate)
	}
	if p.EndDate != nil {
		add("end_date", *p.EndDate)
	}
	if p.OfferState != nil {
		add("offer_state", nullIfEmpty(p.OfferState))
	}
	return sets, args
}

// Delete removes a product by ID. Other order values are left untouched.
func (s *ProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// TrailingOrderValue returns the order value that appends a product after
// every visible one: the current maximum plus the increment, or the seed
// when nothing is visible.
func (s *ProductStore) TrailingOrderValue(ctx context.Context) (float64, error) {
	var highest sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(order_sellout) FROM products WHERE NOT is_hidden`).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("trailing order value: %w", err)
	}
	if highest.Valid && highest.Float64 > 0 {
		return highest.Float64 + s.cfg.Increment, nil
	}
	return s.cfg.Seed, nil
}

// RebalanceAndMove renumbers every visible product to consecutive multiples
// of the increment, with product id placed at the 1-based position (clamped
// to the list). It runs in one transaction holding row locks on the visible
// set, so concurrent moves serialize and no client observes a half-renumbered
// list.
func (s *ProductStore) RebalanceAndMove(ctx context.Context, id uuid.UUID, position int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_sellout FROM products
		WHERE NOT is_hidden
		ORDER BY order_sellout, id
		FOR UPDATE`)
	if err != nil {
		return fmt.Errorf("lock visible products: %w", err)
	}

	var (
		rest    []uuid.UUID
		highest float64
		found   bool
	)
	for rows.Next() {
		var (
			pid   uuid.UUID
			order float64
		)
		if err := rows.Scan(&pid, &order); err != nil {
			rows.Close()
			return fmt.Errorf("scan visible product: %w", err)
		}
		highest = max(highest, order)
		if pid == id {
			found = true
			continue
		}
		rest = append(rest, pid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock visible products: %w", err)
	}
	if !found {
		return models.ErrNotFound
	}

	position = min(max(position, 1), len(rest)+1)
	final := make([]uuid.UUID, 0, len(rest)+1)
	final = append(final, rest[:position-1]...)
	final = append(final, id)
	final = append(final, rest[position-1:]...)

	// Row notifications are suppressed for the renumbering. One REORDER
	// notification is sent instead, just before commit.
	if _, err := tx.ExecContext(ctx, `SET LOCAL sellout.bulk_reorder = 'on'`); err != nil {
		return fmt.Errorf("suppress row notifications: %w", err)
	}

	// The unique index is checked row by row, so first lift every value
	// above both the current maximum and the final range, then write the
	// final values.
	spacing := s.cfg.Increment
	shift := max(highest, spacing*float64(len(final))) + spacing
	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET order_sellout = order_sellout + $1 WHERE NOT is_hidden`, shift); err != nil {
		return fmt.Errorf("shift order values: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE products SET order_sellout = $1, updated_at = $2 WHERE id = $3`)
	if err != nil {
		return fmt.Errorf("prepare rebalance: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for k, pid := range final {
		if _, err := stmt.ExecContext(ctx, spacing*float64(k+1), now, pid); err != nil {
			return fmt.Errorf("rebalance product %s: %w", pid, classify(err))
		}
	}

	if _, err := tx.ExecContext(ctx, `SELECT notify_products_reordered()`); err != nil {
		return fmt.Errorf("notify reorder: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebalance: %w", err)
	}
	return nil
}

// classify maps constraint violations onto domain errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		return fmt.Errorf("%w (%s)", models.ErrDuplicateOrder, pgErr.ConstraintName)
	case pgCheckViolation:
		return &models.ValidationError{Field: "order_sellout", Message: pgErr.Message}
	}
	return err
}

func nullIfEmpty(s *string) any {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return strings.TrimSpace(*s)
}
