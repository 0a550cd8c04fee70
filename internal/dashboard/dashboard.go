// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package dashboard holds the user-action entry points of a catalog
// session. Actions write through the Backend and never patch the canonical
// set themselves; the change feed (or a resync) brings the result back.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"sellout/internal/catalog"
	"sellout/internal/models"
	"sellout/internal/notify"
	"sellout/internal/ordering"
	"sellout/internal/syncguard"
)

var (
	// ErrBusy is returned when a write of the same kind is still in flight.
	ErrBusy = errors.New("another request is in progress")

	// ErrThrottled is returned when a manual resync is requested too soon.
	ErrThrottled = errors.New("please wait before syncing again")

	// ErrNoChanges is returned by Edit when the form matches the record.
	ErrNoChanges = errors.New("no changes detected")
)

// Backend is the data-access surface the dashboard writes through.
type Backend interface {
	FetchAll(ctx context.Context) ([]models.Product, error)
	Create(ctx context.Context, in models.ProductInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, patch models.ProductPatch) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	TrailingOrderValue(ctx context.Context) (float64, error)
	RebalanceAndMove(ctx context.Context, id uuid.UUID, position int) error
}

// Resyncer refreshes the canonical set.
type Resyncer interface {
	Resync(ctx context.Context, trigger syncguard.Trigger) error
}

// Config tunes the controller.
type Config struct {
	Ordering ordering.Config
	// ResyncCooldown is the minimum time between manual resyncs.
	ResyncCooldown time.Duration
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{Ordering: ordering.DefaultConfig(), ResyncCooldown: 4 * time.Second}
}

type draft struct {
	id     uuid.UUID
	base   models.Product
	warned bool
}

// Controller runs user actions against the backend.
type Controller struct {
	backend  Backend
	store    *catalog.Store
	guard    Resyncer
	alloc    *ordering.Allocator
	notifier notify.Notifier
	limiter  *rate.Limiter
	logger   *slog.Logger

	adding  atomic.Bool
	editing atomic.Bool

	mu    sync.Mutex
	draft *draft

	unsubscribe func()
}

// New creates a controller over the session's store.
func New(backend Backend, store *catalog.Store, guard Resyncer, notifier notify.Notifier, cfg Config) *Controller {
	if notifier == nil {
		notifier = notify.Discard
	}
	if cfg.ResyncCooldown <= 0 {
		cfg.ResyncCooldown = DefaultConfig().ResyncCooldown
	}
	c := &Controller{
		backend:  backend,
		store:    store,
		guard:    guard,
		alloc:    ordering.NewAllocator(cfg.Ordering),
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Every(cfg.ResyncCooldown), 1),
		logger:   slog.Default().With("component", "dashboard"),
	}
	c.unsubscribe = store.Subscribe(c.watchDraft)
	return c
}

// Close detaches the controller from the store.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Store returns the session's canonical set.
func (c *Controller) Store() *catalog.Store {
	return c.store
}

// Load performs the initial fetch.
func (c *Controller) Load(ctx context.Context) error {
	return c.guard.Resync(ctx, syncguard.TriggerInitial)
}

// View returns the displayed projection narrowed by q.
func (c *Controller) View(q catalog.Query) []models.Product {
	return catalog.Filter(c.store.Displayed(), q)
}

// SetMode switches between the visible and hidden lists.
func (c *Controller) SetMode(mode catalog.Mode) {
	c.store.SetMode(mode)
}

// Add validates the form and creates a product at the end of the order.
func (c *Controller) Add(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if !c.adding.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.adding.Store(false)

	if err := in.Validate(); err != nil {
		c.warn("Invalid product", err)
		return nil, err
	}

	order, err := c.backend.TrailingOrderValue(ctx)
	if err != nil {
		return nil, c.fail("Could not add product", err)
	}
	in.OrderSellout = &order

	p, err := c.backend.Create(ctx, in)
	if err != nil {
		if errors.Is(err, models.ErrDuplicateOrder) {
			return nil, c.fail("Could not add product", fmt.Errorf("order %v already exists: %w", order, err))
		}
		return nil, c.fail("Could not add product", err)
	}

	c.notifier.Notify(notify.Notification{Level: notify.Success, Title: "Product added", Message: p.Title})
	return p, nil
}

// BeginEdit opens a draft of the product and returns its editable fields.
// Until the draft is closed, changes to the record made elsewhere raise a
// warning instead of being merged into the form.
func (c *Controller) BeginEdit(id uuid.UUID) (models.ProductInput, error) {
	p, ok := c.store.Get(id)
	if !ok {
		return models.ProductInput{}, models.ErrNotFound
	}

	c.mu.Lock()
	c.draft = &draft{id: id, base: p}
	c.mu.Unlock()

	return models.InputFrom(p), nil
}

// CancelEdit discards the open draft.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	c.draft = nil
	c.mu.Unlock()
}

// Edit saves the fields of in that differ from the stored product.
func (c *Controller) Edit(ctx context.Context, id uuid.UUID, in models.ProductInput) (*models.Product, error) {
	if !c.editing.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.editing.Store(false)

	orig, ok := c.store.Get(id)
	if !ok {
		return nil, c.fail("Could not save product", models.ErrNotFound)
	}
	if err := in.Validate(); err != nil {
		c.warn("Invalid product", err)
		return nil, err
	}

	patch := models.ChangedFields(orig, in)
	if patch.IsEmpty() {
		c.notifier.Notify(notify.Notification{Level: notify.Warning, Title: "No changes detected", Message: "Nothing to save."})
		return nil, ErrNoChanges
	}

	p, err := c.backend.Update(ctx, id, patch)
	if err != nil {
		return nil, c.fail("Could not save product", err)
	}
	c.CancelEdit()

	c.notifier.Notify(notify.Notification{Level: notify.Success, Title: "Product updated", Message: p.Title})
	return p, nil
}

// Delete removes a product. Remaining order values keep their gaps.
func (c *Controller) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.backend.Delete(ctx, id); err != nil {
		return c.fail("Could not delete product", err)
	}
	c.notifier.Notify(notify.Notification{Level: notify.Success, Title: "Product deleted"})
	return nil
}

// Hide takes a product out of the sellout order.
func (c *Controller) Hide(ctx context.Context, id uuid.UUID) error {
	if _, err := c.backend.Update(ctx, id, models.HidePatch()); err != nil {
		return c.fail("Could not hide product", err)
	}
	c.notifier.Notify(notify.Notification{Level: notify.Success, Title: "Product hidden"})
	return nil
}

// Unhide puts a hidden product back at the end of the order and switches
// the view to the visible list.
func (c *Controller) Unhide(ctx context.Context, id uuid.UUID) error {
	order, err := c.backend.TrailingOrderValue(ctx)
	if err != nil {
		return c.fail("Could not unhide product", err)
	}
	if _, err := c.backend.Update(ctx, id, models.UnhidePatch(order)); err != nil {
		return c.fail("Could not unhide product", err)
	}
	c.store.SetMode(catalog.ModeVisible)
	c.notifier.Notify(notify.Notification{Level: notify.Success, Title: "Product visible again"})
	return nil
}

// Move places a visible product at the 1-based target position. Normally
// only the moved product's order value is rewritten; once the values have
// been bisected below the floor the server renumbers the whole list.
func (c *Controller) Move(ctx context.Context, id uuid.UUID, target int) error {
	visible := c.store.Visible()
	current := ordering.PositionOf(visible, id)
	if current == 0 {
		return c.fail("Could not move product", models.ErrNotFound)
	}
	if err := c.alloc.ValidateTarget(target, current, len(visible)); err != nil {
		c.warn("Invalid position", err)
		return err
	}

	if c.alloc.NeedsRebalancing(visible) {
		return c.rebalance(ctx, id, target)
	}

	value, err := c.alloc.Allocate(visible, target, id)
	if errors.Is(err, ordering.ErrNoHeadroom) {
		c.logger.Info("no headroom left, rebalancing", "id", id, "target", target)
		return c.rebalance(ctx, id, target)
	}
	if err != nil {
		return c.fail("Could not move product", err)
	}

	if _, err := c.backend.Update(ctx, id, models.OrderPatch(value)); err != nil {
		return c.fail("Could not move product", err)
	}
	c.notifier.Notify(notify.Notification{Level: notify.Success, Title: "Product moved", Message: fmt.Sprintf("Now at position %d", target)})
	return nil
}

// Rebalance renumbers the visible list without moving anything.
func (c *Controller) Rebalance(ctx context.Context) error {
	visible := c.store.Visible()
	if len(visible) == 0 {
		return nil
	}
	return c.rebalance(ctx, visible[0].ID, 1)
}

func (c *Controller) rebalance(ctx context.Context, id uuid.UUID, target int) error {
	if err := c.backend.RebalanceAndMove(ctx, id, target); err != nil {
		return c.fail("Could not rebalance order", err)
	}
	if err := c.guard.Resync(ctx, syncguard.TriggerRebalance); err != nil && !errors.Is(err, syncguard.ErrInFlight) {
		c.logger.Warn("resync after rebalance failed", "error", err)
	}
	c.notifier.Notify(notify.Notification{Level: notify.Success, Title: "Order rebalanced", Message: fmt.Sprintf("Product now at position %d", target)})
	return nil
}

// ForceResync is the manual "sync now" action, throttled to one call per
// cool-down.
func (c *Controller) ForceResync(ctx context.Context) error {
	if !c.limiter.Allow() {
		return ErrThrottled
	}
	err := c.guard.Resync(ctx, syncguard.TriggerManual)
	if errors.Is(err, syncguard.ErrInFlight) {
		return nil
	}
	return err
}

// watchDraft warns once when the record under an open draft is changed or
// removed by someone else. The draft itself is never touched.
func (c *Controller) watchDraft(snap catalog.Snapshot) {
	c.mu.Lock()
	d := c.draft
	if d == nil || d.warned {
		c.mu.Unlock()
		return
	}

	var cur *models.Product
	for i := range snap.All {
		if snap.All[i].ID == d.id {
			cur = &snap.All[i]
			break
		}
	}

	var msg string
	switch {
	case cur == nil:
		msg = "This product was deleted by another user."
	case !sameContent(*cur, d.base):
		msg = "This product was changed by another user. Saving will overwrite their changes."
	}
	if msg == "" {
		c.mu.Unlock()
		return
	}
	d.warned = true
	c.mu.Unlock()

	c.notifier.Notify(notify.Notification{Level: notify.Warning, Title: "Edit out of date", Message: msg})
}

func sameContent(a, b models.Product) bool {
	return models.ChangedFields(a, models.InputFrom(b)).IsEmpty() &&
		a.Hidden == b.Hidden && a.UpdatedAt.Equal(b.UpdatedAt)
}

func (c *Controller) warn(title string, err error) {
	c.notifier.Notify(notify.Notification{Level: notify.Warning, Title: title, Message: err.Error()})
}

func (c *Controller) fail(title string, err error) error {
	c.logger.Error(title, "error", err)
	c.notifier.Notify(notify.Notification{Level: notify.Error, Title: title, Message: err.Error()})
	return err
}
