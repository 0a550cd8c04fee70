// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sellout/internal/catalog"
	"sellout/internal/models"
	"sellout/internal/notify"
	"sellout/internal/ordering"
	"sellout/internal/syncguard"
)

type patchCall struct {
	id    uuid.UUID
	patch models.ProductPatch
}

type moveCall struct {
	id       uuid.UUID
	position int
}

// fakeBackend is an in-memory stand-in for the API. It does not emit
// change events, so the canonical set only moves on resync.
type fakeBackend struct {
	mu           sync.Mutex
	products     []models.Product
	fetches      int
	creates      []models.ProductInput
	updates      []patchCall
	deletes      []uuid.UUID
	moves        []moveCall
	createErr    error
	updateErr    error
	rebalanceErr error
	createGate   chan struct{}
	createEnter  chan struct{}
}

func (f *fakeBackend) FetchAll(context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	out := make([]models.Product, len(f.products))
	for i := range f.products {
		out[i] = f.products[i].Clone()
	}
	return out, nil
}

func (f *fakeBackend) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if f.createEnter != nil {
		f.createEnter <- struct{}{}
	}
	if f.createGate != nil {
		<-f.createGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, in)
	if f.createErr != nil {
		return nil, f.createErr
	}
	p := models.Product{ID: uuid.New(), OrderSellout: in.OrderSellout, Title: in.Title}
	f.products = append(f.products, p)
	return &p, nil
}

func (f *fakeBackend) Update(_ context.Context, id uuid.UUID, patch models.ProductPatch) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, patchCall{id, patch})
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i := range f.products {
		if f.products[i].ID == id {
			f.products[i] = patch.Apply(f.products[i])
			p := f.products[i].Clone()
			return &p, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeBackend) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
	return nil
}

func (f *fakeBackend) TrailingOrderValue(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ordering.NewAllocator(ordering.DefaultConfig()).Trailing(catalog.Project(f.products, catalog.ModeVisible)), nil
}

func (f *fakeBackend) RebalanceAndMove(_ context.Context, id uuid.UUID, position int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, moveCall{id, position})
	if f.rebalanceErr != nil {
		return f.rebalanceErr
	}

	visible := catalog.Project(f.products, catalog.ModeVisible)
	var rest []uuid.UUID
	for _, p := range visible {
		if p.ID != id {
			rest = append(rest, p.ID)
		}
	}
	position = min(max(position, 1), len(rest)+1)
	order := append(append(append([]uuid.UUID(nil), rest[:position-1]...), id), rest[position-1:]...)
	for k, pid := range order {
		for i := range f.products {
			if f.products[i].ID == pid {
				f.products[i].OrderSellout = models.Float(float64(k+1) * 100)
			}
		}
	}
	return nil
}

func seedProduct(order float64, title string) models.Product {
	return models.Product{
		ID:           uuid.New(),
		OrderSellout: models.Float(order),
		Title:        title,
		Categories:   []string{"tech"},
		ProductURL:   "https://shop.example.com/p/" + title,
		ImageURL:     "https://cdn.example.com/" + title + ".jpg",
		StartDate:    models.NewDate(2026, time.June, 1),
		EndDate:      models.NewDate(2026, time.June, 30),
	}
}

func validInput() models.ProductInput {
	return models.ProductInput{
		Title:      "Summer Sale",
		Categories: []string{"tech"},
		ProductURL: "https://shop.example.com/p/1",
		ImageURL:   "https://cdn.example.com/1.jpg",
		StartDate:  models.NewDate(2026, time.June, 1),
		EndDate:    models.NewDate(2026, time.June, 30),
	}
}

func setup(t *testing.T, products ...models.Product) (*Controller, *fakeBackend, *notify.Recorder) {
	t.Helper()
	backend := &fakeBackend{products: products}
	store := catalog.NewStore()
	guard := syncguard.New(backend, store, syncguard.DefaultConfig())
	rec := &notify.Recorder{}
	c := New(backend, store, guard, rec, DefaultConfig())
	t.Cleanup(c.Close)
	require.NoError(t, c.Load(context.Background()))
	rec.Reset()
	return c, backend, rec
}

func TestMove_RewritesOnlyMovedProduct(t *testing.T) {
	a, b := seedProduct(100, "alpha"), seedProduct(200, "bravo")
	c, backend, _ := setup(t, a, b)

	require.NoError(t, c.Move(context.Background(), a.ID, 2))

	require.Len(t, backend.updates, 1)
	assert.Equal(t, a.ID, backend.updates[0].id)
	assert.Equal(t, models.OrderPatch(300), backend.updates[0].patch)
	assert.Empty(t, backend.moves)

	// After the write lands the list reads B, A and B kept its value.
	require.NoError(t, c.ForceResync(context.Background()))
	got := c.View(catalog.Query{})
	assert.Equal(t, []uuid.UUID{b.ID, a.ID}, []uuid.UUID{got[0].ID, got[1].ID})
	assert.Equal(t, 200.0, got[0].Order())
}

func TestMove_BelowFloorRebalances(t *testing.T) {
	low, mid, high := seedProduct(1, "low"), seedProduct(100, "mid"), seedProduct(200, "high")
	c, backend, rec := setup(t, low, mid, high)

	require.NoError(t, c.Move(context.Background(), high.ID, 1))

	assert.Empty(t, backend.updates, "no single-record write on the rebalance path")
	assert.Equal(t, []moveCall{{high.ID, 1}}, backend.moves)
	assert.Equal(t, 2, backend.fetches, "initial load plus resync after rebalance")

	got := c.Store().Visible()
	require.Len(t, got, 3)
	assert.Equal(t, []uuid.UUID{high.ID, low.ID, mid.ID}, []uuid.UUID{got[0].ID, got[1].ID, got[2].ID})
	for i, p := range got {
		assert.Equal(t, float64(i+1)*100, p.Order())
	}
	assert.Equal(t, []notify.Level{notify.Success}, rec.Levels())
}

func TestMove_RebalanceFailureKeepsState(t *testing.T) {
	low, mid := seedProduct(1, "low"), seedProduct(100, "mid")
	c, backend, rec := setup(t, low, mid)
	backend.rebalanceErr = errors.New("transaction aborted")
	before := c.Store().All()

	err := c.Move(context.Background(), mid.ID, 1)
	require.Error(t, err)

	assert.Equal(t, before, c.Store().All())
	assert.Equal(t, 1, backend.fetches)
	assert.Equal(t, []notify.Level{notify.Error}, rec.Levels())
}

func TestMove_InvalidTarget(t *testing.T) {
	a, b, h := seedProduct(100, "alpha"), seedProduct(200, "bravo"), seedProduct(300, "hidden")
	h.Hidden, h.OrderSellout = true, nil
	c, backend, rec := setup(t, a, b, h)
	ctx := context.Background()

	for _, target := range []int{0, -1, 1, 3, 1000} {
		err := c.Move(ctx, a.ID, target)
		assert.True(t, errors.Is(err, ordering.ErrInvalidTarget), "target %d: %v", target, err)
	}
	assert.Empty(t, backend.updates)
	assert.Empty(t, backend.moves)
	assert.Len(t, rec.All(), 5)

	err := c.Move(ctx, h.ID, 1)
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestHide(t *testing.T) {
	a, b := seedProduct(100, "alpha"), seedProduct(200, "bravo")
	c, backend, _ := setup(t, a, b)
	ctx := context.Background()

	require.NoError(t, c.Hide(ctx, a.ID))
	require.Len(t, backend.updates, 1)
	assert.Equal(t, models.HidePatch(), backend.updates[0].patch)

	require.NoError(t, c.ForceResync(ctx))
	p, ok := c.Store().Get(a.ID)
	require.True(t, ok)
	assert.True(t, p.Hidden)
	assert.Nil(t, p.OrderSellout)
	assert.Len(t, c.View(catalog.Query{}), 1)
}

func TestUnhide_AppendsAndShowsVisible(t *testing.T) {
	a, h := seedProduct(100, "alpha"), seedProduct(0, "hidden")
	h.Hidden, h.OrderSellout = true, nil
	c, backend, _ := setup(t, a, h)
	c.SetMode(catalog.ModeHidden)

	require.NoError(t, c.Unhide(context.Background(), h.ID))
	require.Len(t, backend.updates, 1)
	assert.Equal(t, models.UnhidePatch(200), backend.updates[0].patch)
	assert.Equal(t, catalog.ModeVisible, c.Store().Mode())
}

func TestAdd_UsesTrailingValue(t *testing.T) {
	c, backend, rec := setup(t, seedProduct(100, "alpha"), seedProduct(400, "bravo"))

	p, err := c.Add(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, 500.0, p.Order())
	require.Len(t, backend.creates, 1)
	assert.Equal(t, 500.0, *backend.creates[0].OrderSellout)

	// The new row arrives through the feed, not through Add.
	assert.Len(t, c.Store().All(), 2)
	assert.Equal(t, []notify.Level{notify.Success}, rec.Levels())
}

func TestAdd_DuplicateOrder(t *testing.T) {
	c, backend, rec := setup(t, seedProduct(100, "alpha"))
	backend.createErr = fmt.Errorf("create product: %w", models.ErrDuplicateOrder)

	_, err := c.Add(context.Background(), validInput())
	assert.True(t, errors.Is(err, models.ErrDuplicateOrder))
	require.Len(t, rec.All(), 1)
	assert.Equal(t, notify.Error, rec.All()[0].Level)
	assert.Contains(t, rec.All()[0].Message, "already exists")
}

func TestAdd_InvalidNeverReachesBackend(t *testing.T) {
	c, backend, rec := setup(t)
	in := validInput()
	in.Title = "abc"

	_, err := c.Add(context.Background(), in)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "title", verr.Field)
	assert.Empty(t, backend.creates)
	assert.Equal(t, []notify.Level{notify.Warning}, rec.Levels())
}

func TestAdd_Busy(t *testing.T) {
	c, backend, _ := setup(t)
	backend.createGate = make(chan struct{})
	backend.createEnter = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		_, err := c.Add(context.Background(), validInput())
		done <- err
	}()
	<-backend.createEnter

	_, err := c.Add(context.Background(), validInput())
	assert.True(t, errors.Is(err, ErrBusy))

	close(backend.createGate)
	require.NoError(t, <-done)
}

func TestEdit_SendsOnlyChangedFields(t *testing.T) {
	a := seedProduct(100, "alpha")
	c, backend, _ := setup(t, a)
	ctx := context.Background()

	in, err := c.BeginEdit(a.ID)
	require.NoError(t, err)

	_, err = c.Edit(ctx, a.ID, in)
	assert.True(t, errors.Is(err, ErrNoChanges))
	assert.Empty(t, backend.updates)

	in.Title = "alpha renamed"
	_, err = c.Edit(ctx, a.ID, in)
	require.NoError(t, err)
	require.Len(t, backend.updates, 1)

	patch := backend.updates[0].patch
	require.NotNil(t, patch.Title)
	assert.Equal(t, "alpha renamed", *patch.Title)
	assert.Nil(t, patch.OrderSellout)
	assert.Nil(t, patch.Categories)
	assert.Nil(t, patch.ProductURL)
}

func TestDraft_WarnsOnRemoteChange(t *testing.T) {
	a, b := seedProduct(100, "alpha"), seedProduct(200, "bravo")
	c, _, rec := setup(t, a, b)

	_, err := c.BeginEdit(a.ID)
	require.NoError(t, err)

	// Unrelated change: no warning.
	other := b.Clone()
	other.Title = "bravo two"
	_, err = c.Store().Apply(models.Change{Kind: models.ChangeUpdate, New: &other})
	require.NoError(t, err)
	assert.Empty(t, rec.All())

	remote := a.Clone()
	remote.Title = "alpha remote"
	_, err = c.Store().Apply(models.Change{Kind: models.ChangeUpdate, New: &remote})
	require.NoError(t, err)
	_, err = c.Store().Apply(models.Change{Kind: models.ChangeDelete, Old: &remote})
	require.NoError(t, err)

	require.Len(t, rec.All(), 1)
	assert.Equal(t, notify.Warning, rec.All()[0].Level)
}

func TestForceResync_Throttled(t *testing.T) {
	c, backend, _ := setup(t)
	ctx := context.Background()

	require.NoError(t, c.ForceResync(ctx))
	assert.True(t, errors.Is(c.ForceResync(ctx), ErrThrottled))
	assert.Equal(t, 2, backend.fetches)
}
