// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package catalog owns the canonical product set of a dashboard session.
// Every mutation (full resync, change events, view mode switches) goes
// through Store, which re-derives the displayed projection afterwards and
// notifies observers. No other component keeps its own copy of the records.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sellout/internal/models"
	"sellout/internal/ordering"
)

// ErrUnknownChange is returned by Apply for events it cannot interpret.
var ErrUnknownChange = errors.New("unknown change")

// Snapshot is an immutable view of the store after a mutation.
type Snapshot struct {
	Version   uint64
	Mode      Mode
	All       []models.Product
	Displayed []models.Product
	LastSync  time.Time
	LastEvent time.Time
	Loaded    bool
}

// Observer is called after every mutation, outside the store lock.
type Observer func(Snapshot)

// Store is the session-scoped holder of the canonical product set.
type Store struct {
	mu        sync.Mutex
	records   []models.Product
	displayed []models.Product
	mode      Mode
	version   uint64
	loaded    bool
	lastSync  time.Time
	lastEvent time.Time
	now       func() time.Time

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int

	// deliverMu serializes observer calls. delivered is the newest version
	// handed out.
	deliverMu sync.Mutex
	delivered uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for sync and event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// wallNow drops the monotonic reading so ages measured across a system
// sleep include the time spent asleep.
func wallNow() time.Time { return time.Now().Round(0) }

// NewStore returns an empty store in visible mode.
func NewStore(opts ...Option) *Store {
	s := &Store{
		mode:      ModeVisible,
		now:       wallNow,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	now := s.now()
	s.lastSync = now
	s.lastEvent = now
	return s
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Store) Subscribe(fn Observer) (cancel func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// Replace swaps the canonical set wholesale with an authoritative fetch.
// Nothing is merged: records not present in the fetch are gone.
func (s *Store) Replace(records []models.Product) {
	cp := make([]models.Product, len(records))
	for i := range records {
		cp[i] = records[i].Clone()
	}

	s.mu.Lock()
	s.records = cp
	s.loaded = true
	s.lastSync = s.now()
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Apply folds one change event into the canonical set. INSERT is ignored
// when the id is already present, UPDATE replaces by id (re-sorting when
// the order value moved) and DELETE removes by id. REORDER carries no rows
// and changes nothing; the feed re-fetches on it. Every call, applied or
// not, stamps the last-event time used by the staleness guard. The boolean
// reports whether the canonical set changed.
func (s *Store) Apply(c models.Change) (bool, error) {
	if err := c.Validate(); err != nil {
		s.mu.Lock()
		s.lastEvent = s.now()
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %v", ErrUnknownChange, err)
	}

	s.mu.Lock()
	s.lastEvent = s.now()

	changed := false
	switch c.Kind {
	case models.ChangeInsert:
		if s.indexLocked(c.New.ID) < 0 {
			s.records = append(s.records, c.New.Clone())
			changed = true
		}

	case models.ChangeUpdate:
		i := s.indexLocked(c.New.ID)
		if i < 0 {
			slog.Debug("update for unknown product ignored", "id", c.New.ID)
			break
		}
		prev := s.records[i]
		s.records[i] = c.New.Clone()
		if !sameOrder(prev.OrderSellout, c.New.OrderSellout) {
			ordering.Sort(s.records)
		}
		changed = true

	case models.ChangeDelete:
		if i := s.indexLocked(c.Old.ID); i >= 0 {
			s.records = append(s.records[:i:i], s.records[i+1:]...)
			changed = true
		}
	}

	if !changed {
		s.mu.Unlock()
		return false, nil
	}
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true, nil
}

// SetMode switches the displayed half of the catalog.
func (s *Store) SetMode(mode Mode) {
	s.mu.Lock()
	if s.mode == mode {
		s.mu.Unlock()
		return
	}
	s.mode = mode
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// MarkSynced records that the canonical set is known to be current without
// replacing it. The staleness guard calls it from its heartbeat.
func (s *Store) MarkSynced(at time.Time) {
	s.mu.Lock()
	s.lastSync = at
	s.mu.Unlock()
}

// Mode returns the current view mode.
func (s *Store) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Get returns a copy of the product with the given id.
func (s *Store) Get(id uuid.UUID) (models.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.records[i].Clone(), true
	}
	return models.Product{}, false
}

// All returns a copy of the canonical set.
func (s *Store) All() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.records)
}

// Displayed returns a copy of the current projection.
func (s *Store) Displayed() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.displayed)
}

// Visible returns the visible projection regardless of the current mode.
// Moves are always computed against it.
func (s *Store) Visible() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Project(s.records, ModeVisible)
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// LastSync returns when the canonical set was last confirmed current.
func (s *Store) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

// LastEvent returns when the last change event was observed.
func (s *Store) LastEvent() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEvent
}

// commitLocked re-derives the projection and bumps the version.
func (s *Store) commitLocked() Snapshot {
	s.displayed = Project(s.records, s.mode)
	s.version++
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Version:   s.version,
		Mode:      s.mode,
		All:       cloneAll(s.records),
		Displayed: cloneAll(s.displayed),
		LastSync:  s.lastSync,
		LastEvent: s.lastEvent,
		Loaded:    s.loaded,
	}
}

func (s *Store) indexLocked(id uuid.UUID) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

// notify hands snap to every observer. Observers see versions in increasing
// order: a snapshot overtaken by a newer one before delivery is dropped.
// Observers must not modify the store.
func (s *Store) notify(snap Snapshot) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()
	if snap.Version <= s.delivered {
		return
	}
	s.delivered = snap.Version

	s.obsMu.Lock()
	fns := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func cloneAll(in []models.Product) []models.Product {
	out := make([]models.Product, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func sameOrder(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
