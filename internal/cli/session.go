// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"sellout/internal/apiclient"
	"sellout/internal/catalog"
	"sellout/internal/dashboard"
	"sellout/internal/models"
	"sellout/internal/notify"
	"sellout/internal/syncguard"
)

// session wires one client-side catalog: the canonical set, the guard that
// keeps it fresh and the controller that writes through the API.
type session struct {
	client *apiclient.Client
	store  *catalog.Store
	guard  *syncguard.Guard
	ctrl   *dashboard.Controller
}

func (app *App) newSession(n notify.Notifier) (*session, error) {
	client, err := apiclient.New(app.cfg.APIURL)
	if err != nil {
		return nil, err
	}
	st := catalog.NewStore()
	guard := syncguard.New(client, st, app.cfg.Guard, syncguard.WithNotifier(n))
	ctrl := dashboard.New(client, st, guard, n, dashboard.Config{
		Ordering:       app.cfg.Ordering,
		ResyncCooldown: app.cfg.ResyncCooldown,
	})
	return &session{client: client, store: st, guard: guard, ctrl: ctrl}, nil
}

func (s *session) close() {
	s.ctrl.Close()
}

// resolveID accepts a full product id or a prefix matching exactly one
// product of the canonical set.
func (s *session) resolveID(arg string) (uuid.UUID, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if id, err := uuid.Parse(arg); err == nil {
		return id, nil
	}
	if arg == "" {
		return uuid.Nil, errors.New("empty product id")
	}

	var matches []uuid.UUID
	for _, p := range s.store.All() {
		if strings.HasPrefix(p.ID.String(), arg) {
			matches = append(matches, p.ID)
		}
	}
	switch len(matches) {
	case 0:
		return uuid.Nil, fmt.Errorf("product %q: %w", arg, models.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return uuid.Nil, fmt.Errorf("product id prefix %q is ambiguous (%d matches)", arg, len(matches))
}

// printer writes notifications as single lines. Levels not listed are
// dropped; one-shot commands leave failures to the returned error.
type printer struct {
	mu     sync.Mutex
	w      io.Writer
	levels map[notify.Level]bool
	styles map[notify.Level]lipgloss.Style
}

func newPrinter(w io.Writer, levels ...notify.Level) *printer {
	r := lipgloss.NewRenderer(w)
	p := &printer{
		w:      w,
		levels: make(map[notify.Level]bool, len(levels)),
		styles: map[notify.Level]lipgloss.Style{
			notify.Info:    r.NewStyle().Foreground(lipgloss.Color("6")),
			notify.Success: r.NewStyle().Foreground(lipgloss.Color("2")),
			notify.Warning: r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
			notify.Error:   r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
	for _, l := range levels {
		p.levels[l] = true
	}
	return p
}

func (p *printer) Notify(n notify.Notification) {
	if !p.levels[n.Level] {
		return
	}
	label := p.styles[n.Level].Render(fmt.Sprintf("%-7s", n.Level))

	p.mu.Lock()
	defer p.mu.Unlock()
	if n.Message == "" {
		fmt.Fprintf(p.w, "%s %s\n", label, n.Title)
		return
	}
	fmt.Fprintf(p.w, "%s %s: %s\n", label, n.Title, n.Message)
}
