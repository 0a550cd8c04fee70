// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sellout/internal/catalog"
	"sellout/internal/feed"
	"sellout/internal/notify"
	"sellout/internal/syncguard"
)

const clearScreen = "\033[H\033[2J"

func newWatchCmd(app *App) *cobra.Command {
	var (
		hidden     bool
		search     string
		categories []string
		clear      bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the catalog and follow changes live",
		Long: `Loads the catalog, subscribes to the change stream and redraws the list
whenever the canonical set changes. Lost connections are retried; once the
retries are exhausted the command exits and must be restarted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := app.newSession(newPrinter(cmd.ErrOrStderr(),
				notify.Info, notify.Success, notify.Warning, notify.Error))
			if err != nil {
				return err
			}
			defer s.close()

			if hidden {
				s.ctrl.SetMode(catalog.ModeHidden)
			}
			w := &watcher{
				session: s,
				out:     cmd.OutOrStdout(),
				query:   catalog.Query{Search: search, Categories: categories},
				clear:   clear,
				probe:   app.cfg.ProbeInterval,
				heading: lipgloss.NewRenderer(cmd.OutOrStdout()).NewStyle().Bold(true),
			}
			return w.run(ctx)
		},
	}

	cmd.Flags().BoolVar(&hidden, "hidden", false, "Watch hidden products instead of visible ones")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only titles containing this text")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "Only products in any of these categories")
	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the terminal before each redraw")
	return cmd
}

// watcher runs the live view: the feed consumer, the heartbeat, the
// connectivity probe, resume detection and the redraw loop.
type watcher struct {
	*session
	out     io.Writer
	query   catalog.Query
	clear   bool
	probe   time.Duration
	heading lipgloss.Style

	consumer *feed.Consumer
}

func (w *watcher) run(ctx context.Context) error {
	w.consumer = feed.NewConsumer(w.client, w.store,
		w.guard.ResyncFunc(syncguard.TriggerReconnect), feed.DefaultConfig())
	w.consumer.OnReorder(w.guard.ResyncFunc(syncguard.TriggerRebalance))

	// The first load waits for the subscription so no event falls between
	// the fetch and the stream.
	subscribed := make(chan struct{}, 1)
	w.consumer.OnState(func(st feed.State, err error) {
		if st == feed.StateSubscribed {
			select {
			case subscribed <- struct{}{}:
			default:
			}
		}
	})

	dirty := make(chan struct{}, 1)
	unsubscribe := w.store.Subscribe(func(catalog.Snapshot) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.consumer.Run(gctx) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-subscribed:
		}
		if err := w.ctrl.Load(gctx); err != nil {
			return err
		}
		return w.guard.Run(gctx)
	})
	g.Go(func() error { return w.probeLoop(gctx) })
	g.Go(func() error {
		return watchResume(gctx, func() { w.guard.VisibilityChanged(gctx, true) })
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-dirty:
				w.render()
			}
		}
	})
	return g.Wait()
}

// probeLoop feeds connectivity changes to the guard.
func (w *watcher) probeLoop(ctx context.Context) error {
	if w.probe <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(w.probe)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		pctx, cancel := context.WithTimeout(ctx, w.probe)
		err := w.client.Health(pctx)
		cancel()
		if ctx.Err() != nil {
			return nil
		}
		w.guard.NetworkChanged(ctx, err == nil)
	}
}

func (w *watcher) render() {
	snap := w.store.Snapshot()
	if !snap.Loaded {
		return
	}
	if w.clear {
		fmt.Fprint(w.out, clearScreen)
	}
	items := catalog.Filter(snap.Displayed, w.query)
	fmt.Fprintln(w.out, w.heading.Render(fmt.Sprintf("%s products (%d of %d)  synced %s  feed %s",
		snap.Mode, len(items), len(snap.All), snap.LastSync.Format("15:04:05"), w.consumer.State())))
	_ = renderTable(w.out, items, w.store.Visible())
	fmt.Fprintln(w.out)
}
