// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"sellout/internal/catalog"
	"sellout/internal/models"
	"sellout/internal/notify"
)

// oneShot loads a fresh session, runs fn against it and closes it. Progress
// and success messages go to stderr; failures come back as the error.
func (app *App) oneShot(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := app.newSession(newPrinter(cmd.ErrOrStderr(), notify.Info, notify.Success))
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	if err := s.ctrl.Load(ctx); err != nil {
		return err
	}
	return fn(ctx, s)
}

func newListCmd(app *App) *cobra.Command {
	var (
		hidden     bool
		search     string
		categories []string
		page       int
		pageSize   int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products in sellout order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.oneShot(cmd, func(ctx context.Context, s *session) error {
				if hidden {
					s.ctrl.SetMode(catalog.ModeHidden)
				}
				items := s.ctrl.View(catalog.Query{Search: search, Categories: categories})
				total := len(items)
				if page > 0 {
					items = catalog.Page(items, page-1, pageSize)
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(items)
				}
				if err := renderTable(out, items, s.store.Visible()); err != nil {
					return err
				}
				if page > 0 {
					renderPager(out, page, pageCount(total, pageSize), total)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&hidden, "hidden", false, "List hidden products instead of visible ones")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Only titles containing this text")
	cmd.Flags().StringSliceVarP(&categories, "category", "c", nil, "Only products in any of these categories")
	cmd.Flags().IntVar(&page, "page", 0, "Show one page (1-based) instead of the whole list")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Products per page")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// productFlags are the editable product fields shared by add and edit.
type productFlags struct {
	title      string
	categories []string
	url        string
	image      string
	start      string
	end        string
	offer      string
}

func (f *productFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Product title")
	cmd.Flags().StringSliceVar(&f.categories, "category", nil, "Categories (repeat or comma-separate)")
	cmd.Flags().StringVar(&f.url, "url", "", "Product page URL")
	cmd.Flags().StringVar(&f.image, "image", "", "Product image URL")
	cmd.Flags().StringVar(&f.start, "start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "End date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.offer, "offer", "", "Offer state, empty to clear")
}

// apply copies the flags the user set onto in.
func (f *productFlags) apply(cmd *cobra.Command, in *models.ProductInput) error {
	set := cmd.Flags().Changed
	if set("title") {
		in.Title = f.title
	}
	if set("category") {
		in.Categories = trimAll(f.categories)
	}
	if set("url") {
		in.ProductURL = f.url
	}
	if set("image") {
		in.ImageURL = f.image
	}
	if set("start") {
		d, err := models.ParseDate(f.start)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		in.StartDate = d
	}
	if set("end") {
		d, err := models.ParseDate(f.end)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		in.EndDate = d
	}
	if set("offer") {
		if v := strings.TrimSpace(f.offer); v != "" {
			in.OfferState = &v
		} else {
			in.OfferState = nil
		}
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func newAddCmd(app *App) *cobra.Command {
	var f productFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a product at the end of the sellout order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := models.ProductInput{Categories: []string{}}
			if err := f.apply(cmd, &in); err != nil {
				return err
			}
			return app.oneShot(cmd, func(ctx context.Context, s *session) error {
				p, err := s.ctrl.Add(ctx, in)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.ID)
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newEditCmd(app *App) *cobra.Command {
	var f productFlags
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change the fields of a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.oneShot(cmd, func(ctx context.Context, s *session) error {
				id, err := s.resolveID(args[0])
				if err != nil {
					return err
				}
				in, err := s.ctrl.BeginEdit(id)
				if err != nil {
					return err
				}
				defer s.ctrl.CancelEdit()

				if err := f.apply(cmd, &in); err != nil {
					return err
				}
				_, err = s.ctrl.Edit(ctx, id, in)
				return err
			})
		},
	}
	f.register(cmd)
	return cmd
}

func newMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <position>",
		Short: "Move a visible product to a 1-based position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("position must be a whole number: %q", args[1])
			}
			return app.oneShot(cmd, func(ctx context.Context, s *session) error {
				id, err := s.resolveID(args[0])
				if err != nil {
					return err
				}
				return s.ctrl.Move(ctx, id, target)
			})
		},
	}
}

// newIDCmd builds the commands that take a single product id.
func newIDCmd(app *App, use, short string, action func(s *session) func(context.Context, uuid.UUID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.oneShot(cmd, func(ctx context.Context, s *session) error {
				id, err := s.resolveID(args[0])
				if err != nil {
					return err
				}
				return action(s)(ctx, id)
			})
		},
	}
}

func newHideCmd(app *App) *cobra.Command {
	return newIDCmd(app, "hide", "Take a product out of the sellout order",
		func(s *session) func(context.Context, uuid.UUID) error { return s.ctrl.Hide })
}

func newUnhideCmd(app *App) *cobra.Command {
	return newIDCmd(app, "unhide", "Put a hidden product back at the end of the order",
		func(s *session) func(context.Context, uuid.UUID) error { return s.ctrl.Unhide })
}

func newDeleteCmd(app *App) *cobra.Command {
	return newIDCmd(app, "delete", "Delete a product",
		func(s *session) func(context.Context, uuid.UUID) error { return s.ctrl.Delete })
}

func newRebalanceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rebalance",
		Short: "Renumber the visible order with even spacing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.oneShot(cmd, func(ctx context.Context, s *session) error {
				return s.ctrl.Rebalance(ctx)
			})
		},
	}
}

func newSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch the catalog and report what the server holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(newPrinter(cmd.ErrOrStderr(), notify.Info, notify.Success))
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.ctrl.ForceResync(cmd.Context()); err != nil {
				return err
			}
			snap := s.store.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "%d products, %d visible, synced %s\n",
				len(snap.All), len(s.store.Visible()), snap.LastSync.Format("15:04:05"))
			return nil
		},
	}
}
