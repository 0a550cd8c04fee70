// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"

	"sellout/internal/catalog"
	"sellout/internal/models"
)

const pagerWidth = 7

// renderTable prints products with their position in the full visible
// order, so a filtered listing still shows the numbers move expects.
func renderTable(w io.Writer, items, visible []models.Product) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no products")
		return err
	}

	positions := make(map[uuid.UUID]int, len(visible))
	for i := range visible {
		positions[visible[i].ID] = i + 1
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tID\tORDER\tTITLE\tCATEGORY\tSTART\tEND\tOFFER")
	for i := range items {
		p := &items[i]
		pos, order := "-", "-"
		if n, ok := positions[p.ID]; ok {
			pos = strconv.Itoa(n)
		}
		if p.OrderSellout != nil {
			order = strconv.FormatFloat(*p.OrderSellout, 'f', -1, 64)
		}
		offer := "-"
		if p.OfferState != nil && *p.OfferState != "" {
			offer = *p.OfferState
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			pos, shortID(p.ID), order, p.Title, strings.Join(p.Categories, ","),
			p.StartDate, p.EndDate, offer)
	}
	return tw.Flush()
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

func pageCount(total, size int) int {
	if size <= 0 || total == 0 {
		return 1
	}
	return (total + size - 1) / size
}

// renderPager prints the page window, e.g. "[1] 2 3 4 5 ... (page 1 of 9, 173 products)".
func renderPager(w io.Writer, current, total, count int) {
	r := catalog.Paginate(current, total, pagerWidth)

	var b strings.Builder
	if r.ShowLeftEllipsis {
		b.WriteString("1 ... ")
	}
	for i, n := range r.Pages {
		if i > 0 {
			b.WriteByte(' ')
		}
		if n == current {
			fmt.Fprintf(&b, "[%d]", n)
		} else {
			b.WriteString(strconv.Itoa(n))
		}
	}
	if r.ShowRightEllipsis {
		fmt.Fprintf(&b, " ... %d", total)
	}
	fmt.Fprintf(w, "%s  (page %d of %d, %d products)\n", b.String(), current, total, count)
}
