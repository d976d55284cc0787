package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	domain "github.com/dmaier/listify/pkg/types"
)

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printProductTable(products []domain.Product) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID\tTITLE\tPRICE\tCOST\tMARGIN\tEBAY\tETSY\n")
	for i := range products {
		p := &products[i]
		tw.writef("%d\t%s\t$%.2f\t$%.2f\t%.1f%%\t%s\t%s\n",
			p.ID,
			truncate(p.Title, 40),
			p.Price,
			p.Cost,
			p.PredictedMargin,
			publishMark(p.Ebay),
			publishMark(p.Etsy),
		)
	}
	return tw.finish()
}

func printProductDetail(p *domain.Product) error {
	tw := newTabWriter(os.Stdout)
	tw.writef("ID:\t%d\n", p.ID)
	tw.writef("Title:\t%s\n", p.Title)
	if p.Description != "" {
		tw.writef("Description:\t%s\n", truncate(p.Description, 60))
	}
	tw.writef("Price:\t$%.2f\n", p.Price)
	tw.writef("Cost:\t$%.2f\n", p.Cost)
	tw.writef("Margin:\t%.1f%%\n", p.PredictedMargin)
	if p.ImageFilename != "" {
		tw.writef("Image:\t%s\n", p.ImageFilename)
	}
	tw.writef("eBay:\t%s\n", publishDetail(p.Ebay))
	tw.writef("Etsy:\t%s\n", publishDetail(p.Etsy))
	tw.writef("Created:\t%s\n", p.CreatedAt.Format("2006-01-02 15:04:05"))
	return tw.finish()
}

func publishMark(state domain.PublishState) string {
	if state.Published {
		return state.ListingID
	}
	return "-"
}

func publishDetail(state domain.PublishState) string {
	if state.Published {
		return "published (listing " + state.ListingID + ")"
	}
	return "not published"
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
