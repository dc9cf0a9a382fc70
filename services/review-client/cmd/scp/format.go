package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scp-mobile/platform/services/review-client/internal/application"
	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

func printOrders(w io.Writer, orders []domain.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tLOCATION\tSUBGROUP\tSTATUS\tUNITS\tTOTAL")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.SourceLocationID, o.LocationID, dash(o.SubGroup), dash(string(o.Status)),
			optional(o.TotalUnits, formatQuantity), optional(o.TotalCost, formatMoney))
	}
	_ = tw.Flush()
}

func printOrderHeader(w io.Writer, o domain.Order) {
	switch o.Kind {
	case domain.KindOpportunityBuy:
		fmt.Fprintf(w, "Opportunity buys for %s\n", o.LocationID)
	default:
		fmt.Fprintf(w, "Suggested order %s -> %s (%s)\n", o.SourceLocationID, o.LocationID, dash(string(o.Status)))
	}
}

// printLines renders one row per card; edited quantities show the
// confirmed value alongside.
func printLines(w io.Writer, lines []domain.OrderLine) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "No lines.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tDESCRIPTION\tON HAND\tFORECAST\tQTY\tEXT COST")
	for _, l := range lines {
		qty := formatQuantity(l.CurrentQuantity)
		if l.IsDirty() {
			qty = fmt.Sprintf("%s (was %s)", qty, formatQuantity(l.BaselineQuantity))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ItemID, dash(l.Description), formatQuantity(l.OnHand), formatQuantity(l.Forecast),
			qty, optional(l.ExtendedCost(), formatMoney))
	}
	_ = tw.Flush()
}

func printSubmitResult(w io.Writer, r *application.SubmitResult) {
	if r.NoChanges {
		fmt.Fprintln(w, "No changes to submit.")
		return
	}
	fmt.Fprintf(w, "Submitted: %d updated, %d cleared, %d failed (%s)\n",
		r.Updated, r.Cleared, r.TotalErrors, r.Duration.Round(time.Millisecond))
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  %s %s: %s\n", e.Op, e.ItemID, e.Message)
	}
	if r.RefreshErr != nil {
		fmt.Fprintf(w, "Saved, but the order could not be reloaded: %v\n", r.RefreshErr)
	}
}

func printUploadSummary(w io.Writer, s *domain.UploadSummary) {
	fmt.Fprintf(w, "Uploaded %d of %d %s rows, %d failed\n", s.Success, s.Total, s.Kind, s.Failed)
	for _, e := range s.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if extra := s.ErrorCount - len(s.Errors); extra > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", extra)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func optional(d decimal.NullDecimal, format func(decimal.Decimal) string) string {
	if !d.Valid {
		return "-"
	}
	return format(d.Decimal)
}

// formatQuantity drops trailing zeros: 12.0 prints as 12
func formatQuantity(d decimal.Decimal) string {
	return d.String()
}

// formatMoney renders d as dollars with thousands separators
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + "$" + b.String() + "." + frac
}
