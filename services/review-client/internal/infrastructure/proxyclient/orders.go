package proxyclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

// record is one vendor row as passed through by the proxy
type record map[string]any

func (r record) str(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (r record) nested(key string) record {
	if m, ok := r[key].(map[string]any); ok {
		return record(m)
	}
	return nil
}

// ListOrders returns the suggested orders for a store
func (c *Client) ListOrders(ctx context.Context, storeID string) ([]domain.Order, error) {
	var resp struct {
		Orders []record `json:"orders"`
	}
	if err := c.call(ctx, "search-inventory-movement-summary", map[string]any{"storeId": storeID}, &resp); err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(resp.Orders))
	for _, r := range resp.Orders {
		orders = append(orders, toOrder(r, storeID))
	}
	return orders, nil
}

func toOrder(r record, storeID string) domain.Order {
	order := domain.Order{
		Kind:             domain.KindSuggestedOrder,
		SummaryID:        r.str("InventoryMovementSummaryId"),
		SourceLocationID: r.str("SourceLocationId"),
		LocationID:       r.str("LocationId"),
		SubGroup:         r.str("SubGroup"),
	}
	if order.LocationID == "" {
		order.LocationID = storeID
	}

	if status := r.nested("OrderStatus"); status != nil {
		order.Status = domain.Status(status.str("OrderStatusId"))
	} else {
		order.Status = domain.Status(r.str("OrderStatus"))
	}

	if totals := requiredTotals(r["MovementSummaryFactors"]); totals != nil {
		order.TotalCost = domain.ParseOptional(totals["USD"])
		order.TotalUnits = domain.ParseOptional(totals["EA"])
	}
	return order
}

// requiredTotals digs RequiredTotals out of MovementSummaryFactors, which the
// vendor sends either as an object or as a JSON string.
func requiredTotals(v any) record {
	var factors map[string]any
	switch t := v.(type) {
	case map[string]any:
		factors = t
	case string:
		dec := json.NewDecoder(strings.NewReader(t))
		dec.UseNumber()
		if err := dec.Decode(&factors); err != nil {
			return nil
		}
	default:
		return nil
	}
	if totals, ok := factors["RequiredTotals"].(map[string]any); ok {
		return record(totals)
	}
	return nil
}

// LoadOrder fetches the lines of an order, with item images attached
func (c *Client) LoadOrder(ctx context.Context, order domain.Order) (*domain.OrderSnapshot, error) {
	var (
		snapshot *domain.OrderSnapshot
		err      error
	)
	switch order.Kind {
	case domain.KindSuggestedOrder:
		snapshot, err = c.loadSuggested(ctx, order)
	case domain.KindOpportunityBuy:
		snapshot, err = c.loadOpportunity(ctx, order)
	default:
		return nil, fmt.Errorf("unsupported order kind %q", order.Kind)
	}
	if err != nil {
		return nil, err
	}

	c.attachImages(ctx, snapshot.Lines)
	return snapshot, nil
}

func (c *Client) loadSuggested(ctx context.Context, order domain.Order) (*domain.OrderSnapshot, error) {
	movements, err := c.searchMovements(ctx, map[string]any{
		"sourceLocationId": order.SourceLocationID,
		"locationId":       order.LocationID,
	})
	if err != nil {
		return nil, err
	}

	lines := make([]domain.OrderLine, 0, len(movements))
	for _, m := range movements {
		lines = append(lines, toSuggestedLine(m))
	}
	sortLines(lines)

	// The status moves on the backend (Suggested -> reviewed), so re-read it
	// from the summary; keep the caller's copy if that lookup fails.
	if orders, err := c.ListOrders(ctx, order.LocationID); err == nil {
		for _, o := range orders {
			if o.Key() == order.Key() {
				order.Status = o.Status
				order.TotalCost = o.TotalCost
				order.TotalUnits = o.TotalUnits
				order.SummaryID = o.SummaryID
				break
			}
		}
	} else {
		c.logger.WithError(err).Warn("Order status refresh failed", "locationId", order.LocationID)
	}

	return &domain.OrderSnapshot{Order: order, Lines: lines}, nil
}

func (c *Client) searchMovements(ctx context.Context, fields map[string]any) ([]record, error) {
	var resp struct {
		Movements []record `json:"movements"`
	}
	if err := c.call(ctx, "search-inventory-movement", fields, &resp); err != nil {
		return nil, err
	}
	return resp.Movements, nil
}

func toSuggestedLine(m record) domain.OrderLine {
	qty := domain.FirstQuantity(m["FinalOrderUnits"], m["FinalOrderQty"])
	line := domain.NewOrderLine(m.str("ItemId"), qty)
	line.MovementID = m.str("InventoryMovementId")
	line.OnHand = domain.FirstQuantity(m["OnHandQuantity"], m["OnHandQty"])
	line.Forecast = domain.ParseQuantity(m["PeriodForecast"])
	if detail := m.nested("InventoryMovementDetail"); detail != nil {
		line.Description = detail.str("ItemDescription")
	}
	line.UnitCost = unitCost(domain.ParseOptional(m["FinalOrderCost"]), qty)
	return line
}

// unitCost derives a per-unit cost from the extended order cost
func unitCost(total decimal.NullDecimal, qty decimal.Decimal) decimal.NullDecimal {
	if !total.Valid || !qty.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(total.Decimal.Div(qty))
}

// sortLines orders by quantity descending, then item id ascending
func sortLines(lines []domain.OrderLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		if c := lines[i].BaselineQuantity.Cmp(lines[j].BaselineQuantity); c != 0 {
			return c > 0
		}
		return lines[i].ItemID < lines[j].ItemID
	})
}

func (c *Client) loadOpportunity(ctx context.Context, order domain.Order) (*domain.OrderSnapshot, error) {
	var resp struct {
		PlannedPurchases []record `json:"plannedPurchases"`
	}
	if err := c.call(ctx, "search-planned-purchase", map[string]any{"locationId": order.LocationID}, &resp); err != nil {
		return nil, err
	}

	lines := make([]domain.OrderLine, 0, len(resp.PlannedPurchases))
	for _, pp := range resp.PlannedPurchases {
		line := domain.NewOrderLine(pp.str("ItemId"), domain.ParseQuantity(pp["PurchaseQuantity"]))
		line.LocationID = pp.str("LocationId")
		if line.LocationID == "" {
			line.LocationID = order.LocationID
		}
		line.PlannedPurchaseID = pp.str("PlannedPurchaseId")
		line.PlannedPurchaseName = pp.str("PlannedPurchaseName")
		line.PlannedPurchasePK = pp.str("PK")

		// On-hand and forecast live on the inventory movement; a failed lookup
		// leaves them at zero.
		movements, err := c.searchMovements(ctx, map[string]any{
			"itemId":     line.ItemID,
			"locationId": line.LocationID,
		})
		if err != nil {
			c.logger.WithError(err).Debug("Movement lookup failed", "itemId", line.ItemID)
		} else if len(movements) > 0 {
			m := movements[0]
			line.MovementID = m.str("InventoryMovementId")
			line.OnHand = domain.ParseQuantity(m["OnHandQuantity"])
			line.Forecast = domain.ParseQuantity(m["PeriodForecast"])
			if detail := m.nested("InventoryMovementDetail"); detail != nil {
				line.Description = detail.str("ItemDescription")
			}
		}
		lines = append(lines, line)
	}
	sortLines(lines)

	return &domain.OrderSnapshot{Order: order, Lines: lines}, nil
}

// attachImages fills ImageURI where the item service has one. Images are
// cosmetic, so failures are logged and ignored.
func (c *Client) attachImages(ctx context.Context, lines []domain.OrderLine) {
	if len(lines) == 0 {
		return
	}
	ids := make([]string, 0, len(lines))
	seen := make(map[string]bool, len(lines))
	for _, l := range lines {
		if l.ItemID != "" && !seen[l.ItemID] {
			seen[l.ItemID] = true
			ids = append(ids, l.ItemID)
		}
	}
	if len(ids) == 0 {
		return
	}

	var resp struct {
		ImageMap map[string]string `json:"imageMap"`
	}
	if err := c.call(ctx, "search-item-images", map[string]any{"itemIds": ids}, &resp); err != nil {
		c.logger.WithError(err).Debug("Item image lookup failed")
		return
	}
	for i := range lines {
		lines[i].ImageURI = resp.ImageMap[lines[i].ItemID]
	}
}

// Review starts the backend review of an order
func (c *Client) Review(ctx context.Context, order domain.Order) error {
	return c.call(ctx, "review-inventory-movement", map[string]any{
		"sourceLocationId": order.SourceLocationID,
		"locationId":       order.LocationID,
	}, nil)
}

// Approve releases an order
func (c *Client) Approve(ctx context.Context, order domain.Order) error {
	return c.call(ctx, "approve-inventory-movement", map[string]any{
		"sourceLocationId": order.SourceLocationID,
		"locationId":       order.LocationID,
	}, nil)
}
