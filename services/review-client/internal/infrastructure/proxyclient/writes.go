package proxyclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

// trackTimeout bounds a telemetry relay through the proxy
const trackTimeout = 5 * time.Second

// number renders a quantity as a bare JSON number
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// SaveSuggestedOrderLine sets the final order quantity of a movement
func (c *Client) SaveSuggestedOrderLine(ctx context.Context, movementID string, quantity decimal.Decimal) error {
	return c.call(ctx, "save-suggested-order-line", map[string]any{
		"inventoryMovementId": movementID,
		"finalOrderQty":       number(quantity),
	}, nil)
}

// ClearSuggestedOrderLine zeroes the suggested quantity of an item
func (c *Client) ClearSuggestedOrderLine(ctx context.Context, itemID, sourceLocationID, locationID string) error {
	return c.call(ctx, "clear-soq", map[string]any{
		"itemId":           itemID,
		"sourceLocationId": sourceLocationID,
		"locationId":       locationID,
	}, nil)
}

// SavePlannedPurchase updates the quantity of a planned purchase
func (c *Client) SavePlannedPurchase(ctx context.Context, change domain.PlannedPurchaseChange) error {
	return c.call(ctx, "save-planned-purchase", map[string]any{
		"plannedPurchaseData": map[string]any{
			"PurchaseQuantity":    number(change.Quantity),
			"PlannedPurchaseId":   change.PlannedPurchaseID,
			"PlannedPurchaseName": change.PlannedPurchaseName,
			"LocationId":          change.LocationID,
			"ItemId":              change.ItemID,
		},
	}, nil)
}

// DeletePlannedPurchase removes a planned purchase by primary key
func (c *Client) DeletePlannedPurchase(ctx context.Context, pk string) error {
	return c.call(ctx, "delete-planned-purchase", map[string]any{"pk": pk}, nil)
}

// SaveForecast writes the forecast level of an item
func (c *Client) SaveForecast(ctx context.Context, row domain.ForecastRow) error {
	level := number(row.CurrentForecast)
	return c.call(ctx, "save-forecast", map[string]any{
		"forecastData": map[string]any{
			"ForecastId":      row.ForecastID,
			"CurrentForecast": level,
			"ForecastLevel":   level,
			"ForecastFactors": []map[string]any{{
				"ForecastLevel":   level,
				"CurrentForecast": level,
			}},
		},
	}, nil)
}

// SaveForecastProjection records the manual forecast event for a period
func (c *Client) SaveForecastProjection(ctx context.Context, row domain.ForecastRow) error {
	return c.call(ctx, "save-forecast-projections", map[string]any{
		"projectionData": map[string]any{
			"ForecastId":              row.ForecastID,
			"CurrentForecast":         number(row.CurrentForecast),
			"ManualForecastEventType": "User",
			"PeriodStartDate":         row.PeriodStartDate,
		},
	}, nil)
}

// CreateLocation creates a store location
func (c *Client) CreateLocation(ctx context.Context, row domain.LocationRow) error {
	return c.call(ctx, "create-location", map[string]any{"locationData": row}, nil)
}

// ValidateStore reports whether storeID is a known location. An error means
// the lookup itself failed.
func (c *Client) ValidateStore(ctx context.Context, storeID string) (bool, error) {
	var resp struct {
		Locations []record `json:"locations"`
	}
	if err := c.call(ctx, "search-location", map[string]any{"locationId": storeID}, &resp); err != nil {
		return false, err
	}
	return len(resp.Locations) > 0, nil
}

// ConditionCode is one inventory condition code
type ConditionCode struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

// ConditionCodes returns the condition codes, led by the blank placeholder
func (c *Client) ConditionCodes(ctx context.Context) ([]ConditionCode, error) {
	var resp struct {
		Codes []ConditionCode `json:"codes"`
	}
	if err := c.call(ctx, "get-codes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Codes, nil
}

// Track relays a usage event through the proxy. Failures are logged only.
func (c *Client) Track(ctx context.Context, eventName string, metadata map[string]any) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), trackTimeout)
	defer cancel()

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	fields := map[string]any{"event_name": eventName, "metadata": meta}

	token := ""
	if session, err := c.Session(); err == nil {
		fields["org"] = session.Org
		token = session.Token
		if _, ok := meta["store_id"]; !ok && session.StoreID != "" {
			meta["store_id"] = session.StoreID
		}
	}

	if err := c.send(ctx, token, "ha-track", fields, nil); err != nil {
		c.logger.WithError(err).Debug("Telemetry relay failed", "event", eventName)
	}
}
