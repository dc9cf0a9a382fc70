package domain

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/scp-mobile/platform/shared/pkg/errors"
)

const (
	optimizationPath = "/ai-inventoryoptimization/api/ai-inventoryoptimization"
	forecastPath     = "/ai-forecast/api/ai-forecast"
	locationPath     = "/itemlocation/api/itemlocation/location"
	itemSearchPath   = "/item/api/item/item/search"
	conditionPath    = "/dcinventory/api/dcinventory/conditionCode?size=50"
)

// Shape says how a vendor body becomes the reply payload
type Shape int

const (
	// ShapeResult returns the whole vendor body under the reply key
	ShapeResult Shape = iota
	// ShapeList extracts `data` (or the reply key, or the whole body)
	ShapeList
	// ShapeImageMap folds item rows into {ItemId: SmallImageURI}
	ShapeImageMap
	// ShapeCodes maps condition codes to sorted {code, desc} options
	ShapeCodes
)

// VendorRequest is one call to the vendor REST API
type VendorRequest struct {
	Action Action
	Method string
	Path   string
	Body   any

	// Reply is the payload key of the proxy response
	Reply string
	Shape Shape
}

// Credentials are forwarded on every vendor call
type Credentials struct {
	Token string
	Org   string
}

// Quote renders s as a single-quoted query literal, doubling embedded quotes
func Quote(s string) (string, error) {
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", errors.ErrValidation(fmt.Sprintf("invalid identifier %q", s)).Wrap(ErrUnsafeIdentifier)
		}
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
}

// quoteAll quotes each value, failing on the first unsafe one
func quoteAll(values ...string) ([]string, error) {
	quoted := make([]string, len(values))
	for i, v := range values {
		q, err := Quote(v)
		if err != nil {
			return nil, err
		}
		quoted[i] = q
	}
	return quoted, nil
}

// BuildVendorRequest translates a validated request into its vendor call
func BuildVendorRequest(r *Request) (VendorRequest, error) {
	action := Action(r.Action)
	req := VendorRequest{Action: action, Method: http.MethodPost, Reply: "result", Shape: ShapeResult}

	switch action {
	case ActionSearchSummaries:
		q, err := quoteAll(r.StoreID)
		if err != nil {
			return req, err
		}
		req.Path = optimizationPath + "/inventoryMovementSummary/search"
		req.Body = search("LocationId="+q[0], map[string]any{
			"LocationId":                 nil,
			"SourceLocationId":           nil,
			"SubGroup":                   nil,
			"InventoryMovementSummaryId": nil,
			"OrderStatus":                map[string]any{"OrderStatusId": nil},
			"MovementSummaryFactors":     nil,
		})
		req.Reply, req.Shape = "orders", ShapeList

	case ActionSearchMovements:
		var query string
		if r.ItemID != "" {
			q, err := quoteAll(r.ItemID, r.LocationID)
			if err != nil {
				return req, err
			}
			query = fmt.Sprintf("ItemId=%s AND LocationId=%s", q[0], q[1])
		} else {
			q, err := quoteAll(r.SourceLocationID, r.LocationID)
			if err != nil {
				return req, err
			}
			query = fmt.Sprintf("SourceLocationId=%s AND LocationId=%s", q[0], q[1])
		}
		req.Path = optimizationPath + "/inventoryMovement/search"
		req.Body = search(query, map[string]any{
			"ItemId":                  nil,
			"InventoryMovementId":     nil,
			"InventoryMovementDetail": map[string]any{"ItemDescription": nil},
			"FinalOrderUnits":         nil,
			"FinalOrderCost":          nil,
			"OnHandQuantity":          nil,
			"PeriodForecast":          nil,
		})
		req.Reply, req.Shape = "movements", ShapeList

	case ActionSearchPlanned:
		q, err := quoteAll(r.LocationID)
		if err != nil {
			return req, err
		}
		req.Path = optimizationPath + "/plannedPurchase/search"
		req.Body = search("LocationId IN ("+q[0]+")", map[string]any{
			"PK":                  nil,
			"PlannedPurchaseId":   nil,
			"PlannedPurchaseName": nil,
			"LocationId":          nil,
			"ItemId":              nil,
			"PurchaseQuantity":    nil,
			"PlannedReceiptDate":  nil,
			"PurchaseOnDate":      nil,
			"DaysOfSupply":        nil,
		})
		req.Reply, req.Shape = "plannedPurchases", ShapeList

	case ActionSearchImages:
		q, err := quoteAll(r.ItemIDs...)
		if err != nil {
			return req, err
		}
		req.Path = itemSearchPath
		req.Body = search("ItemId IN ("+strings.Join(q, ",")+")", map[string]any{
			"ItemId":        nil,
			"SmallImageURI": nil,
		})
		req.Reply, req.Shape = "imageMap", ShapeImageMap

	case ActionSearchLocation:
		q, err := quoteAll(r.Location())
		if err != nil {
			return req, err
		}
		req.Path = locationPath + "/search"
		req.Body = map[string]any{"Query": "LocationId IN (" + q[0] + ")"}
		req.Reply, req.Shape = "locations", ShapeList

	case ActionReview:
		req.Path = optimizationPath + "/inventorymovement/review"
		req.Body = map[string]any{
			"ItemId":           nil,
			"SourceLocationId": r.SourceLocationID,
			"LocationId":       r.LocationID,
			"RelationType":     "Regular",
			"BracketId":        nil,
			"executeBracket":   false,
			"CancelReview":     false,
			"StartReview":      true,
			"UseLatest":        false,
		}

	case ActionSaveSuggestedLine:
		req.Path = optimizationPath + "/inventorymovement/save"
		req.Body = map[string]any{
			"InventoryMovementId": r.InventoryMovementID,
			"FinalOrderUnits":     *r.FinalOrderQty,
		}

	case ActionClearSOQ:
		req.Path = optimizationPath + "/inventorymovement/clearSOQ"
		req.Body = map[string]any{
			"ItemId":           r.ItemID,
			"LocationId":       r.LocationID,
			"SourceLocationId": r.SourceLocationID,
		}

	case ActionApprove:
		req.Path = optimizationPath + "/inventorymovement/approve"
		req.Body = map[string]any{
			"LocationId":       r.LocationID,
			"SourceLocationId": r.SourceLocationID,
			"RelationType":     "Regular",
		}

	case ActionSavePlannedPurchase:
		req.Path = optimizationPath + "/plannedPurchase/save"
		req.Body = r.PlannedPurchaseData

	case ActionDeletePlannedPurchase:
		if _, err := Quote(r.PK); err != nil {
			return req, err
		}
		req.Method = http.MethodDelete
		req.Path = optimizationPath + "/plannedPurchase/" + url.PathEscape(r.PK)

	case ActionSaveForecast:
		req.Path = forecastPath + "/forecast/save"
		req.Body = r.ForecastData

	case ActionSaveProjections:
		req.Path = forecastPath + "/manualForecastEvent/save"
		req.Body = r.ProjectionData

	case ActionCreateLocation:
		req.Path = locationPath + "/save"
		req.Body = r.LocationData

	case ActionGetCodes:
		req.Method = http.MethodGet
		req.Path = conditionPath
		req.Reply, req.Shape = "codes", ShapeCodes

	default:
		return req, fmt.Errorf("%s: %w", r.Action, ErrUnsupportedRequest)
	}
	return req, nil
}

func search(query string, template map[string]any) map[string]any {
	return map[string]any{"Query": query, "Template": template}
}
