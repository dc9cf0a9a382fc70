package domain

import (
	"encoding/json"
	"strings"

	"github.com/scp-mobile/platform/shared/pkg/errors"
)

// Action names one operation of the proxy vocabulary
type Action string

const (
	ActionAuth                  Action = "auth"
	ActionAppOpened             Action = "app_opened"
	ActionTrack                 Action = "ha-track"
	ActionSearchSummaries       Action = "search-inventory-movement-summary"
	ActionSearchMovements       Action = "search-inventory-movement"
	ActionSearchPlanned         Action = "search-planned-purchase"
	ActionSearchImages          Action = "search-item-images"
	ActionReview                Action = "review-inventory-movement"
	ActionSaveSuggestedLine     Action = "save-suggested-order-line"
	ActionClearSOQ              Action = "clear-soq"
	ActionApprove               Action = "approve-inventory-movement"
	ActionSaveForecast          Action = "save-forecast"
	ActionSaveProjections       Action = "save-forecast-projections"
	ActionCreateLocation        Action = "create-location"
	ActionSavePlannedPurchase   Action = "save-planned-purchase"
	ActionDeletePlannedPurchase Action = "delete-planned-purchase"
	ActionSearchLocation        Action = "search-location"
	ActionGetCodes              Action = "get-codes"
)

var knownActions = map[Action]bool{
	ActionAuth: true, ActionAppOpened: true, ActionTrack: true,
	ActionSearchSummaries: true, ActionSearchMovements: true, ActionSearchPlanned: true,
	ActionSearchImages: true, ActionReview: true, ActionSaveSuggestedLine: true,
	ActionClearSOQ: true, ActionApprove: true, ActionSaveForecast: true,
	ActionSaveProjections: true, ActionCreateLocation: true, ActionSavePlannedPurchase: true,
	ActionDeletePlannedPurchase: true, ActionSearchLocation: true, ActionGetCodes: true,
}

// LookupAction resolves a raw action name
func LookupAction(name string) (Action, bool) {
	a := Action(name)
	return a, knownActions[a]
}

// RequiresToken reports whether the caller must present a bearer token
func (a Action) RequiresToken() bool {
	switch a {
	case ActionAuth, ActionAppOpened, ActionTrack:
		return false
	}
	return true
}

// IsTelemetry reports whether the action is answered without any vendor work
func (a Action) IsTelemetry() bool {
	return a == ActionAppOpened || a == ActionTrack
}

// Request is the body of POST /api/validate. Only the fields of the named
// action are read.
type Request struct {
	Action string `json:"action"`
	Org    string `json:"org" validate:"omitempty,org"`

	StoreID             string       `json:"storeId" validate:"omitempty,scpid"`
	LocationID          string       `json:"locationId" validate:"omitempty,scpid"`
	SourceLocationID    string       `json:"sourceLocationId" validate:"omitempty,scpid"`
	ItemID              string       `json:"itemId" validate:"omitempty,scpid"`
	ItemIDs             []string     `json:"itemIds" validate:"omitempty,dive,scpid"`
	InventoryMovementID string       `json:"inventoryMovementId" validate:"omitempty,scpid"`
	FinalOrderQty       *json.Number `json:"finalOrderQty"`
	PK                  string       `json:"pk" validate:"omitempty,scpid"`

	ForecastData        json.RawMessage `json:"forecastData"`
	ProjectionData      json.RawMessage `json:"projectionData"`
	LocationData        json.RawMessage `json:"locationData"`
	PlannedPurchaseData json.RawMessage `json:"plannedPurchaseData"`

	EventName      string         `json:"event_name"`
	EventNameCamel string         `json:"eventName"`
	Metadata       map[string]any `json:"metadata"`
}

// TrackedEvent returns the event name of a ha-track request
func (r *Request) TrackedEvent() string {
	if r.EventName != "" {
		return r.EventName
	}
	return r.EventNameCamel
}

// Validate checks the fields the action needs. Failures are reported to the
// caller as {success:false}, never as an HTTP error.
func (r *Request) Validate() error {
	action := Action(r.Action)
	if action.IsTelemetry() {
		return nil
	}
	if strings.TrimSpace(r.Org) == "" {
		return missing("org is required")
	}

	switch action {
	case ActionSearchSummaries:
		if r.StoreID == "" {
			return missing("storeId is required")
		}
	case ActionSearchMovements:
		if r.LocationID == "" || (r.ItemID == "" && r.SourceLocationID == "") {
			return missing("ItemId/LocationId or SourceLocationId/LocationId is required")
		}
	case ActionSearchPlanned:
		if r.LocationID == "" {
			return missing("LocationId is required")
		}
	case ActionSearchImages:
		if len(r.ItemIDs) == 0 {
			return missing("itemIds array is required")
		}
	case ActionReview, ActionApprove:
		if r.SourceLocationID == "" || r.LocationID == "" {
			return missing("sourceLocationId and locationId are required")
		}
	case ActionSaveSuggestedLine:
		if r.InventoryMovementID == "" || r.FinalOrderQty == nil {
			return missing("inventoryMovementId and finalOrderQty are required")
		}
	case ActionClearSOQ:
		if r.ItemID == "" || r.LocationID == "" || r.SourceLocationID == "" {
			return missing("itemId, locationId and sourceLocationId are required")
		}
	case ActionSaveForecast:
		if isEmpty(r.ForecastData) {
			return missing("No forecast data provided")
		}
	case ActionSaveProjections:
		if isEmpty(r.ProjectionData) {
			return missing("No projection data provided")
		}
	case ActionCreateLocation:
		if isEmpty(r.LocationData) {
			return missing("No location data provided")
		}
	case ActionSavePlannedPurchase:
		if isEmpty(r.PlannedPurchaseData) {
			return missing("No planned purchase data provided")
		}
	case ActionDeletePlannedPurchase:
		if r.PK == "" {
			return missing("pk is required")
		}
	case ActionSearchLocation:
		if r.Location() == "" {
			return missing("StoreId is required")
		}
	}
	return nil
}

// Location is the location searched by search-location. Older clients send
// it as storeId.
func (r *Request) Location() string {
	if r.LocationID != "" {
		return r.LocationID
	}
	return r.StoreID
}

func missing(message string) error {
	return errors.ErrValidation(message).Wrap(ErrMissingField)
}

func isEmpty(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
