package domain

import (
	"github.com/shopspring/decimal"
)

// OrderKind distinguishes the two order flavours the client can review
type OrderKind string

const (
	KindSuggestedOrder OrderKind = "suggested_order"
	KindOpportunityBuy OrderKind = "opportunity_buy"
)

// IsValid checks if the kind is known
func (k OrderKind) IsValid() bool {
	switch k {
	case KindSuggestedOrder, KindOpportunityBuy:
		return true
	default:
		return false
	}
}

// ParseOrderKind accepts the kind names used on the command line
func ParseOrderKind(s string) (OrderKind, bool) {
	switch s {
	case "suggested", "suggested_order", "so":
		return KindSuggestedOrder, true
	case "opportunity", "opportunity_buy", "ob":
		return KindOpportunityBuy, true
	default:
		return "", false
	}
}

// Status is the backend order status, kept verbatim
type Status string

// StatusSuggested is the status that requires a review before any write
const StatusSuggested Status = "Suggested"

// Order is a parent grouping keyed by (SourceLocationID, LocationID)
type Order struct {
	Kind             OrderKind `json:"kind"`
	SummaryID        string    `json:"summaryId,omitempty"`
	SourceLocationID string    `json:"sourceLocationId"`
	LocationID       string    `json:"locationId"`
	SubGroup         string    `json:"subGroup,omitempty"`
	Status           Status    `json:"status"`

	// Summary columns shown in the order list when the backend provides them
	TotalCost  decimal.NullDecimal `json:"totalCost"`
	TotalUnits decimal.NullDecimal `json:"totalUnits"`
}

// Key returns the identity of the order
func (o Order) Key() OrderKey {
	return OrderKey{SourceLocationID: o.SourceLocationID, LocationID: o.LocationID}
}

// RequiresReview reports whether a review must precede writes and release
func (o Order) RequiresReview() bool {
	return o.Kind == KindSuggestedOrder && o.Status == StatusSuggested
}

// SupportsRelease reports whether the order can be approved
func (o Order) SupportsRelease() bool {
	return o.Kind == KindSuggestedOrder
}

// OrderKey identifies an order
type OrderKey struct {
	SourceLocationID string
	LocationID       string
}

// OrderSnapshot is one fetch of an order and its lines
type OrderSnapshot struct {
	Order Order
	Lines []OrderLine
}
