package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderGateway reads orders and drives their lifecycle on the backend
type OrderGateway interface {
	ListOrders(ctx context.Context, storeID string) ([]Order, error)
	LoadOrder(ctx context.Context, order Order) (*OrderSnapshot, error)
	Review(ctx context.Context, order Order) error
	Approve(ctx context.Context, order Order) error
}

// LineWriter persists one line edit. Implementations are selected by OrderKind.
type LineWriter interface {
	Update(ctx context.Context, order Order, line OrderLine) error
	Clear(ctx context.Context, order Order, line OrderLine) error
}

// SuggestedOrderAPI is the backend surface for suggested-order line writes
type SuggestedOrderAPI interface {
	SaveSuggestedOrderLine(ctx context.Context, movementID string, quantity decimal.Decimal) error
	ClearSuggestedOrderLine(ctx context.Context, itemID, sourceLocationID, locationID string) error
}

// PlannedPurchaseChange is the payload of an opportunity-buy line update
type PlannedPurchaseChange struct {
	PlannedPurchaseID   string
	PlannedPurchaseName string
	LocationID          string
	ItemID              string
	Quantity            decimal.Decimal
}

// PlannedPurchaseAPI is the backend surface for opportunity-buy line writes
type PlannedPurchaseAPI interface {
	SavePlannedPurchase(ctx context.Context, change PlannedPurchaseChange) error
	DeletePlannedPurchase(ctx context.Context, pk string) error
}

// UploadAPI is the backend surface used by file ingestion
type UploadAPI interface {
	SaveForecast(ctx context.Context, row ForecastRow) error
	SaveForecastProjection(ctx context.Context, row ForecastRow) error
	CreateLocation(ctx context.Context, row LocationRow) error
}

// Tracker records best-effort usage events. It never fails the caller.
type Tracker interface {
	Track(ctx context.Context, eventName string, metadata map[string]any)
}
