package application

import (
	"context"
	"fmt"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

// SuggestedWriter writes suggested-order lines. Updates go through the
// movement id, clears through the item and its location pair.
type SuggestedWriter struct {
	api domain.SuggestedOrderAPI
}

// NewSuggestedWriter creates a SuggestedWriter
func NewSuggestedWriter(api domain.SuggestedOrderAPI) *SuggestedWriter {
	return &SuggestedWriter{api: api}
}

// Update saves the line's current quantity
func (w *SuggestedWriter) Update(ctx context.Context, order domain.Order, line domain.OrderLine) error {
	if line.MovementID == "" {
		return fmt.Errorf("%w: movementId", domain.ErrMissingIdentifier)
	}
	return w.api.SaveSuggestedOrderLine(ctx, line.MovementID, line.CurrentQuantity)
}

// Clear zeroes the line on the backend
func (w *SuggestedWriter) Clear(ctx context.Context, order domain.Order, line domain.OrderLine) error {
	if line.ItemID == "" {
		return fmt.Errorf("%w: itemId", domain.ErrMissingIdentifier)
	}
	return w.api.ClearSuggestedOrderLine(ctx, line.ItemID, order.SourceLocationID, order.LocationID)
}

// OpportunityWriter writes opportunity-buy lines as planned purchases
type OpportunityWriter struct {
	api domain.PlannedPurchaseAPI
}

// NewOpportunityWriter creates an OpportunityWriter
func NewOpportunityWriter(api domain.PlannedPurchaseAPI) *OpportunityWriter {
	return &OpportunityWriter{api: api}
}

// Update saves the planned purchase quantity
func (w *OpportunityWriter) Update(ctx context.Context, order domain.Order, line domain.OrderLine) error {
	switch {
	case line.ItemID == "":
		return fmt.Errorf("%w: itemId", domain.ErrMissingIdentifier)
	case line.PlannedPurchaseID == "":
		return fmt.Errorf("%w: plannedPurchaseId", domain.ErrMissingIdentifier)
	case line.PlannedPurchaseName == "":
		return fmt.Errorf("%w: plannedPurchaseName", domain.ErrMissingIdentifier)
	}

	locationID := line.LocationID
	if locationID == "" {
		locationID = order.LocationID
	}
	return w.api.SavePlannedPurchase(ctx, domain.PlannedPurchaseChange{
		PlannedPurchaseID:   line.PlannedPurchaseID,
		PlannedPurchaseName: line.PlannedPurchaseName,
		LocationID:          locationID,
		ItemID:              line.ItemID,
		Quantity:            line.CurrentQuantity,
	})
}

// Clear deletes the planned purchase
func (w *OpportunityWriter) Clear(ctx context.Context, order domain.Order, line domain.OrderLine) error {
	if line.PlannedPurchasePK == "" {
		return fmt.Errorf("%w: plannedPurchasePk", domain.ErrMissingIdentifier)
	}
	return w.api.DeletePlannedPurchase(ctx, line.PlannedPurchasePK)
}

// WriterSet selects the LineWriter for an order kind
type WriterSet map[domain.OrderKind]domain.LineWriter

// NewWriterSet wires the writers for both order kinds
func NewWriterSet(suggested domain.SuggestedOrderAPI, planned domain.PlannedPurchaseAPI) WriterSet {
	return WriterSet{
		domain.KindSuggestedOrder: NewSuggestedWriter(suggested),
		domain.KindOpportunityBuy: NewOpportunityWriter(planned),
	}
}

// For returns the writer for kind
func (s WriterSet) For(kind domain.OrderKind) (domain.LineWriter, error) {
	w, ok := s[kind]
	if !ok {
		return nil, fmt.Errorf("no line writer for order kind %q", kind)
	}
	return w, nil
}
