package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderLine is one inventory movement or planned purchase within an order.
// CurrentQuantity and BaselineQuantity move independently: edits touch only
// the current quantity, and the baseline advances only after the backend
// confirms a write.
type OrderLine struct {
	ItemID      string              `json:"itemId"`
	Description string              `json:"description,omitempty"`
	MovementID  string              `json:"movementId,omitempty"`
	OnHand      decimal.Decimal     `json:"onHand"`
	Forecast    decimal.Decimal     `json:"forecast"`
	UnitCost    decimal.NullDecimal `json:"unitCost"`
	ImageURI    string              `json:"imageUri,omitempty"`

	BaselineQuantity decimal.Decimal `json:"baselineQuantity"`
	CurrentQuantity  decimal.Decimal `json:"currentQuantity"`

	// Opportunity-buy identifiers
	LocationID          string `json:"locationId,omitempty"`
	PlannedPurchaseID   string `json:"plannedPurchaseId,omitempty"`
	PlannedPurchaseName string `json:"plannedPurchaseName,omitempty"`
	PlannedPurchasePK   string `json:"plannedPurchasePk,omitempty"`
}

// NewOrderLine creates a line whose current quantity equals its baseline
func NewOrderLine(itemID string, quantity decimal.Decimal) OrderLine {
	if quantity.IsNegative() {
		quantity = decimal.Zero
	}
	return OrderLine{
		ItemID:           itemID,
		BaselineQuantity: quantity,
		CurrentQuantity:  quantity,
	}
}

// IsDirty reports whether the line has an unsubmitted edit
func (l *OrderLine) IsDirty() bool {
	return !l.CurrentQuantity.Equal(l.BaselineQuantity)
}

// Increment adds one unit
func (l *OrderLine) Increment() {
	l.CurrentQuantity = l.CurrentQuantity.Add(decimal.NewFromInt(1))
}

// Decrement removes one unit, never going below zero
func (l *OrderLine) Decrement() {
	next := l.CurrentQuantity.Sub(decimal.NewFromInt(1))
	if next.IsNegative() {
		next = decimal.Zero
	}
	l.CurrentQuantity = next
}

// Remove zeroes the line
func (l *OrderLine) Remove() {
	l.CurrentQuantity = decimal.Zero
}

// SetQuantity sets a typed quantity
func (l *OrderLine) SetQuantity(q decimal.Decimal) error {
	if q.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, q.String())
	}
	l.CurrentQuantity = q
	return nil
}

// Confirm advances the baseline to a quantity the backend accepted
func (l *OrderLine) Confirm(q decimal.Decimal) {
	l.BaselineQuantity = q
}

// ExtendedCost is CurrentQuantity * UnitCost when the cost is known
func (l *OrderLine) ExtendedCost() decimal.NullDecimal {
	if !l.UnitCost.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(l.CurrentQuantity.Mul(l.UnitCost.Decimal))
}
