package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scp-mobile/platform/shared/pkg/logging"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

// Confirmer asks the user to confirm a release
type Confirmer interface {
	Confirm(ctx context.Context, order domain.Order) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(ctx context.Context, order domain.Order) (bool, error)

// Confirm calls f
func (f ConfirmFunc) Confirm(ctx context.Context, order domain.Order) (bool, error) {
	return f(ctx, order)
}

// ReleaseResult reports a completed release
type ReleaseResult struct {
	Released bool
	Order    domain.Order
}

// ReleaseController approves the order loaded in an Engine. It only reads the
// engine's lines; the in-flight flag is shared so a release and a submission
// never overlap.
type ReleaseController struct {
	engine      *Engine
	gateway     domain.OrderGateway
	confirmer   Confirmer
	settleDelay time.Duration
	logger      *logging.Logger
	tracker     domain.Tracker

	mu       sync.Mutex
	released *domain.Order
}

// NewReleaseController creates a ReleaseController
func NewReleaseController(engine *Engine, gateway domain.OrderGateway, confirmer Confirmer, logger *logging.Logger) *ReleaseController {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ReleaseController{
		engine:      engine,
		gateway:     gateway,
		confirmer:   confirmer,
		settleDelay: engine.config.SettleDelay,
		logger:      logger.WithComponent("release-controller"),
		tracker:     engine.tracker,
	}
}

// CanRelease reports whether Release would reach the confirmation step
func (c *ReleaseController) CanRelease() bool {
	c.engine.mu.Lock()
	defer c.engine.mu.Unlock()
	return c.gateLocked() == nil
}

// gateLocked must be called with the engine lock held
func (c *ReleaseController) gateLocked() error {
	e := c.engine
	switch {
	case e.order == nil:
		return domain.ErrNoOrderLoaded
	case !e.order.SupportsRelease():
		return domain.ErrReleaseUnsupported
	case e.busy:
		return domain.ErrOperationInProgress
	case e.hasPendingLocked():
		return domain.ErrPendingChanges
	}
	return nil
}

// Release confirms, reviews when the order is still Suggested, then approves.
// Nothing is sent when the order has unsubmitted edits or the user declines.
func (c *ReleaseController) Release(ctx context.Context) (*ReleaseResult, error) {
	order, err := c.acquire()
	if err != nil {
		return nil, err
	}
	defer c.engine.finish()

	logger := c.logger.WithOrder(order.SourceLocationID, order.LocationID)

	if c.confirmer != nil {
		ok, err := c.confirmer.Confirm(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return nil, domain.ErrReleaseCancelled
		}
	}

	callCtx := context.WithoutCancel(ctx)

	if order.RequiresReview() {
		if err := c.gateway.Review(callCtx, order); err != nil {
			logger.WithError(err).Warn("Review before release failed")
			return nil, fmt.Errorf("%w: %w", domain.ErrReviewFailed, err)
		}
	}

	if err := c.gateway.Approve(callCtx, order); err != nil {
		logger.WithError(err).Warn("Approve failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrApproveFailed, err)
	}

	c.mu.Lock()
	c.released = &order
	c.mu.Unlock()

	logger.Info("Order released")
	c.tracker.Track(ctx, "order_released", map[string]any{
		"source_location_id": order.SourceLocationID,
		"location_id":        order.LocationID,
	})

	return &ReleaseResult{Released: true, Order: order}, nil
}

func (c *ReleaseController) acquire() (domain.Order, error) {
	e := c.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := c.gateLocked(); err != nil {
		return domain.Order{}, err
	}
	e.busy = true
	return *e.order, nil
}

// Acknowledge closes a successful release: it waits for the backend to
// settle, discards the engine's order and returns the refreshed order list
// for the released order's store.
func (c *ReleaseController) Acknowledge(ctx context.Context) ([]domain.Order, error) {
	c.mu.Lock()
	released := c.released
	c.released = nil
	c.mu.Unlock()

	if released == nil {
		return nil, domain.ErrNothingToAcknowledge
	}

	c.engine.Reset()

	if err := sleep(ctx, c.settleDelay); err != nil {
		return nil, err
	}

	orders, err := c.gateway.ListOrders(ctx, released.LocationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}
