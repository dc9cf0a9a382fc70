package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/scp-mobile/platform/shared/pkg/logging"
	"github.com/scp-mobile/platform/shared/pkg/resilience"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

// EngineConfig tunes submission and refresh behaviour
type EngineConfig struct {
	// MaxConcurrency bounds the per-line calls in flight within one phase
	MaxConcurrency int
	// SettleDelay is waited after a successful write before re-fetching
	SettleDelay time.Duration
	// Refresh drives the re-fetch retries after a submission
	Refresh *resilience.RetryConfig
}

// DefaultEngineConfig returns the production defaults
func DefaultEngineConfig() *EngineConfig {
	refresh := resilience.DefaultRetryConfig()
	refresh.InitialDelay = 500 * time.Millisecond
	return &EngineConfig{
		MaxConcurrency: 5,
		SettleDelay:    time.Second,
		Refresh:        refresh,
	}
}

// LineError records one failed per-line write
type LineError struct {
	ItemID  string         `json:"itemId"`
	Op      domain.WriteOp `json:"op"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
}

// SubmitResult reports the outcome of one Submit
type SubmitResult struct {
	NoChanges    bool               `json:"noChanges"`
	Outcome      domain.EngineState `json:"outcome,omitempty"`
	Updated      int                `json:"updated"`
	Cleared      int                `json:"cleared"`
	TotalSuccess int                `json:"totalSuccess"`
	TotalErrors  int                `json:"totalErrors"`
	Errors       []LineError        `json:"errors,omitempty"`
	Refreshed    bool               `json:"refreshed"`
	RefreshErr   error              `json:"-"`
	Duration     time.Duration      `json:"duration"`
}

// Engine owns the live lines of one order, tracks edits against the last
// confirmed backend quantities, and reconciles them on Submit.
type Engine struct {
	gateway domain.OrderGateway
	writers WriterSet
	config  *EngineConfig
	logger  *logging.Logger
	tracker domain.Tracker

	mu    sync.Mutex
	order *domain.Order
	lines []domain.OrderLine
	index map[string]int
	state domain.EngineState
	busy  bool
}

// NewEngine creates an Engine. A nil config uses DefaultEngineConfig and a
// nil tracker drops events.
func NewEngine(gateway domain.OrderGateway, writers WriterSet, config *EngineConfig, logger *logging.Logger, tracker domain.Tracker) *Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if config.MaxConcurrency < 1 {
		config.MaxConcurrency = 1
	}
	if config.Refresh == nil {
		config.Refresh = DefaultEngineConfig().Refresh
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if tracker == nil {
		tracker = nopTracker{}
	}
	return &Engine{
		gateway: gateway,
		writers: writers,
		config:  config,
		logger:  logger.WithComponent("reconciliation-engine"),
		tracker: tracker,
		state:   domain.StateEmpty,
	}
}

// Load fetches the lines of order and makes them the live collection
func (e *Engine) Load(ctx context.Context, order domain.Order) error {
	if !order.Kind.IsValid() {
		return fmt.Errorf("invalid order kind %q", order.Kind)
	}

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return domain.ErrOperationInProgress
	}
	e.busy = true
	e.mu.Unlock()
	defer e.finish()

	snapshot, err := e.gateway.LoadOrder(ctx, order)
	if err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}
	if err := checkLines(snapshot); err != nil {
		return fmt.Errorf("failed to load order: %w", err)
	}

	e.mu.Lock()
	e.replace(order, snapshot)
	e.state = domain.StateLoaded
	e.mu.Unlock()

	e.logger.WithOrder(order.SourceLocationID, order.LocationID).Info("Order loaded", "lines", len(snapshot.Lines))
	return nil
}

// Reset discards the loaded order
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.order = nil
	e.lines = nil
	e.index = nil
	e.state = domain.StateEmpty
}

// Increment adds one unit to the line
func (e *Engine) Increment(itemID string) error {
	return e.edit(itemID, func(l *domain.OrderLine) error {
		l.Increment()
		return nil
	})
}

// Decrement removes one unit from the line, stopping at zero
func (e *Engine) Decrement(itemID string) error {
	return e.edit(itemID, func(l *domain.OrderLine) error {
		l.Decrement()
		return nil
	})
}

// Remove zeroes the line
func (e *Engine) Remove(itemID string) error {
	return e.edit(itemID, func(l *domain.OrderLine) error {
		l.Remove()
		return nil
	})
}

// SetQuantity sets a typed quantity on the line
func (e *Engine) SetQuantity(itemID string, q decimal.Decimal) error {
	return e.edit(itemID, func(l *domain.OrderLine) error {
		return l.SetQuantity(q)
	})
}

func (e *Engine) edit(itemID string, fn func(*domain.OrderLine) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.order == nil {
		return domain.ErrNoOrderLoaded
	}
	if e.busy {
		return domain.ErrOperationInProgress
	}
	i, ok := e.index[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrLineNotFound, itemID)
	}
	if err := fn(&e.lines[i]); err != nil {
		return err
	}
	e.state = domain.StateEditing
	return nil
}

// Submit reconciles every dirty line with the backend. Updates all complete
// before any clear starts. Per-line failures are collected in the result;
// the returned error is reserved for failures that stop the whole batch, in
// which case the result counts every line as failed.
func (e *Engine) Submit(ctx context.Context) (*SubmitResult, error) {
	start := time.Now()

	e.mu.Lock()
	if e.order == nil {
		e.mu.Unlock()
		return nil, domain.ErrNoOrderLoaded
	}
	if e.busy {
		e.mu.Unlock()
		return nil, domain.ErrOperationInProgress
	}
	batch := domain.NewReconciliationBatch(e.lines)
	if batch.IsEmpty() {
		e.mu.Unlock()
		return &SubmitResult{NoChanges: true}, nil
	}
	order := *e.order
	e.busy = true
	e.state = domain.StateSubmitting
	e.mu.Unlock()
	defer e.finish()

	logger := e.logger.WithOrder(order.SourceLocationID, order.LocationID)

	writer, err := e.writers.For(order.Kind)
	if err != nil {
		e.setState(domain.StateEditing)
		return nil, err
	}

	// Writes run to completion even if the caller goes away.
	callCtx := context.WithoutCancel(ctx)

	if order.RequiresReview() {
		if err := e.gateway.Review(callCtx, order); err != nil {
			e.setState(domain.StateEditing)
			logger.WithError(err).Warn("Review failed, nothing submitted")
			return &SubmitResult{
				Outcome:     domain.StatePartiallyReconciled,
				TotalErrors: batch.Size(),
				Duration:    time.Since(start),
			}, fmt.Errorf("%w: %w", domain.ErrReviewFailed, err)
		}
	}

	result := &SubmitResult{}
	result.Updated = e.runPhase(callCtx, order, domain.OpUpdate, batch.ToUpdate, writer.Update, result)
	result.Cleared = e.runPhase(callCtx, order, domain.OpClear, batch.ToClear, writer.Clear, result)
	result.TotalSuccess = result.Updated + result.Cleared
	result.TotalErrors = len(result.Errors)

	result.Outcome = domain.StateReconciled
	if result.TotalErrors > 0 {
		result.Outcome = domain.StatePartiallyReconciled
	}
	e.setState(result.Outcome)

	logger.BatchOutcome(ctx, string(order.Kind), result.Updated, result.Cleared, result.TotalErrors, time.Since(start))
	e.tracker.Track(ctx, "order_submitted", map[string]any{
		"source_location_id": order.SourceLocationID,
		"location_id":        order.LocationID,
		"success_count":      result.TotalSuccess,
		"error_count":        result.TotalErrors,
	})

	if result.TotalSuccess == 0 {
		e.setState(domain.StateEditing)
		result.Duration = time.Since(start)
		return result, nil
	}

	e.setState(domain.StateRefreshing)
	if err := e.refresh(ctx, order); err != nil {
		logger.WithError(err).Warn("Refresh after submit failed")
		result.RefreshErr = err
		e.mu.Lock()
		e.state = domain.StateLoaded
		if e.hasPendingLocked() {
			e.state = domain.StateEditing
		}
		e.mu.Unlock()
	} else {
		result.Refreshed = true
		e.setState(domain.StateLoaded)
	}

	result.Duration = time.Since(start)
	return result, nil
}

type writeFunc func(ctx context.Context, order domain.Order, line domain.OrderLine) error

// runPhase writes lines with bounded concurrency and returns the number that
// succeeded. Failures are appended to result.Errors.
func (e *Engine) runPhase(ctx context.Context, order domain.Order, op domain.WriteOp, lines []domain.OrderLine, write writeFunc, result *SubmitResult) int {
	if len(lines) == 0 {
		return 0
	}

	var (
		mu        sync.Mutex
		succeeded int
	)
	g := new(errgroup.Group)
	g.SetLimit(e.config.MaxConcurrency)

	for _, line := range lines {
		g.Go(func() error {
			err := e.safeWrite(ctx, order, line, write)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, LineError{
					ItemID:  line.ItemID,
					Op:      op,
					Message: err.Error(),
					Err:     err,
				})
				return nil
			}
			succeeded++
			e.confirm(line.ItemID, line.CurrentQuantity)
			return nil
		})
	}
	_ = g.Wait()

	return succeeded
}

func (e *Engine) safeWrite(ctx context.Context, order domain.Order, line domain.OrderLine, write writeFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Panic(ctx, r)
			err = fmt.Errorf("panic writing line %s: %v", line.ItemID, r)
		}
	}()
	return write(ctx, order, line)
}

// confirm advances the baseline of itemID to the quantity that was submitted
func (e *Engine) confirm(itemID string, submitted decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i, ok := e.index[itemID]; ok {
		e.lines[i].Confirm(submitted)
	}
}

// Refresh re-fetches the loaded order outside a submission
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.order == nil {
		e.mu.Unlock()
		return domain.ErrNoOrderLoaded
	}
	if e.busy {
		e.mu.Unlock()
		return domain.ErrOperationInProgress
	}
	order := *e.order
	e.busy = true
	e.state = domain.StateRefreshing
	e.mu.Unlock()
	defer e.finish()

	snapshot, err := e.gateway.LoadOrder(ctx, order)
	if err != nil {
		e.setState(domain.StateLoaded)
		return fmt.Errorf("failed to refresh order: %w", err)
	}
	if err := checkLines(snapshot); err != nil {
		e.setState(domain.StateLoaded)
		return fmt.Errorf("failed to refresh order: %w", err)
	}

	e.mu.Lock()
	e.replace(order, snapshot)
	e.state = domain.StateLoaded
	e.mu.Unlock()
	return nil
}

// refresh waits for the backend to settle, then reloads with retries
func (e *Engine) refresh(ctx context.Context, order domain.Order) error {
	if err := sleep(ctx, e.config.SettleDelay); err != nil {
		return err
	}

	snapshot, err := resilience.RetryWithResult(ctx, e.config.Refresh, func() (*domain.OrderSnapshot, error) {
		return e.gateway.LoadOrder(ctx, order)
	})
	if err != nil {
		return err
	}
	if err := checkLines(snapshot); err != nil {
		return err
	}

	e.mu.Lock()
	e.replace(order, snapshot)
	e.mu.Unlock()
	return nil
}

// checkLines rejects snapshots that carry the same item twice, since lines
// are addressed by item id.
func checkLines(snapshot *domain.OrderSnapshot) error {
	seen := make(map[string]struct{}, len(snapshot.Lines))
	for _, l := range snapshot.Lines {
		if _, ok := seen[l.ItemID]; ok {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateLine, l.ItemID)
		}
		seen[l.ItemID] = struct{}{}
	}
	return nil
}

// replace swaps in a fresh snapshot. Must be called with e.mu held.
func (e *Engine) replace(requested domain.Order, snapshot *domain.OrderSnapshot) {
	order := snapshot.Order
	if order.Kind == "" {
		order.Kind = requested.Kind
	}
	if order.SourceLocationID == "" {
		order.SourceLocationID = requested.SourceLocationID
	}
	if order.LocationID == "" {
		order.LocationID = requested.LocationID
	}
	if order.Status == "" {
		order.Status = requested.Status
	}

	lines := make([]domain.OrderLine, len(snapshot.Lines))
	index := make(map[string]int, len(snapshot.Lines))
	for i, l := range snapshot.Lines {
		l.CurrentQuantity = l.BaselineQuantity
		lines[i] = l
		index[l.ItemID] = i
	}

	e.order = &order
	e.lines = lines
	e.index = index
}

func (e *Engine) finish() {
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

func (e *Engine) setState(s domain.EngineState) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) hasPendingLocked() bool {
	for i := range e.lines {
		if e.lines[i].IsDirty() {
			return true
		}
	}
	return false
}

// HasPendingChanges reports whether any line has an unsubmitted edit
func (e *Engine) HasPendingChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasPendingLocked()
}

// State returns the lifecycle state
func (e *Engine) State() domain.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Busy reports whether a submission, refresh or release is in flight
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Order returns the loaded order
func (e *Engine) Order() (domain.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.order == nil {
		return domain.Order{}, false
	}
	return *e.order, true
}

// Lines returns a copy of the live lines
func (e *Engine) Lines() []domain.OrderLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.OrderLine, len(e.lines))
	copy(out, e.lines)
	return out
}

// Line returns a copy of one line
func (e *Engine) Line(itemID string) (domain.OrderLine, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i, ok := e.index[itemID]
	if !ok {
		return domain.OrderLine{}, fmt.Errorf("%w: %s", domain.ErrLineNotFound, itemID)
	}
	return e.lines[i], nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopTracker struct{}

func (nopTracker) Track(context.Context, string, map[string]any) {}

