package application

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/scp-mobile/platform/shared/pkg/resilience"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

// callEvent is one observed backend interaction
type callEvent struct {
	name  string
	phase string // "start" or "end"
	at    int
}

// recorder captures the order in which fake backend calls start and finish
type recorder struct {
	mu     sync.Mutex
	seq    int
	events []callEvent
}

func (r *recorder) mark(name, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.events = append(r.events, callEvent{name: name, phase: phase, at: r.seq})
}

func (r *recorder) count(prefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.phase == "start" && len(e.name) >= len(prefix) && e.name[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (r *recorder) snapshot() []callEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]callEvent, len(r.events))
	copy(out, r.events)
	return out
}

// fakeStore plays the backend system of record
type fakeStore struct {
	mu    sync.Mutex
	order domain.Order
	lines []domain.OrderLine
}

func newFakeStore(order domain.Order, lines ...domain.OrderLine) *fakeStore {
	out := make([]domain.OrderLine, len(lines))
	copy(out, lines)
	return &fakeStore{order: order, lines: out}
}

func (s *fakeStore) snapshot() *domain.OrderSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]domain.OrderLine, len(s.lines))
	for i, l := range s.lines {
		l.CurrentQuantity = l.BaselineQuantity
		lines[i] = l
	}
	return &domain.OrderSnapshot{Order: s.order, Lines: lines}
}

func (s *fakeStore) set(match func(domain.OrderLine) bool, q decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.lines {
		if match(s.lines[i]) {
			s.lines[i].BaselineQuantity = q
		}
	}
}

func (s *fakeStore) quantity(itemID string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if l.ItemID == itemID {
			return l.BaselineQuantity
		}
	}
	return decimal.Zero
}

type fakeGateway struct {
	rec   *recorder
	store *fakeStore

	listOrdersFn func(ctx context.Context, storeID string) ([]domain.Order, error)
	loadOrderFn  func(ctx context.Context, order domain.Order) (*domain.OrderSnapshot, error)
	reviewFn     func(ctx context.Context, order domain.Order) error
	approveFn    func(ctx context.Context, order domain.Order) error
}

func (g *fakeGateway) ListOrders(ctx context.Context, storeID string) ([]domain.Order, error) {
	g.rec.mark("list:"+storeID, "start")
	defer g.rec.mark("list:"+storeID, "end")
	if g.listOrdersFn != nil {
		return g.listOrdersFn(ctx, storeID)
	}
	return nil, nil
}

func (g *fakeGateway) LoadOrder(ctx context.Context, order domain.Order) (*domain.OrderSnapshot, error) {
	g.rec.mark("load", "start")
	defer g.rec.mark("load", "end")
	if g.loadOrderFn != nil {
		return g.loadOrderFn(ctx, order)
	}
	return g.store.snapshot(), nil
}

func (g *fakeGateway) Review(ctx context.Context, order domain.Order) error {
	g.rec.mark("review", "start")
	defer g.rec.mark("review", "end")
	if g.reviewFn != nil {
		return g.reviewFn(ctx, order)
	}
	return nil
}

func (g *fakeGateway) Approve(ctx context.Context, order domain.Order) error {
	g.rec.mark("approve", "start")
	defer g.rec.mark("approve", "end")
	if g.approveFn != nil {
		return g.approveFn(ctx, order)
	}
	return nil
}

// fakeLineAPI implements both write surfaces
type fakeLineAPI struct {
	rec   *recorder
	store *fakeStore
	delay time.Duration

	saveFn   func(movementID string, qty decimal.Decimal) error
	clearFn  func(itemID string) error
	ppSaveFn func(change domain.PlannedPurchaseChange) error
	ppDelFn  func(pk string) error

	mu       sync.Mutex
	inFlight int
	maxSeen  int
}

func (f *fakeLineAPI) enter(name string) {
	f.rec.mark(name, "start")
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
}

func (f *fakeLineAPI) leave(name string) {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	f.rec.mark(name, "end")
}

func (f *fakeLineAPI) SaveSuggestedOrderLine(ctx context.Context, movementID string, qty decimal.Decimal) error {
	name := "update:" + movementID
	f.enter(name)
	defer f.leave(name)
	if f.saveFn != nil {
		if err := f.saveFn(movementID, qty); err != nil {
			return err
		}
	}
	f.store.set(func(l domain.OrderLine) bool { return l.MovementID == movementID }, qty)
	return nil
}

func (f *fakeLineAPI) ClearSuggestedOrderLine(ctx context.Context, itemID, sourceLocationID, locationID string) error {
	name := "clear:" + itemID
	f.enter(name)
	defer f.leave(name)
	if f.clearFn != nil {
		if err := f.clearFn(itemID); err != nil {
			return err
		}
	}
	f.store.set(func(l domain.OrderLine) bool { return l.ItemID == itemID }, decimal.Zero)
	return nil
}

func (f *fakeLineAPI) SavePlannedPurchase(ctx context.Context, change domain.PlannedPurchaseChange) error {
	name := "update:" + change.PlannedPurchaseID
	f.enter(name)
	defer f.leave(name)
	if f.ppSaveFn != nil {
		if err := f.ppSaveFn(change); err != nil {
			return err
		}
	}
	f.store.set(func(l domain.OrderLine) bool { return l.PlannedPurchaseID == change.PlannedPurchaseID }, change.Quantity)
	return nil
}

func (f *fakeLineAPI) DeletePlannedPurchase(ctx context.Context, pk string) error {
	name := "clear:" + pk
	f.enter(name)
	defer f.leave(name)
	if f.ppDelFn != nil {
		if err := f.ppDelFn(pk); err != nil {
			return err
		}
	}
	f.store.set(func(l domain.OrderLine) bool { return l.PlannedPurchasePK == pk }, decimal.Zero)
	return nil
}

type trackedEvent struct {
	name     string
	metadata map[string]any
}

type fakeTracker struct {
	mu     sync.Mutex
	events []trackedEvent
}

func (t *fakeTracker) Track(ctx context.Context, eventName string, metadata map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, trackedEvent{name: eventName, metadata: metadata})
}

func (t *fakeTracker) names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.events))
	for _, e := range t.events {
		out = append(out, e.name)
	}
	return out
}

func testConfig() *EngineConfig {
	return &EngineConfig{
		MaxConcurrency: 5,
		SettleDelay:    0,
		Refresh: &resilience.RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 1,
		},
	}
}

func suggestedOrder(status domain.Status) domain.Order {
	return domain.Order{
		Kind:             domain.KindSuggestedOrder,
		SourceLocationID: "DC1",
		LocationID:       "STORE1",
		Status:           status,
	}
}

func suggestedLine(itemID string, qty int64) domain.OrderLine {
	line := domain.NewOrderLine(itemID, decimal.NewFromInt(qty))
	line.MovementID = "MV-" + itemID
	return line
}

type harness struct {
	rec     *recorder
	store   *fakeStore
	gateway *fakeGateway
	api     *fakeLineAPI
	tracker *fakeTracker
	engine  *Engine
}

func newHarness(order domain.Order, lines ...domain.OrderLine) *harness {
	rec := &recorder{}
	store := newFakeStore(order, lines...)
	gw := &fakeGateway{rec: rec, store: store}
	api := &fakeLineAPI{rec: rec, store: store}
	tracker := &fakeTracker{}
	engine := NewEngine(gw, NewWriterSet(api, api), testConfig(), nil, tracker)
	return &harness{rec: rec, store: store, gateway: gw, api: api, tracker: tracker, engine: engine}
}

// load loads the harness order and fails the test on error
func (h *harness) load(t require.TestingT) {
	require.NoError(t, h.engine.Load(context.Background(), h.store.order))
}
