package proxyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

// proxyCall is one request captured by the fake proxy
type proxyCall struct {
	Action        string
	Authorization string
	Body          map[string]any
}

// fakeProxy answers /api/validate from a table of per-action replies
type fakeProxy struct {
	t       *testing.T
	mu      sync.Mutex
	calls   []proxyCall
	replies map[string]func(body map[string]any) (int, any)
}

func newFakeProxy(t *testing.T) (*fakeProxy, *httptest.Server) {
	p := &fakeProxy{t: t, replies: map[string]func(map[string]any) (int, any){}}
	server := httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(server.Close)
	return p, server
}

func (p *fakeProxy) on(action string, reply func(body map[string]any) (int, any)) {
	p.replies[action] = reply
}

func (p *fakeProxy) ok(action string, payload map[string]any) {
	p.on(action, func(map[string]any) (int, any) {
		out := map[string]any{"success": true}
		for k, v := range payload {
			out[k] = v
		}
		return http.StatusOK, out
	})
}

func (p *fakeProxy) serve(w http.ResponseWriter, r *http.Request) {
	assert.Equal(p.t, "/api/validate", r.URL.Path)
	assert.Equal(p.t, http.MethodPost, r.Method)

	var body map[string]any
	assert.NoError(p.t, json.NewDecoder(r.Body).Decode(&body))
	action, _ := body["action"].(string)

	p.mu.Lock()
	p.calls = append(p.calls, proxyCall{Action: action, Authorization: r.Header.Get("Authorization"), Body: body})
	reply, ok := p.replies[action]
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "Unknown action"})
		return
	}
	status, payload := reply(body)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (p *fakeProxy) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.calls))
	for i, c := range p.calls {
		out[i] = c.Action
	}
	return out
}

func (p *fakeProxy) last(action string) proxyCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.calls) - 1; i >= 0; i-- {
		if p.calls[i].Action == action {
			return p.calls[i]
		}
	}
	p.t.Fatalf("no %s call", action)
	return proxyCall{}
}

func loggedIn(t *testing.T, server *httptest.Server) *Client {
	c := New(&Config{BaseURL: server.URL}, nil)
	_, err := c.Resume("acme", "tok-123")
	require.NoError(t, err)
	return c
}

func TestClient_Login(t *testing.T) {
	proxy, server := newFakeProxy(t)
	proxy.on("auth", func(body map[string]any) (int, any) {
		if body["org"] == "acme" {
			return http.StatusOK, map[string]any{"success": true, "token": "tok-abc"}
		}
		return http.StatusOK, map[string]any{"success": false, "error": "Authentication failed"}
	})
	c := New(&Config{BaseURL: server.URL + "/"}, nil)

	_, err := c.Session()
	require.ErrorIs(t, err, domain.ErrNotLoggedIn)

	session, err := c.Login(context.Background(), "  acme ")
	require.NoError(t, err)
	assert.Equal(t, "acme", session.Org)
	assert.Equal(t, "tok-abc", session.Token)
	assert.Empty(t, proxy.last("auth").Authorization, "no bearer before login")

	_, err = c.Login(context.Background(), "other")
	require.ErrorIs(t, err, domain.ErrAuthFailed)
	assert.Contains(t, err.Error(), "Authentication failed")

	_, err = c.Login(context.Background(), " ")
	require.ErrorIs(t, err, domain.ErrMissingOrg)

	c.Logout()
	_, err = c.Session()
	assert.ErrorIs(t, err, domain.ErrNotLoggedIn)
}

func TestClient_CallRequiresSession(t *testing.T) {
	proxy, server := newFakeProxy(t)
	c := New(&Config{BaseURL: server.URL}, nil)

	_, err := c.ListOrders(context.Background(), "STORE1")
	require.ErrorIs(t, err, domain.ErrNotLoggedIn)
	assert.Empty(t, proxy.actions())
}

func TestClient_ActionErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload any
		want    string
	}{
		{name: "Vendor failure", status: http.StatusOK, payload: map[string]any{"success": false, "error": "Movement locked"}, want: "Movement locked"},
		{name: "Structured error", status: http.StatusOK, payload: map[string]any{"success": false, "error": map[string]any{"code": "E1"}}, want: `{"code":"E1"}`},
		{name: "Missing token", status: http.StatusUnauthorized, payload: map[string]any{"error": "No token"}, want: "No token"},
		{name: "No error text", status: http.StatusOK, payload: map[string]any{"success": false}, want: "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxy, server := newFakeProxy(t)
			proxy.on("clear-soq", func(map[string]any) (int, any) { return tt.status, tt.payload })
			c := loggedIn(t, server)

			err := c.ClearSuggestedOrderLine(context.Background(), "A", "DC1", "STORE1")
			require.Error(t, err)

			var actionErr *ActionError
			require.True(t, errors.As(err, &actionErr))
			assert.Equal(t, tt.status, actionErr.StatusCode)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestClient_MalformedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer server.Close()
	c := loggedIn(t, server)

	err := c.DeletePlannedPurchase(context.Background(), "PK1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestClient_ListOrders(t *testing.T) {
	proxy, server := newFakeProxy(t)
	proxy.ok("search-inventory-movement-summary", map[string]any{
		"orders": []map[string]any{
			{
				"InventoryMovementSummaryId": "SUM-1",
				"SourceLocationId":           "DC1",
				"LocationId":                 "STORE1",
				"OrderStatus":                map[string]any{"OrderStatusId": "Suggested"},
				"MovementSummaryFactors":     `{"RequiredTotals":{"USD":1250.5,"EA":"40"}}`,
			},
			{
				"SourceLocationId":       "DC2",
				"OrderStatus":            "Reviewed",
				"MovementSummaryFactors": map[string]any{"RequiredTotals": map[string]any{"EA": 12}},
			},
		},
	})
	c := loggedIn(t, server)

	orders, err := c.ListOrders(context.Background(), "STORE1")
	require.NoError(t, err)
	require.Len(t, orders, 2)

	call := proxy.last("search-inventory-movement-summary")
	assert.Equal(t, "Bearer tok-123", call.Authorization)
	assert.Equal(t, "acme", call.Body["org"])
	assert.Equal(t, "STORE1", call.Body["storeId"])

	first := orders[0]
	assert.Equal(t, domain.KindSuggestedOrder, first.Kind)
	assert.Equal(t, "SUM-1", first.SummaryID)
	assert.Equal(t, domain.StatusSuggested, first.Status)
	assert.True(t, first.RequiresReview())
	require.True(t, first.TotalCost.Valid)
	assert.True(t, first.TotalCost.Decimal.Equal(decimal.RequireFromString("1250.5")))
	assert.True(t, first.TotalUnits.Decimal.Equal(decimal.NewFromInt(40)))

	second := orders[1]
	assert.Equal(t, "STORE1", second.LocationID, "falls back to the requested store")
	assert.Equal(t, domain.Status("Reviewed"), second.Status)
	assert.False(t, second.TotalCost.Valid)
	assert.True(t, second.TotalUnits.Decimal.Equal(decimal.NewFromInt(12)))
}

func TestClient_LoadSuggestedOrder(t *testing.T) {
	proxy, server := newFakeProxy(t)
	proxy.ok("search-inventory-movement", map[string]any{
		"movements": []map[string]any{
			{"ItemId": "B", "InventoryMovementId": "MV-B", "FinalOrderUnits": "12.0", "OnHandQuantity": 3, "PeriodForecast": 7.5},
			{"ItemId": "A", "InventoryMovementId": "MV-A", "FinalOrderQty": 12, "OnHandQty": 1, "FinalOrderCost": 30},
			{"ItemId": "C", "InventoryMovementId": "MV-C", "FinalOrderUnits": 0, "FinalOrderQty": 9,
				"InventoryMovementDetail": map[string]any{"ItemDescription": "Widget"}},
			{"ItemId": "D", "InventoryMovementId": "MV-D"},
		},
	})
	proxy.ok("search-inventory-movement-summary", map[string]any{
		"orders": []map[string]any{
			{"SourceLocationId": "DC1", "LocationId": "STORE1", "OrderStatus": map[string]any{"OrderStatusId": "Reviewed"}},
		},
	})
	proxy.ok("search-item-images", map[string]any{
		"imageMap": map[string]any{"A": "https://img/a.png"},
	})
	c := loggedIn(t, server)

	order := domain.Order{Kind: domain.KindSuggestedOrder, SourceLocationID: "DC1", LocationID: "STORE1", Status: domain.StatusSuggested}
	snapshot, err := c.LoadOrder(context.Background(), order)
	require.NoError(t, err)

	assert.Equal(t, []string{"search-inventory-movement", "search-inventory-movement-summary", "search-item-images"}, proxy.actions())
	search := proxy.last("search-inventory-movement")
	assert.Equal(t, "DC1", search.Body["sourceLocationId"])
	assert.Equal(t, "STORE1", search.Body["locationId"])
	assert.ElementsMatch(t, []any{"A", "B", "C", "D"}, proxy.last("search-item-images").Body["itemIds"])

	assert.Equal(t, domain.Status("Reviewed"), snapshot.Order.Status, "status re-read from the summary")

	lines := snapshot.Lines
	require.Len(t, lines, 4)
	ids := []string{lines[0].ItemID, lines[1].ItemID, lines[2].ItemID, lines[3].ItemID}
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids, "quantity desc then item id")

	assert.True(t, lines[0].BaselineQuantity.Equal(decimal.NewFromInt(12)))
	assert.True(t, lines[0].OnHand.Equal(decimal.NewFromInt(1)))
	require.True(t, lines[0].UnitCost.Valid)
	assert.True(t, lines[0].UnitCost.Decimal.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, "https://img/a.png", lines[0].ImageURI)

	assert.True(t, lines[1].Forecast.Equal(decimal.RequireFromString("7.5")))
	assert.Empty(t, lines[1].ImageURI)

	assert.True(t, lines[2].BaselineQuantity.IsZero(), "explicit zero wins over the fallback field")
	assert.Equal(t, "Widget", lines[2].Description)
	assert.True(t, lines[3].BaselineQuantity.IsZero())
	for _, l := range lines {
		assert.False(t, l.IsDirty())
	}
}

func TestClient_LoadSuggestedOrder_ImagesOptional(t *testing.T) {
	proxy, server := newFakeProxy(t)
	proxy.ok("search-inventory-movement", map[string]any{
		"movements": []map[string]any{{"ItemId": "A", "InventoryMovementId": "MV-A", "FinalOrderUnits": 2}},
	})
	proxy.on("search-inventory-movement-summary", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"success": false, "error": "timeout"}
	})
	proxy.on("search-item-images", func(map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"success": false, "error": "item service down"}
	})
	c := loggedIn(t, server)

	order := domain.Order{Kind: domain.KindSuggestedOrder, SourceLocationID: "DC1", LocationID: "STORE1", Status: domain.StatusSuggested}
	snapshot, err := c.LoadOrder(context.Background(), order)
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 1)
	assert.Equal(t, domain.StatusSuggested, snapshot.Order.Status)
}

func TestClient_LoadOpportunityBuy(t *testing.T) {
	proxy, server := newFakeProxy(t)
	proxy.ok("search-planned-purchase", map[string]any{
		"plannedPurchases": []map[string]any{
			{"PlannedPurchaseId": "PP1", "PlannedPurchaseName": "Spring", "ItemId": "A", "LocationId": "STORE1", "PurchaseQuantity": 4, "PK": "PK-1"},
			{"PlannedPurchaseId": "PP2", "PlannedPurchaseName": "Spring", "ItemId": "B", "PurchaseQuantity": 6, "PK": "PK-2"},
		},
	})
	proxy.on("search-inventory-movement", func(body map[string]any) (int, any) {
		if body["itemId"] == "B" {
			return http.StatusOK, map[string]any{"success": false, "error": "not found"}
		}
		return http.StatusOK, map[string]any{"success": true, "movements": []map[string]any{
			{"InventoryMovementId": "MV-A", "OnHandQuantity": 5, "PeriodForecast": 2,
				"InventoryMovementDetail": map[string]any{"ItemDescription": "Apple"}},
		}}
	})
	proxy.ok("search-item-images", map[string]any{"imageMap": map[string]any{}})
	c := loggedIn(t, server)

	snapshot, err := c.LoadOrder(context.Background(), domain.Order{Kind: domain.KindOpportunityBuy, LocationID: "STORE1"})
	require.NoError(t, err)
	assert.Equal(t, "STORE1", proxy.last("search-planned-purchase").Body["locationId"])

	require.Len(t, snapshot.Lines, 2)
	b, a := snapshot.Lines[0], snapshot.Lines[1]
	assert.Equal(t, "B", b.ItemID)
	assert.Equal(t, "STORE1", b.LocationID, "defaults to the order location")
	assert.Equal(t, "PK-2", b.PlannedPurchasePK)
	assert.True(t, b.OnHand.IsZero(), "minimal data when the movement lookup fails")

	assert.Equal(t, "A", a.ItemID)
	assert.Equal(t, "MV-A", a.MovementID)
	assert.Equal(t, "Apple", a.Description)
	assert.Equal(t, "PP1", a.PlannedPurchaseID)
	assert.Equal(t, "Spring", a.PlannedPurchaseName)
	assert.True(t, a.OnHand.Equal(decimal.NewFromInt(5)))
	assert.True(t, a.BaselineQuantity.Equal(decimal.NewFromInt(4)))
}

func TestClient_LineWrites(t *testing.T) {
	proxy, server := newFakeProxy(t)
	for _, action := range []string{"save-suggested-order-line", "save-planned-purchase", "delete-planned-purchase", "review-inventory-movement", "approve-inventory-movement"} {
		proxy.ok(action, map[string]any{"result": map[string]any{}})
	}
	c := loggedIn(t, server)
	ctx := context.Background()

	require.NoError(t, c.SaveSuggestedOrderLine(ctx, "MV-1", decimal.RequireFromString("7")))
	save := proxy.last("save-suggested-order-line").Body
	assert.Equal(t, "MV-1", save["inventoryMovementId"])
	assert.Equal(t, float64(7), save["finalOrderQty"], "sent as a JSON number")

	require.NoError(t, c.SavePlannedPurchase(ctx, domain.PlannedPurchaseChange{
		PlannedPurchaseID: "PP1", PlannedPurchaseName: "Spring", LocationID: "STORE1", ItemID: "A", Quantity: decimal.NewFromInt(3),
	}))
	data := proxy.last("save-planned-purchase").Body["plannedPurchaseData"].(map[string]any)
	assert.Equal(t, "PP1", data["PlannedPurchaseId"])
	assert.Equal(t, float64(3), data["PurchaseQuantity"])

	require.NoError(t, c.DeletePlannedPurchase(ctx, "PK-9"))
	assert.Equal(t, "PK-9", proxy.last("delete-planned-purchase").Body["pk"])

	order := domain.Order{SourceLocationID: "DC1", LocationID: "STORE1"}
	require.NoError(t, c.Review(ctx, order))
	require.NoError(t, c.Approve(ctx, order))
	approve := proxy.last("approve-inventory-movement").Body
	assert.Equal(t, "DC1", approve["sourceLocationId"])
	assert.Equal(t, "STORE1", approve["locationId"])
}

func TestClient_Uploads(t *testing.T) {
	proxy, server := newFakeProxy(t)
	for _, action := range []string{"save-forecast", "save-forecast-projections", "create-location"} {
		proxy.ok(action, map[string]any{"result": map[string]any{}})
	}
	c := loggedIn(t, server)
	ctx := context.Background()

	row := domain.ForecastRow{ForecastID: "ITEM-1", CurrentForecast: decimal.NewFromInt(25), PeriodStartDate: "2026-03-01"}
	require.NoError(t, c.SaveForecast(ctx, row))
	forecast := proxy.last("save-forecast").Body["forecastData"].(map[string]any)
	assert.Equal(t, "ITEM-1", forecast["ForecastId"])
	assert.Equal(t, float64(25), forecast["ForecastLevel"])
	assert.Len(t, forecast["ForecastFactors"], 1)

	require.NoError(t, c.SaveForecastProjection(ctx, row))
	projection := proxy.last("save-forecast-projections").Body["projectionData"].(map[string]any)
	assert.Equal(t, "User", projection["ManualForecastEventType"])
	assert.Equal(t, "2026-03-01", projection["PeriodStartDate"])

	require.NoError(t, c.CreateLocation(ctx, domain.LocationRow{
		LocationID: "S9", LocationName: "Ninth", Address: domain.LocationAddress{City: "Austin"},
	}))
	location := proxy.last("create-location").Body["locationData"].(map[string]any)
	assert.Equal(t, "S9", location["LocationId"])
	assert.Equal(t, "Austin", location["Address"].(map[string]any)["City"])
	assert.NotContains(t, location, "Row")
}

func TestClient_ValidateStoreAndCodes(t *testing.T) {
	proxy, server := newFakeProxy(t)
	proxy.on("search-location", func(body map[string]any) (int, any) {
		if body["locationId"] == "STORE1" {
			return http.StatusOK, map[string]any{"success": true, "locations": []map[string]any{{"LocationId": "STORE1"}}}
		}
		return http.StatusOK, map[string]any{"success": true, "locations": []map[string]any{}}
	})
	proxy.ok("get-codes", map[string]any{"codes": []map[string]any{
		{"code": "", "desc": "Select Code"},
		{"code": "DMG", "desc": "Damaged"},
	}})
	c := loggedIn(t, server)
	ctx := context.Background()

	ok, err := c.ValidateStore(ctx, "STORE1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ValidateStore(ctx, "NOPE")
	require.NoError(t, err)
	assert.False(t, ok)

	codes, err := c.ConditionCodes(ctx)
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Equal(t, ConditionCode{Code: "DMG", Desc: "Damaged"}, codes[1])
}

func TestClient_Track(t *testing.T) {
	proxy, server := newFakeProxy(t)
	proxy.ok("ha-track", nil)
	c := loggedIn(t, server)
	_, err := c.SelectStore("STORE1")
	require.NoError(t, err)

	metadata := map[string]any{"line_count": 3}
	c.Track(context.Background(), "order_submitted", metadata)

	call := proxy.last("ha-track")
	assert.Equal(t, "order_submitted", call.Body["event_name"])
	meta := call.Body["metadata"].(map[string]any)
	assert.Equal(t, float64(3), meta["line_count"])
	assert.Equal(t, "STORE1", meta["store_id"])
	assert.NotContains(t, metadata, "store_id", "caller's map untouched")
}

func TestClient_TrackSwallowsFailures(t *testing.T) {
	_, server := newFakeProxy(t)
	server.Close()
	c := loggedIn(t, server)

	assert.NotPanics(t, func() {
		c.Track(context.Background(), "app_opened", nil)
	})
	require.Equal(t, 1, c.RequestLog().Len())
	assert.NotEmpty(t, c.RequestLog().Entries()[0].Error)
}

func TestRequestLog(t *testing.T) {
	log := NewRequestLog(2)
	log.Record("auth", []byte(`{"action":"auth","org":"acme"}`), 200, []byte(`{"success":true,"token":"secret-token"}`), nil, 0)
	log.Record("clear-soq", []byte(`{"nested":{"Authorization":"Bearer x"}}`), 200, []byte(`not json`), nil, 0)
	log.Record("approve-inventory-movement", []byte(`{}`), 500, nil, errors.New("boom"), 0)

	entries := log.Entries()
	require.Len(t, entries, 2, "oldest entry evicted")
	assert.Equal(t, "clear-soq", entries[0].Action)
	assert.Equal(t, `{"nested":{"Authorization":"[REDACTED]"}}`, entries[0].Request)
	assert.Equal(t, "not json", entries[0].Response)
	assert.Equal(t, "boom", entries[1].Error)

	var buf bytes.Buffer
	_, err := log.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "clear-soq (200")
	assert.Contains(t, buf.String(), "error: boom")
}

func TestRequestLog_RedactsToken(t *testing.T) {
	proxy, server := newFakeProxy(t)
	proxy.ok("auth", map[string]any{"token": "tok-secret"})
	c := New(&Config{BaseURL: server.URL, LogCapacity: 10}, nil)

	_, err := c.Login(context.Background(), "acme")
	require.NoError(t, err)

	entries := c.RequestLog().Entries()
	require.Len(t, entries, 1)
	assert.False(t, strings.Contains(entries[0].Response, "tok-secret"))
	assert.Contains(t, entries[0].Response, redacted)
}
