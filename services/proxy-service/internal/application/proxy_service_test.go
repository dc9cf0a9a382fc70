package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/scp-mobile/platform/shared/pkg/errors"
	"github.com/scp-mobile/platform/shared/pkg/logging"
	"github.com/scp-mobile/platform/shared/pkg/metrics"
	sharedtesting "github.com/scp-mobile/platform/shared/pkg/testing"

	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
)

var errUnexpected = errors.New("unexpected call")

type fakeVendor struct {
	mu     sync.Mutex
	callFn func(context.Context, domain.Credentials, domain.VendorRequest) (any, error)
	calls  []domain.VendorRequest
	creds  []domain.Credentials
}

func (f *fakeVendor) Call(ctx context.Context, creds domain.Credentials, req domain.VendorRequest) (any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.creds = append(f.creds, creds)
	f.mu.Unlock()
	if f.callFn == nil {
		return nil, errUnexpected
	}
	return f.callFn(ctx, creds, req)
}

type fakeIssuer struct {
	tokenFn func(context.Context, string) (string, error)
}

func (f *fakeIssuer) Token(ctx context.Context, org string) (string, error) {
	if f.tokenFn == nil {
		return "", errUnexpected
	}
	return f.tokenFn(ctx, org)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeNotifier) Notify(_ context.Context, event domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeNotifier) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.events))
	for i, e := range f.events {
		names[i] = e.Name
	}
	return names
}

type fakeAudit struct {
	recordFn func(context.Context, *domain.AuditEntry) error
	entries  []*domain.AuditEntry
}

func (f *fakeAudit) Record(ctx context.Context, entry *domain.AuditEntry) error {
	f.entries = append(f.entries, entry)
	if f.recordFn != nil {
		return f.recordFn(ctx, entry)
	}
	return nil
}

type fixture struct {
	vendor   *fakeVendor
	issuer   *fakeIssuer
	notifier *fakeNotifier
	audit    *fakeAudit
	service  *ProxyService
}

func newFixture() *fixture {
	f := &fixture{vendor: &fakeVendor{}, issuer: &fakeIssuer{}, notifier: &fakeNotifier{}, audit: &fakeAudit{}}
	f.service = NewProxyService(f.vendor, f.issuer, f.notifier, f.audit,
		metrics.New(metrics.DefaultConfig("proxy-test")), logging.Discard())
	return f
}

func command(req domain.Request) *Command {
	return &Command{RequestID: "req-1", Token: "tok-1", Request: &req}
}

func TestExecute_Auth(t *testing.T) {
	f := newFixture()
	f.issuer.tokenFn = func(_ context.Context, org string) (string, error) {
		assert.Equal(t, "acme", org)
		return "tok-9", nil
	}

	payload, err := f.service.Execute(context.Background(), command(domain.Request{Action: "auth", Org: "acme"}))
	require.NoError(t, err)
	assert.Equal(t, Payload{"token": "tok-9"}, payload)
	assert.Equal(t, []string{"auth_success"}, f.notifier.names())
	assert.Empty(t, f.vendor.calls)
}

func TestExecute_AuthFailure(t *testing.T) {
	f := newFixture()
	f.issuer.tokenFn = func(context.Context, string) (string, error) {
		return "", errors.Join(domain.ErrAuthFailed, errors.New("invalid_grant: Bad credentials"))
	}

	_, err := f.service.Execute(context.Background(), command(domain.Request{Action: "auth", Org: "acme"}))
	require.ErrorIs(t, err, domain.ErrAuthFailed)
	assert.Equal(t, authFailedMessage, apperrors.Message(err), "vendor detail stays in the logs")
	assert.Equal(t, []string{"auth_failed"}, f.notifier.names())

	require.Len(t, f.audit.entries, 1)
	assert.False(t, f.audit.entries[0].Success)
	assert.Equal(t, authFailedMessage, f.audit.entries[0].Error)
}

func TestExecute_TrackRepliesImmediately(t *testing.T) {
	f := newFixture()

	payload, err := f.service.Execute(context.Background(), command(domain.Request{
		Action:    "ha-track",
		EventName: "store_id_entered",
		Metadata:  map[string]any{"store_id": "S1"},
	}))
	require.NoError(t, err)
	assert.Empty(t, payload)

	sharedtesting.AssertEventually(t, func() bool {
		return len(f.notifier.names()) == 1
	}, time.Second, "tracked event delivered")
	assert.Equal(t, "store_id_entered", f.notifier.events[0].Name)
	assert.Equal(t, "S1", f.notifier.events[0].Metadata["store_id"])
	assert.Equal(t, "req-1", f.notifier.events[0].CorrelationID)
}

func TestExecute_AppOpened(t *testing.T) {
	f := newFixture()
	payload, err := f.service.Execute(context.Background(), command(domain.Request{Action: "app_opened"}))
	require.NoError(t, err)
	assert.Empty(t, payload)
	assert.Empty(t, f.vendor.calls)
}

func TestExecute_MissingFieldSkipsVendor(t *testing.T) {
	f := newFixture()

	_, err := f.service.Execute(context.Background(), command(domain.Request{Action: "clear-soq", Org: "acme", ItemID: "A"}))
	require.ErrorIs(t, err, domain.ErrMissingField)
	assert.Equal(t, "itemId, locationId and sourceLocationId are required", apperrors.Message(err))
	assert.Empty(t, f.vendor.calls)
}

func TestExecute_UnsafeIdentifierSkipsVendor(t *testing.T) {
	f := newFixture()

	_, err := f.service.Execute(context.Background(), command(domain.Request{
		Action: "search-inventory-movement-summary", Org: "acme", StoreID: "S1\r\nX",
	}))
	require.ErrorIs(t, err, domain.ErrUnsafeIdentifier)
	assert.Empty(t, f.vendor.calls)
}

func TestExecute_SearchExtraction(t *testing.T) {
	tests := []struct {
		name string
		body any
		want any
	}{
		{"data wins", map[string]any{"data": []any{"a"}, "orders": []any{"b"}}, []any{"a"}},
		{"named key", map[string]any{"orders": []any{"b"}}, []any{"b"}},
		{"bare list", []any{"c"}, []any{"c"}},
		{"whole object", map[string]any{"header": "x"}, map[string]any{"header": "x"}},
		{"empty body", nil, []any{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.vendor.callFn = func(context.Context, domain.Credentials, domain.VendorRequest) (any, error) {
				return tt.body, nil
			}

			payload, err := f.service.Execute(context.Background(), command(domain.Request{
				Action: "search-inventory-movement-summary", Org: "acme", StoreID: "S1",
			}))
			require.NoError(t, err)
			assert.Equal(t, tt.want, payload["orders"])
			assert.Equal(t, domain.Credentials{Token: "tok-1", Org: "acme"}, f.vendor.creds[0])
		})
	}
}

// projectTemplate mimics the vendor search: only fields named in the
// request template come back.
func projectTemplate(req domain.VendorRequest, row map[string]any) map[string]any {
	template := req.Body.(map[string]any)["Template"].(map[string]any)
	out := make(map[string]any, len(template))
	for field := range template {
		if v, ok := row[field]; ok {
			out[field] = v
		}
	}
	return out
}

func TestExecute_PlannedPurchaseSearchReturnsKeys(t *testing.T) {
	f := newFixture()
	f.vendor.callFn = func(_ context.Context, _ domain.Credentials, req domain.VendorRequest) (any, error) {
		stored := map[string]any{
			"PK": "PK-1", "PlannedPurchaseId": "PP-1", "PlannedPurchaseName": "Spring buy",
			"LocationId": "STORE1", "ItemId": "A", "PurchaseQuantity": 4, "CreatedBy": "admin",
		}
		return map[string]any{"data": []any{projectTemplate(req, stored)}}, nil
	}

	payload, err := f.service.Execute(context.Background(), command(domain.Request{
		Action: "search-planned-purchase", Org: "acme", LocationID: "STORE1",
	}))
	require.NoError(t, err)

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	var reply struct {
		PlannedPurchases []map[string]any `json:"plannedPurchases"`
	}
	require.NoError(t, json.Unmarshal(raw, &reply))
	require.Len(t, reply.PlannedPurchases, 1)
	row := reply.PlannedPurchases[0]
	assert.Equal(t, "PK-1", row["PK"])
	assert.Equal(t, "PP-1", row["PlannedPurchaseId"])
	assert.NotContains(t, row, "CreatedBy")
}

func TestExecute_ImageMap(t *testing.T) {
	f := newFixture()
	f.vendor.callFn = func(_ context.Context, _ domain.Credentials, req domain.VendorRequest) (any, error) {
		assert.Equal(t, "ItemId IN ('A','B','C')", req.Body.(map[string]any)["Query"])
		return map[string]any{"data": []any{
			map[string]any{"ItemId": "A", "SmallImageURI": "https://img/a.png"},
			map[string]any{"ItemId": "B"},
			map[string]any{"ItemId": json.Number("42"), "SmallImageURI": "https://img/42.png"},
		}}, nil
	}

	payload, err := f.service.Execute(context.Background(), command(domain.Request{
		Action: "search-item-images", Org: "acme", ItemIDs: []string{"A", "B", "C"},
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "https://img/a.png", "42": "https://img/42.png"}, payload["imageMap"])
}

func TestExecute_ConditionCodes(t *testing.T) {
	f := newFixture()
	f.vendor.callFn = func(context.Context, domain.Credentials, domain.VendorRequest) (any, error) {
		return map[string]any{"data": []any{
			map[string]any{"ConditionCodeId": "QC", "Description": "Quality check"},
			map[string]any{"ConditionCodeId": "DM", "Description": "Damaged"},
		}}, nil
	}

	payload, err := f.service.Execute(context.Background(), command(domain.Request{Action: "get-codes", Org: "acme"}))
	require.NoError(t, err)
	assert.Equal(t, []ConditionCode{
		{Code: "", Desc: "Select Code"},
		{Code: "DM", Desc: "Damaged"},
		{Code: "QC", Desc: "Quality check"},
	}, payload["codes"])
}

func TestExecute_WriteReturnsResult(t *testing.T) {
	f := newFixture()
	qty := json.Number("12")
	f.vendor.callFn = func(_ context.Context, _ domain.Credentials, req domain.VendorRequest) (any, error) {
		assert.Equal(t, "/ai-inventoryoptimization/api/ai-inventoryoptimization/inventorymovement/save", req.Path)
		return map[string]any{"data": map[string]any{"InventoryMovementId": "MV-1"}}, nil
	}

	payload, err := f.service.Execute(context.Background(), command(domain.Request{
		Action: "save-suggested-order-line", Org: "acme", InventoryMovementID: "MV-1", FinalOrderQty: &qty,
	}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": map[string]any{"InventoryMovementId": "MV-1"}}, payload["result"])

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "save-suggested-order-line", entry.Action)
	assert.True(t, entry.Success)
}

func TestExecute_VendorFailure(t *testing.T) {
	f := newFixture()
	f.vendor.callFn = func(context.Context, domain.Credentials, domain.VendorRequest) (any, error) {
		return nil, apperrors.ErrUpstream("vendor returned 500").Wrap(errors.New("boom"))
	}

	_, err := f.service.Execute(context.Background(), command(domain.Request{
		Action: "create-location", Org: "acme", LocationData: json.RawMessage(`{"LocationId":"S9"}`),
	}))
	require.Error(t, err)
	assert.Equal(t, "vendor returned 500: boom", apperrors.Message(err))
	assert.Equal(t, []string{"upload_locations_failed"}, f.notifier.names())
	assert.Equal(t, "vendor returned 500: boom", f.audit.entries[0].Error)
}

func TestExecute_AuditFailureDoesNotFailAction(t *testing.T) {
	f := newFixture()
	f.audit.recordFn = func(context.Context, *domain.AuditEntry) error { return errors.New("mongo down") }
	f.vendor.callFn = func(context.Context, domain.Credentials, domain.VendorRequest) (any, error) {
		return map[string]any{}, nil
	}

	_, err := f.service.Execute(context.Background(), command(domain.Request{
		Action: "approve-inventory-movement", Org: "acme", LocationID: "S1", SourceLocationID: "DC1",
	}))
	assert.NoError(t, err)
}

func TestNewProxyService_NilAudit(t *testing.T) {
	s := NewProxyService(&fakeVendor{}, &fakeIssuer{}, &fakeNotifier{}, nil, nil, logging.Discard())
	_, err := s.Execute(context.Background(), command(domain.Request{Action: "app_opened"}))
	assert.NoError(t, err)
}
