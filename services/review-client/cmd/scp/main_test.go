package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scp-mobile/platform/services/review-client/internal/domain"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("SCP_TEST_ENV", "value")
	require.Equal(t, "value", getEnv("SCP_TEST_ENV", "default"))
	require.Equal(t, "fallback", getEnv("SCP_MISSING", "fallback"))
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SCP_PROXY_URL", "https://proxy.example.com")
	t.Setenv("SCP_ORG", "acme")
	t.Setenv("SCP_STORE", "STORE1")
	t.Setenv("SCP_SETTLE_DELAY", "250ms")
	t.Setenv("SCP_MAX_CONCURRENCY", "not-a-number")

	cfg := loadConfig()
	require.Equal(t, "https://proxy.example.com", cfg.ProxyURL)
	require.Equal(t, "acme", cfg.Org)
	require.Equal(t, "STORE1", cfg.Store)
	require.Equal(t, 250*time.Millisecond, cfg.SettleDelay)
	require.Equal(t, 5, cfg.MaxConcurrency)
}

func TestParseSet(t *testing.T) {
	item, qty, err := parseSet(" A-1 = 12 ")
	require.NoError(t, err)
	assert.Equal(t, "A-1", item)
	assert.True(t, qty.Equal(decimal.NewFromInt(12)))

	_, _, err = parseSet("A-1")
	assert.Error(t, err)

	_, _, err = parseSet("A-1=lots")
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestFormatMoney(t *testing.T) {
	tests := map[string]string{
		"0":        "$0.00",
		"12.5":     "$12.50",
		"100":      "$100.00",
		"1250.456": "$1,250.46",
		"1234567":  "$1,234,567.00",
		"-98765.4": "-$98,765.40",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatMoney(decimal.RequireFromString(in)), in)
	}
}

// stubProxy plays the backend proxy for one CLI run
type stubProxy struct {
	mu      sync.Mutex
	actions []string
	bodies  map[string]map[string]any
	qty     map[string]string
	status  string
}

func newStubProxy(t *testing.T) (*stubProxy, *httptest.Server) {
	p := &stubProxy{
		bodies: map[string]map[string]any{},
		qty:    map[string]string{"A": "4", "B": "2"},
		status: "Suggested",
	}
	server := httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(server.Close)
	return p, server
}

func (p *stubProxy) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	_ = dec.Decode(&body)
	action, _ := body["action"].(string)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, action)
	p.bodies[action] = body

	reply := map[string]any{"success": true}
	switch action {
	case "auth":
		reply["token"] = "tok-1"
	case "search-location":
		reply["locations"] = []map[string]any{{"LocationId": body["locationId"]}}
	case "search-inventory-movement-summary":
		reply["orders"] = []map[string]any{{
			"SourceLocationId": "DC1", "LocationId": "STORE1",
			"OrderStatus": map[string]any{"OrderStatusId": p.status},
		}}
	case "search-inventory-movement":
		reply["movements"] = []map[string]any{
			{"ItemId": "A", "InventoryMovementId": "MV-A", "FinalOrderUnits": p.qty["A"], "FinalOrderCost": 10},
			{"ItemId": "B", "InventoryMovementId": "MV-B", "FinalOrderUnits": p.qty["B"]},
		}
	case "search-item-images":
		reply["imageMap"] = map[string]any{}
	case "review-inventory-movement":
		p.status = "Reviewed"
	case "save-suggested-order-line":
		for item, mv := range map[string]string{"A": "MV-A", "B": "MV-B"} {
			if body["inventoryMovementId"] == mv {
				p.qty[item] = string(body["finalOrderQty"].(json.Number))
			}
		}
	case "clear-soq":
		p.qty[body["itemId"].(string)] = "0"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply)
}

func (p *stubProxy) count(action string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, a := range p.actions {
		if a == action {
			n++
		}
	}
	return n
}

func runCLI(t *testing.T, server *httptest.Server, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cfg := &Config{ProxyURL: server.URL, MaxConcurrency: 5, LogLevel: "error"}
	root := newRootCommand(cfg, strings.NewReader(stdin))

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--org", "acme", "--store", "STORE1", "--settle-delay", "0s"))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestReviewCommand_SubmitAndRelease(t *testing.T) {
	proxy, server := newStubProxy(t)

	out, _, err := runCLI(t, server, "", "review", "--inc", "A", "--remove", "B", "--submit", "--release", "--yes")
	require.NoError(t, err)

	assert.Contains(t, out, "Suggested order DC1 -> STORE1 (Suggested)")
	assert.Contains(t, out, "5 (was 4)")
	assert.Contains(t, out, "Submitted: 1 updated, 1 cleared, 0 failed")
	assert.Contains(t, out, "Order released.")

	assert.Equal(t, 1, proxy.count("review-inventory-movement"), "reviewed once before the writes")
	assert.Equal(t, 1, proxy.count("approve-inventory-movement"))
	assert.Equal(t, "5", proxy.qty["A"])
	assert.Equal(t, "0", proxy.qty["B"])
	assert.Equal(t, "STORE1", proxy.bodies["clear-soq"]["locationId"])
}

func TestReviewCommand_PendingWithoutSubmit(t *testing.T) {
	proxy, server := newStubProxy(t)

	out, _, err := runCLI(t, server, "", "review", "--set", "A=9")
	require.NoError(t, err)
	assert.Contains(t, out, "9 (was 4)")
	assert.Contains(t, out, "Changes are pending")
	assert.Zero(t, proxy.count("save-suggested-order-line"))
}

func TestReviewCommand_ReleaseDeclined(t *testing.T) {
	proxy, server := newStubProxy(t)
	proxy.status = "Reviewed"

	out, _, err := runCLI(t, server, "n\n", "review", "--release")
	require.NoError(t, err)
	assert.Contains(t, out, "Release cancelled.")
	assert.Zero(t, proxy.count("approve-inventory-movement"))
}

func TestReviewCommand_ReleaseWithPendingEdit(t *testing.T) {
	proxy, server := newStubProxy(t)

	_, _, err := runCLI(t, server, "", "review", "--inc", "A", "--release", "--yes")
	require.ErrorIs(t, err, domain.ErrPendingChanges)
	assert.Zero(t, proxy.count("approve-inventory-movement"))
}

func TestUploadCommand(t *testing.T) {
	proxy, server := newStubProxy(t)
	path := filepath.Join(t.TempDir(), "forecast.csv")
	require.NoError(t, os.WriteFile(path, []byte("Item ID,Current Forecast\nITEM-1,3\nITEM-2,4\n"), 0o600))

	out, _, err := runCLI(t, server, "", "upload", "forecast", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Uploaded 2 of 2 forecast rows, 0 failed")
	assert.Equal(t, 2, proxy.count("save-forecast"))
	assert.Equal(t, 2, proxy.count("save-forecast-projections"))
}

func TestConsoleFlag(t *testing.T) {
	_, server := newStubProxy(t)

	_, errOut, err := runCLI(t, server, "", "orders", "--console")
	require.NoError(t, err)
	assert.Contains(t, errOut, "search-inventory-movement-summary")
	assert.NotContains(t, errOut, "tok-1", "token redacted")
}

func TestMissingOrg(t *testing.T) {
	_, server := newStubProxy(t)
	root := newRootCommand(&Config{ProxyURL: server.URL}, strings.NewReader(""))
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"orders"})
	assert.Error(t, root.Execute())
}
