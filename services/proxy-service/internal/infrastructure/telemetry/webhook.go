// Package telemetry delivers usage events to the configured sinks. Delivery
// is best effort; failures are logged at debug level and counted.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/scp-mobile/platform/shared/pkg/logging"
	"github.com/scp-mobile/platform/shared/pkg/metrics"

	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
)

// DefaultTimeout bounds one delivery attempt
const DefaultTimeout = 5 * time.Second

// App identifies the reporting application in every event
type App struct {
	Name    string
	Version string
}

// WebhookNotifier posts events to a home-automation style webhook
type WebhookNotifier struct {
	url        string
	app        App
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *logging.Logger
}

// NewWebhookNotifier creates a webhook sink
func NewWebhookNotifier(url string, app App, m *metrics.Metrics, logger *logging.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		app:        app,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		metrics:    m,
		logger:     logger.WithComponent("telemetry-webhook"),
	}
}

// Notify posts the event. Metadata keys are flattened into the payload.
func (n *WebhookNotifier) Notify(ctx context.Context, event domain.Event) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	err := n.post(ctx, event)
	if n.metrics != nil {
		n.metrics.RecordTelemetry("webhook", err == nil)
	}
	if err != nil {
		n.logger.Debug("Telemetry webhook failed", "event", event.Name, "error", err.Error())
	}
}

func (n *WebhookNotifier) post(ctx context.Context, event domain.Event) error {
	payload := make(map[string]any, len(event.Metadata)+5)
	for k, v := range event.Metadata {
		payload[k] = v
	}
	payload["event_name"] = event.Name
	payload["app_name"] = n.app.Name
	payload["app_version"] = n.app.Version
	payload["timestamp"] = timestamp(event).Format(time.RFC3339Nano)
	if event.Org != "" {
		payload["org"] = event.Org
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func timestamp(event domain.Event) time.Time {
	if event.At.IsZero() {
		return time.Now().UTC()
	}
	return event.At.UTC()
}
