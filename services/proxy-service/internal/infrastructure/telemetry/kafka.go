package telemetry

import (
	"context"

	"github.com/scp-mobile/platform/shared/pkg/cloudevents"
	"github.com/scp-mobile/platform/shared/pkg/kafka"
	"github.com/scp-mobile/platform/shared/pkg/logging"
	"github.com/scp-mobile/platform/shared/pkg/metrics"

	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
)

// KafkaNotifier publishes events as CloudEvents on the telemetry topic
type KafkaNotifier struct {
	publisher kafka.EventPublisher
	factory   *cloudevents.EventFactory
	topic     string
	app       App
	metrics   *metrics.Metrics
	logger    *logging.Logger
}

// NewKafkaNotifier creates a Kafka sink
func NewKafkaNotifier(publisher kafka.EventPublisher, app App, m *metrics.Metrics, logger *logging.Logger) *KafkaNotifier {
	return &KafkaNotifier{
		publisher: publisher,
		factory:   cloudevents.NewEventFactory(cloudevents.SourceProxy),
		topic:     kafka.Topics.TelemetryEvents,
		app:       app,
		metrics:   m,
		logger:    logger.WithComponent("telemetry-kafka"),
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event domain.Event) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	ce := n.factory.CreateTelemetryEvent(event.Org, event.CorrelationID, cloudevents.TelemetryData{
		EventName:  event.Name,
		AppName:    n.app.Name,
		AppVersion: n.app.Version,
		Metadata:   event.Metadata,
	})
	if !event.At.IsZero() {
		ce.Time = event.At.UTC()
	}

	err := n.publisher.PublishEvent(ctx, n.topic, ce)
	if n.metrics != nil {
		n.metrics.RecordTelemetry("kafka", err == nil)
	}
	if err != nil {
		n.logger.Debug("Telemetry publish failed", "event", event.Name, "error", err.Error())
	}
}
