package cloudevents

import (
	"time"

	"github.com/google/uuid"
)

// EventFactory creates CloudEvents for one source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// CreateEvent creates a new Event with a fresh ID and timestamp
func (f *EventFactory) CreateEvent(eventType, subject string, data interface{}) *Event {
	return &Event{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            time.Now().UTC(),
		DataContentType: "application/json",
		Data:            data,
	}
}

// CreateTelemetryEvent wraps a usage event. The subject is the event name so
// that all occurrences of one event land on the same partition.
func (f *EventFactory) CreateTelemetryEvent(org, correlationID string, data TelemetryData) *Event {
	event := f.CreateEvent(TelemetryEventType, data.EventName, data)
	event.Org = org
	event.CorrelationID = correlationID
	return event
}
