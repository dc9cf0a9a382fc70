package cloudevents

import (
	"time"
)

// Event types for the usage telemetry stream
const (
	TelemetryEventType = "scp.telemetry.recorded"
)

// Source constants for event sources
const (
	SourceProxy = "/scp/proxy-service"
)

// Event represents a CloudEvents v1.0 compliant event
type Event struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	CorrelationID string `json:"scpcorrelationid,omitempty"`
	Org           string `json:"scporg,omitempty"`
}

// TelemetryData is the payload of a TelemetryEventType event
type TelemetryData struct {
	EventName  string         `json:"eventName"`
	AppName    string         `json:"appName"`
	AppVersion string         `json:"appVersion"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
