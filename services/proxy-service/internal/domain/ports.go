package domain

import (
	"context"
	"time"
)

// VendorAPI executes calls against the vendor REST API. The returned body is
// the decoded JSON document (numbers as json.Number), or nil when empty.
type VendorAPI interface {
	Call(ctx context.Context, creds Credentials, req VendorRequest) (any, error)
}

// TokenIssuer obtains a vendor access token for an organization
type TokenIssuer interface {
	Token(ctx context.Context, org string) (string, error)
}

// Event is one usage telemetry record
type Event struct {
	Name          string
	Org           string
	CorrelationID string
	Metadata      map[string]any
	At            time.Time
}

// Notifier delivers telemetry. Delivery is best effort: implementations log
// and drop failures.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// AuditEntry records one proxy action. Tokens and payloads are never kept.
type AuditEntry struct {
	RequestID  string    `bson:"requestId" json:"requestId"`
	Action     string    `bson:"action" json:"action"`
	Org        string    `bson:"org,omitempty" json:"org,omitempty"`
	Success    bool      `bson:"success" json:"success"`
	Error      string    `bson:"error,omitempty" json:"error,omitempty"`
	DurationMs int64     `bson:"durationMs" json:"durationMs"`
	At         time.Time `bson:"at" json:"at"`
}

// AuditRepository persists audit entries
type AuditRepository interface {
	Record(ctx context.Context, entry *AuditEntry) error
}
