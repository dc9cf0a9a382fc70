package proxyclient

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const redacted = "[REDACTED]"

// sensitiveKeys are JSON members never kept in the log
var sensitiveKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"authorization": true,
	"password":      true,
}

// Exchange is one request/response pair sent through the proxy
type Exchange struct {
	At         time.Time     `json:"at"`
	Action     string        `json:"action"`
	Request    string        `json:"request"`
	StatusCode int           `json:"statusCode"`
	Response   string        `json:"response,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// RequestLog is a bounded in-memory ring of exchanges
type RequestLog struct {
	mu       sync.Mutex
	entries  []Exchange
	next     int
	full     bool
	capacity int
}

// NewRequestLog creates a log keeping the last capacity exchanges
func NewRequestLog(capacity int) *RequestLog {
	return &RequestLog{
		entries:  make([]Exchange, capacity),
		capacity: capacity,
	}
}

// Record stores one exchange with credentials removed
func (l *RequestLog) Record(action string, request []byte, status int, response []byte, err error, duration time.Duration) {
	e := Exchange{
		At:         time.Now().UTC(),
		Action:     action,
		Request:    redact(request),
		StatusCode: status,
		Response:   redact(response),
		Duration:   duration,
	}
	if err != nil {
		e.Error = err.Error()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[l.next] = e
	l.next = (l.next + 1) % l.capacity
	if l.next == 0 {
		l.full = true
	}
}

// Entries returns the exchanges oldest first
func (l *RequestLog) Entries() []Exchange {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.full {
		out := make([]Exchange, l.next)
		copy(out, l.entries[:l.next])
		return out
	}
	out := make([]Exchange, 0, l.capacity)
	out = append(out, l.entries[l.next:]...)
	out = append(out, l.entries[:l.next]...)
	return out
}

// Len returns the number of exchanges held
func (l *RequestLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.full {
		return l.capacity
	}
	return l.next
}

// WriteTo prints the log in the console format
func (l *RequestLog) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, e := range l.Entries() {
		status := fmt.Sprintf("%d", e.StatusCode)
		if e.Error != "" {
			status = "error: " + e.Error
		}
		n, err := fmt.Fprintf(w, "=== %s %s (%s, %dms)\n>>> %s\n<<< %s\n",
			e.At.Format(time.RFC3339), e.Action, status, e.Duration.Milliseconds(), e.Request, e.Response)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// redact drops sensitive members from a JSON document. Non-JSON bodies are
// kept as they are.
func redact(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return string(body)
	}
	scrub(doc)
	out, err := json.Marshal(doc)
	if err != nil {
		return string(body)
	}
	return string(out)
}

func scrub(v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if sensitiveKeys[strings.ToLower(k)] {
				t[k] = redacted
				continue
			}
			scrub(child)
		}
	case []any:
		for _, child := range t {
			scrub(child)
		}
	}
}

