package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/scp-mobile/platform/shared/pkg/errors"
	"github.com/scp-mobile/platform/shared/pkg/logging"
	"github.com/scp-mobile/platform/shared/pkg/metrics"

	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
)

const auditTimeout = 2 * time.Second

// authFailedMessage is shown to the client; the cause is only logged
const authFailedMessage = "Authentication failed. Check the proxy logs for details."

// ProxyService executes proxy actions against the vendor API
type ProxyService struct {
	vendor   domain.VendorAPI
	auth     domain.TokenIssuer
	notifier domain.Notifier
	audit    domain.AuditRepository
	metrics  *metrics.Metrics
	logger   *logging.Logger
}

// NewProxyService creates a ProxyService. A nil audit repository discards
// entries.
func NewProxyService(
	vendor domain.VendorAPI,
	auth domain.TokenIssuer,
	notifier domain.Notifier,
	audit domain.AuditRepository,
	m *metrics.Metrics,
	logger *logging.Logger,
) *ProxyService {
	if audit == nil {
		audit = NopAuditRepository{}
	}
	return &ProxyService{
		vendor:   vendor,
		auth:     auth,
		notifier: notifier,
		audit:    audit,
		metrics:  m,
		logger:   logger.WithComponent("proxy-service"),
	}
}

// Execute runs one action. Every outcome is audited; the error, if any,
// is reported to the caller as {success:false}.
func (s *ProxyService) Execute(ctx context.Context, cmd *Command) (Payload, error) {
	start := time.Now()
	payload, err := s.dispatch(ctx, cmd)

	if s.metrics != nil {
		s.metrics.RecordAction(cmd.Request.Action, err == nil)
	}
	s.record(ctx, cmd, err, time.Since(start))
	return payload, err
}

func (s *ProxyService) dispatch(ctx context.Context, cmd *Command) (Payload, error) {
	req := cmd.Request
	switch domain.Action(req.Action) {
	case domain.ActionAppOpened:
		return Payload{}, nil
	case domain.ActionTrack:
		s.track(ctx, cmd)
		return Payload{}, nil
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if domain.Action(req.Action) == domain.ActionAuth {
		return s.authenticate(ctx, cmd)
	}

	vendorReq, err := domain.BuildVendorRequest(req)
	if err != nil {
		return nil, err
	}
	body, err := s.vendor.Call(ctx, domain.Credentials{Token: cmd.Token, Org: req.Org}, vendorReq)
	if err != nil {
		s.notifyUploadFailure(ctx, cmd, err)
		return nil, err
	}
	return shape(vendorReq, body), nil
}

func (s *ProxyService) authenticate(ctx context.Context, cmd *Command) (Payload, error) {
	org := cmd.Request.Org
	token, err := s.auth.Token(ctx, org)
	if err != nil {
		s.logger.WithError(err).Warn("Authentication failed", "org", org)
		s.notify(ctx, cmd, "auth_failed", map[string]any{"org": org})
		return nil, errors.ErrUnauthorized(authFailedMessage).Wrap(err)
	}
	s.notify(ctx, cmd, "auth_success", map[string]any{"org": org})
	return Payload{"token": token}, nil
}

// track forwards a client event without holding up the reply
func (s *ProxyService) track(ctx context.Context, cmd *Command) {
	name := cmd.Request.TrackedEvent()
	if name == "" {
		return
	}
	go s.notify(context.WithoutCancel(ctx), cmd, name, cmd.Request.Metadata)
}

func (s *ProxyService) notify(ctx context.Context, cmd *Command, name string, metadata map[string]any) {
	s.notifier.Notify(ctx, domain.Event{
		Name:          name,
		Org:           cmd.Request.Org,
		CorrelationID: cmd.RequestID,
		Metadata:      metadata,
		At:            time.Now().UTC(),
	})
}

func (s *ProxyService) notifyUploadFailure(ctx context.Context, cmd *Command, err error) {
	var name string
	switch domain.Action(cmd.Request.Action) {
	case domain.ActionCreateLocation:
		name = "upload_locations_failed"
	case domain.ActionSaveForecast:
		name = "upload_forecast_failed"
	default:
		return
	}
	s.notify(ctx, cmd, name, map[string]any{"org": cmd.Request.Org, "error": errors.Message(err)})
}

func (s *ProxyService) record(ctx context.Context, cmd *Command, err error, duration time.Duration) {
	entry := &domain.AuditEntry{
		RequestID:  cmd.RequestID,
		Action:     cmd.Request.Action,
		Org:        cmd.Request.Org,
		Success:    err == nil,
		DurationMs: duration.Milliseconds(),
		At:         time.Now().UTC(),
	}
	if err != nil {
		entry.Error = errors.Message(err)
	}

	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	start := time.Now()
	auditErr := s.audit.Record(auditCtx, entry)
	if s.metrics != nil {
		s.metrics.RecordAuditWrite(auditErr == nil, time.Since(start))
	}
	if auditErr != nil {
		s.logger.WithError(auditErr).Warn("Failed to record audit entry", "action", entry.Action)
	}
}

// shape turns a vendor body into the reply payload
func shape(req domain.VendorRequest, body any) Payload {
	switch req.Shape {
	case domain.ShapeList:
		return Payload{req.Reply: extract(body, req.Reply)}
	case domain.ShapeImageMap:
		return Payload{req.Reply: imageMap(extract(body, "items"))}
	case domain.ShapeCodes:
		return Payload{req.Reply: conditionCodes(extract(body, "codes"))}
	}
	return Payload{req.Reply: body}
}

// extract returns `data`, then `key`, then the whole body
func extract(body any, key string) any {
	if body == nil {
		return []any{}
	}
	if m, ok := body.(map[string]any); ok {
		if data, ok := m["data"]; ok && data != nil {
			return data
		}
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}
	return body
}

func rows(v any) []map[string]any {
	list, _ := v.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func imageMap(v any) map[string]string {
	images := make(map[string]string)
	for _, row := range rows(v) {
		id, uri := text(row["ItemId"]), text(row["SmallImageURI"])
		if id != "" && uri != "" {
			images[id] = uri
		}
	}
	return images
}

func conditionCodes(v any) []ConditionCode {
	var codes []ConditionCode
	for _, row := range rows(v) {
		codes = append(codes, ConditionCode{Code: text(row["ConditionCodeId"]), Desc: text(row["Description"])})
	}
	sort.SliceStable(codes, func(i, j int) bool { return codes[i].Code < codes[j].Code })
	return append([]ConditionCode{{Code: "", Desc: "Select Code"}}, codes...)
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	}
	return fmt.Sprint(v)
}

// NopAuditRepository discards entries
type NopAuditRepository struct{}

func (NopAuditRepository) Record(context.Context, *domain.AuditEntry) error { return nil }
