package application

import "github.com/scp-mobile/platform/services/proxy-service/internal/domain"

// Command is one validated proxy invocation
type Command struct {
	RequestID string
	Token     string
	Request   *domain.Request
}

// Payload is merged into the {success:true} reply
type Payload map[string]any

// ConditionCode is one option of the condition code picker
type ConditionCode struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}
