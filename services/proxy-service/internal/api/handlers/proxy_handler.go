package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scp-mobile/platform/shared/pkg/errors"
	"github.com/scp-mobile/platform/shared/pkg/logging"
	"github.com/scp-mobile/platform/shared/pkg/middleware"

	"github.com/scp-mobile/platform/services/proxy-service/internal/application"
	"github.com/scp-mobile/platform/services/proxy-service/internal/domain"
)

// ActionExecutor runs proxy actions
type ActionExecutor interface {
	Execute(ctx context.Context, cmd *application.Command) (application.Payload, error)
}

// ProxyHandler serves the single action endpoint
type ProxyHandler struct {
	service ActionExecutor
	logger  *logging.Logger
}

// NewProxyHandler creates a new ProxyHandler
func NewProxyHandler(service ActionExecutor, logger *logging.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the proxy routes. Every method is routed here so
// that non-POST requests get the proxy's own 405 body.
func (h *ProxyHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.Any("/validate", h.Validate)
}

// Validate handles POST /api/validate
func (h *ProxyHandler) Validate(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		reject(c, errors.ErrMethodNotAllowed(c.Request.Method))
		return
	}

	var req domain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body"})
		return
	}

	action, ok := domain.LookupAction(req.Action)
	if !ok {
		reject(c, errors.ErrUnknownAction(req.Action))
		return
	}
	c.Set(middleware.ContextKeyAction, string(action))
	ctx := logging.ContextWithAction(logging.ContextWithOrg(c.Request.Context(), req.Org), string(action))
	middleware.AddSpanAttributes(c, map[string]string{"scp.action": string(action), "scp.org": req.Org})

	token := middleware.GetBearerToken(c)
	if action.RequiresToken() && token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No token"})
		return
	}

	if appErr := middleware.ValidateStruct(&req); appErr != nil {
		fail(c, validationMessage(appErr))
		return
	}

	payload, err := h.service.Execute(ctx, &application.Command{
		RequestID: middleware.GetRequestID(c),
		Token:     token,
		Request:   &req,
	})
	if err != nil {
		fail(c, errors.Message(err))
		return
	}

	reply := gin.H{"success": true}
	for k, v := range payload {
		reply[k] = v
	}
	c.JSON(http.StatusOK, reply)
}

// reject answers a request the proxy will not dispatch
func reject(c *gin.Context, appErr *errors.AppError) {
	c.JSON(appErr.HTTPStatus, gin.H{"error": appErr.Message})
}

// fail reports an action failure. These are business outcomes, so the
// status stays 200.
func fail(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "error": message})
}

// validationMessage renders field errors as "field message; field message"
func validationMessage(appErr *errors.AppError) string {
	if len(appErr.Details) == 0 {
		return appErr.Message
	}
	fields := make([]string, 0, len(appErr.Details))
	for field := range appErr.Details {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + " " + appErr.Details[field]
	}
	return strings.Join(parts, "; ")
}
