package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// IdentitySummary is the public view of a signed-in identity.
type IdentitySummary struct {
	UID         string   `json:"uid"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Anonymous   bool     `json:"anonymous"`
}

// IdentityStateResponse mirrors domain.IdentityState.
type IdentityStateResponse struct {
	Identity  *IdentitySummary `json:"identity"`
	IsLoading bool             `json:"is_loading"`
	Error     string           `json:"error,omitempty"`
}

// SignInRequest carries a signed identity token. With background set the sign-in is applied
// asynchronously and the response does not wait for verification.
type SignInRequest struct {
	Token      string `json:"token" binding:"required"`
	Background bool   `json:"background"`
}

// WriteRequest is the body of create, set and update calls.
type WriteRequest struct {
	Data  map[string]any `json:"data" binding:"required"`
	Merge bool           `json:"merge"`
}

// CreatedResponse identifies a newly created document.
type CreatedResponse struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// AcceptedResponse acknowledges a write that continues in the background.
type AcceptedResponse struct {
	Path      string `json:"path"`
	Operation string `json:"operation"`
}

// ListResponse wraps a query result.
type ListResponse struct {
	Items []map[string]any `json:"items"`
	Count int              `json:"count"`
}

// NotificationsResponse lists recent toasts, newest first.
type NotificationsResponse struct {
	Notifications []domain.Toast `json:"notifications"`
}

func newIdentitySummary(identity *domain.Identity) *IdentitySummary {
	if identity == nil {
		return nil
	}
	return &IdentitySummary{
		UID:         identity.UID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Roles:       append([]string(nil), identity.Roles...),
		Anonymous:   identity.Anonymous,
	}
}

func recordsToItems(records []domain.Record) []map[string]any {
	items := make([]map[string]any, 0, len(records))
	for _, record := range records {
		items = append(items, record.Data())
	}
	return items
}
