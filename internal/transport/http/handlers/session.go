package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/security"
	"github.com/abelngansop-dot/studio-sub000/internal/transport/http/middleware"
)

// IdentitySession signs the process-wide service identity in and out.
type IdentitySession interface {
	SignIn(token string) (*domain.Identity, error)
	SignInNonBlocking(token string)
	SignOut()
}

// IdentityStateSource exposes the reactive identity state.
type IdentityStateSource interface {
	IdentityState() domain.IdentityState
}

var signInErrorCases = []ErrorCase{
	{Err: security.ErrInvalidToken, Status: http.StatusUnauthorized, Message: "invalid identity token"},
	{Err: security.ErrProviderClosed, Status: http.StatusServiceUnavailable, Message: "identity provider unavailable"},
}

// SessionHandler reports the caller's identity. The process-wide service identity, which
// background subscriptions run as, is exposed through the service routes.
type SessionHandler struct {
	session IdentitySession
	state   IdentityStateSource
}

// NewSessionHandler constructs a session handler.
func NewSessionHandler(session IdentitySession, state IdentityStateSource) *SessionHandler {
	return &SessionHandler{session: session, state: state}
}

// RegisterRoutes binds the caller identity route to the provided router group.
func (h *SessionHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("/identity", h.Identity)
}

// RegisterServiceRoutes binds the service identity routes. The group must be restricted to
// administrators.
func (h *SessionHandler) RegisterServiceRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("/identity", h.ServiceIdentity)
	r.POST("/session", h.SignIn)
	r.DELETE("/session", h.SignOut)
}

// Identity godoc
// @Summary Caller identity
// @Description Reports the identity verified from the request's bearer token; identity is null for visitors.
// @Tags Session
// @Produce json
// @Security BearerAuth
// @Success 200 {object} IdentityStateResponse
// @Router /api/v1/identity [get]
func (h *SessionHandler) Identity(c *gin.Context) {
	c.JSON(http.StatusOK, IdentityStateResponse{
		Identity: newIdentitySummary(middleware.RequestIdentity(c)),
	})
}

// ServiceIdentity godoc
// @Summary Service identity state
// @Description Reports the process-wide identity. is_loading stays true until the first auth transition.
// @Tags Service
// @Produce json
// @Security BearerAuth
// @Success 200 {object} IdentityStateResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/service/identity [get]
func (h *SessionHandler) ServiceIdentity(c *gin.Context) {
	if h.state == nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "identity unavailable"))
		return
	}

	state := h.state.IdentityState()
	resp := IdentityStateResponse{
		Identity:  newIdentitySummary(state.Identity),
		IsLoading: state.IsLoading,
	}
	if state.Err != nil {
		resp.Error = state.Err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// SignIn godoc
// @Summary Sign the service identity in
// @Tags Service
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SignInRequest true "Signed identity token"
// @Success 200 {object} IdentitySummary
// @Success 202 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/service/session [post]
func (h *SessionHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token is required"))
		return
	}

	if req.Background {
		h.session.SignInNonBlocking(req.Token)
		c.JSON(http.StatusAccepted, MessageResponse{Message: "sign-in scheduled"})
		return
	}

	identity, err := h.session.SignIn(req.Token)
	if err != nil {
		RespondWithMappedError(c, err, signInErrorCases, http.StatusInternalServerError, "sign-in failed")
		return
	}

	c.JSON(http.StatusOK, newIdentitySummary(identity))
}

// SignOut godoc
// @Summary Sign the service identity out
// @Tags Service
// @Security BearerAuth
// @Success 204
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/v1/service/session [delete]
func (h *SessionHandler) SignOut(c *gin.Context) {
	h.session.SignOut()
	c.Status(http.StatusNoContent)
}
