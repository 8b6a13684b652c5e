package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/security"
)

// IdentityKey is the gin context key holding the caller's verified *domain.Identity.
const IdentityKey = "identity"

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// TokenVerifier turns a bearer token into the identity it was issued for.
type TokenVerifier interface {
	ParseIdentityToken(raw string) (*domain.Identity, error)
}

// Authenticate verifies the bearer token of every request. A request without an Authorization
// header continues as a signed-out visitor; a malformed header or a token that fails
// verification is rejected.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		if !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: must start with 'Bearer'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		identity, err := verifier.ParseIdentityToken(token)
		if err != nil {
			if errors.Is(err, security.ErrInvalidToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid access token"))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "authentication failed"))
			return
		}

		c.Set(IdentityKey, identity)
		if reqCtx := GetRequestContext(c); reqCtx != nil {
			reqCtx.UID = identity.UID
		}

		c.Next()
	}
}

// RequireIdentity rejects requests that Authenticate did not attach an identity to. Anonymous
// identities pass unless they are disallowed.
func RequireIdentity(allowAnonymous bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "sign-in required"))
			return
		}
		if identity.Anonymous && !allowAnonymous {
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "anonymous sessions cannot use this endpoint"))
			return
		}

		c.Next()
	}
}

// RequireRole checks that the caller carries any of roles. It must run after RequireIdentity.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := GetIdentity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, newErrorResponse(c, "authentication required"))
			return
		}

		for _, role := range roles {
			if identity.HasRole(role) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "insufficient permissions"))
	}
}

// GetIdentity retrieves the identity stored by Authenticate.
func GetIdentity(c *gin.Context) (*domain.Identity, bool) {
	value, exists := c.Get(IdentityKey)
	if !exists {
		return nil, false
	}
	identity, ok := value.(*domain.Identity)
	return identity, ok && identity != nil
}

// RequestIdentity returns the caller's identity, nil for a signed-out visitor.
func RequestIdentity(c *gin.Context) *domain.Identity {
	identity, _ := GetIdentity(c)
	return identity
}
