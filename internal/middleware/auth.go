package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/its-ayanshaikh/telemedicine-backend/internal/model"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/auth"
	apperrors "github.com/its-ayanshaikh/telemedicine-backend/pkg/errors"
	"github.com/its-ayanshaikh/telemedicine-backend/pkg/httputil"
)

const (
	ContextPrincipal = "principal"
	ContextUserID    = "user_id"
)

// TokenValidator parses access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// RevocationChecker reports tokens revoked by logout or refresh.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type AuthMiddleware struct {
	tokens  TokenValidator
	revoked RevocationChecker
}

func NewAuthMiddleware(tokens TokenValidator, revoked RevocationChecker) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:  tokens,
		revoked: revoked,
	}
}

// Authenticate verifies the bearer token and stores the caller's
// model.Principal in the context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized("Authentication credentials were not provided", nil))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized("invalid authorization format", nil))
			return
		}

		claims, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			httputil.RespondWithError(c, apperrors.Unauthorized("Invalid or expired token", err))
			return
		}

		revoked, err := m.revoked.IsRevoked(c.Request.Context(), claims.ID)
		if err != nil {
			httputil.RespondWithError(c, apperrors.Internal(err))
			return
		}
		if revoked {
			httputil.RespondWithError(c, apperrors.Unauthorized("Token has been revoked", nil))
			return
		}

		principal := model.Principal{
			UserID:  claims.UserID,
			Role:    model.Role(claims.Role),
			TokenID: claims.ID,
		}
		if claims.ExpiresAt != nil {
			principal.ExpiresAt = claims.ExpiresAt.Time
		}

		c.Set(ContextPrincipal, principal)
		c.Set(ContextUserID, principal.UserID)
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed. It must run
// after Authenticate.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized("", nil))
			return
		}
		if !principal.Role.In(roles...) {
			httputil.RespondWithError(c, apperrors.Forbidden("You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the authenticated caller, if any.
func CurrentPrincipal(c *gin.Context) (model.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}
