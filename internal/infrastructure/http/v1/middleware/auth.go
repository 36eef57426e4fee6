package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/tenant"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth middleware validates JWT tokens and populates user context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		user, err := validator.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token"))
			c.Abort()
			return
		}

		// Enforce tenant match: X-Tenant-ID resolved by TenantDB must match token tenant.
		resolvedTenantID := tenant.GetTenantID(c.Request.Context())
		if resolvedTenantID != "" && user.TenantID != "" && resolvedTenantID != user.TenantID {
			_ = c.Error(
				apperror.NewForbidden("tenant mismatch").
					WithDetail("header_tenant_id", resolvedTenantID).
					WithDetail("token_tenant_id", user.TenantID),
			)
			c.Abort()
			return
		}

		ctx := appctx.WithUser(c.Request.Context(), user)
		c.Request = c.Request.WithContext(ctx)

		c.Set("user_id", user.UserID)
		c.Set("role", user.Role)

		c.Next()
	}
}

// RequireRole middleware checks the caller has at least the given role.
// Role order: viewer < admin < owner.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if appctx.GetUser(ctx) == nil {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		if !appctx.HasRole(ctx, role) {
			_ = c.Error(
				apperror.NewForbidden("insufficient role").
					WithDetail("required_role", role),
			)
			c.Abort()
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
