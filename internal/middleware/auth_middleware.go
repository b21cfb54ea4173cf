// internal/middleware/auth_middleware.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"crm-service/internal/pkg/jwt"
	"crm-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// PermissionSalesAdmin guards every triage page.
const PermissionSalesAdmin = "sales.admin"

// AccessTokenCookie carries the token for browser sessions.
const AccessTokenCookie = "access_token"

// TokenValidator checks an access token and returns its claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.Claims, error)
}

type AuthMiddleware struct {
	validator TokenValidator
}

func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
	}
}

// Auth rejects requests without a valid access token.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// RequirePermission needs at least one of the permissions.
// MUST be used after Auth().
func (m *AuthMiddleware) RequirePermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userPermissions, exists := c.Get(ctxPermissions)
		if !exists {
			response.Error(c, http.StatusForbidden, "no permissions found - authentication required", nil)
			return
		}

		userPermissionsList, ok := userPermissions.([]string)
		if !ok {
			response.Error(c, http.StatusInternalServerError, "invalid permissions format", nil)
			return
		}

		for _, userPerm := range userPermissionsList {
			for _, requiredPerm := range permissions {
				if userPerm == requiredPerm {
					c.Next()
					return
				}
			}
		}

		err := errors.New("user does not have required permission")
		response.Error(c, http.StatusForbidden, "insufficient permissions", err, map[string]interface{}{
			"required_permissions": permissions,
		})
	}
}

// AdminOnly is the guard for the sales admin pages (Auth + sales.admin).
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequirePermission(PermissionSalesAdmin),
	}
}

// OptionalAuth loads the requester when a valid token is present and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := m.validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

const (
	ctxIdentityID  = "identity_id"
	ctxEmployeeID  = "employee_id"
	ctxDisplayName = "display_name"
	ctxJTI         = "jti"
	ctxRoles       = "roles"
	ctxPermissions = "permissions"
	ctxClaims      = "claims"
)

func setClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(ctxIdentityID, claims.IdentityID)
	c.Set(ctxEmployeeID, claims.EmployeeID)
	c.Set(ctxDisplayName, claims.DisplayName)
	c.Set(ctxJTI, claims.ID)
	c.Set(ctxRoles, claims.Roles)
	c.Set(ctxPermissions, claims.Permissions)
	c.Set(ctxClaims, claims)
}

// extractToken reads the Bearer header, then the session cookie, then ?token=.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}

	// websocket clients cannot set headers from the browser
	return c.Query("token")
}
