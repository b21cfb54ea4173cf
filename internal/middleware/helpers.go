// internal/middleware/helpers.go
package middleware

import (
	"slices"
	"strings"

	"crm-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// GetIdentityID returns the authenticated staff identity.
func GetIdentityID(c *gin.Context) (int64, bool) {
	identityID, exists := c.Get(ctxIdentityID)
	if !exists {
		return 0, false
	}

	id, ok := identityID.(int64)
	return id, ok
}

// GetEmployeeID returns the employee the requester acts as; 0 when unlinked.
func GetEmployeeID(c *gin.Context) int64 {
	v, _ := c.Get(ctxEmployeeID)
	id, _ := v.(int64)
	return id
}

func GetDisplayName(c *gin.Context) string {
	return c.GetString(ctxDisplayName)
}

func GetJTI(c *gin.Context) (string, bool) {
	jti, exists := c.Get(ctxJTI)
	if !exists {
		return "", false
	}

	jtiStr, ok := jti.(string)
	return jtiStr, ok
}

// GetClaims returns the verified token claims.
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(ctxClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

// MustGetIdentityID gets identity ID from context or panics
func MustGetIdentityID(c *gin.Context) int64 {
	identityID, exists := GetIdentityID(c)
	if !exists {
		panic("identity_id not found in context")
	}
	return identityID
}

func GetPermissions(c *gin.Context) []string {
	permissions, exists := c.Get(ctxPermissions)
	if !exists {
		return []string{}
	}

	permissionsList, ok := permissions.([]string)
	if !ok {
		return []string{}
	}

	return permissionsList
}

func HasPermission(c *gin.Context, permission string) bool {
	return slices.Contains(GetPermissions(c), permission)
}

// IsAuthenticated checks if request is authenticated
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ctxIdentityID)
	return exists
}

// WantsJSON reports an async client: an XHR header or an Accept header
// that prefers JSON over HTML.
func WantsJSON(c *gin.Context) bool {
	if strings.EqualFold(c.GetHeader("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	if c.GetHeader("Accept") == "" {
		return false
	}
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}
