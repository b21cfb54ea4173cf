// internal/handlers/auth/auth_handler.go
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"crm-service/internal/domain/auth"
	"crm-service/internal/middleware"
	xerrors "crm-service/internal/pkg/errors"
	"crm-service/internal/pkg/response"
	authUsecase "crm-service/internal/service/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultLanding = "/sales/opportunity/home"

// Service is what the handler needs from the auth service.
type Service interface {
	Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error)
	Logout(ctx context.Context, identityID int64, jti string, expiresAt time.Time) error
	Me(ctx context.Context, identityID int64) (*auth.UserInfo, error)
}

type AuthHandler struct {
	authService Service
	logger      *zap.Logger
}

func NewAuthHandler(authService Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// ========== Login ==========

// LoginPage renders the staff login form.
func (h *AuthHandler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{
		"Title":  "Login",
		"Flash":  "",
		"Errors": map[string]string{},
		"Next":   c.Query("next"),
		"Email":  "",
		"Error":  "",
	})
}

// Login checks staff credentials. The token is returned in the body and
// also set as a cookie so the sales pages work in a browser.
func (h *AuthHandler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request", err)
		return
	}

	req.IPAddress = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	loginResp, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		status, message := loginFailure(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("login failed", zap.String("email", req.Email), zap.Error(err))
		} else {
			h.logger.Warn("login rejected",
				zap.String("email", req.Email),
				zap.String("ip", req.IPAddress),
				zap.Error(err),
			)
		}

		if !isBrowserForm(c) {
			response.Error(c, status, message, err)
			return
		}
		c.HTML(status, "login.html", gin.H{
			"Title":  "Login",
			"Flash":  "",
			"Errors": map[string]string{},
			"Next":   c.Query("next"),
			"Email":  req.Email,
			"Error":  message,
		})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, loginResp.AccessToken, loginResp.ExpiresIn, "/", "", c.Request.TLS != nil, true)

	h.logger.Info("user logged in",
		zap.Int64("identity_id", loginResp.User.IdentityID),
		zap.String("email", loginResp.User.Email),
	)

	if isBrowserForm(c) {
		c.Redirect(http.StatusFound, landing(c.Query("next")))
		return
	}
	response.Success(c, http.StatusOK, "login successful", loginResp)
}

func loginFailure(err error) (int, string) {
	switch {
	case errors.Is(err, xerrors.ErrRateLimited):
		return http.StatusTooManyRequests, "too many login attempts, try again later"
	case errors.Is(err, authUsecase.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, authUsecase.ErrAccountInactive), errors.Is(err, authUsecase.ErrAccountLocked):
		return http.StatusForbidden, "account is not available"
	default:
		return http.StatusInternalServerError, "login failed"
	}
}

// ========== Logout ==========

func (h *AuthHandler) Logout(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	claims, _ := middleware.GetClaims(c)

	var (
		jti       string
		expiresAt time.Time
	)
	if claims != nil {
		jti = claims.ID
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	}

	if err := h.authService.Logout(c.Request.Context(), identityID, jti, expiresAt); err != nil {
		h.logger.Error("logout failed",
			zap.Int64("identity_id", identityID),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "logout failed", err)
		return
	}

	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	response.Success(c, http.StatusOK, "logout successful", nil)
}

// ========== Profile ==========

// GetMe describes the logged in staff user.
func (h *AuthHandler) GetMe(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	user, err := h.authService.Me(c.Request.Context(), identityID)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to get user", err)
		return
	}

	response.Success(c, http.StatusOK, "user retrieved", user)
}

// isBrowserForm is a classic form post that expects a page back.
func isBrowserForm(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "application/x-www-form-urlencoded") && !middleware.WantsJSON(c)
}

func landing(next string) string {
	if strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.Contains(next, `\`) {
		return next
	}
	return defaultLanding
}
