// internal/service/auth/auth.go
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-service/internal/domain/auth"
	xerrors "crm-service/internal/pkg/errors"
	"crm-service/internal/pkg/jwt"
	"crm-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	providerLocal   = "local"
	lockoutDuration = 30 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is not active")
	ErrAccountLocked      = errors.New("account is temporarily locked")
)

// Store is the identity data the auth service reads and writes.
type Store interface {
	FindIdentityByEmail(ctx context.Context, email string) (*auth.Identity, error)
	FindIdentityByID(ctx context.Context, id int64) (*auth.Identity, error)
	CreateIdentity(ctx context.Context, identity *auth.Identity) error
	UpdateIdentityLastLogin(ctx context.Context, id int64) error
	IncrementFailedLoginAttempts(ctx context.Context, id int64, lockDuration time.Duration) error
	FindProviderByIdentityAndType(ctx context.Context, identityID int64, providerType string) (*auth.Provider, error)
	CreateProvider(ctx context.Context, provider *auth.Provider) error
	CreateSession(ctx context.Context, s *auth.Session) error
	GetUserProfile(ctx context.Context, identityID int64) (*auth.UserProfile, error)
	CreateUserProfile(ctx context.Context, profile *auth.UserProfile) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetUserRoles(ctx context.Context, identityID int64) ([]string, error)
	GetUserPermissions(ctx context.Context, identityID int64) ([]string, error)
	AssignRoleByName(ctx context.Context, identityID int64, roleName string) error
	SuperAdminExists(ctx context.Context) (bool, error)
}

// EmployeeCreator makes the employee record a bootstrapped admin acts as.
type EmployeeCreator interface {
	CreateEmployee(ctx context.Context, e *auth.Employee) error
}

// LogoutNotifier closes live connections of a session that logged out.
type LogoutNotifier interface {
	ForceLogout(identityID int64, jti, reason string)
}

type AuthService struct {
	authRepo       Store
	employees      EmployeeCreator
	jwtManager     *jwt.Manager
	sessionManager *session.Manager
	rateLimiter    *session.RateLimiter
	notifier       LogoutNotifier
	logger         *zap.Logger
}

func NewAuthService(
	authRepo Store,
	employees EmployeeCreator,
	jwtManager *jwt.Manager,
	sessionManager *session.Manager,
	rateLimiter *session.RateLimiter,
	notifier LogoutNotifier,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		authRepo:       authRepo,
		employees:      employees,
		jwtManager:     jwtManager,
		sessionManager: sessionManager,
		rateLimiter:    rateLimiter,
		notifier:       notifier,
		logger:         logger,
	}
}

// ========== Login / Logout ==========

// Login checks the password of a staff identity and opens a session.
func (s *AuthService) Login(ctx context.Context, req *auth.LoginRequest) (*auth.LoginResponse, error) {
	allowed, remaining, err := s.rateLimiter.CheckLoginAttempt(ctx, req.IPAddress, req.Email)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return nil, xerrors.ErrRateLimited
	}

	identity, err := s.authRepo.FindIdentityByEmail(ctx, req.Email)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if identity.Status != "active" {
		return nil, ErrAccountInactive
	}
	if identity.LockedUntil.Valid && identity.LockedUntil.Time.After(time.Now()) {
		return nil, fmt.Errorf("%w until %s", ErrAccountLocked, identity.LockedUntil.Time.Format(time.RFC3339))
	}

	provider, err := s.authRepo.FindProviderByIdentityAndType(ctx, identity.ID, providerLocal)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(provider.PasswordHash.String), []byte(req.Password)); err != nil {
		if err := s.authRepo.IncrementFailedLoginAttempts(ctx, identity.ID, lockoutDuration); err != nil {
			s.logger.Error("failed to record failed login", zap.Int64("identity_id", identity.ID), zap.Error(err))
		}
		s.logger.Warn("invalid password",
			zap.Int64("identity_id", identity.ID),
			zap.Int64("attempts_remaining", remaining),
		)
		return nil, ErrInvalidCredentials
	}

	if err := s.authRepo.UpdateIdentityLastLogin(ctx, identity.ID); err != nil {
		s.logger.Error("failed to update last login", zap.Error(err))
	}
	if err := s.rateLimiter.ResetLoginAttempts(ctx, req.IPAddress, req.Email); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}

	return s.openSession(ctx, identity, req.IPAddress, req.UserAgent)
}

func (s *AuthService) openSession(ctx context.Context, identity *auth.Identity, ipAddress, userAgent string) (*auth.LoginResponse, error) {
	roles, permissions, err := s.getUserRolesAndPermissions(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}

	var (
		fullName   string
		employeeID int64
	)
	profile, err := s.authRepo.GetUserProfile(ctx, identity.ID)
	switch {
	case err == nil:
		fullName = profile.FullName.String
		employeeID = profile.EmployeeID.Int64
	case !errors.Is(err, xerrors.ErrNotFound):
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	displayName := fullName
	if displayName == "" {
		displayName = identity.Email.String
	}

	accessToken, jti, err := s.jwtManager.Generator.GenerateAccessToken(jwt.Subject{
		IdentityID:  identity.ID,
		EmployeeID:  employeeID,
		DisplayName: displayName,
		Roles:       roles,
		Permissions: permissions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	now := time.Now()
	expiresAt := now.Add(s.jwtManager.Generator.Ttl)

	dbSession := &auth.Session{
		IdentityID:   identity.ID,
		SessionToken: jti,
		IPAddress:    nullString(ipAddress),
		UserAgent:    nullString(userAgent),
		Status:       "active",
		ExpiresAt:    expiresAt,
	}
	if err := s.authRepo.CreateSession(ctx, dbSession); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.sessionManager.CreateSession(ctx, &session.SessionData{
		JTI:            jti,
		IdentityID:     identity.ID,
		SessionID:      dbSession.ID,
		EmployeeID:     employeeID,
		Email:          identity.Email.String,
		Roles:          roles,
		Permissions:    permissions,
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		LoginAt:        now,
		LastActivityAt: now,
		ExpiresAt:      expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	s.logger.Info("staff logged in", zap.Int64("identity_id", identity.ID), zap.String("ip", ipAddress))

	return &auth.LoginResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.jwtManager.Generator.Ttl.Seconds()),
		ExpiresAt:   expiresAt,
		User: auth.UserInfo{
			IdentityID:  identity.ID,
			Email:       identity.Email.String,
			FullName:    fullName,
			EmployeeID:  employeeID,
			Roles:       roles,
			Permissions: permissions,
		},
	}, nil
}

// Logout ends the session behind jti and revokes the token.
func (s *AuthService) Logout(ctx context.Context, identityID int64, jti string, expiresAt time.Time) error {
	if err := s.sessionManager.InvalidateSession(ctx, identityID, jti); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = s.jwtManager.Generator.Ttl
	}
	if err := s.sessionManager.BlacklistToken(ctx, jti, ttl); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	if s.notifier != nil {
		s.notifier.ForceLogout(identityID, jti, "User logged out")
	}
	return nil
}

// ValidateToken verifies signature and claims, then checks the token was
// not revoked and its session is still open.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.VerifyAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrUnauthorized, err)
	}

	blacklisted, err := s.sessionManager.IsTokenBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if blacklisted {
		return nil, fmt.Errorf("%w: token has been revoked", xerrors.ErrUnauthorized)
	}

	if _, err := s.sessionManager.GetSession(ctx, claims.IdentityID, claims.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrSessionExpired, err)
	}

	return claims, nil
}

// Me describes the logged in staff user.
func (s *AuthService) Me(ctx context.Context, identityID int64) (*auth.UserInfo, error) {
	identity, err := s.authRepo.FindIdentityByID(ctx, identityID)
	if err != nil {
		return nil, err
	}

	roles, permissions, err := s.getUserRolesAndPermissions(ctx, identityID)
	if err != nil {
		return nil, err
	}

	info := &auth.UserInfo{
		IdentityID:  identity.ID,
		Email:       identity.Email.String,
		Roles:       roles,
		Permissions: permissions,
	}
	if profile, err := s.authRepo.GetUserProfile(ctx, identityID); err == nil {
		info.FullName = profile.FullName.String
		info.EmployeeID = profile.EmployeeID.Int64
	} else if !errors.Is(err, xerrors.ErrNotFound) {
		return nil, err
	}
	return info, nil
}

func (s *AuthService) getUserRolesAndPermissions(ctx context.Context, identityID int64) ([]string, []string, error) {
	roles, err := s.authRepo.GetUserRoles(ctx, identityID)
	if err != nil {
		return nil, nil, err
	}
	permissions, err := s.authRepo.GetUserPermissions(ctx, identityID)
	if err != nil {
		return nil, nil, err
	}
	return roles, permissions, nil
}
