// internal/repository/postgres/auth_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crm-service/internal/domain/auth"
	xerrors "crm-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

type AuthRepository struct {
	db *pgxpool.Pool
}

func NewAuthRepository(db *pgxpool.Pool) *AuthRepository {
	return &AuthRepository{db: db}
}

// ========== Identity Methods ==========

const identityColumns = `id, email, status, last_login, failed_login_attempts, locked_until, created_at, updated_at`

func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var identity auth.Identity
	err := row.Scan(
		&identity.ID, &identity.Email, &identity.Status, &identity.LastLogin,
		&identity.FailedLoginAttempts, &identity.LockedUntil,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// FindIdentityByEmail retrieves an identity by email, case-insensitively
func (r *AuthRepository) FindIdentityByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM auth_identities WHERE LOWER(email) = LOWER($1)`

	identity, err := scanIdentity(r.db.QueryRow(ctx, query, email))
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	return identity, err
}

// FindIdentityByID retrieves an identity by ID
func (r *AuthRepository) FindIdentityByID(ctx context.Context, id int64) (*auth.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM auth_identities WHERE id = $1`

	identity, err := scanIdentity(r.db.QueryRow(ctx, query, id))
	if err != nil && !errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}
	return identity, err
}

// CreateIdentity inserts a new staff identity
func (r *AuthRepository) CreateIdentity(ctx context.Context, identity *auth.Identity) error {
	query := `
		INSERT INTO auth_identities (email, status)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, identity.Email, identity.Status).
		Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

// UpdateIdentityLastLogin stamps a successful login and clears any lockout
func (r *AuthRepository) UpdateIdentityLastLogin(ctx context.Context, id int64) error {
	query := `
		UPDATE auth_identities
		SET last_login = $1, failed_login_attempts = 0, locked_until = NULL, updated_at = $1
		WHERE id = $2
	`
	_, err := r.db.Exec(ctx, query, time.Now(), id)
	return err
}

// IncrementFailedLoginAttempts locks the identity after the fifth consecutive failure
func (r *AuthRepository) IncrementFailedLoginAttempts(ctx context.Context, id int64, lockDuration time.Duration) error {
	query := `
		UPDATE auth_identities
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE
		        WHEN failed_login_attempts + 1 >= 5 THEN $1
		        ELSE NULL
		    END
		WHERE id = $2
	`
	_, err := r.db.Exec(ctx, query, time.Now().Add(lockDuration), id)
	return err
}

// ========== Provider Methods ==========

// FindProviderByIdentityAndType finds the credential row of a given provider
func (r *AuthRepository) FindProviderByIdentityAndType(ctx context.Context, identityID int64, providerType string) (*auth.Provider, error) {
	query := `
		SELECT id, identity_id, provider, password_hash, created_at, updated_at
		FROM auth_providers
		WHERE identity_id = $1 AND provider = $2
	`

	var p auth.Provider
	err := r.db.QueryRow(ctx, query, identityID, providerType).Scan(
		&p.ID, &p.IdentityID, &p.Provider, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find provider: %w", err)
	}
	return &p, nil
}

// CreateProvider stores a credential for an identity
func (r *AuthRepository) CreateProvider(ctx context.Context, provider *auth.Provider) error {
	query := `
		INSERT INTO auth_providers (identity_id, provider, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, provider.IdentityID, provider.Provider, provider.PasswordHash).
		Scan(&provider.ID, &provider.CreatedAt, &provider.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	return nil
}

// ========== Session Methods ==========

// CreateSession records a login session keyed by the token's jti
func (r *AuthRepository) CreateSession(ctx context.Context, session *auth.Session) error {
	query := `
		INSERT INTO auth_sessions (identity_id, session_token, ip_address, user_agent, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, login_at, last_activity_at
	`
	if session.Status == "" {
		session.Status = "active"
	}
	err := r.db.QueryRow(ctx, query,
		session.IdentityID, session.SessionToken, session.IPAddress, session.UserAgent,
		session.Status, session.ExpiresAt,
	).Scan(&session.ID, &session.LoginAt, &session.LastActivityAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindSessionByToken looks a session up by its token id
func (r *AuthRepository) FindSessionByToken(ctx context.Context, token string) (*auth.Session, error) {
	query := `
		SELECT id, identity_id, session_token, ip_address, user_agent, status,
		       login_at, last_activity_at, expires_at, logout_at
		FROM auth_sessions
		WHERE session_token = $1
	`

	var s auth.Session
	err := r.db.QueryRow(ctx, query, token).Scan(
		&s.ID, &s.IdentityID, &s.SessionToken, &s.IPAddress, &s.UserAgent, &s.Status,
		&s.LoginAt, &s.LastActivityAt, &s.ExpiresAt, &s.LogoutAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &s, nil
}

func (r *AuthRepository) UpdateSessionActivity(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE auth_sessions SET last_activity_at = NOW() WHERE id = $1`, id)
	return err
}

// InvalidateSession marks a session as revoked
func (r *AuthRepository) InvalidateSession(ctx context.Context, id int64) error {
	query := `
		UPDATE auth_sessions
		SET status = 'revoked', logout_at = NOW()
		WHERE id = $1 AND status = 'active'
	`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// ========== Profile Methods ==========

func (r *AuthRepository) GetUserProfile(ctx context.Context, identityID int64) (*auth.UserProfile, error) {
	query := `
		SELECT id, identity_id, full_name, employee_id, created_at, updated_at
		FROM user_profiles
		WHERE identity_id = $1
	`

	var p auth.UserProfile
	err := r.db.QueryRow(ctx, query, identityID).Scan(
		&p.ID, &p.IdentityID, &p.FullName, &p.EmployeeID, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

func (r *AuthRepository) CreateUserProfile(ctx context.Context, profile *auth.UserProfile) error {
	query := `
		INSERT INTO user_profiles (identity_id, full_name, employee_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, profile.IdentityID, profile.FullName, profile.EmployeeID).
		Scan(&profile.ID, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *AuthRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM auth_identities WHERE LOWER(email) = LOWER($1))`
	err := r.db.QueryRow(ctx, query, email).Scan(&exists)
	return exists, err
}

// ========== Role Management ==========

// GetUserRoles returns the role names granted to an identity
func (r *AuthRepository) GetUserRoles(ctx context.Context, identityID int64) ([]string, error) {
	query := `
		SELECT COALESCE(array_agg(r.name ORDER BY r.name), '{}')
		FROM auth_identity_roles ir
		JOIN auth_roles r ON ir.role_id = r.id
		WHERE ir.identity_id = $1
	`

	var roles pq.StringArray
	if err := r.db.QueryRow(ctx, query, identityID).Scan(&roles); err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	return roles, nil
}

// GetUserPermissions returns the permissions reachable through the identity's roles
func (r *AuthRepository) GetUserPermissions(ctx context.Context, identityID int64) ([]string, error) {
	query := `
		SELECT COALESCE(array_agg(DISTINCT p.name), '{}')
		FROM auth_identity_roles ir
		JOIN auth_role_permissions rp ON ir.role_id = rp.role_id
		JOIN auth_permissions p ON p.id = rp.permission_id
		WHERE ir.identity_id = $1
	`

	var permissions pq.StringArray
	if err := r.db.QueryRow(ctx, query, identityID).Scan(&permissions); err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}
	return permissions, nil
}

// AssignRoleByName grants a seeded role to an identity
func (r *AuthRepository) AssignRoleByName(ctx context.Context, identityID int64, roleName string) error {
	query := `
		INSERT INTO auth_identity_roles (identity_id, role_id)
		SELECT $1, id FROM auth_roles WHERE name = $2
		ON CONFLICT (identity_id, role_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, identityID, roleName)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM auth_roles WHERE name = $1)`, roleName).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check role: %w", err)
		}
		if !exists {
			return xerrors.ErrNotFound
		}
	}
	return nil
}

// SuperAdminExists reports whether any identity holds the super_admin role
func (r *AuthRepository) SuperAdminExists(ctx context.Context) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM auth_identity_roles ir
			JOIN auth_roles r ON r.id = ir.role_id
			WHERE r.name = $1
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, auth.RoleSuperAdmin).Scan(&exists)
	return exists, err
}
