// internal/domain/auth/entity.go
package auth

import (
	"database/sql"
	"time"
)

// Identity is a staff login account.
type Identity struct {
	ID                  int64          `json:"id" db:"id"`
	Email               sql.NullString `json:"email" db:"email"`
	Status              string         `json:"status" db:"status"` // active, inactive, suspended
	LastLogin           sql.NullTime   `json:"last_login" db:"last_login"`
	FailedLoginAttempts int            `json:"-" db:"failed_login_attempts"`
	LockedUntil         sql.NullTime   `json:"-" db:"locked_until"`
	CreatedAt           time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at" db:"updated_at"`
}

// Provider holds the local password hash for an identity.
type Provider struct {
	ID           int64          `json:"id" db:"id"`
	IdentityID   int64          `json:"identity_id" db:"identity_id"`
	Provider     string         `json:"provider" db:"provider"`
	PasswordHash sql.NullString `json:"-" db:"password_hash"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// Session represents a user session
type Session struct {
	ID             int64          `json:"id" db:"id"`
	IdentityID     int64          `json:"identity_id" db:"identity_id"`
	SessionToken   string         `json:"-" db:"session_token"`
	IPAddress      sql.NullString `json:"ip_address" db:"ip_address"`
	UserAgent      sql.NullString `json:"user_agent" db:"user_agent"`
	Status         string         `json:"status" db:"status"` // active, revoked
	LoginAt        time.Time      `json:"login_at" db:"login_at"`
	LastActivityAt time.Time      `json:"last_activity_at" db:"last_activity_at"`
	ExpiresAt      time.Time      `json:"expires_at" db:"expires_at"`
	LogoutAt       sql.NullTime   `json:"logout_at" db:"logout_at"`
}

// UserProfile links an identity to the employee it acts as.
type UserProfile struct {
	ID         int64          `json:"id" db:"id"`
	IdentityID int64          `json:"identity_id" db:"identity_id"`
	FullName   sql.NullString `json:"full_name" db:"full_name"`
	EmployeeID sql.NullInt64  `json:"employee_id" db:"employee_id"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

// Employee is a staff member leads can be assigned to.
type Employee struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// StaffUser is the directory view of a staff identity.
type StaffUser struct {
	IdentityID int64  `json:"identity_id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	EmployeeID *int64 `json:"employee_id,omitempty"`
}

// DisplayName is what notices and pages show for the user.
func (u *StaffUser) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

const (
	RoleSuperAdmin       = "super_admin"
	RoleSales            = "sales"
	PermissionSalesAdmin = "sales.admin"
)
