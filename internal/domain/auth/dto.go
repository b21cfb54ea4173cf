// internal/domain/auth/dto.go
package auth

import "time"

// LoginRequest for staff login
type LoginRequest struct {
	Email     string `json:"email" form:"email" binding:"required,email"`
	Password  string `json:"password" form:"password" binding:"required"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse successful login response
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int       `json:"expires_in"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo minimal user information
type UserInfo struct {
	IdentityID  int64    `json:"identity_id"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	EmployeeID  int64    `json:"employee_id,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}
