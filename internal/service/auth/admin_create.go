// internal/service/auth/admin_create.go
package auth

import (
	"context"
	"database/sql"
	"fmt"

	"crm-service/internal/domain/auth"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// EnsureSuperAdminExists creates the first admin on startup. The admin gets
// an employee record of its own so leads can be assigned to it.
func (s *AuthService) EnsureSuperAdminExists(ctx context.Context, email, password, fullName string) error {
	exists, err := s.authRepo.SuperAdminExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to check super admin existence: %w", err)
	}
	if exists {
		s.logger.Info("super admin already exists, skipping creation")
		return nil
	}

	if email == "" || password == "" || fullName == "" {
		return fmt.Errorf("super admin email, password, and name must be provided via environment variables")
	}

	emailExists, err := s.authRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if emailExists {
		return fmt.Errorf("email %s already exists but super admin role not assigned", email)
	}

	s.logger.Info("creating super admin account", zap.String("email", email))

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	identity := &auth.Identity{
		Email:  sql.NullString{String: email, Valid: true},
		Status: "active",
	}
	if err := s.authRepo.CreateIdentity(ctx, identity); err != nil {
		return fmt.Errorf("failed to create identity: %w", err)
	}

	provider := &auth.Provider{
		IdentityID:   identity.ID,
		Provider:     providerLocal,
		PasswordHash: sql.NullString{String: string(hashedPassword), Valid: true},
	}
	if err := s.authRepo.CreateProvider(ctx, provider); err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	employee := &auth.Employee{Name: fullName}
	if err := s.employees.CreateEmployee(ctx, employee); err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}

	profile := &auth.UserProfile{
		IdentityID: identity.ID,
		FullName:   sql.NullString{String: fullName, Valid: true},
		EmployeeID: sql.NullInt64{Int64: employee.ID, Valid: true},
	}
	if err := s.authRepo.CreateUserProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	if err := s.authRepo.AssignRoleByName(ctx, identity.ID, auth.RoleSuperAdmin); err != nil {
		return fmt.Errorf("failed to assign super admin role: %w", err)
	}

	s.logger.Info("super admin created successfully",
		zap.String("email", email),
		zap.Int64("identity_id", identity.ID),
		zap.Int64("employee_id", employee.ID),
	)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
