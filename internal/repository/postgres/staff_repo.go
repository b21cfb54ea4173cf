// internal/repository/postgres/staff_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"crm-service/internal/domain/auth"
	xerrors "crm-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StaffRepository is the directory of staff identities and the employees
// they act as.
type StaffRepository struct {
	db *pgxpool.Pool
}

func NewStaffRepository(db *pgxpool.Pool) *StaffRepository {
	return &StaffRepository{db: db}
}

const staffSelect = `
	SELECT i.id, COALESCE(i.email, ''), COALESCE(up.full_name, ''), up.employee_id
	FROM auth_identities i
	LEFT JOIN user_profiles up ON up.identity_id = i.id
`

func scanStaff(row pgx.Row) (*auth.StaffUser, error) {
	var (
		u          auth.StaffUser
		employeeID sql.NullInt64
	)
	if err := row.Scan(&u.IdentityID, &u.Email, &u.FullName, &employeeID); err != nil {
		return nil, err
	}
	if employeeID.Valid {
		id := employeeID.Int64
		u.EmployeeID = &id
	}
	return &u, nil
}

// FindStaffByID returns the staff user with the given identity id.
func (r *StaffRepository) FindStaffByID(ctx context.Context, identityID int64) (*auth.StaffUser, error) {
	u, err := scanStaff(r.db.QueryRow(ctx, staffSelect+` WHERE i.id = $1`, identityID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find staff user: %w", err)
	}
	return u, nil
}

// FindStaffByEmployee returns the first staff user linked to an employee.
func (r *StaffRepository) FindStaffByEmployee(ctx context.Context, employeeID int64) (*auth.StaffUser, error) {
	query := staffSelect + ` WHERE up.employee_id = $1 ORDER BY i.id LIMIT 1`
	u, err := scanStaff(r.db.QueryRow(ctx, query, employeeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find staff by employee: %w", err)
	}
	return u, nil
}

// ListStaff returns active staff users ordered by name.
func (r *StaffRepository) ListStaff(ctx context.Context) ([]auth.StaffUser, error) {
	query := staffSelect + ` WHERE i.status = 'active' ORDER BY COALESCE(up.full_name, i.email), i.id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer rows.Close()

	var staff []auth.StaffUser
	for rows.Next() {
		u, err := scanStaff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan staff user: %w", err)
		}
		staff = append(staff, *u)
	}
	return staff, rows.Err()
}

// CreateEmployee inserts an employee record.
func (r *StaffRepository) CreateEmployee(ctx context.Context, e *auth.Employee) error {
	query := `INSERT INTO employees (name) VALUES ($1) RETURNING id, created_at`
	if err := r.db.QueryRow(ctx, query, e.Name).Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}
	return nil
}

func (r *StaffRepository) FindEmployeeByID(ctx context.Context, id int64) (*auth.Employee, error) {
	var e auth.Employee
	err := r.db.QueryRow(ctx, `SELECT id, name, created_at FROM employees WHERE id = $1`, id).
		Scan(&e.ID, &e.Name, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find employee: %w", err)
	}
	return &e, nil
}
