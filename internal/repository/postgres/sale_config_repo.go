// internal/repository/postgres/sale_config_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"

	"crm-service/internal/domain/config"
	xerrors "crm-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SaleConfigRepository struct {
	db *pgxpool.Pool
}

func NewSaleConfigRepository(db *pgxpool.Pool) *SaleConfigRepository {
	return &SaleConfigRepository{db: db}
}

// Get loads the singleton configuration row.
func (r *SaleConfigRepository) Get(ctx context.Context) (*config.SaleConfiguration, error) {
	query := `
		SELECT sc.id, sc.website_employee_id, sc.opportunity_email, sc.company_id,
		       COALESCE(c.name, ''), sc.updated_at
		FROM sale_configuration sc
		LEFT JOIN companies c ON c.id = sc.company_id
		WHERE sc.id = 1
	`

	var cfg config.SaleConfiguration
	err := r.db.QueryRow(ctx, query).Scan(
		&cfg.ID, &cfg.WebsiteEmployeeID, &cfg.OpportunityEmail, &cfg.CompanyID,
		&cfg.CompanyName, &cfg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load sale configuration: %w", err)
	}
	return &cfg, nil
}

// SalesTeam returns the email addresses of a company's sales team members.
func (r *SaleConfigRepository) SalesTeam(ctx context.Context, companyID int64) (*config.SalesTeam, error) {
	query := `
		SELECT COALESCE(array_agg(i.email ORDER BY i.id) FILTER (WHERE i.email IS NOT NULL), '{}')
		FROM company_sales_team t
		JOIN auth_identities i ON i.id = t.identity_id
		WHERE t.company_id = $1
	`

	team := &config.SalesTeam{CompanyID: companyID}
	if err := r.db.QueryRow(ctx, query, companyID).Scan(&team.Emails); err != nil {
		return nil, fmt.Errorf("failed to load sales team: %w", err)
	}
	return team, nil
}

// AddSalesTeamMember puts a staff identity on the company roster.
func (r *SaleConfigRepository) AddSalesTeamMember(ctx context.Context, companyID, identityID int64) error {
	query := `
		INSERT INTO company_sales_team (company_id, identity_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, companyID, identityID)
	return err
}
