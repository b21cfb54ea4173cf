// internal/domain/config/entity.go
package config

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

// SaleConfiguration is the single settings row (id = 1) for lead handling.
type SaleConfiguration struct {
	ID                int64          `json:"id" db:"id"`
	WebsiteEmployeeID sql.NullInt64  `json:"website_employee_id" db:"website_employee_id"`
	OpportunityEmail  sql.NullString `json:"opportunity_email" db:"opportunity_email"`
	CompanyID         sql.NullInt64  `json:"company_id" db:"company_id"`
	CompanyName       string         `json:"company_name" db:"company_name"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`
}

// SalesTeam is the roster notified about new leads.
type SalesTeam struct {
	CompanyID int64          `json:"company_id"`
	Emails    pq.StringArray `json:"emails"`
}
