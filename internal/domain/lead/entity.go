// internal/domain/lead/entity.go
package lead

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// State is the workflow position of a lead.
type State string

const (
	StateLead        State = "lead"
	StateOpportunity State = "opportunity"
	StateConverted   State = "converted"
	StateCancelled   State = "cancelled"
	StateLost        State = "lost"
)

// AllStates lists the states in display order.
func AllStates() []State {
	return []State{StateLead, StateOpportunity, StateConverted, StateCancelled, StateLost}
}

func (s State) IsValid() bool {
	switch s {
	case StateLead, StateOpportunity, StateConverted, StateCancelled, StateLost:
		return true
	}
	return false
}

// Label is the human name used on pages.
func (s State) Label() string {
	switch s {
	case StateLead:
		return "Lead"
	case StateOpportunity:
		return "Opportunity"
	case StateConverted:
		return "Converted"
	case StateCancelled:
		return "Cancelled"
	case StateLost:
		return "Lost"
	}
	return string(s)
}

// ParseState accepts only the five workflow states.
func ParseState(raw string) (State, error) {
	s := State(raw)
	if !s.IsValid() {
		return "", fmt.Errorf("unknown lead state %q", raw)
	}
	return s, nil
}

// Lead is a sale opportunity together with the contact data captured at intake.
type Lead struct {
	ID              int64               `json:"id" db:"id"`
	PartyID         int64               `json:"party_id" db:"party_id"`
	PartyName       string              `json:"party_name" db:"party_name"`
	AddressID       int64               `json:"address_id" db:"address_id"`
	ContactName     string              `json:"contact_name" db:"contact_name"`
	Email           sql.NullString      `json:"email" db:"email"`
	Phone           sql.NullString      `json:"phone" db:"phone"`
	CountryCode     sql.NullString      `json:"country_code" db:"country_code"`
	EmployeeID      int64               `json:"employee_id" db:"employee_id"`
	EmployeeName    string              `json:"employee_name" db:"employee_name"`
	CompanyID       sql.NullInt64       `json:"company_id" db:"company_id"`
	State           State               `json:"state" db:"state"`
	Description     string              `json:"description" db:"description"`
	Comment         sql.NullString      `json:"comment" db:"comment"`
	IPAddress       sql.NullString      `json:"ip_address" db:"ip_address"`
	DetectedCountry sql.NullString      `json:"detected_country" db:"detected_country"`
	Probability     sql.NullInt32       `json:"probability" db:"probability"`
	Amount          decimal.NullDecimal `json:"amount" db:"amount"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// Comment is an append-only note on a lead.
type Comment struct {
	ID         int64     `json:"id" db:"id"`
	LeadID     int64     `json:"lead_id" db:"lead_id"`
	PartyID    int64     `json:"party_id" db:"party_id"`
	AuthorID   int64     `json:"author_id" db:"author_id"`
	AuthorName string    `json:"author_name" db:"author_name"`
	Title      string    `json:"title" db:"title"`
	Body       string    `json:"body" db:"body"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
