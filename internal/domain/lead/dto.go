// internal/domain/lead/dto.go
package lead

import (
	"crm-service/internal/domain/auth"
	"crm-service/internal/domain/party"
)

// PageSize is the fixed number of leads per list page.
const PageSize = 10

// IntakeRequest is the public contact form.
type IntakeRequest struct {
	Name            string `json:"name" form:"name" validate:"required,max=255"`
	Email           string `json:"email" form:"email" validate:"required,email,max=255"`
	Company         string `json:"company" form:"company" validate:"max=255"`
	Country         string `json:"country" form:"country" validate:"omitempty,len=2,alpha"`
	Website         string `json:"website" form:"website" validate:"omitempty,url,max=255"`
	Phone           string `json:"phone" form:"phone" validate:"max=64"`
	Comment         string `json:"comment" form:"comment" validate:"max=5000"`
	CaptchaResponse string `json:"g-recaptcha-response" form:"g-recaptcha-response"`

	RemoteIP  string     `json:"-" form:"-"`
	Requester *Requester `json:"-" form:"-"`
}

// Requester is the authenticated staff member submitting the form, if any.
type Requester struct {
	IdentityID  int64
	EmployeeID  int64
	DisplayName string
}

// IntakeRecord is everything intake persists in one transaction.
type IntakeRecord struct {
	Party      party.Party
	Address    party.Address
	Mechanisms []party.ContactMechanism
	Lead       Lead
}

type IntakeResult struct {
	LeadID  int64 `json:"lead_id"`
	PartyID int64 `json:"party_id"`
}

// ListFilters narrows the admin lead list. All text filters are
// case-insensitive substring matches.
type ListFilters struct {
	Company string `form:"company"`
	Name    string `form:"name"`
	Email   string `form:"email"`
	State   string `form:"state"`
	Page    int    `form:"page"`
}

type LeadPage struct {
	Leads    []Lead      `json:"leads"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Pages    int         `json:"pages"`
	Filters  ListFilters `json:"filters"`
}

type AssignRequest struct {
	UserID int64 `json:"user" form:"user" binding:"required"`
}

type AssignResult struct {
	Changed  bool            `json:"changed"`
	Notice   string          `json:"notice"`
	Assignee *auth.StaffUser `json:"assignee"`
}

type CommentRequest struct {
	LeadID  int64  `json:"lead" form:"lead" binding:"required"`
	Title   string `json:"title" form:"title"`
	Comment string `json:"comment" form:"comment"`
}

// RevenueRequest carries a probability percentage and a decimal amount.
type RevenueRequest struct {
	Probability *int   `json:"probability" form:"probability"`
	Amount      string `json:"amount" form:"amount"`
}

// Detail is the admin view of one lead.
type Detail struct {
	Lead     *Lead            `json:"lead"`
	Assignee *auth.StaffUser  `json:"assignee,omitempty"`
	Comments []Comment        `json:"comments"`
	Staff    []auth.StaffUser `json:"staff"`
}

// StateCounts is the dashboard tally of leads per state.
type StateCounts map[State]int64
