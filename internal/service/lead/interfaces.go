// internal/service/lead/interfaces.go
package lead

import (
	"context"
	"database/sql"

	"crm-service/internal/domain/auth"
	"crm-service/internal/domain/config"
	"crm-service/internal/domain/lead"
	ws "crm-service/internal/domain/websocket"

	"github.com/shopspring/decimal"
)

// Repository is the lead store.
type Repository interface {
	CreateFromIntake(ctx context.Context, rec *lead.IntakeRecord) error
	FindByID(ctx context.Context, id int64) (*lead.Lead, error)
	List(ctx context.Context, f lead.ListFilters, limit, offset int) ([]lead.Lead, int64, error)
	SetState(ctx context.Context, ids []int64, state lead.State) (int64, error)
	UpdateEmployee(ctx context.Context, id, employeeID int64) error
	UpdateRevenue(ctx context.Context, id int64, probability sql.NullInt32, amount decimal.NullDecimal) error
	CountByState(ctx context.Context) (lead.StateCounts, error)
}

type CommentRepository interface {
	Create(ctx context.Context, c *lead.Comment) error
	ListByLead(ctx context.Context, leadID int64) ([]lead.Comment, error)
}

// StaffDirectory resolves staff users and the employees they act as.
type StaffDirectory interface {
	FindStaffByID(ctx context.Context, identityID int64) (*auth.StaffUser, error)
	FindStaffByEmployee(ctx context.Context, employeeID int64) (*auth.StaffUser, error)
	ListStaff(ctx context.Context) ([]auth.StaffUser, error)
}

type SettingsSource interface {
	Get(ctx context.Context) (*config.SaleConfiguration, error)
}

// Notifier runs after a lead has been stored.
type Notifier interface {
	LeadCreated(ctx context.Context, l *lead.Lead) error
}

// EventPublisher pushes lead changes to connected admin clients.
type EventPublisher interface {
	PublishLeadEvent(eventType ws.EventType, data ws.LeadEventData)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishLeadEvent(ws.EventType, ws.LeadEventData) {}
