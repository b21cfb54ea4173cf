// internal/service/lead/triage.go
package lead

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"crm-service/internal/domain/auth"
	"crm-service/internal/domain/lead"
	ws "crm-service/internal/domain/websocket"
	xerrors "crm-service/internal/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrUserNotFound is returned when an assignment names an unknown staff user.
var ErrUserNotFound = fmt.Errorf("staff user %w", xerrors.ErrNotFound)

// TriageService backs the admin pages: listing, detail, assignment,
// comments and revenue.
type TriageService struct {
	leads    Repository
	comments CommentRepository
	staff    StaffDirectory
	events   EventPublisher
	logger   *zap.Logger
}

func NewTriageService(leads Repository, comments CommentRepository, staff StaffDirectory, events EventPublisher, logger *zap.Logger) *TriageService {
	if events == nil {
		events = NopPublisher{}
	}
	return &TriageService{
		leads:    leads,
		comments: comments,
		staff:    staff,
		events:   events,
		logger:   logger,
	}
}

// List returns one page of leads matching the filters.
func (s *TriageService) List(ctx context.Context, f lead.ListFilters) (*lead.LeadPage, error) {
	f.Company = strings.TrimSpace(f.Company)
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	f.State = strings.TrimSpace(f.State)
	if f.Page < 1 {
		f.Page = 1
	}

	if f.State != "" {
		if _, err := lead.ParseState(f.State); err != nil {
			return nil, xerrors.ValidationErrors{"state": "Unknown state"}
		}
	}

	leads, total, err := s.leads.List(ctx, f, lead.PageSize, (f.Page-1)*lead.PageSize)
	if err != nil {
		return nil, err
	}

	pages := int((total + lead.PageSize - 1) / lead.PageSize)
	return &lead.LeadPage{
		Leads:    leads,
		Total:    total,
		Page:     f.Page,
		PageSize: lead.PageSize,
		Pages:    pages,
		Filters:  f,
	}, nil
}

// Assignee is the staff user acting as the lead's employee, or nil.
func (s *TriageService) Assignee(ctx context.Context, l *lead.Lead) (*auth.StaffUser, error) {
	u, err := s.staff.FindStaffByEmployee(ctx, l.EmployeeID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, nil
	}
	return u, err
}

// Detail loads a lead with its assignee, comments and the staff it can be
// assigned to.
func (s *TriageService) Detail(ctx context.Context, id int64) (*lead.Detail, error) {
	l, err := s.leads.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	assignee, err := s.Assignee(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignee: %w", err)
	}

	comments, err := s.comments.ListByLead(ctx, id)
	if err != nil {
		return nil, err
	}

	staff, err := s.staff.ListStaff(ctx)
	if err != nil {
		return nil, err
	}

	return &lead.Detail{Lead: l, Assignee: assignee, Comments: comments, Staff: staff}, nil
}

// Assign gives the lead to the employee the staff user acts as, looked up
// now rather than when the page was rendered.
func (s *TriageService) Assign(ctx context.Context, leadID, userID int64, actor string) (*lead.AssignResult, error) {
	user, err := s.staff.FindStaffByID(ctx, userID)
	if errors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrUserNotFound, userID)
	}
	if err != nil {
		return nil, err
	}
	if user.EmployeeID == nil {
		return nil, xerrors.ValidationErrors{"user": "User is not linked to an employee"}
	}

	l, err := s.leads.FindByID(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if l.EmployeeID == *user.EmployeeID {
		return &lead.AssignResult{
			Changed:  false,
			Notice:   fmt.Sprintf("Lead already assigned to %s", user.DisplayName()),
			Assignee: user,
		}, nil
	}

	if err := s.leads.UpdateEmployee(ctx, leadID, *user.EmployeeID); err != nil {
		return nil, err
	}

	s.logger.Info("lead assigned",
		zap.Int64("lead_id", leadID),
		zap.Int64("employee_id", *user.EmployeeID),
		zap.String("actor", actor),
	)
	s.events.PublishLeadEvent(ws.EventTypeLeadAssigned, ws.LeadEventData{
		LeadIDs:   []int64{leadID},
		PartyName: l.PartyName,
		Actor:     actor,
		Detail:    user.DisplayName(),
	})

	return &lead.AssignResult{
		Changed:  true,
		Notice:   fmt.Sprintf("Lead assigned to %s", user.DisplayName()),
		Assignee: user,
	}, nil
}

// AddComment appends a comment to a lead on behalf of authorID. Title and
// body are both optional.
func (s *TriageService) AddComment(ctx context.Context, req lead.CommentRequest, authorID int64, actor string) (*lead.Comment, error) {
	title := strings.TrimSpace(req.Title)
	body := strings.TrimSpace(req.Comment)

	l, err := s.leads.FindByID(ctx, req.LeadID)
	if err != nil {
		return nil, err
	}

	c := &lead.Comment{
		LeadID:     l.ID,
		PartyID:    l.PartyID,
		AuthorID:   authorID,
		AuthorName: actor,
		Title:      title,
		Body:       body,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}

	s.events.PublishLeadEvent(ws.EventTypeLeadCommented, ws.LeadEventData{
		LeadIDs:   []int64{l.ID},
		PartyName: l.PartyName,
		Actor:     actor,
		Detail:    title,
	})
	return c, nil
}

// SetRevenue records the conversion probability and the expected amount.
func (s *TriageService) SetRevenue(ctx context.Context, id int64, req lead.RevenueRequest) (*lead.Lead, error) {
	errs := xerrors.ValidationErrors{}

	var probability sql.NullInt32
	switch {
	case req.Probability == nil:
		errs.Add("probability", "This field is required.")
	case *req.Probability < 0 || *req.Probability > 100:
		errs.Add("probability", "Probability must be between 0 and 100.")
	default:
		probability = sql.NullInt32{Int32: int32(*req.Probability), Valid: true}
	}

	var amount decimal.NullDecimal
	raw := strings.TrimSpace(req.Amount)
	if raw == "" {
		errs.Add("amount", "This field is required.")
	} else if d, err := decimal.NewFromString(raw); err != nil {
		errs.Add("amount", "Not a valid decimal value.")
	} else if d.IsNegative() {
		errs.Add("amount", "Amount cannot be negative.")
	} else {
		amount = decimal.NullDecimal{Decimal: d.Round(2), Valid: true}
	}

	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	if err := s.leads.UpdateRevenue(ctx, id, probability, amount); err != nil {
		return nil, err
	}
	return s.leads.FindByID(ctx, id)
}

// Dashboard counts leads per state.
func (s *TriageService) Dashboard(ctx context.Context) (lead.StateCounts, error) {
	return s.leads.CountByState(ctx)
}
