// internal/service/lead/intake.go
package lead

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"crm-service/internal/domain/lead"
	"crm-service/internal/domain/party"
	ws "crm-service/internal/domain/websocket"
	"crm-service/internal/pkg/captcha"
	"crm-service/internal/pkg/countries"
	xerrors "crm-service/internal/pkg/errors"
	"crm-service/internal/pkg/geoip"
	"crm-service/internal/pkg/metrics"
	"crm-service/internal/pkg/phone"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ErrNoWebsiteEmployee means anonymous leads have nobody to be assigned to.
var ErrNoWebsiteEmployee = errors.New("website employee is not configured")

// IntakeService turns contact form submissions into leads.
type IntakeService struct {
	leads            Repository
	settings         SettingsSource
	staff            StaffDirectory
	notifier         Notifier
	catalogue        *countries.Catalogue
	locator          geoip.Locator
	captcha          captcha.Verifier
	events           EventPublisher
	validate         *validator.Validate
	defaultCompanyID int64
	logger           *zap.Logger
}

type IntakeDeps struct {
	Leads    Repository
	Settings SettingsSource
	// Staff resolves the requester's current employee; without it the
	// employee carried by the token is trusted.
	Staff     StaffDirectory
	Notifier  Notifier
	Countries *countries.Catalogue
	Locator   geoip.Locator
	Captcha   captcha.Verifier
	Events    EventPublisher
	// DefaultCompanyID owns leads when the configuration row names no company.
	DefaultCompanyID int64
}

func NewIntakeService(deps IntakeDeps, logger *zap.Logger) *IntakeService {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	s := &IntakeService{
		leads:            deps.Leads,
		settings:         deps.Settings,
		staff:            deps.Staff,
		notifier:         deps.Notifier,
		catalogue:        deps.Countries,
		locator:          deps.Locator,
		captcha:          deps.Captcha,
		events:           deps.Events,
		validate:         v,
		defaultCompanyID: deps.DefaultCompanyID,
		logger:           logger,
	}
	if s.locator == nil {
		s.locator = geoip.Nop{}
	}
	if s.captcha == nil {
		s.captcha = captcha.Disabled{}
	}
	if s.events == nil {
		s.events = NopPublisher{}
	}
	return s
}

// Countries is the choice list for the form.
func (s *IntakeService) Countries() []countries.Country {
	if s.catalogue == nil {
		return nil
	}
	return s.catalogue.All()
}

// CaptchaSiteKey is empty when no challenge should be rendered.
func (s *IntakeService) CaptchaSiteKey() string {
	if !s.captcha.IsAvailable() {
		return ""
	}
	return s.captcha.SiteKey()
}

// Submit validates the form and stores a party, its contact data and a new
// lead in one transaction, then runs the notifier. Validation problems come
// back as xerrors.ValidationErrors and nothing is stored.
func (s *IntakeService) Submit(ctx context.Context, req *lead.IntakeRequest) (*lead.IntakeResult, error) {
	normalizeIntake(req)

	if err := s.check(ctx, req); err != nil {
		return nil, err
	}

	if err := s.resolveRequester(ctx, req.Requester); err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load sale configuration: %w", err)
	}

	rec := &lead.IntakeRecord{}
	l := &rec.Lead
	l.State = lead.StateLead
	l.Comment = nullString(req.Comment)
	l.IPAddress = nullString(req.RemoteIP)

	source := "website"
	switch {
	case req.Requester != nil && req.Requester.EmployeeID > 0:
		l.EmployeeID = req.Requester.EmployeeID
		l.Description = fmt.Sprintf("Created by %s", req.Requester.DisplayName)
		source = "staff"
	case settings.WebsiteEmployeeID.Valid:
		l.EmployeeID = settings.WebsiteEmployeeID.Int64
		l.Description = "Created from website"
	default:
		return nil, ErrNoWebsiteEmployee
	}

	if settings.CompanyID.Valid {
		l.CompanyID = settings.CompanyID
	} else if s.defaultCompanyID > 0 {
		l.CompanyID = sql.NullInt64{Int64: s.defaultCompanyID, Valid: true}
	}

	country := req.Country
	if country == "" && s.locator.IsAvailable() {
		if loc, ok := s.locator.Lookup(req.RemoteIP); ok {
			l.DetectedCountry = nullString(loc.CountryName)
			if c, known := s.lookupCountry(loc.CountryCode); known {
				country = c.Code
			}
		}
	}

	phoneNumber := ""
	if req.Phone != "" {
		phoneNumber, _ = phone.Normalize(req.Phone, country)
	}

	partyName := req.Company
	if partyName == "" {
		partyName = req.Name
	}
	rec.Party = party.Party{Name: partyName}
	rec.Address = party.Address{
		Name:        req.Name,
		CountryCode: nullString(country),
		Email:       nullString(req.Email),
		Phone:       nullString(phoneNumber),
	}

	if req.Website != "" {
		rec.Mechanisms = append(rec.Mechanisms, party.ContactMechanism{Type: party.MechanismWebsite, Value: req.Website})
	}
	if phoneNumber != "" {
		rec.Mechanisms = append(rec.Mechanisms, party.ContactMechanism{Type: party.MechanismPhone, Value: phoneNumber})
	}
	rec.Mechanisms = append(rec.Mechanisms, party.ContactMechanism{Type: party.MechanismEmail, Value: req.Email})

	if err := s.leads.CreateFromIntake(ctx, rec); err != nil {
		s.logger.Error("failed to store lead", zap.String("email", req.Email), zap.Error(err))
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	metrics.RecordLeadCreated(source)
	s.logger.Info("lead created",
		zap.Int64("lead_id", l.ID),
		zap.Int64("party_id", rec.Party.ID),
		zap.Int64("employee_id", l.EmployeeID),
		zap.String("source", source),
	)
	s.events.PublishLeadEvent(ws.EventTypeLeadCreated, ws.LeadEventData{
		LeadIDs:   []int64{l.ID},
		State:     string(l.State),
		PartyName: rec.Party.Name,
		Detail:    l.Description,
	})

	if err := s.notifier.LeadCreated(ctx, l); err != nil {
		s.logger.Error("lead stored but notification failed", zap.Int64("lead_id", l.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to notify about lead %d: %w", l.ID, err)
	}

	return &lead.IntakeResult{LeadID: l.ID, PartyID: rec.Party.ID}, nil
}

func (s *IntakeService) check(ctx context.Context, req *lead.IntakeRequest) error {
	errs := xerrors.ValidationErrors{}

	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("failed to validate form: %w", err)
		}
		for _, fe := range fieldErrs {
			errs.Add(fe.Field(), fieldMessage(fe))
		}
	}

	if req.Country != "" {
		if c, ok := s.lookupCountry(req.Country); ok {
			req.Country = c.Code
		} else {
			errs.Add("country", "Not a valid choice")
		}
	}

	if len(errs) > 0 {
		metrics.RecordIntakeRejected("validation")
		return errs
	}

	if s.captcha.IsAvailable() {
		ok, err := s.captcha.Verify(ctx, req.CaptchaResponse, req.RemoteIP)
		if err != nil && !errors.Is(err, captcha.ErrMissingResponse) {
			return fmt.Errorf("failed to verify captcha: %w", err)
		}
		if !ok {
			metrics.RecordIntakeRejected("captcha")
			errs.Add("g-recaptcha-response", "Invalid captcha, please try again")
			return errs
		}
	}
	return nil
}

// resolveRequester replaces the employee captured at login with the one the
// staff user is linked to now. A requester that no longer exists is
// treated as anonymous.
func (s *IntakeService) resolveRequester(ctx context.Context, r *lead.Requester) error {
	if r == nil || s.staff == nil {
		return nil
	}

	user, err := s.staff.FindStaffByID(ctx, r.IdentityID)
	if errors.Is(err, xerrors.ErrNotFound) {
		r.EmployeeID = 0
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve requester %d: %w", r.IdentityID, err)
	}

	r.EmployeeID = 0
	if user.EmployeeID != nil {
		r.EmployeeID = *user.EmployeeID
	}
	r.DisplayName = user.DisplayName()
	return nil
}

func (s *IntakeService) lookupCountry(code string) (countries.Country, bool) {
	if s.catalogue == nil || code == "" {
		return countries.Country{}, false
	}
	return s.catalogue.Lookup(code)
}

func normalizeIntake(req *lead.IntakeRequest) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Company = strings.TrimSpace(req.Company)
	req.Country = strings.ToUpper(strings.TrimSpace(req.Country))
	req.Website = strings.TrimSpace(req.Website)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Comment = strings.TrimSpace(req.Comment)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Invalid email address."
	case "url":
		return "Invalid URL."
	case "max":
		return fmt.Sprintf("Field cannot be longer than %s characters.", fe.Param())
	case "len", "alpha":
		return "Not a valid choice"
	}
	return "Invalid value."
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
