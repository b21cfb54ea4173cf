package lead

import (
	"context"
	"errors"
	"testing"

	"crm-service/internal/domain/lead"
	"crm-service/internal/domain/party"
	ws "crm-service/internal/domain/websocket"
	"crm-service/internal/pkg/captcha"
	xerrors "crm-service/internal/pkg/errors"
	"crm-service/internal/pkg/geoip"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubmit_CreatesPartyMechanismsAndLead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.intake.Submit(ctx, ptr(tarun()))
	require.NoError(t, err)

	l, err := f.store.FindByID(ctx, res.LeadID)
	require.NoError(t, err)
	assert.Equal(t, lead.StateLead, l.State)
	assert.Equal(t, "Acme Corp", l.PartyName)
	assert.Equal(t, "Tarun Bhardwaj", l.ContactName)
	assert.Equal(t, "IN", l.CountryCode.String)
	assert.Equal(t, "tarun@example.com", l.Email.String)
	assert.Equal(t, "+919876543210", l.Phone.String)
	assert.Equal(t, f.websiteEmployee, l.EmployeeID)
	assert.Equal(t, "Created from website", l.Description)
	assert.Equal(t, "We need a CRM", l.Comment.String)
	assert.Equal(t, "203.0.113.7", l.IPAddress.String)
	assert.Equal(t, int64(1), l.CompanyID.Int64)

	mechs := f.store.Mechanisms(res.PartyID)
	require.Len(t, mechs, 3)
	assert.Equal(t, party.MechanismWebsite, mechs[0].Type)
	assert.Equal(t, party.MechanismPhone, mechs[1].Type)
	assert.Equal(t, party.MechanismEmail, mechs[2].Type)
	assert.Equal(t, "tarun@example.com", mechs[2].Value)

	require.Len(t, f.notified, 1)
	assert.Equal(t, res.LeadID, f.notified[0].ID)

	require.NotEmpty(t, f.events.events)
	assert.Equal(t, ws.EventTypeLeadCreated, f.events.events[0].Type)
}

func TestSubmit_PartyNameFallsBackToContactName(t *testing.T) {
	f := newFixture(t)
	req := tarun()
	req.Company = ""
	req.Website = ""
	req.Phone = ""

	id := f.submit(t, req)
	l, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Tarun Bhardwaj", l.PartyName)
	assert.Len(t, f.store.Mechanisms(l.PartyID), 1)
}

func TestSubmit_DuplicateSubmissionsCreateTwoLeads(t *testing.T) {
	f := newFixture(t)
	a := f.submit(t, tarun())
	b := f.submit(t, tarun())

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, f.store.LeadCount())
	assert.Equal(t, 2, f.store.PartyCount())
}

func TestSubmit_ValidationFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	req := tarun()
	req.Email = ""
	req.Country = "XX"
	req.Website = "not a url"

	_, err := f.intake.Submit(context.Background(), &req)
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	fields, ok := xerrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "This field is required.", fields["email"])
	assert.Equal(t, "Not a valid choice", fields["country"])
	assert.Equal(t, "Invalid URL.", fields["website"])

	assert.Zero(t, f.store.LeadCount())
	assert.Zero(t, f.store.PartyCount())
	assert.Empty(t, f.notified)
}

func TestSubmit_InvalidEmail(t *testing.T) {
	f := newFixture(t)
	req := tarun()
	req.Email = "tarun-at-example"

	_, err := f.intake.Submit(context.Background(), &req)
	fields, ok := xerrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid email address.", fields["email"])
}

func TestSubmit_StaffRequesterOwnsLead(t *testing.T) {
	f := newFixture(t)
	emp := f.store.AddEmployee("Sharoon")
	staff := f.store.AddStaff("sharoon@example.com", "Sharoon Thomas", emp.ID)
	req := tarun()
	req.Requester = &lead.Requester{IdentityID: staff.IdentityID, EmployeeID: emp.ID, DisplayName: "Sharoon"}

	id := f.submit(t, req)
	l, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, emp.ID, l.EmployeeID)
	assert.Equal(t, "Created by Sharoon Thomas", l.Description)
}

func TestSubmit_RequesterEmployeeIsResolvedAtSubmission(t *testing.T) {
	f := newFixture(t)
	before := f.store.AddEmployee("Old desk")
	after := f.store.AddEmployee("New desk")
	staff := f.store.AddStaff("moved@example.com", "Moved User", after.ID)

	// the token still carries the employee from login time
	req := tarun()
	req.Requester = &lead.Requester{IdentityID: staff.IdentityID, EmployeeID: before.ID, DisplayName: "Moved User"}

	id := f.submit(t, req)
	l, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, after.ID, l.EmployeeID)
}

func TestSubmit_RequesterWithoutEmployeeUsesWebsiteEmployee(t *testing.T) {
	f := newFixture(t)
	staff := f.store.AddStaff("noemp@example.com", "No Employee", 0)
	emp := f.store.AddEmployee("Stale")

	for _, r := range []*lead.Requester{
		{IdentityID: staff.IdentityID, EmployeeID: emp.ID, DisplayName: "No Employee"},
		{IdentityID: 4242, EmployeeID: emp.ID, DisplayName: "Deleted"},
	} {
		req := tarun()
		req.Requester = r
		id := f.submit(t, req)
		l, err := f.store.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, f.websiteEmployee, l.EmployeeID)
		assert.Equal(t, "Created from website", l.Description)
	}
}

func TestSubmit_DetectsCountryWhenMissing(t *testing.T) {
	f := newFixture(t)
	f.intake.locator = geoip.Static{"203.0.113.7": {CountryCode: "IN", CountryName: "India"}}

	req := tarun()
	req.Country = ""
	id := f.submit(t, req)

	l, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "India", l.DetectedCountry.String)
	assert.Equal(t, "IN", l.CountryCode.String)
}

func TestSubmit_NoDetectionWhenCountryGiven(t *testing.T) {
	f := newFixture(t)
	f.intake.locator = geoip.Static{"203.0.113.7": {CountryCode: "IN", CountryName: "India"}}

	req := tarun()
	req.Country = "US"
	id := f.submit(t, req)

	l, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, l.DetectedCountry.Valid)
	assert.Equal(t, "US", l.CountryCode.String)
}

type stubCaptcha struct {
	ok  bool
	err error
}

func (s stubCaptcha) IsAvailable() bool { return true }
func (s stubCaptcha) SiteKey() string   { return "site" }
func (s stubCaptcha) Verify(context.Context, string, string) (bool, error) {
	return s.ok, s.err
}

func TestSubmit_Captcha(t *testing.T) {
	f := newFixture(t)
	f.intake.captcha = stubCaptcha{ok: false}
	assert.Equal(t, "site", f.intake.CaptchaSiteKey())

	_, err := f.intake.Submit(context.Background(), ptr(tarun()))
	fields, ok := xerrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, fields, "g-recaptcha-response")
	assert.Zero(t, f.store.LeadCount())

	f.intake.captcha = stubCaptcha{ok: false, err: captcha.ErrMissingResponse}
	_, err = f.intake.Submit(context.Background(), ptr(tarun()))
	_, ok = xerrors.AsValidation(err)
	assert.True(t, ok)

	f.intake.captcha = stubCaptcha{ok: true}
	f.submit(t, tarun())
	assert.Equal(t, 1, f.store.LeadCount())
}

func TestSubmit_StoreFailureIsAtomic(t *testing.T) {
	f := newFixture(t)
	f.store.FailIntake = errors.New("connection reset")

	_, err := f.intake.Submit(context.Background(), ptr(tarun()))
	require.Error(t, err)
	assert.Zero(t, f.store.PartyCount())
	assert.Zero(t, f.store.LeadCount())
	assert.Empty(t, f.notified)
}

func TestSubmit_NotificationErrorPropagates(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("smtp down")
	f.notifyErr = boom

	_, err := f.intake.Submit(context.Background(), ptr(tarun()))
	assert.ErrorIs(t, err, boom)
	// the lead is committed before mail goes out
	assert.Equal(t, 1, f.store.LeadCount())
}

func TestSubmit_NoWebsiteEmployee(t *testing.T) {
	f := newFixture(t)
	f.intake = NewIntakeService(IntakeDeps{
		Leads:    f.store,
		Settings: emptySettings{},
		Notifier: notifierFunc(func(context.Context, *lead.Lead) error { return nil }),
	}, zap.NewNop())

	req := tarun()
	req.Country = ""
	_, err := f.intake.Submit(context.Background(), &req)
	assert.ErrorIs(t, err, ErrNoWebsiteEmployee)
}

func ptr(r lead.IntakeRequest) *lead.IntakeRequest { return &r }
