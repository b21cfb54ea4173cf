package lead

import (
	"context"
	"testing"

	"crm-service/internal/domain/lead"
	ws "crm-service/internal/domain/websocket"
	xerrors "crm-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList_FiltersByStateAndCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.submit(t, tarun())
	other := tarun()
	other.Company = "Globex"
	other.Name = "Hank"
	other.Email = "hank@globex.test"
	b := f.submit(t, other)

	_, err := f.workflow.Lost(ctx, b)
	require.NoError(t, err)

	page, err := f.triage.List(ctx, lead.ListFilters{State: "lost"})
	require.NoError(t, err)
	require.Len(t, page.Leads, 1)
	assert.Equal(t, b, page.Leads[0].ID)

	page, err = f.triage.List(ctx, lead.ListFilters{Company: "acme"})
	require.NoError(t, err)
	require.Len(t, page.Leads, 1)
	assert.Equal(t, a, page.Leads[0].ID)

	page, err = f.triage.List(ctx, lead.ListFilters{Email: "GLOBEX"})
	require.NoError(t, err)
	require.Len(t, page.Leads, 1)
	assert.Equal(t, b, page.Leads[0].ID)

	page, err = f.triage.List(ctx, lead.ListFilters{Name: "tarun"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
}

func TestList_PaginatesByTen(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.submit(t, tarun())
	}

	page, err := f.triage.List(context.Background(), lead.ListFilters{})
	require.NoError(t, err)
	assert.Len(t, page.Leads, 10)
	assert.Equal(t, int64(12), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 1, page.Page)
	assert.Greater(t, page.Leads[0].ID, page.Leads[9].ID)

	page, err = f.triage.List(context.Background(), lead.ListFilters{Page: 2})
	require.NoError(t, err)
	assert.Len(t, page.Leads, 2)
}

func TestList_UnknownStateIsValidationError(t *testing.T) {
	f := newFixture(t)
	_, err := f.triage.List(context.Background(), lead.ListFilters{State: "won"})
	fields, ok := xerrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, fields, "state")
}

func TestAssign_NoOpThenChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, tarun())

	web := f.store.AddStaff("web@example.com", "Website Desk", f.websiteEmployee)
	emp := f.store.AddEmployee("Sharoon")
	sharoon := f.store.AddStaff("sharoon@example.com", "Sharoon Thomas", emp.ID)

	res, err := f.triage.Assign(ctx, id, web.IdentityID, "admin")
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, "Lead already assigned to Website Desk", res.Notice)

	res, err = f.triage.Assign(ctx, id, sharoon.IdentityID, "admin")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "Lead assigned to Sharoon Thomas", res.Notice)

	l, err := f.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, emp.ID, l.EmployeeID)

	last := f.events.events[len(f.events.events)-1]
	assert.Equal(t, ws.EventTypeLeadAssigned, last.Type)
}

func TestAssign_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, tarun())
	loose := f.store.AddStaff("loose@example.com", "", 0)

	_, err := f.triage.Assign(ctx, id, 9999, "admin")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = f.triage.Assign(ctx, id, loose.IdentityID, "admin")
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)

	web := f.store.AddStaff("web@example.com", "", f.websiteEmployee)
	_, err = f.triage.Assign(ctx, 9999, web.IdentityID, "admin")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestComments_KeepCreationOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, tarun())
	author := f.store.AddStaff("admin@example.com", "Admin", 0)

	for _, body := range []string{"first", "second", "third"} {
		_, err := f.triage.AddComment(ctx, lead.CommentRequest{LeadID: id, Title: body, Comment: body}, author.IdentityID, "Admin")
		require.NoError(t, err)
	}

	detail, err := f.triage.Detail(ctx, id)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 3)
	assert.Equal(t, "first", detail.Comments[0].Body)
	assert.Equal(t, "second", detail.Comments[1].Body)
	assert.Equal(t, "third", detail.Comments[2].Body)
	assert.Equal(t, detail.Lead.PartyID, detail.Comments[0].PartyID)
	assert.Equal(t, "Admin", detail.Comments[0].AuthorName)
}

func TestAddComment_TitleAndBodyOptional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, tarun())

	_, err := f.triage.AddComment(ctx, lead.CommentRequest{LeadID: id, Title: "Voicemail"}, 1, "x")
	require.NoError(t, err)
	_, err = f.triage.AddComment(ctx, lead.CommentRequest{LeadID: id, Title: " ", Comment: "  "}, 1, "x")
	require.NoError(t, err)

	detail, err := f.triage.Detail(ctx, id)
	require.NoError(t, err)
	require.Len(t, detail.Comments, 2)
	assert.Equal(t, "Voicemail", detail.Comments[0].Title)
	assert.Empty(t, detail.Comments[0].Body)
	assert.Empty(t, detail.Comments[1].Title)
	assert.Empty(t, detail.Comments[1].Body)
}

func TestAddComment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.submit(t, tarun())

	_, err := f.triage.AddComment(ctx, lead.CommentRequest{LeadID: 9999, Comment: "hi"}, 1, "x")
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestDetail_ResolvesAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, tarun())

	detail, err := f.triage.Detail(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, detail.Assignee)

	web := f.store.AddStaff("web@example.com", "Website Desk", f.websiteEmployee)
	detail, err = f.triage.Detail(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, detail.Assignee)
	assert.Equal(t, web.IdentityID, detail.Assignee.IdentityID)
	assert.Len(t, detail.Staff, 1)

	_, err = f.triage.Detail(ctx, 9999)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestSetRevenue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, tarun())

	before, err := f.store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, before.Probability.Valid)
	assert.False(t, before.Amount.Valid)

	p := 75
	l, err := f.triage.SetRevenue(ctx, id, lead.RevenueRequest{Probability: &p, Amount: "1500.456"})
	require.NoError(t, err)
	assert.Equal(t, int32(75), l.Probability.Int32)
	assert.Equal(t, "1500.46", l.Amount.Decimal.StringFixed(2))
}

func TestSetRevenue_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.submit(t, tarun())

	tooHigh := 101
	_, err := f.triage.SetRevenue(ctx, id, lead.RevenueRequest{Probability: &tooHigh, Amount: "-1"})
	fields, ok := xerrors.AsValidation(err)
	require.True(t, ok)
	assert.Contains(t, fields, "probability")
	assert.Equal(t, "Amount cannot be negative.", fields["amount"])

	_, err = f.triage.SetRevenue(ctx, id, lead.RevenueRequest{Amount: "abc"})
	fields, ok = xerrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "This field is required.", fields["probability"])
	assert.Equal(t, "Not a valid decimal value.", fields["amount"])

	ok50 := 50
	_, err = f.triage.SetRevenue(ctx, 9999, lead.RevenueRequest{Probability: &ok50, Amount: "1"})
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestDashboardCountsEveryState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.submit(t, tarun())
	f.submit(t, tarun())
	_, err := f.workflow.Opportunity(ctx, a)
	require.NoError(t, err)

	counts, err := f.triage.Dashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, counts, 5)
	assert.Equal(t, int64(1), counts[lead.StateLead])
	assert.Equal(t, int64(1), counts[lead.StateOpportunity])
	assert.Equal(t, int64(0), counts[lead.StateLost])
}
