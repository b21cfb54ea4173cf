package web

import (
	"bytes"
	"database/sql"
	"testing"
	"time"

	"crm-service/internal/domain/auth"
	"crm-service/internal/domain/lead"
	"crm-service/internal/pkg/countries"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, name string, data map[string]interface{}) string {
	t.Helper()
	tmpl, err := Templates()
	require.NoError(t, err)

	base := map[string]interface{}{"Title": "Test", "Flash": "", "Errors": map[string]string{}}
	for k, v := range data {
		base[k] = v
	}

	var buf bytes.Buffer
	require.NoError(t, tmpl.ExecuteTemplate(&buf, name, base))
	return buf.String()
}

func sampleLead() lead.Lead {
	return lead.Lead{
		ID:          7,
		PartyName:   "Openlabs",
		ContactName: "Tarun",
		Email:       sql.NullString{String: "tarun@openlabs.co.in", Valid: true},
		State:       lead.StateOpportunity,
		Probability: sql.NullInt32{Int32: 40, Valid: true},
		Amount:      decimal.NullDecimal{Decimal: decimal.RequireFromString("1200.5"), Valid: true},
		CreatedAt:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestLeadForm(t *testing.T) {
	out := render(t, "lead_form.html", map[string]interface{}{
		"Form":           lead.IntakeRequest{Name: "Tarun", Country: "IN"},
		"Countries":      []countries.Country{{Code: "IN", Name: "India"}, {Code: "US", Name: "United States"}},
		"CaptchaSiteKey": "site-key",
		"Next":           "/after",
		"Errors":         map[string]string{"email": "This field is required."},
	})

	assert.Contains(t, out, `<option value="IN" selected>India</option>`)
	assert.Contains(t, out, "This field is required.")
	assert.Contains(t, out, `data-sitekey="site-key"`)
	assert.Contains(t, out, `value="Tarun"`)
}

func TestLeadsPage(t *testing.T) {
	f := lead.ListFilters{State: "opportunity", Page: 2}
	out := render(t, "leads.html", map[string]interface{}{
		"Page": &lead.LeadPage{Leads: []lead.Lead{sampleLead()}, Total: 25, Page: 2, PageSize: 10, Pages: 3, Filters: f},
	})

	assert.Contains(t, out, "Openlabs")
	assert.Contains(t, out, "tarun@openlabs.co.in")
	assert.Contains(t, out, `<option value="opportunity" selected>`)
	assert.Contains(t, out, "Page 2 of 3")
	assert.Contains(t, out, "page=3")
}

func TestDetailPage(t *testing.T) {
	l := sampleLead()
	emp := int64(3)
	out := render(t, "lead_detail.html", map[string]interface{}{
		"Flash": "Lead has been updated.",
		"Detail": &lead.Detail{
			Lead:     &l,
			Assignee: &auth.StaffUser{IdentityID: 1, FullName: "Ada", EmployeeID: &emp},
			Comments: []lead.Comment{{Title: "Call", Body: "Called back", AuthorName: "Ada"}},
			Staff:    []auth.StaffUser{{IdentityID: 1, Email: "ada@example.com"}},
		},
	})

	assert.Contains(t, out, "Lead has been updated.")
	assert.Contains(t, out, `value="40"`)
	assert.Contains(t, out, `value="1200.50"`)
	assert.Contains(t, out, "Called back")
	assert.Contains(t, out, "ada@example.com")
}

func TestHomeAndSimplePages(t *testing.T) {
	out := render(t, "home.html", map[string]interface{}{
		"Counts": lead.StateCounts{lead.StateLead: 4, lead.StateLost: 1},
	})
	assert.Contains(t, out, "Converted")
	assert.Contains(t, out, "<td>4</td>")

	assert.Contains(t, render(t, "thanks.html", nil), "We will get back to you soon.")
	assert.Contains(t, render(t, "login.html", map[string]interface{}{"Next": "/x", "Email": "", "Error": ""}), "Staff login")
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "/sales/opportunity/leads", PageURL(lead.ListFilters{}, 1))
	assert.Equal(t, "/sales/opportunity/leads?name=tar&page=2", PageURL(lead.ListFilters{Name: "tar"}, 2))
}
