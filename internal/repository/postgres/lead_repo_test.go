package postgres

import (
	"testing"

	"crm-service/internal/domain/lead"

	"github.com/stretchr/testify/assert"
)

func TestBuildLeadFilters_Empty(t *testing.T) {
	where, args := buildLeadFilters(lead.ListFilters{Page: 3})
	assert.Empty(t, where)
	assert.Empty(t, args)
}

func TestBuildLeadFilters_AllFields(t *testing.T) {
	where, args := buildLeadFilters(lead.ListFilters{
		Company: "Acme",
		Name:    " tarun ",
		Email:   "example.com",
		State:   "lost",
	})

	assert.Equal(t, " WHERE p.name ILIKE $1 AND a.name ILIKE $2 AND a.email ILIKE $3 AND o.state = $4", where)
	assert.Equal(t, []interface{}{"%Acme%", "%tarun%", "%example.com%", "lost"}, args)
}

func TestBuildLeadFilters_NumbersFollowPresentFields(t *testing.T) {
	where, args := buildLeadFilters(lead.ListFilters{Email: "x", State: "lead"})
	assert.Equal(t, " WHERE a.email ILIKE $1 AND o.state = $2", where)
	assert.Len(t, args, 2)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike("100%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c\\d`, escapeLike(`c\d`))
}
