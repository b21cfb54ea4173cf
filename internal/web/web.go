// Package web holds the server-rendered pages of the sales module.
package web

import (
	"database/sql"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"crm-service/internal/domain/lead"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses every page. Page templates are addressed by file name,
// e.g. "leads.html".
func Templates() (*template.Template, error) {
	t, err := template.New("").Funcs(Funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return t, nil
}

func MustTemplates() *template.Template {
	t, err := Templates()
	if err != nil {
		panic(err)
	}
	return t
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"str": func(s sql.NullString) string {
			if !s.Valid {
				return ""
			}
			return s.String
		},
		"percent": func(p sql.NullInt32) string {
			if !p.Valid {
				return ""
			}
			return strconv.Itoa(int(p.Int32))
		},
		"money": func(d decimal.NullDecimal) string {
			if !d.Valid {
				return ""
			}
			return d.Decimal.StringFixed(2)
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		},
		"states": lead.AllStates,
		"count": func(counts lead.StateCounts, s lead.State) int64 {
			return counts[s]
		},
		"pageURL": PageURL,
		"add":     func(a, b int) int { return a + b },
	}
}

// PageURL is the lead list link for page of the filtered result.
func PageURL(f lead.ListFilters, page int) string {
	q := url.Values{}
	for k, v := range map[string]string{
		"company": f.Company,
		"name":    f.Name,
		"email":   f.Email,
		"state":   f.State,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if len(q) == 0 {
		return "/sales/opportunity/leads"
	}
	return "/sales/opportunity/leads?" + q.Encode()
}
