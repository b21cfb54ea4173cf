// internal/repository/postgres/lead_repo.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm-service/internal/domain/lead"
	xerrors "crm-service/internal/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type LeadRepository struct {
	db        *pgxpool.Pool
	dbWrapper *DB
	partyRepo *PartyRepository
}

func NewLeadRepository(db *pgxpool.Pool, partyRepo *PartyRepository, dbWrapper *DB) *LeadRepository {
	return &LeadRepository{
		db:        db,
		dbWrapper: dbWrapper,
		partyRepo: partyRepo,
	}
}

const leadSelect = `
	SELECT o.id, o.party_id, p.name, o.address_id, a.name, a.email, a.phone, a.country_code,
	       o.employee_id, e.name, o.company_id, o.state, o.description, o.comment,
	       o.ip_address, o.detected_country, o.probability, o.amount,
	       o.created_at, o.updated_at
	FROM sale_opportunities o
	JOIN parties p ON p.id = o.party_id
	JOIN party_addresses a ON a.id = o.address_id
	JOIN employees e ON e.id = o.employee_id
`

func scanLead(row pgx.Row) (*lead.Lead, error) {
	var (
		l     lead.Lead
		state string
	)
	err := row.Scan(
		&l.ID, &l.PartyID, &l.PartyName, &l.AddressID, &l.ContactName, &l.Email, &l.Phone, &l.CountryCode,
		&l.EmployeeID, &l.EmployeeName, &l.CompanyID, &state, &l.Description, &l.Comment,
		&l.IPAddress, &l.DetectedCountry, &l.Probability, &l.Amount,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if l.State, err = lead.ParseState(state); err != nil {
		return nil, fmt.Errorf("lead %d: %w", l.ID, err)
	}
	return &l, nil
}

// CreateFromIntake stores the party, its address, contact mechanisms and the
// lead in one transaction. IDs are written back into rec.
func (r *LeadRepository) CreateFromIntake(ctx context.Context, rec *lead.IntakeRecord) error {
	return r.dbWrapper.WithinTx(ctx, func(tx pgx.Tx) error {
		if err := r.partyRepo.CreateWithTx(ctx, tx, &rec.Party); err != nil {
			return err
		}

		rec.Address.PartyID = rec.Party.ID
		if err := r.partyRepo.CreateAddressWithTx(ctx, tx, &rec.Address); err != nil {
			return err
		}

		for i := range rec.Mechanisms {
			rec.Mechanisms[i].PartyID = rec.Party.ID
			if err := r.partyRepo.AddContactMechanismWithTx(ctx, tx, &rec.Mechanisms[i]); err != nil {
				return err
			}
		}

		l := &rec.Lead
		l.PartyID = rec.Party.ID
		l.PartyName = rec.Party.Name
		l.AddressID = rec.Address.ID
		l.ContactName = rec.Address.Name
		l.Email = rec.Address.Email
		l.Phone = rec.Address.Phone
		l.CountryCode = rec.Address.CountryCode
		if l.State == "" {
			l.State = lead.StateLead
		}

		query := `
			INSERT INTO sale_opportunities (
				party_id, address_id, employee_id, company_id, state, description, comment,
				ip_address, detected_country
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			l.PartyID, l.AddressID, l.EmployeeID, l.CompanyID, string(l.State), l.Description, l.Comment,
			l.IPAddress, l.DetectedCountry,
		).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create lead: %w", err)
		}
		return nil
	})
}

func (r *LeadRepository) FindByID(ctx context.Context, id int64) (*lead.Lead, error) {
	l, err := scanLead(r.db.QueryRow(ctx, leadSelect+` WHERE o.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lead: %w", err)
	}
	return l, nil
}

// escapeLike makes user input literal inside an ILIKE pattern.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// buildLeadFilters turns list filters into a WHERE clause and its arguments.
// Text filters are case-insensitive substring matches, state is exact.
func buildLeadFilters(f lead.ListFilters) (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
		argPos     = 1
	)

	add := func(expr string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(expr, argPos))
		args = append(args, value)
		argPos++
	}

	if v := strings.TrimSpace(f.Company); v != "" {
		add("p.name ILIKE $%d", "%"+escapeLike(v)+"%")
	}
	if v := strings.TrimSpace(f.Name); v != "" {
		add("a.name ILIKE $%d", "%"+escapeLike(v)+"%")
	}
	if v := strings.TrimSpace(f.Email); v != "" {
		add("a.email ILIKE $%d", "%"+escapeLike(v)+"%")
	}
	if v := strings.TrimSpace(f.State); v != "" {
		add("o.state = $%d", v)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns one page of leads, newest first, and the total match count.
func (r *LeadRepository) List(ctx context.Context, f lead.ListFilters, limit, offset int) ([]lead.Lead, int64, error) {
	where, args := buildLeadFilters(f)

	countQuery := `
		SELECT COUNT(*)
		FROM sale_opportunities o
		JOIN parties p ON p.id = o.party_id
		JOIN party_addresses a ON a.id = o.address_id` + where

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leads: %w", err)
	}

	argPos := len(args) + 1
	query := leadSelect + where + fmt.Sprintf(" ORDER BY o.created_at DESC, o.id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := make([]lead.Lead, 0, limit)
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate leads: %w", err)
	}

	return leads, total, nil
}

// SetState writes state to every listed lead and reports how many rows changed.
func (r *LeadRepository) SetState(ctx context.Context, ids []int64, state lead.State) (int64, error) {
	query := `UPDATE sale_opportunities SET state = $1, updated_at = $2 WHERE id = ANY($3)`
	tag, err := r.db.Exec(ctx, query, string(state), time.Now(), pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to set lead state: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *LeadRepository) UpdateEmployee(ctx context.Context, id, employeeID int64) error {
	query := `UPDATE sale_opportunities SET employee_id = $1, updated_at = $2 WHERE id = $3`
	tag, err := r.db.Exec(ctx, query, employeeID, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to assign lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *LeadRepository) UpdateRevenue(ctx context.Context, id int64, probability sql.NullInt32, amount decimal.NullDecimal) error {
	query := `UPDATE sale_opportunities SET probability = $1, amount = $2, updated_at = $3 WHERE id = $4`
	tag, err := r.db.Exec(ctx, query, probability, amount, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update revenue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// CountByState returns a tally for every state, including empty ones.
func (r *LeadRepository) CountByState(ctx context.Context) (lead.StateCounts, error) {
	rows, err := r.db.Query(ctx, `SELECT state, COUNT(*) FROM sale_opportunities GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	defer rows.Close()

	counts := make(lead.StateCounts, len(lead.AllStates()))
	for _, s := range lead.AllStates() {
		counts[s] = 0
	}
	for rows.Next() {
		var (
			state string
			n     int64
		)
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[lead.State(state)] = n
	}
	return counts, rows.Err()
}
