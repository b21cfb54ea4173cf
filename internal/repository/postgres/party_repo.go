// internal/repository/postgres/party_repo.go
package postgres

import (
	"context"
	"fmt"

	"crm-service/internal/domain/party"

	"github.com/jackc/pgx/v5"
)

// PartyRepository writes parties and their contact data. Writes only happen
// inside the intake transaction, so every method takes the caller's tx.
type PartyRepository struct{}

func NewPartyRepository() *PartyRepository {
	return &PartyRepository{}
}

func (r *PartyRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, p *party.Party) error {
	query := `INSERT INTO parties (name) VALUES ($1) RETURNING id, created_at`
	if err := tx.QueryRow(ctx, query, p.Name).Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("failed to create party: %w", err)
	}
	return nil
}

func (r *PartyRepository) CreateAddressWithTx(ctx context.Context, tx pgx.Tx, a *party.Address) error {
	query := `
		INSERT INTO party_addresses (party_id, name, country_code, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := tx.QueryRow(ctx, query, a.PartyID, a.Name, a.CountryCode, a.Email, a.Phone).
		Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	return nil
}

func (r *PartyRepository) AddContactMechanismWithTx(ctx context.Context, tx pgx.Tx, m *party.ContactMechanism) error {
	query := `
		INSERT INTO party_contact_mechanisms (party_id, type, value)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := tx.QueryRow(ctx, query, m.PartyID, string(m.Type), m.Value).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add %s contact mechanism: %w", m.Type, err)
	}
	return nil
}
