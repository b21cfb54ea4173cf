// internal/domain/party/entity.go
package party

import (
	"database/sql"
	"time"
)

// Party is the contact or organization a lead belongs to.
type Party struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Address is the postal/contact record created with the party at intake.
type Address struct {
	ID          int64          `json:"id" db:"id"`
	PartyID     int64          `json:"party_id" db:"party_id"`
	Name        string         `json:"name" db:"name"`
	CountryCode sql.NullString `json:"country_code,omitempty" db:"country_code"`
	Email       sql.NullString `json:"email,omitempty" db:"email"`
	Phone       sql.NullString `json:"phone,omitempty" db:"phone"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

type MechanismType string

const (
	MechanismEmail   MechanismType = "email"
	MechanismWebsite MechanismType = "website"
	MechanismPhone   MechanismType = "phone"
)

// ContactMechanism is one way of reaching a party.
type ContactMechanism struct {
	ID        int64         `json:"id" db:"id"`
	PartyID   int64         `json:"party_id" db:"party_id"`
	Type      MechanismType `json:"type" db:"type"`
	Value     string        `json:"value" db:"value"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
