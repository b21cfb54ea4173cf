// Package geoip resolves client addresses to countries.
package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Location is the best-effort country of an address.
type Location struct {
	CountryCode string
	CountryName string
}

// Locator is the geolocation collaborator used by lead intake.
type Locator interface {
	IsAvailable() bool
	Lookup(ip string) (Location, bool)
}

// Reader is a Locator backed by a MaxMind country or city database.
type Reader struct {
	db *geoip2.Reader
}

// Open loads the database at path.
func Open(path string) (*Reader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &Reader{db: db}, nil
}

func (r *Reader) IsAvailable() bool {
	return r != nil && r.db != nil
}

func (r *Reader) Lookup(ip string) (Location, bool) {
	if !r.IsAvailable() {
		return Location{}, false
	}

	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() {
		return Location{}, false
	}

	record, err := r.db.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return Location{}, false
	}

	return Location{
		CountryCode: record.Country.IsoCode,
		CountryName: record.Country.Names["en"],
	}, true
}

func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Nop is used when no database is configured.
type Nop struct{}

func (Nop) IsAvailable() bool              { return false }
func (Nop) Lookup(string) (Location, bool) { return Location{}, false }

// Static answers every lookup from a fixed table. Useful in tests and for
// pinning office addresses.
type Static map[string]Location

func (s Static) IsAvailable() bool { return true }

func (s Static) Lookup(ip string) (Location, bool) {
	loc, ok := s[ip]
	return loc, ok
}
