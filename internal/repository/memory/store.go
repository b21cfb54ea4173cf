// Package memory is an in-process implementation of the CRM stores. It backs
// tests and local runs without PostgreSQL and follows the same ordering and
// filtering rules as the postgres repositories.
package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"crm-service/internal/domain/auth"
	"crm-service/internal/domain/config"
	"crm-service/internal/domain/lead"
	"crm-service/internal/domain/party"
	xerrors "crm-service/internal/pkg/errors"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu sync.RWMutex

	seq   int64
	clock time.Time

	parties    map[int64]party.Party
	addresses  map[int64]party.Address
	mechanisms []party.ContactMechanism
	leads      map[int64]lead.Lead
	comments   []lead.Comment
	employees  map[int64]auth.Employee
	staff      map[int64]auth.StaffUser
	settings   config.SaleConfiguration
	salesTeams map[int64][]string

	// FailIntake makes the next CreateFromIntake fail without writing.
	FailIntake error
}

func NewStore() *Store {
	return &Store{
		clock:      time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
		parties:    make(map[int64]party.Party),
		addresses:  make(map[int64]party.Address),
		leads:      make(map[int64]lead.Lead),
		employees:  make(map[int64]auth.Employee),
		staff:      make(map[int64]auth.StaffUser),
		settings:   config.SaleConfiguration{ID: 1},
		salesTeams: make(map[int64][]string),
	}
}

// next hands out ids and strictly increasing timestamps. Callers hold mu.
func (s *Store) next() (int64, time.Time) {
	s.seq++
	return s.seq, s.clock.Add(time.Duration(s.seq) * time.Second)
}

// ========== Seeding ==========

func (s *Store) AddEmployee(name string) auth.Employee {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, now := s.next()
	e := auth.Employee{ID: id, Name: name, CreatedAt: now}
	s.employees[id] = e
	return e
}

// AddStaff registers a staff user, optionally acting as employeeID.
func (s *Store) AddStaff(email, fullName string, employeeID int64) auth.StaffUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := s.next()
	u := auth.StaffUser{IdentityID: id, Email: email, FullName: fullName}
	if employeeID > 0 {
		e := employeeID
		u.EmployeeID = &e
	}
	s.staff[id] = u
	return u
}

func (s *Store) SetSettings(cfg config.SaleConfiguration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg.ID = 1
	s.settings = cfg
}

func (s *Store) SetSalesTeam(companyID int64, emails ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.salesTeams[companyID] = emails
}

// ========== Inspection ==========

func (s *Store) PartyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.parties)
}

func (s *Store) LeadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads)
}

// Mechanisms returns a party's contact mechanisms in creation order.
func (s *Store) Mechanisms(partyID int64) []party.ContactMechanism {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []party.ContactMechanism
	for _, m := range s.mechanisms {
		if m.PartyID == partyID {
			out = append(out, m)
		}
	}
	return out
}

// ========== Leads ==========

func (s *Store) CreateFromIntake(_ context.Context, rec *lead.IntakeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.FailIntake; err != nil {
		s.FailIntake = nil
		return err
	}
	emp, ok := s.employees[rec.Lead.EmployeeID]
	if !ok {
		return xerrors.Wrap(xerrors.ErrNotFound, "employee")
	}

	rec.Party.ID, rec.Party.CreatedAt = s.next()
	s.parties[rec.Party.ID] = rec.Party

	rec.Address.PartyID = rec.Party.ID
	rec.Address.ID, rec.Address.CreatedAt = s.next()
	s.addresses[rec.Address.ID] = rec.Address

	for i := range rec.Mechanisms {
		m := &rec.Mechanisms[i]
		m.PartyID = rec.Party.ID
		m.ID, m.CreatedAt = s.next()
		s.mechanisms = append(s.mechanisms, *m)
	}

	l := &rec.Lead
	l.PartyID = rec.Party.ID
	l.PartyName = rec.Party.Name
	l.AddressID = rec.Address.ID
	l.ContactName = rec.Address.Name
	l.Email = rec.Address.Email
	l.Phone = rec.Address.Phone
	l.CountryCode = rec.Address.CountryCode
	l.EmployeeName = emp.Name
	if l.State == "" {
		l.State = lead.StateLead
	}
	l.ID, l.CreatedAt = s.next()
	l.UpdatedAt = l.CreatedAt
	s.leads[l.ID] = *l
	return nil
}

func (s *Store) FindByID(_ context.Context, id int64) (*lead.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &l, nil
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func matches(l lead.Lead, f lead.ListFilters) bool {
	if f.Company != "" && !containsFold(l.PartyName, f.Company) {
		return false
	}
	if f.Name != "" && !containsFold(l.ContactName, f.Name) {
		return false
	}
	if f.Email != "" && (!l.Email.Valid || !containsFold(l.Email.String, f.Email)) {
		return false
	}
	if f.State != "" && string(l.State) != f.State {
		return false
	}
	return true
}

// List returns matches newest first.
func (s *Store) List(_ context.Context, f lead.ListFilters, limit, offset int) ([]lead.Lead, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []lead.Lead
	for _, l := range s.leads {
		if matches(l, f) {
			all = append(all, l)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := int64(len(all))
	if offset >= len(all) {
		return []lead.Lead{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *Store) SetState(_ context.Context, ids []int64, state lead.State) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, id := range ids {
		l, ok := s.leads[id]
		if !ok {
			continue
		}
		l.State = state
		_, l.UpdatedAt = s.next()
		s.leads[id] = l
		n++
	}
	return n, nil
}

func (s *Store) UpdateEmployee(_ context.Context, id, employeeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	emp, ok := s.employees[employeeID]
	if !ok {
		return xerrors.Wrap(xerrors.ErrNotFound, "employee")
	}
	l.EmployeeID = emp.ID
	l.EmployeeName = emp.Name
	_, l.UpdatedAt = s.next()
	s.leads[id] = l
	return nil
}

func (s *Store) UpdateRevenue(_ context.Context, id int64, probability sql.NullInt32, amount decimal.NullDecimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leads[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	l.Probability = probability
	l.Amount = amount
	_, l.UpdatedAt = s.next()
	s.leads[id] = l
	return nil
}

func (s *Store) CountByState(_ context.Context) (lead.StateCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(lead.StateCounts)
	for _, st := range lead.AllStates() {
		counts[st] = 0
	}
	for _, l := range s.leads {
		counts[l.State]++
	}
	return counts, nil
}

// ========== Comments ==========

// Comments is the comment store view of s.
func (s *Store) Comments() *CommentStore {
	return &CommentStore{s: s}
}

type CommentStore struct {
	s *Store
}

func (c *CommentStore) Create(_ context.Context, cm *lead.Comment) error {
	s := c.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[cm.LeadID]; !ok {
		return xerrors.ErrNotFound
	}
	cm.ID, cm.CreatedAt = s.next()
	if u, ok := s.staff[cm.AuthorID]; ok {
		cm.AuthorName = u.DisplayName()
	}
	s.comments = append(s.comments, *cm)
	return nil
}

func (c *CommentStore) ListByLead(_ context.Context, leadID int64) ([]lead.Comment, error) {
	s := c.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []lead.Comment{}
	for _, cm := range s.comments {
		if cm.LeadID == leadID {
			out = append(out, cm)
		}
	}
	return out, nil
}

// ========== Staff ==========

func (s *Store) FindStaffByID(_ context.Context, identityID int64) (*auth.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.staff[identityID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return &u, nil
}

func (s *Store) FindStaffByEmployee(_ context.Context, employeeID int64) (*auth.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *auth.StaffUser
	for _, u := range s.staff {
		if u.EmployeeID != nil && *u.EmployeeID == employeeID {
			if found == nil || u.IdentityID < found.IdentityID {
				u := u
				found = &u
			}
		}
	}
	if found == nil {
		return nil, xerrors.ErrNotFound
	}
	return found, nil
}

func (s *Store) ListStaff(_ context.Context) ([]auth.StaffUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]auth.StaffUser, 0, len(s.staff))
	for _, u := range s.staff {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName() != out[j].DisplayName() {
			return out[i].DisplayName() < out[j].DisplayName()
		}
		return out[i].IdentityID < out[j].IdentityID
	})
	return out, nil
}

// ========== Settings ==========

func (s *Store) Get(_ context.Context) (*config.SaleConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.settings
	return &cfg, nil
}

func (s *Store) SalesTeam(_ context.Context, companyID int64) (*config.SalesTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emails := append(pq.StringArray{}, s.salesTeams[companyID]...)
	return &config.SalesTeam{CompanyID: companyID, Emails: emails}, nil
}
