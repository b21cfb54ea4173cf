package lead

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"crm-service/internal/domain/config"
	"crm-service/internal/domain/lead"
	ws "crm-service/internal/domain/websocket"
	"crm-service/internal/pkg/countries"
	"crm-service/internal/repository/memory"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedEvent struct {
	Type ws.EventType
	Data ws.LeadEventData
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) PublishLeadEvent(t ws.EventType, d ws.LeadEventData) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Type: t, Data: d})
}

type notifierFunc func(ctx context.Context, l *lead.Lead) error

func (f notifierFunc) LeadCreated(ctx context.Context, l *lead.Lead) error { return f(ctx, l) }

type fixture struct {
	store     *memory.Store
	events    *eventRecorder
	notified  []*lead.Lead
	notifyErr error

	websiteEmployee int64
	intake          *IntakeService
	triage          *TriageService
	workflow        *Workflow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{store: memory.NewStore(), events: &eventRecorder{}}
	web := f.store.AddEmployee("Website")
	f.websiteEmployee = web.ID
	f.store.SetSettings(config.SaleConfiguration{
		WebsiteEmployeeID: sql.NullInt64{Int64: web.ID, Valid: true},
		CompanyID:         sql.NullInt64{Int64: 1, Valid: true},
	})

	catalogue, err := countries.Load()
	require.NoError(t, err)

	notifier := notifierFunc(func(_ context.Context, l *lead.Lead) error {
		f.notified = append(f.notified, l)
		return f.notifyErr
	})

	logger := zap.NewNop()
	f.intake = NewIntakeService(IntakeDeps{
		Leads:     f.store,
		Settings:  f.store,
		Staff:     f.store,
		Notifier:  notifier,
		Countries: catalogue,
		Events:    f.events,
	}, logger)
	f.triage = NewTriageService(f.store, f.store.Comments(), f.store, f.events, logger)
	f.workflow = NewWorkflow(f.store, f.events, logger)
	return f
}

func (f *fixture) submit(t *testing.T, req lead.IntakeRequest) int64 {
	t.Helper()
	res, err := f.intake.Submit(context.Background(), &req)
	require.NoError(t, err)
	return res.LeadID
}

func tarun() lead.IntakeRequest {
	return lead.IntakeRequest{
		Name:     "Tarun Bhardwaj",
		Email:    "tarun@example.com",
		Company:  "Acme Corp",
		Country:  "in",
		Website:  "https://acme.example.com",
		Phone:    "+91 98765 43210",
		Comment:  "We need a CRM",
		RemoteIP: "203.0.113.7",
	}
}

type emptySettings struct{}

func (emptySettings) Get(context.Context) (*config.SaleConfiguration, error) {
	return &config.SaleConfiguration{ID: 1}, nil
}
