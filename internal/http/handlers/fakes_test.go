package handlers

import (
	"context"
	"errors"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fire-team/ticket-router/internal/idempotency"
	"github.com/fire-team/ticket-router/internal/models"
	"github.com/fire-team/ticket-router/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDirectory struct {
	pingErr  error
	tickets  map[int64]models.EnrichedTicket
	offices  []models.Office
	managers []models.Manager
}

func (f *fakeDirectory) Ping(context.Context) error { return f.pingErr }

func (f *fakeDirectory) GetEnrichedTicket(_ context.Context, id int64) (models.EnrichedTicket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return models.EnrichedTicket{}, models.ErrNotFound
	}
	return t, nil
}

func (f *fakeDirectory) ListOffices(context.Context) ([]models.Office, error) {
	return f.offices, nil
}

func (f *fakeDirectory) ListManagers(context.Context) ([]models.Manager, error) {
	return append([]models.Manager(nil), f.managers...), nil
}

type fakeAssigner struct {
	mu    sync.Mutex
	calls int
	dir   *fakeDirectory
}

func (f *fakeAssigner) Assign(ctx context.Context, id int64) (models.EnrichedTicket, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	t, err := f.dir.GetEnrichedTicket(ctx, id)
	if err != nil {
		return t, err
	}
	mgr := int64(1)
	t.AssignedManagerID = &mgr
	t.Status = models.StatusAssigned
	return t, nil
}

func (f *fakeAssigner) Explain(ctx context.Context, id int64) (service.Explanation, error) {
	t, err := f.dir.GetEnrichedTicket(ctx, id)
	if err != nil {
		return service.Explanation{}, err
	}
	return service.Explanation{Ticket: t}, nil
}

type fakeEvents struct{}

func (fakeEvents) Process(_ context.Context, ev models.EnrichmentEvent) (models.AssignmentResult, error) {
	if ev.Priority != nil && *ev.Priority > 10 {
		return models.AssignmentResult{}, errors.Join(models.ErrValidation, errors.New("priority out of range"))
	}
	return models.AssignmentResult{ClientID: ev.ClientID, Status: models.StatusAssigned}, nil
}

type fakeBatch struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeBatch) ProcessBatch(_ context.Context, tickets []models.RawTicket) []models.ProcessingResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	v := validator.New()
	out := make([]models.ProcessingResult, len(tickets))
	for i, t := range tickets {
		if t.ClientID.String() == "00000000-0000-0000-0000-000000000000" {
			out[i] = models.ProcessingResult{Status: service.ResultFailed, Message: "client id is required"}
			continue
		}
		if err := v.Struct(t); err != nil {
			out[i] = models.ProcessingResult{ClientID: t.ClientID.String(), Status: service.ResultFailed, Message: err.Error()}
			continue
		}
		out[i] = models.ProcessingResult{
			ClientID:   t.ClientID.String(),
			Status:     string(models.StatusEnriched),
			Assignment: models.StatusAssigned,
		}
	}
	return out
}

type fakeResults map[string]models.AssignmentResult

func (f fakeResults) Results(_ context.Context, ids []string) (map[string]models.AssignmentResult, error) {
	out := map[string]models.AssignmentResult{}
	for _, id := range ids {
		if r, ok := f[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

type memIdempotency struct {
	mu      sync.Mutex
	entries map[string]idempotency.Entry
}

func (m *memIdempotency) Lookup(_ context.Context, scope, key, hash string) (*idempotency.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[scope+key]
	if !ok {
		return nil, nil
	}
	if e.RequestHash != hash {
		return nil, models.ErrConflict
	}
	return &e, nil
}

func (m *memIdempotency) Save(_ context.Context, scope, key, hash string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[scope+key] = idempotency.Entry{RequestHash: hash, Status: status, Body: body}
	return nil
}

type fixture struct {
	handler  *Handler
	dir      *fakeDirectory
	assigner *fakeAssigner
	batch    *fakeBatch
	router   *gin.Engine
}

func newFixture() *fixture {
	dir := &fakeDirectory{
		tickets: map[int64]models.EnrichedTicket{
			7: {ID: 7, Status: models.StatusEnriched, Summary: "s"},
		},
		offices: []models.Office{{ID: 1, Code: "AST", Name: "Астана"}},
		managers: []models.Manager{
			{ID: 1, FullName: "A", OfficeCode: "AST"},
			{ID: 2, FullName: "B", OfficeCode: "ALA"},
		},
	}
	f := &fixture{
		dir:      dir,
		assigner: &fakeAssigner{dir: dir},
		batch:    &fakeBatch{},
	}
	f.handler = &Handler{
		Store:       dir,
		Assigner:    f.assigner,
		Events:      fakeEvents{},
		Intake:      f.batch,
		Results:     fakeResults{},
		Idempotency: &memIdempotency{entries: map[string]idempotency.Entry{}},
		Validator:   validator.New(),
		Logger:      zerolog.Nop(),
	}

	r := gin.New()
	r.GET("/healthz", f.handler.Healthz)
	r.GET("/tickets/:id", f.handler.TicketDetails)
	r.POST("/tickets/:id/assign", f.handler.AssignTicket)
	r.GET("/debug/routing", f.handler.DebugRouting)
	r.GET("/managers", f.handler.ManagersList)
	r.GET("/offices", f.handler.OfficesList)
	r.POST("/intake/tickets", f.handler.IntakeTickets)
	r.POST("/intake/events", f.handler.IntakeEvent)
	r.GET("/intake/results", f.handler.IntakeResults)
	f.router = r
	return f
}
