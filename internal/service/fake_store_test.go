package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fire-team/ticket-router/internal/models"
)

type pairKey struct {
	client uuid.UUID
	raw    int64
}

// memStore mimics the PostgreSQL store: unique (client, raw ticket) pair and
// a conditional assignment commit.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	raw      map[int64]models.RawTicket
	enriched map[int64]models.EnrichedTicket
	pairs    map[pairKey]int64
	offices  []models.Office
	managers map[int64]*models.Manager

	// insertGate, when set, is waited on before every enriched insert so
	// tests can line concurrent inserts up.
	insertGate chan struct{}
	failRaw    map[string]bool
	// afterRaw runs after every raw ticket insert.
	afterRaw func()
}

func newMemStore(offices []models.Office, managers []models.Manager) *memStore {
	s := &memStore{
		raw:      map[int64]models.RawTicket{},
		enriched: map[int64]models.EnrichedTicket{},
		pairs:    map[pairKey]int64{},
		offices:  offices,
		managers: map[int64]*models.Manager{},
		failRaw:  map[string]bool{},
	}
	for i := range managers {
		m := managers[i]
		s.managers[m.ID] = &m
	}
	return s
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) InsertRawTicket(ctx context.Context, r models.RawTicket) (models.RawTicket, error) {
	if err := ctx.Err(); err != nil {
		return models.RawTicket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRaw[r.Description] {
		return models.RawTicket{}, fmt.Errorf("insert raw ticket: connection reset")
	}
	r.ID = s.id()
	r.CreatedAt = time.Now()
	s.raw[r.ID] = r
	if s.afterRaw != nil {
		s.afterRaw()
	}
	return r, nil
}

func (s *memStore) GetRawTicket(ctx context.Context, id int64) (models.RawTicket, error) {
	if err := ctx.Err(); err != nil {
		return models.RawTicket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.raw[id]
	if !ok {
		return models.RawTicket{}, fmt.Errorf("get raw ticket: %w", models.ErrNotFound)
	}
	return r, nil
}

func (s *memStore) FindRawTicketByClient(ctx context.Context, clientID uuid.UUID) (models.RawTicket, error) {
	if err := ctx.Err(); err != nil {
		return models.RawTicket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var best models.RawTicket
	for _, r := range s.raw {
		if r.ClientID == clientID && r.ID > best.ID {
			best = r
		}
	}
	if best.ID == 0 {
		return models.RawTicket{}, fmt.Errorf("find raw ticket: %w", models.ErrNotFound)
	}
	return best, nil
}

func (s *memStore) withNames(t models.EnrichedTicket) models.EnrichedTicket {
	t.AssignedOfficeName, t.AssignedManagerName = "", ""
	if t.AssignedOfficeID != nil {
		for _, o := range s.offices {
			if o.ID == *t.AssignedOfficeID {
				t.AssignedOfficeName = o.Name
			}
		}
	}
	if t.AssignedManagerID != nil {
		if m, ok := s.managers[*t.AssignedManagerID]; ok {
			t.AssignedManagerName = m.FullName
		}
	}
	return t
}

func (s *memStore) GetEnrichedTicket(ctx context.Context, id int64) (models.EnrichedTicket, error) {
	if err := ctx.Err(); err != nil {
		return models.EnrichedTicket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.enriched[id]
	if !ok {
		return models.EnrichedTicket{}, fmt.Errorf("get enriched ticket: %w", models.ErrNotFound)
	}
	return s.withNames(t), nil
}

func (s *memStore) FindEnrichedByKey(ctx context.Context, clientID uuid.UUID, rawID int64) (models.EnrichedTicket, error) {
	if err := ctx.Err(); err != nil {
		return models.EnrichedTicket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.pairs[pairKey{clientID, rawID}]
	if !ok {
		return models.EnrichedTicket{}, fmt.Errorf("find enriched ticket: %w", models.ErrNotFound)
	}
	return s.withNames(s.enriched[id]), nil
}

func (s *memStore) FindEnrichedByClient(ctx context.Context, clientID uuid.UUID) (models.EnrichedTicket, error) {
	if err := ctx.Err(); err != nil {
		return models.EnrichedTicket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var best models.EnrichedTicket
	for _, t := range s.enriched {
		if t.ClientID == clientID && t.ID > best.ID {
			best = t
		}
	}
	if best.ID == 0 {
		return models.EnrichedTicket{}, fmt.Errorf("find enriched ticket by client: %w", models.ErrNotFound)
	}
	return s.withNames(best), nil
}

func (s *memStore) InsertEnrichedTicket(ctx context.Context, t models.EnrichedTicket) (models.EnrichedTicket, error) {
	if err := ctx.Err(); err != nil {
		return models.EnrichedTicket{}, err
	}
	if s.insertGate != nil {
		<-s.insertGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{t.ClientID, t.RawTicketID}
	if _, dup := s.pairs[key]; dup {
		return models.EnrichedTicket{}, fmt.Errorf("insert enriched ticket: %w", models.ErrConflict)
	}
	t.ID = s.id()
	t.Status = models.StatusEnriched
	t.AssignedOfficeID, t.AssignedManagerID, t.AssignedAt = nil, nil, nil
	s.enriched[t.ID] = t
	s.pairs[key] = t.ID
	return s.withNames(t), nil
}

func (s *memStore) UpdateEnrichment(ctx context.Context, t models.EnrichedTicket) (models.EnrichedTicket, error) {
	if err := ctx.Err(); err != nil {
		return models.EnrichedTicket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.enriched[t.ID]
	if !ok {
		return models.EnrichedTicket{}, fmt.Errorf("update enrichment: %w", models.ErrNotFound)
	}
	cur.Type, cur.Priority, cur.Language, cur.Sentiment, cur.Summary = t.Type, t.Priority, t.Language, t.Sentiment, t.Summary
	cur.Latitude, cur.Longitude, cur.GeoNormalized, cur.EnrichedAt = t.Latitude, t.Longitude, t.GeoNormalized, t.EnrichedAt
	s.enriched[t.ID] = cur
	return s.withNames(cur), nil
}

func (s *memStore) ListOffices(context.Context) ([]models.Office, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Office(nil), s.offices...), nil
}

func (s *memStore) ListManagers(context.Context) ([]models.Manager, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Manager, 0, len(s.managers))
	for _, m := range s.managers {
		out = append(out, *m)
	}
	return out, nil
}

func (s *memStore) CommitAssignment(ctx context.Context, ticketID int64, officeID *int64, managerID int64, at time.Time) (models.EnrichedTicket, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.EnrichedTicket{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.enriched[ticketID]
	if !ok {
		return models.EnrichedTicket{}, false, fmt.Errorf("commit assignment: %w", models.ErrNotFound)
	}
	if t.AssignedManagerID != nil {
		return s.withNames(t), false, nil
	}
	m, ok := s.managers[managerID]
	if !ok {
		return models.EnrichedTicket{}, false, fmt.Errorf("update manager load: %w", models.ErrNotFound)
	}
	m.ActiveTickets++
	mid := managerID
	t.AssignedManagerID = &mid
	t.AssignedOfficeID = officeID
	t.Status = models.StatusAssigned
	t.AssignedAt = &at
	s.enriched[ticketID] = t
	return s.withNames(t), true, nil
}

func (s *memStore) MarkUnassigned(ctx context.Context, ticketID int64, officeID *int64) (models.EnrichedTicket, error) {
	if err := ctx.Err(); err != nil {
		return models.EnrichedTicket{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.enriched[ticketID]
	if !ok {
		return models.EnrichedTicket{}, fmt.Errorf("mark unassigned: %w", models.ErrNotFound)
	}
	if t.AssignedManagerID == nil {
		t.Status = models.StatusUnassigned
		if officeID != nil {
			t.AssignedOfficeID = officeID
		}
		s.enriched[ticketID] = t
	}
	return s.withNames(t), nil
}

func (s *memStore) managerLoad(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.managers[id].ActiveTickets
}

func (s *memStore) enrichedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.enriched)
}

type recordingPublisher struct {
	mu      sync.Mutex
	results []models.AssignmentResult
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, r models.AssignmentResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, r)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.results)
}
