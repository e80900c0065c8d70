package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fire-team/ticket-router/internal/models"
)

func newProcessor(store *memStore, pub Publisher) *IngestionProcessor {
	return NewIngestionProcessor(store, newAssigner(store), pub, zerolog.Nop())
}

func TestProcessConcurrentDuplicatesYieldOneRow(t *testing.T) {
	store := newMemStore(testOffices(), testManagers())
	raw, err := store.InsertRawTicket(context.Background(), models.RawTicket{ClientID: uuid.New()})
	require.NoError(t, err)
	store.insertGate = make(chan struct{})
	pub := &recordingPublisher{}
	p := newProcessor(store, pub)

	ev := models.EnrichmentEvent{
		ClientID:    raw.ClientID,
		RawTicketID: &raw.ID,
		Type:        "Консультация",
		Priority:    ptr(4),
		Language:    "RU",
		Latitude:    ptr(51.17),
		Longitude:   ptr(71.45),
	}

	const n = 8
	results := make([]models.AssignmentResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := p.Process(context.Background(), ev)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(store.insertGate)
	wg.Wait()

	assert.Equal(t, 1, store.enrichedCount())
	for _, r := range results {
		assert.Equal(t, results[0].EnrichedTicketID, r.EnrichedTicketID)
		assert.Equal(t, models.StatusAssigned, r.Status)
	}
	assert.Equal(t, 1, store.managerLoad(1)+store.managerLoad(2))
	assert.Equal(t, n, pub.count())
}

func TestProcessOverwritesEnrichmentButKeepsAssignment(t *testing.T) {
	store := newMemStore(testOffices(), testManagers())
	p := newProcessor(store, nil)
	clientID := uuid.New()

	first, err := p.Process(context.Background(), models.EnrichmentEvent{
		ClientID: clientID, Type: "Консультация", Language: "RU", Latitude: ptr(43.2), Longitude: ptr(76.9),
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusAssigned, first.Status)

	second, err := p.Process(context.Background(), models.EnrichmentEvent{
		ClientID: clientID, RawTicketID: &first.RawTicketID, Type: "Жалоба", Priority: ptr(9), Language: "KZ",
	})
	require.NoError(t, err)

	assert.Equal(t, first.EnrichedTicketID, second.EnrichedTicketID)
	assert.Equal(t, first.AssignedManagerID, second.AssignedManagerID)
	got, _ := store.GetEnrichedTicket(context.Background(), first.EnrichedTicketID)
	assert.Equal(t, "Жалоба", got.Type)
	assert.Equal(t, 9, got.Priority)
	assert.Nil(t, got.Latitude)
	assert.Equal(t, 1, store.enrichedCount())
}

func TestProcessCreatesStubRawTicket(t *testing.T) {
	store := newMemStore(testOffices(), testManagers())
	clientID := uuid.New()

	res, err := newProcessor(store, nil).Process(context.Background(), models.EnrichmentEvent{ClientID: clientID, Summary: "card lost"})

	require.NoError(t, err)
	raw, err := store.GetRawTicket(context.Background(), res.RawTicketID)
	require.NoError(t, err)
	assert.Equal(t, clientID, raw.ClientID)
	assert.Equal(t, clientID, res.ClientID)
}

func TestProcessFallsBackToClientWhenRawTicketMissing(t *testing.T) {
	store := newMemStore(testOffices(), testManagers())
	raw, _ := store.InsertRawTicket(context.Background(), models.RawTicket{ClientID: uuid.New()})

	res, err := newProcessor(store, nil).Process(context.Background(), models.EnrichmentEvent{
		ClientID: raw.ClientID, RawTicketID: ptr(int64(777)),
	})

	require.NoError(t, err)
	assert.Equal(t, raw.ID, res.RawTicketID)
}

func TestProcessValidation(t *testing.T) {
	p := newProcessor(newMemStore(nil, nil), nil)

	_, err := p.Process(context.Background(), models.EnrichmentEvent{})
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = p.Process(context.Background(), models.EnrichmentEvent{ClientID: uuid.New(), Priority: ptr(11)})
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = p.Process(context.Background(), models.EnrichmentEvent{ClientID: uuid.New(), Latitude: ptr(120.0), Longitude: ptr(10.0)})
	assert.True(t, errors.Is(err, models.ErrValidation))
}

func TestProcessPublishFailureIsNotFatal(t *testing.T) {
	store := newMemStore(testOffices(), nil)
	pub := &recordingPublisher{err: errors.New("stream down")}

	res, err := newProcessor(store, pub).Process(context.Background(), models.EnrichmentEvent{ClientID: uuid.New()})

	require.NoError(t, err)
	assert.Equal(t, models.StatusUnassigned, res.Status)
	assert.Equal(t, 1, pub.count())
}
