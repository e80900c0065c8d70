package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fire-team/ticket-router/internal/models"
)

// IngestionProcessor upserts enrichment-ready events into the ticket
// projection, deduplicating on (client id, raw ticket id), then assigns and
// publishes the outcome.
type IngestionProcessor struct {
	store     Store
	assigner  *AssignmentService
	publisher Publisher
	validate  *validator.Validate
	logger    zerolog.Logger
}

func NewIngestionProcessor(store Store, assigner *AssignmentService, publisher Publisher, logger zerolog.Logger) *IngestionProcessor {
	return &IngestionProcessor{
		store:     store,
		assigner:  assigner,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger.With().Str("component", "ingestion").Logger(),
	}
}

func (p *IngestionProcessor) Process(ctx context.Context, ev models.EnrichmentEvent) (models.AssignmentResult, error) {
	if err := p.validate.Struct(ev); err != nil {
		return models.AssignmentResult{}, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	raw, err := p.resolveRawTicket(ctx, ev)
	if err != nil {
		return models.AssignmentResult{}, err
	}

	saved, err := p.upsert(ctx, ev, raw)
	if err != nil {
		return models.AssignmentResult{}, err
	}

	assigned, err := p.assigner.Assign(ctx, saved.ID)
	if err != nil {
		return models.AssignmentResult{}, err
	}

	result := models.ResultFromTicket(assigned)
	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, result); err != nil {
			p.logger.Error().Err(err).
				Str("client_id", ev.ClientID.String()).
				Int64("enriched_ticket_id", assigned.ID).
				Msg("publish assignment result failed")
		}
	}
	p.logger.Info().
		Str("client_id", ev.ClientID.String()).
		Int64("enriched_ticket_id", assigned.ID).
		Str("status", string(result.Status)).
		Msg("event processed")
	return result, nil
}

// resolveRawTicket looks the raw ticket up by id, then by client, and creates
// a stub when the client has none.
func (p *IngestionProcessor) resolveRawTicket(ctx context.Context, ev models.EnrichmentEvent) (models.RawTicket, error) {
	if ev.RawTicketID != nil {
		raw, err := p.store.GetRawTicket(ctx, *ev.RawTicketID)
		if err == nil {
			return raw, nil
		}
		if !errors.Is(err, models.ErrNotFound) {
			return models.RawTicket{}, err
		}
		p.logger.Warn().Int64("raw_ticket_id", *ev.RawTicketID).Msg("raw ticket not found, resolving by client")
	}

	raw, err := p.store.FindRawTicketByClient(ctx, ev.ClientID)
	if err == nil {
		return raw, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.RawTicket{}, err
	}
	return p.store.InsertRawTicket(ctx, models.RawTicket{ClientID: ev.ClientID, Description: ev.Summary})
}

func (p *IngestionProcessor) upsert(ctx context.Context, ev models.EnrichmentEvent, raw models.RawTicket) (models.EnrichedTicket, error) {
	existing, found, err := p.findExisting(ctx, ev, raw.ID)
	if err != nil {
		return models.EnrichedTicket{}, err
	}
	if found {
		return p.store.UpdateEnrichment(ctx, applyEvent(existing, ev))
	}

	fresh := applyEvent(models.EnrichedTicket{ClientID: ev.ClientID, RawTicketID: raw.ID}, ev)
	saved, err := p.store.InsertEnrichedTicket(ctx, fresh)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, models.ErrConflict) {
		return models.EnrichedTicket{}, err
	}

	// a concurrent delivery of the same event won the insert
	winner, err := p.store.FindEnrichedByKey(ctx, ev.ClientID, raw.ID)
	if err != nil {
		return models.EnrichedTicket{}, fmt.Errorf("refetch after duplicate insert: %w", err)
	}
	p.logger.Warn().
		Str("client_id", ev.ClientID.String()).
		Int64("raw_ticket_id", raw.ID).
		Msg("deduplicated concurrent insert by business key")
	return p.store.UpdateEnrichment(ctx, applyEvent(winner, ev))
}

// findExisting matches by (client, raw ticket). The client-only fallback is
// used when the event did not name a raw ticket.
func (p *IngestionProcessor) findExisting(ctx context.Context, ev models.EnrichmentEvent, rawID int64) (models.EnrichedTicket, bool, error) {
	t, err := p.store.FindEnrichedByKey(ctx, ev.ClientID, rawID)
	if err == nil {
		return t, true, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return models.EnrichedTicket{}, false, err
	}
	if ev.RawTicketID != nil {
		return models.EnrichedTicket{}, false, nil
	}

	t, err = p.store.FindEnrichedByClient(ctx, ev.ClientID)
	switch {
	case err == nil:
		return t, true, nil
	case errors.Is(err, models.ErrNotFound):
		return models.EnrichedTicket{}, false, nil
	default:
		return models.EnrichedTicket{}, false, err
	}
}

// applyEvent overwrites the mutable enrichment fields.
func applyEvent(t models.EnrichedTicket, ev models.EnrichmentEvent) models.EnrichedTicket {
	t.Type = ev.Type
	t.Priority = 0
	if ev.Priority != nil {
		t.Priority = *ev.Priority
	}
	t.Summary = ev.Summary
	t.Language = ev.Language
	t.Sentiment = ev.Sentiment
	t.Latitude = ev.Latitude
	t.Longitude = ev.Longitude
	t.GeoNormalized = ev.GeoNormalized
	t.EnrichedAt = time.Now().UTC()
	return t
}
