package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fire-team/ticket-router/internal/enrichment"
	"github.com/fire-team/ticket-router/internal/geocode"
	"github.com/fire-team/ticket-router/internal/models"
)

const (
	ResultFailed = "FAILED"
)

// Pipeline takes raw tickets through raw-save, enrichment, geocoding and
// ingestion. Tickets run in parallel on a bounded pool; the steps of one
// ticket run in order.
type Pipeline struct {
	store     Store
	enricher  enrichment.Enricher
	geocoder  *geocode.Resolver
	ingestion *IngestionProcessor
	workers   int
	validate  *validator.Validate
	logger    zerolog.Logger

	geocodeTimeout time.Duration
}

func NewPipeline(store Store, enricher enrichment.Enricher, geocoder *geocode.Resolver, ingestion *IngestionProcessor, workers int, logger zerolog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		store:     store,
		enricher:  enricher,
		geocoder:  geocoder,
		ingestion: ingestion,
		workers:   workers,
		validate:  validator.New(),
		logger:    logger.With().Str("component", "pipeline").Logger(),

		geocodeTimeout: 20 * time.Second,
	}
}

// ProcessBatch returns one result per input, in input order. A failing
// ticket is reported as FAILED and does not affect its siblings. Once a
// ticket has started it runs to completion even if ctx is cancelled;
// tickets not yet started when ctx ends are failed without being saved.
func (p *Pipeline) ProcessBatch(ctx context.Context, tickets []models.RawTicket) []models.ProcessingResult {
	results := make([]models.ProcessingResult, len(tickets))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := range tickets {
		g.Go(func() error {
			results[i] = p.processOne(ctx, tickets[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pipeline) processOne(parent context.Context, in models.RawTicket) (res models.ProcessingResult) {
	res.ClientID = in.ClientID.String()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Str("client_id", res.ClientID).Msg("ticket pipeline panicked")
			res = failed(res.ClientID, res.RawTicketID, fmt.Errorf("internal error"))
		}
	}()

	if in.ClientID == uuid.Nil {
		return failed(res.ClientID, 0, fmt.Errorf("%w: client id is required", models.ErrValidation))
	}
	if err := p.validate.Struct(in); err != nil {
		return failed(res.ClientID, 0, fmt.Errorf("%w: %v", models.ErrValidation, err))
	}
	if err := parent.Err(); err != nil {
		return failed(res.ClientID, 0, fmt.Errorf("not started: %w", err))
	}
	ctx := context.WithoutCancel(parent)

	raw, err := p.store.InsertRawTicket(ctx, in)
	if err != nil {
		p.logger.Error().Err(err).Str("client_id", res.ClientID).Msg("save raw ticket failed")
		return failed(res.ClientID, 0, err)
	}
	res.RawTicketID = raw.ID
	res.Status = string(models.StatusCreated)

	rec := p.enrich(ctx, raw)
	lat, lon := p.locate(ctx, raw, rec.GeoNormalized)

	rawID := raw.ID
	ev := models.EnrichmentEvent{
		ClientID:      raw.ClientID,
		RawTicketID:   &rawID,
		Type:          rec.Type,
		Priority:      rec.Priority,
		Language:      rec.Language,
		Summary:       rec.Summary,
		Sentiment:     rec.Sentiment,
		GeoNormalized: rec.GeoNormalized,
		Latitude:      lat,
		Longitude:     lon,
	}
	out, err := p.ingestion.Process(ctx, ev)
	if err != nil {
		p.logger.Error().Err(err).Int64("raw_ticket_id", raw.ID).Msg("ingest ticket failed")
		return failed(res.ClientID, raw.ID, err)
	}

	res.EnrichedTicketID = out.EnrichedTicketID
	res.Status = string(models.StatusEnriched)
	res.Assignment = out.Status
	res.AssignedOfficeName = out.AssignedOfficeName
	res.AssignedManagerName = out.AssignedManagerName
	res.Type = ev.Type
	res.Language = ev.Language
	if ev.Priority != nil {
		res.Priority = *ev.Priority
	}
	return res
}

// enrich never fails: unreachable or empty classifier answers become the
// pending placeholder.
func (p *Pipeline) enrich(ctx context.Context, raw models.RawTicket) models.Enrichment {
	placeholder := models.Enrichment{Summary: models.PendingEnrichmentSummary}
	if p.enricher == nil {
		return placeholder
	}
	rec, err := p.enricher.Enrich(ctx, raw)
	if err != nil {
		ev := p.logger.Warn()
		if !enrichment.IsDegraded(err) {
			ev = p.logger.Error()
		}
		ev.Err(err).Int64("raw_ticket_id", raw.ID).Msg("enrichment failed, using placeholder")
		return placeholder
	}
	if rec == nil || rec.IsEmpty() {
		p.logger.Warn().Int64("raw_ticket_id", raw.ID).Msg("enrichment empty, using placeholder")
		return placeholder
	}
	return *rec
}

// locate geocodes the normalized location, then the raw address. Failures
// leave the coordinates unset.
func (p *Pipeline) locate(ctx context.Context, raw models.RawTicket, normalized string) (*float64, *float64) {
	if p.geocoder == nil {
		return nil, nil
	}
	queries := []string{normalized, geocode.BuildQuery(raw.AddressParts()...)}
	for i, query := range queries {
		if query == "" || (i > 0 && query == queries[0]) {
			continue
		}
		stepCtx, cancel := context.WithTimeout(ctx, p.geocodeTimeout)
		res, err := p.geocoder.Resolve(stepCtx, query)
		cancel()
		if err == nil {
			return &res.Lat, &res.Lon
		}
		if !errors.Is(err, geocode.ErrNotFound) {
			p.logger.Warn().Err(err).Int64("raw_ticket_id", raw.ID).Str("query", query).Msg("geocoding unavailable")
		}
	}
	return nil, nil
}

func failed(clientID string, rawID int64, err error) models.ProcessingResult {
	return models.ProcessingResult{
		ClientID:    clientID,
		RawTicketID: rawID,
		Status:      ResultFailed,
		Message:     "Ticket processing failed: " + err.Error(),
	}
}
