package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fire-team/ticket-router/internal/idempotency"
	"github.com/fire-team/ticket-router/internal/models"
	"github.com/fire-team/ticket-router/internal/service"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
	intakeScope          = "intake_tickets"
	maxResultsLookup     = 500
)

// IntakeTicket is one raw ticket in an intake batch. Field checks run per
// item in the pipeline, so a malformed item fails alone.
type IntakeTicket struct {
	ClientID    string `json:"clientId"`
	Description string `json:"description"`
	Segment     string `json:"segment"`
	Country     string `json:"country"`
	Region      string `json:"region"`
	City        string `json:"city"`
	Street      string `json:"street"`
	House       string `json:"house"`
	Attachments string `json:"attachments"`
}

type IntakeRequest struct {
	Tickets []IntakeTicket `json:"tickets" validate:"required,min=1,max=1000"`
}

type IntakeSummary struct {
	Total      int `json:"total"`
	Assigned   int `json:"assigned"`
	Unassigned int `json:"unassigned"`
	Failed     int `json:"failed"`
}

type IntakeResponse struct {
	Results []models.ProcessingResult `json:"results"`
	Summary IntakeSummary             `json:"summary"`
}

func (t IntakeTicket) raw() models.RawTicket {
	id, err := uuid.Parse(strings.TrimSpace(t.ClientID))
	if err != nil {
		id = uuid.Nil
	}
	return models.RawTicket{
		ClientID:    id,
		Description: t.Description,
		Segment:     t.Segment,
		Country:     t.Country,
		Region:      t.Region,
		City:        t.City,
		Street:      t.Street,
		House:       t.House,
		Attachments: t.Attachments,
	}
}

func summarize(results []models.ProcessingResult) IntakeSummary {
	s := IntakeSummary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Status == service.ResultFailed:
			s.Failed++
		case r.Assignment == models.StatusAssigned:
			s.Assigned++
		default:
			s.Unassigned++
		}
	}
	return s
}

// @Summary Submit raw tickets
// @Description Saves, enriches, geocodes and assigns a batch. Send Idempotency-Key to make retries safe.
// @Tags intake
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Idempotency key"
// @Param request body IntakeRequest true "Tickets"
// @Success 200 {object} IntakeResponse
// @Failure 400 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/v1/intake/tickets [post]
func (h *Handler) IntakeTickets(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Unreadable body", err.Error())
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	var hash string
	if key != "" && h.Idempotency != nil {
		hash = idempotency.HashRequest(body)
		prev, err := h.Idempotency.Lookup(ctx, intakeScope, key, hash)
		if err != nil {
			h.respondError(c, err, "Idempotency key")
			return
		}
		if prev != nil {
			c.Header(ReplayedHeader, "true")
			c.Data(prev.Status, "application/json; charset=utf-8", prev.Body)
			return
		}
	}

	var req IntakeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	tickets := make([]models.RawTicket, len(req.Tickets))
	for i, t := range req.Tickets {
		tickets[i] = t.raw()
	}
	results := h.Intake.ProcessBatch(ctx, tickets)
	resp := IntakeResponse{Results: results, Summary: summarize(results)}

	out, err := json.Marshal(resp)
	if err != nil {
		h.respondError(c, err, "Response")
		return
	}
	if hash != "" {
		if err := h.Idempotency.Save(ctx, intakeScope, key, hash, http.StatusOK, out); err != nil {
			h.Logger.Warn().Err(err).Str("idempotency_key", key).Msg("failed to store idempotent response")
		}
	}
	h.Logger.Info().
		Int("total", resp.Summary.Total).
		Int("assigned", resp.Summary.Assigned).
		Int("unassigned", resp.Summary.Unassigned).
		Int("failed", resp.Summary.Failed).
		Msg("intake batch processed")
	c.Data(http.StatusOK, "application/json; charset=utf-8", out)
}

// @Summary Ingest enrichment event
// @Description Upserts an enrichment-ready event, assigns the ticket and returns the result.
// @Tags intake
// @Accept json
// @Produce json
// @Param request body models.EnrichmentEvent true "Event"
// @Success 200 {object} models.AssignmentResult
// @Failure 400 {object} map[string]any
// @Router /api/v1/intake/events [post]
func (h *Handler) IntakeEvent(c *gin.Context) {
	var ev models.EnrichmentEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	res, err := h.Events.Process(c.Request.Context(), ev)
	if err != nil {
		h.respondError(c, err, "Ticket")
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Assignment results by client
// @Tags intake
// @Produce json
// @Param clientIds query string true "Comma-separated client ids"
// @Success 200 {object} map[string]any
// @Router /api/v1/intake/results [get]
func (h *Handler) IntakeResults(c *gin.Context) {
	var ids []string
	for _, part := range strings.Split(c.Query("clientIds"), ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids = append(ids, p)
		}
	}
	if len(ids) == 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "clientIds is required", nil)
		return
	}
	if len(ids) > maxResultsLookup {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "too many clientIds", len(ids))
		return
	}
	found, err := h.Results.Results(c.Request.Context(), ids)
	if err != nil {
		h.respondError(c, err, "Results")
		return
	}
	var missing []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": found, "missing": missing})
}
