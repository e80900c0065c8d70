package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fire-team/ticket-router/internal/idempotency"
	"github.com/fire-team/ticket-router/internal/models"
	"github.com/fire-team/ticket-router/internal/service"
)

// Directory is the read side of the store the handlers use.
type Directory interface {
	Ping(ctx context.Context) error
	GetEnrichedTicket(ctx context.Context, id int64) (models.EnrichedTicket, error)
	ListOffices(ctx context.Context) ([]models.Office, error)
	ListManagers(ctx context.Context) ([]models.Manager, error)
}

type Assigner interface {
	Assign(ctx context.Context, ticketID int64) (models.EnrichedTicket, error)
	Explain(ctx context.Context, ticketID int64) (service.Explanation, error)
}

type EventProcessor interface {
	Process(ctx context.Context, ev models.EnrichmentEvent) (models.AssignmentResult, error)
}

type BatchProcessor interface {
	ProcessBatch(ctx context.Context, tickets []models.RawTicket) []models.ProcessingResult
}

type ResultReader interface {
	Results(ctx context.Context, clientIDs []string) (map[string]models.AssignmentResult, error)
}

type IdempotencyStore interface {
	Lookup(ctx context.Context, scope, key, requestHash string) (*idempotency.Entry, error)
	Save(ctx context.Context, scope, key, requestHash string, status int, body []byte) error
}

type Handler struct {
	Store       Directory
	Assigner    Assigner
	Events      EventProcessor
	Intake      BatchProcessor
	Results     ResultReader
	Idempotency IdempotencyStore
	Validator   *validator.Validate
	Logger      zerolog.Logger
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// respondError maps service errors onto the error envelope.
func (h *Handler) respondError(c *gin.Context, err error, what string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", what+" not found", nil)
	case errors.Is(err, models.ErrValidation):
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
	case errors.Is(err, models.ErrConflict):
		writeError(c, http.StatusConflict, "CONFLICT", "Conflicting request", err.Error())
	default:
		_ = c.Error(err)
		h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Internal error", nil)
	}
}

func parseID(c *gin.Context, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid ticket id", raw)
		return 0, false
	}
	return id, true
}
