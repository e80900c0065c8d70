package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/fire-team/ticket-router/internal/config"
	"github.com/fire-team/ticket-router/internal/http/handlers"
	"github.com/fire-team/ticket-router/internal/http/middleware"
	"github.com/fire-team/ticket-router/internal/models"
)

type pingOnly struct{}

func (pingOnly) Ping(context.Context) error { return nil }
func (pingOnly) GetEnrichedTicket(context.Context, int64) (models.EnrichedTicket, error) {
	return models.EnrichedTicket{}, models.ErrNotFound
}
func (pingOnly) ListOffices(context.Context) ([]models.Office, error)   { return nil, nil }
func (pingOnly) ListManagers(context.Context) ([]models.Manager, error) { return nil, nil }

type deadlineRecorder struct {
	intake, lookup bool
}

func (d *deadlineRecorder) ProcessBatch(ctx context.Context, tickets []models.RawTicket) []models.ProcessingResult {
	_, d.intake = ctx.Deadline()
	return make([]models.ProcessingResult, len(tickets))
}

func (d *deadlineRecorder) Results(ctx context.Context, _ []string) (map[string]models.AssignmentResult, error) {
	_, d.lookup = ctx.Deadline()
	return map[string]models.AssignmentResult{}, nil
}

func TestIntakeBatchIsNotBoundByRequestTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &deadlineRecorder{}
	h := &handlers.Handler{Store: pingOnly{}, Intake: rec, Results: rec, Validator: validator.New(), Logger: zerolog.Nop()}
	r := Router(config.Config{AdminKey: "k", CORSAllowed: "*", RequestTimeout: time.Minute}, h, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/intake/tickets",
		strings.NewReader(`{"tickets":[{"clientId":"`+uuid.NewString()+`","description":"x"}]}`))
	req.Header.Set(middleware.AdminKeyHeader, "k")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, rec.intake)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/intake/results?clientIds="+uuid.NewString(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, rec.lookup)
}

func TestRouterWiring(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &handlers.Handler{Store: pingOnly{}, Validator: validator.New(), Logger: zerolog.Nop()}
	r := Router(config.Config{AdminKey: "k", CORSAllowed: "*"}, h, zerolog.Nop())

	cases := []struct {
		method, path string
		admin        bool
		want         int
	}{
		{http.MethodGet, "/healthz", false, http.StatusOK},
		{http.MethodGet, "/api/v1/tickets/1", false, http.StatusNotFound},
		{http.MethodGet, "/api/v1/offices", false, http.StatusOK},
		{http.MethodPost, "/api/v1/intake/tickets", false, http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/debug/routing?ticket_id=1", false, http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/intake/tickets", true, http.StatusBadRequest},
		{http.MethodGet, "/api/v1/nope", false, http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`))
		if tc.admin {
			req.Header.Set(middleware.AdminKeyHeader, "k")
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
		assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	}
}
