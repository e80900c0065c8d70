package enrichment

import (
	"context"
	"errors"

	"github.com/fire-team/ticket-router/internal/models"
)

var (
	// ErrPermitTimeout is returned when no concurrency permit frees up within the wait bound.
	ErrPermitTimeout = errors.New("enrichment: permit wait timed out")
	// ErrUnavailable wraps transport failures and non-2xx answers from the webhook.
	ErrUnavailable = errors.New("enrichment: webhook unavailable")
)

// Enricher classifies a raw ticket. A nil record with a nil error means the
// classifier answered but nothing recognizable was in the response.
type Enricher interface {
	Enrich(ctx context.Context, t models.RawTicket) (*models.Enrichment, error)
}

const (
	minPriority = 1
	maxPriority = 10
)

func clampPriority(p int) int {
	if p < minPriority {
		return minPriority
	}
	if p > maxPriority {
		return maxPriority
	}
	return p
}
