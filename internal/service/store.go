package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fire-team/ticket-router/internal/models"
)

// Store is the persistence the routing services need. Lookups return an error
// wrapping models.ErrNotFound for missing rows, InsertEnrichedTicket one
// wrapping models.ErrConflict for a duplicate (client, raw ticket) pair.
type Store interface {
	InsertRawTicket(ctx context.Context, r models.RawTicket) (models.RawTicket, error)
	GetRawTicket(ctx context.Context, id int64) (models.RawTicket, error)
	FindRawTicketByClient(ctx context.Context, clientID uuid.UUID) (models.RawTicket, error)

	GetEnrichedTicket(ctx context.Context, id int64) (models.EnrichedTicket, error)
	FindEnrichedByKey(ctx context.Context, clientID uuid.UUID, rawTicketID int64) (models.EnrichedTicket, error)
	FindEnrichedByClient(ctx context.Context, clientID uuid.UUID) (models.EnrichedTicket, error)
	InsertEnrichedTicket(ctx context.Context, t models.EnrichedTicket) (models.EnrichedTicket, error)
	UpdateEnrichment(ctx context.Context, t models.EnrichedTicket) (models.EnrichedTicket, error)

	ListOffices(ctx context.Context) ([]models.Office, error)
	ListManagers(ctx context.Context) ([]models.Manager, error)

	CommitAssignment(ctx context.Context, ticketID int64, officeID *int64, managerID int64, at time.Time) (models.EnrichedTicket, bool, error)
	MarkUnassigned(ctx context.Context, ticketID int64, officeID *int64) (models.EnrichedTicket, error)
}

// Publisher emits assignment results downstream.
type Publisher interface {
	Publish(ctx context.Context, r models.AssignmentResult) error
}
