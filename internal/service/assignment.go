package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/fire-team/ticket-router/internal/models"
	"github.com/fire-team/ticket-router/internal/routing"
)

// Plan is a routing decision before it is committed.
type Plan struct {
	Office     routing.OfficeDecision `json:"office"`
	Selection  routing.Selection      `json:"selection"`
	OfficeID   *int64                 `json:"office_id,omitempty"`
	Backfilled bool                   `json:"office_backfilled"`
}

// Explanation is the dry-run view of a ticket's routing.
type Explanation struct {
	Ticket          models.EnrichedTicket `json:"ticket"`
	AlreadyAssigned bool                  `json:"already_assigned"`
	Plan            Plan                  `json:"plan"`
}

// AssignmentService runs office resolution and manager selection once per
// ticket. Re-invocation on an assigned ticket returns it untouched.
type AssignmentService struct {
	store    Store
	offices  *routing.OfficeResolver
	managers *routing.ManagerSelector
	inflight singleflight.Group
	now      func() time.Time
	logger   zerolog.Logger
}

func NewAssignmentService(store Store, offices *routing.OfficeResolver, managers *routing.ManagerSelector, logger zerolog.Logger) *AssignmentService {
	return &AssignmentService{
		store:    store,
		offices:  offices,
		managers: managers,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With().Str("component", "assignment").Logger(),
	}
}

// Assign routes the ticket and commits the result. Concurrent calls for one
// ticket in this process share a single run, detached from the first
// caller's cancellation; across processes the store's conditional commit
// keeps the first assignment.
func (s *AssignmentService) Assign(ctx context.Context, ticketID int64) (models.EnrichedTicket, error) {
	v, err, _ := s.inflight.Do(strconv.FormatInt(ticketID, 10), func() (any, error) {
		return s.assign(context.WithoutCancel(ctx), ticketID)
	})
	if err != nil {
		return models.EnrichedTicket{}, err
	}
	return v.(models.EnrichedTicket), nil
}

func (s *AssignmentService) assign(ctx context.Context, ticketID int64) (models.EnrichedTicket, error) {
	t, err := s.store.GetEnrichedTicket(ctx, ticketID)
	if err != nil {
		return models.EnrichedTicket{}, err
	}
	if t.IsAssigned() {
		return t, nil
	}

	plan, err := s.plan(ctx, t, true)
	if err != nil {
		return models.EnrichedTicket{}, err
	}

	mgr := plan.Selection.Manager
	if mgr == nil {
		updated, err := s.store.MarkUnassigned(ctx, t.ID, plan.OfficeID)
		if err != nil {
			return models.EnrichedTicket{}, fmt.Errorf("mark ticket %d unassigned: %w", t.ID, err)
		}
		s.logger.Info().
			Int64("ticket_id", t.ID).
			Str("office_rule", string(plan.Office.Rule)).
			Msg("ticket left unassigned, no managers available")
		return updated, nil
	}

	updated, committed, err := s.store.CommitAssignment(ctx, t.ID, plan.OfficeID, mgr.ID, s.now())
	if err != nil {
		return models.EnrichedTicket{}, fmt.Errorf("commit assignment of ticket %d: %w", t.ID, err)
	}
	if !committed {
		s.logger.Debug().Int64("ticket_id", t.ID).Msg("ticket assigned by a concurrent invocation")
		return updated, nil
	}

	s.logger.Info().
		Int64("ticket_id", t.ID).
		Int64("manager_id", mgr.ID).
		Str("manager", mgr.FullName).
		Str("office", updated.AssignedOfficeName).
		Str("office_rule", string(plan.Office.Rule)).
		Str("pool", plan.Selection.Pool).
		Str("relaxed", plan.Selection.Relaxed).
		Str("strategy", plan.Selection.Strategy).
		Msg("ticket assigned")
	return updated, nil
}

// Explain computes the routing plan for a ticket without side effects.
func (s *AssignmentService) Explain(ctx context.Context, ticketID int64) (Explanation, error) {
	t, err := s.store.GetEnrichedTicket(ctx, ticketID)
	if err != nil {
		return Explanation{}, err
	}
	plan, err := s.plan(ctx, t, false)
	if err != nil {
		return Explanation{}, err
	}
	return Explanation{Ticket: t, AlreadyAssigned: t.IsAssigned(), Plan: plan}, nil
}

// plan computes the routing decision. Only a committing plan advances the
// hub split and the balancing rotation.
func (s *AssignmentService) plan(ctx context.Context, t models.EnrichedTicket, commit bool) (Plan, error) {
	raw, err := s.store.GetRawTicket(ctx, t.RawTicketID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return Plan{}, err
		}
		s.logger.Warn().Int64("ticket_id", t.ID).Int64("raw_ticket_id", t.RawTicketID).Msg("raw ticket missing, routing without address")
		raw = models.RawTicket{}
	}
	offices, err := s.store.ListOffices(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("list offices: %w", err)
	}
	managers, err := s.store.ListManagers(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("list managers: %w", err)
	}

	var plan Plan
	if commit {
		plan.Office = s.offices.Resolve(t, raw, offices)
		plan.Selection = s.managers.Select(plan.Office.Office, t, managers)
	} else {
		plan.Office = s.offices.Preview(t, raw, offices)
		plan.Selection = s.managers.Preview(plan.Office.Office, t, managers)
	}

	office := plan.Office.Office
	if office == nil && plan.Selection.Manager != nil {
		if office = routing.AffiliatedOffice(*plan.Selection.Manager, offices); office != nil {
			plan.Backfilled = true
		}
	}
	if office != nil {
		id := office.ID
		plan.OfficeID = &id
	}
	return plan, nil
}
