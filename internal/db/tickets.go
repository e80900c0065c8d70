package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fire-team/ticket-router/internal/models"
)

const rawTicketColumns = `id, client_id, description, segment, country, region, city, street, house, attachments, created_at`

func scanRawTicket(row pgx.Row) (models.RawTicket, error) {
	var r models.RawTicket
	err := row.Scan(&r.ID, &r.ClientID, &r.Description, &r.Segment, &r.Country, &r.Region,
		&r.City, &r.Street, &r.House, &r.Attachments, &r.CreatedAt)
	return r, err
}

func (s *Store) InsertRawTicket(ctx context.Context, r models.RawTicket) (models.RawTicket, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO raw_tickets (client_id, description, segment, country, region, city, street, house, attachments)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+rawTicketColumns,
		r.ClientID, r.Description, r.Segment, r.Country, r.Region, r.City, r.Street, r.House, r.Attachments)
	out, err := scanRawTicket(row)
	return out, mapErr(err, "insert raw ticket")
}

func (s *Store) GetRawTicket(ctx context.Context, id int64) (models.RawTicket, error) {
	out, err := scanRawTicket(s.Pool.QueryRow(ctx, `SELECT `+rawTicketColumns+` FROM raw_tickets WHERE id = $1`, id))
	return out, mapErr(err, "get raw ticket")
}

// FindRawTicketByClient returns the newest raw ticket of a client.
func (s *Store) FindRawTicketByClient(ctx context.Context, clientID uuid.UUID) (models.RawTicket, error) {
	out, err := scanRawTicket(s.Pool.QueryRow(ctx,
		`SELECT `+rawTicketColumns+` FROM raw_tickets WHERE client_id = $1 ORDER BY id DESC LIMIT 1`, clientID))
	return out, mapErr(err, "find raw ticket by client")
}

// enrichedSelect joins office and manager names onto the projection.
const enrichedSelect = `
	SELECT e.id, e.client_id, e.raw_ticket_id, e.type, e.priority, e.language, e.sentiment, e.summary,
		e.latitude, e.longitude, e.geo_normalized,
		e.assigned_office_id, COALESCE(o.name, ''), e.assigned_manager_id, COALESCE(m.full_name, ''),
		e.status, e.enriched_at, e.assigned_at
	FROM enriched_tickets e
	LEFT JOIN offices o ON o.id = e.assigned_office_id
	LEFT JOIN managers m ON m.id = e.assigned_manager_id`

func scanEnriched(row pgx.Row) (models.EnrichedTicket, error) {
	var t models.EnrichedTicket
	var status string
	err := row.Scan(&t.ID, &t.ClientID, &t.RawTicketID, &t.Type, &t.Priority, &t.Language, &t.Sentiment, &t.Summary,
		&t.Latitude, &t.Longitude, &t.GeoNormalized,
		&t.AssignedOfficeID, &t.AssignedOfficeName, &t.AssignedManagerID, &t.AssignedManagerName,
		&status, &t.EnrichedAt, &t.AssignedAt)
	t.Status = models.AssignmentStatus(status)
	return t, err
}

func (s *Store) GetEnrichedTicket(ctx context.Context, id int64) (models.EnrichedTicket, error) {
	out, err := scanEnriched(s.Pool.QueryRow(ctx, enrichedSelect+` WHERE e.id = $1`, id))
	return out, mapErr(err, "get enriched ticket")
}

func (s *Store) FindEnrichedByKey(ctx context.Context, clientID uuid.UUID, rawTicketID int64) (models.EnrichedTicket, error) {
	out, err := scanEnriched(s.Pool.QueryRow(ctx,
		enrichedSelect+` WHERE e.client_id = $1 AND e.raw_ticket_id = $2`, clientID, rawTicketID))
	return out, mapErr(err, "find enriched ticket")
}

// FindEnrichedByClient returns the newest projection of a client.
func (s *Store) FindEnrichedByClient(ctx context.Context, clientID uuid.UUID) (models.EnrichedTicket, error) {
	out, err := scanEnriched(s.Pool.QueryRow(ctx,
		enrichedSelect+` WHERE e.client_id = $1 ORDER BY e.id DESC LIMIT 1`, clientID))
	return out, mapErr(err, "find enriched ticket by client")
}

// InsertEnrichedTicket returns models.ErrConflict when the (client, raw
// ticket) pair already exists.
func (s *Store) InsertEnrichedTicket(ctx context.Context, t models.EnrichedTicket) (models.EnrichedTicket, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO enriched_tickets (client_id, raw_ticket_id, type, priority, language, sentiment, summary,
			latitude, longitude, geo_normalized, status, enriched_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id`,
		t.ClientID, t.RawTicketID, t.Type, t.Priority, t.Language, t.Sentiment, t.Summary,
		t.Latitude, t.Longitude, t.GeoNormalized, string(models.StatusEnriched), enrichedAt(t)).Scan(&id)
	if err != nil {
		return models.EnrichedTicket{}, mapErr(err, "insert enriched ticket")
	}
	return s.GetEnrichedTicket(ctx, id)
}

// UpdateEnrichment overwrites the mutable enrichment fields. Assignment
// columns are never touched here.
func (s *Store) UpdateEnrichment(ctx context.Context, t models.EnrichedTicket) (models.EnrichedTicket, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE enriched_tickets SET
			type = $2, priority = $3, language = $4, sentiment = $5, summary = $6,
			latitude = $7, longitude = $8, geo_normalized = $9, enriched_at = $10
		WHERE id = $1`,
		t.ID, t.Type, t.Priority, t.Language, t.Sentiment, t.Summary,
		t.Latitude, t.Longitude, t.GeoNormalized, enrichedAt(t))
	if err != nil {
		return models.EnrichedTicket{}, mapErr(err, "update enrichment")
	}
	if tag.RowsAffected() == 0 {
		return models.EnrichedTicket{}, mapErr(pgx.ErrNoRows, "update enrichment")
	}
	return s.GetEnrichedTicket(ctx, t.ID)
}

// CommitAssignment sets office and manager on an unassigned ticket and bumps
// the manager's load in one transaction. The conditional update makes a
// concurrent second commit a no-op: it reports committed=false and returns
// the row as the winner left it.
func (s *Store) CommitAssignment(ctx context.Context, ticketID int64, officeID *int64, managerID int64, at time.Time) (models.EnrichedTicket, bool, error) {
	committed := false
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE enriched_tickets
			SET assigned_office_id = $2, assigned_manager_id = $3, status = $4, assigned_at = $5
			WHERE id = $1 AND assigned_manager_id IS NULL`,
			ticketID, officeID, managerID, string(models.StatusAssigned), at)
		if err != nil {
			return mapErr(err, "commit assignment")
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if err := s.UpdateManagerLoad(ctx, tx, managerID, 1); err != nil {
			return err
		}
		committed = true
		return nil
	})
	if err != nil {
		return models.EnrichedTicket{}, false, err
	}
	t, err := s.GetEnrichedTicket(ctx, ticketID)
	return t, committed, err
}

// MarkUnassigned records an UNASSIGNED outcome unless the ticket got a
// manager in the meantime. A resolved office is kept on the ticket even
// without a manager.
func (s *Store) MarkUnassigned(ctx context.Context, ticketID int64, officeID *int64) (models.EnrichedTicket, error) {
	_, err := s.Pool.Exec(ctx, `
		UPDATE enriched_tickets
		SET status = $2, assigned_office_id = COALESCE($3, assigned_office_id)
		WHERE id = $1 AND assigned_manager_id IS NULL`,
		ticketID, string(models.StatusUnassigned), officeID)
	if err != nil {
		return models.EnrichedTicket{}, mapErr(err, "mark unassigned")
	}
	return s.GetEnrichedTicket(ctx, ticketID)
}

func enrichedAt(t models.EnrichedTicket) time.Time {
	if t.EnrichedAt.IsZero() {
		return time.Now().UTC()
	}
	return t.EnrichedAt
}
