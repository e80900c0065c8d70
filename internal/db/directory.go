package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/fire-team/ticket-router/internal/models"
)

func (s *Store) ListOffices(ctx context.Context) ([]models.Office, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id, code, name, address, latitude, longitude FROM offices ORDER BY id`)
	if err != nil {
		return nil, mapErr(err, "list offices")
	}
	defer rows.Close()

	var out []models.Office
	for rows.Next() {
		var o models.Office
		if err := rows.Scan(&o.ID, &o.Code, &o.Name, &o.Address, &o.Latitude, &o.Longitude); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ListManagers(ctx context.Context) ([]models.Manager, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, full_name, office_code, office_name, position, skills, current_load, updated_at
		FROM managers ORDER BY current_load ASC, id ASC`)
	if err != nil {
		return nil, mapErr(err, "list managers")
	}
	defer rows.Close()

	var out []models.Manager
	for rows.Next() {
		var m models.Manager
		if err := rows.Scan(&m.ID, &m.FullName, &m.OfficeCode, &m.OfficeName, &m.Position, &m.Skills, &m.ActiveTickets, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetManager(ctx context.Context, id int64) (models.Manager, error) {
	var m models.Manager
	err := s.Pool.QueryRow(ctx, `
		SELECT id, full_name, office_code, office_name, position, skills, current_load, updated_at
		FROM managers WHERE id = $1`, id).
		Scan(&m.ID, &m.FullName, &m.OfficeCode, &m.OfficeName, &m.Position, &m.Skills, &m.ActiveTickets, &m.UpdatedAt)
	return m, mapErr(err, "get manager")
}

// UpdateManagerLoad adjusts the load counter in place, so concurrent
// increments never overwrite each other.
func (s *Store) UpdateManagerLoad(ctx context.Context, tx pgx.Tx, managerID int64, delta int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE managers SET current_load = GREATEST(current_load + $1, 0), updated_at = NOW()
		WHERE id = $2`, delta, managerID)
	if err != nil {
		return mapErr(err, "update manager load")
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "update manager load")
	}
	return nil
}

// UpsertOffices seeds the office directory keyed by code.
func (s *Store) UpsertOffices(ctx context.Context, offices []models.Office) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, o := range offices {
			batch.Queue(`
				INSERT INTO offices (code, name, address, latitude, longitude)
				VALUES ($1,$2,$3,$4,$5)
				ON CONFLICT (code) DO UPDATE SET
					name = EXCLUDED.name,
					address = EXCLUDED.address,
					latitude = EXCLUDED.latitude,
					longitude = EXCLUDED.longitude`,
				o.Code, o.Name, o.Address, o.Latitude, o.Longitude)
		}
		return mapErr(tx.SendBatch(ctx, batch).Close(), "upsert offices")
	})
}

// UpsertManagers seeds the manager directory keyed by full name. Existing
// load counters are kept.
func (s *Store) UpsertManagers(ctx context.Context, managers []models.Manager) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, m := range managers {
			skills := m.Skills
			if skills == nil {
				skills = []string{}
			}
			batch.Queue(`
				INSERT INTO managers (full_name, office_code, office_name, position, skills, current_load)
				VALUES ($1,$2,$3,$4,$5,$6)
				ON CONFLICT (full_name) DO UPDATE SET
					office_code = EXCLUDED.office_code,
					office_name = EXCLUDED.office_name,
					position = EXCLUDED.position,
					skills = EXCLUDED.skills,
					updated_at = NOW()`,
				m.FullName, m.OfficeCode, m.OfficeName, m.Position, skills, m.ActiveTickets)
		}
		return mapErr(tx.SendBatch(ctx, batch).Close(), "upsert managers")
	})
}
