package dbgen

import (
	"context"
	"database/sql"
)

const registrationColumns = `id, event_id, player_name, position, team, roster_order, payment_status, badges, created_at, updated_at`

func scanRegistration(scanner interface{ Scan(...any) error }) (EventRegistration, error) {
	var i EventRegistration
	err := scanner.Scan(
		&i.ID,
		&i.EventID,
		&i.PlayerName,
		&i.Position,
		&i.Team,
		&i.RosterOrder,
		&i.PaymentStatus,
		&i.Badges,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createRegistration = `
INSERT INTO event_registrations (event_id, player_name, position, team, roster_order, payment_status, badges)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type CreateRegistrationParams struct {
	EventID       int64
	PlayerName    string
	Position      string
	Team          sql.NullString
	RosterOrder   sql.NullInt64
	PaymentStatus string
	Badges        string
}

func (q *Queries) CreateRegistration(ctx context.Context, arg CreateRegistrationParams) (EventRegistration, error) {
	result, err := q.db.ExecContext(ctx, createRegistration,
		arg.EventID,
		arg.PlayerName,
		arg.Position,
		arg.Team,
		arg.RosterOrder,
		arg.PaymentStatus,
		arg.Badges,
	)
	if err != nil {
		return EventRegistration{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return EventRegistration{}, err
	}
	return q.GetRegistration(ctx, GetRegistrationParams{ID: id, EventID: arg.EventID})
}

const getRegistration = `
SELECT ` + registrationColumns + `
FROM event_registrations
WHERE id = ? AND event_id = ?
`

type GetRegistrationParams struct {
	ID      int64
	EventID int64
}

func (q *Queries) GetRegistration(ctx context.Context, arg GetRegistrationParams) (EventRegistration, error) {
	row := q.db.QueryRowContext(ctx, getRegistration, arg.ID, arg.EventID)
	return scanRegistration(row)
}

const listEventRegistrations = `
SELECT ` + registrationColumns + `
FROM event_registrations
WHERE event_id = ?
ORDER BY id
`

func (q *Queries) ListEventRegistrations(ctx context.Context, eventID int64) ([]EventRegistration, error) {
	rows, err := q.db.QueryContext(ctx, listEventRegistrations, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EventRegistration
	for rows.Next() {
		i, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateRegistrationPlacement = `
UPDATE event_registrations
SET team = ?, roster_order = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND event_id = ?
`

type UpdateRegistrationPlacementParams struct {
	Team        sql.NullString
	RosterOrder sql.NullInt64
	ID          int64
	EventID     int64
}

func (q *Queries) UpdateRegistrationPlacement(ctx context.Context, arg UpdateRegistrationPlacementParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateRegistrationPlacement,
		arg.Team,
		arg.RosterOrder,
		arg.ID,
		arg.EventID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
