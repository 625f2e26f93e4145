package dbgen

import (
	"context"
)

const waitlistColumns = `id, event_id, player_name, position, waitlist_position, payment_status, created_at, updated_at`

func scanWaitlist(scanner interface{ Scan(...any) error }) (EventWaitlist, error) {
	var i EventWaitlist
	err := scanner.Scan(
		&i.ID,
		&i.EventID,
		&i.PlayerName,
		&i.Position,
		&i.WaitlistPosition,
		&i.PaymentStatus,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createWaitlistEntry = `
INSERT INTO event_waitlist (event_id, player_name, position, waitlist_position, payment_status)
VALUES (?, ?, ?, COALESCE((SELECT MAX(waitlist_position) FROM event_waitlist WHERE event_id = ?), 0) + 1, ?)
`

type CreateWaitlistEntryParams struct {
	EventID       int64
	PlayerName    string
	Position      string
	PaymentStatus string
}

func (q *Queries) CreateWaitlistEntry(ctx context.Context, arg CreateWaitlistEntryParams) (EventWaitlist, error) {
	result, err := q.db.ExecContext(ctx, createWaitlistEntry,
		arg.EventID,
		arg.PlayerName,
		arg.Position,
		arg.EventID,
		arg.PaymentStatus,
	)
	if err != nil {
		return EventWaitlist{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return EventWaitlist{}, err
	}
	row := q.db.QueryRowContext(ctx, getWaitlistEntry, id)
	return scanWaitlist(row)
}

const getWaitlistEntry = `
SELECT ` + waitlistColumns + `
FROM event_waitlist
WHERE id = ?
`

const listEventWaitlist = `
SELECT ` + waitlistColumns + `
FROM event_waitlist
WHERE event_id = ?
ORDER BY waitlist_position, id
`

func (q *Queries) ListEventWaitlist(ctx context.Context, eventID int64) ([]EventWaitlist, error) {
	rows, err := q.db.QueryContext(ctx, listEventWaitlist, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []EventWaitlist
	for rows.Next() {
		i, err := scanWaitlist(rows)
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

const updateWaitlistPosition = `
UPDATE event_waitlist
SET waitlist_position = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND event_id = ?
`

type UpdateWaitlistPositionParams struct {
	WaitlistPosition int64
	ID               int64
	EventID          int64
}

func (q *Queries) UpdateWaitlistPosition(ctx context.Context, arg UpdateWaitlistPositionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateWaitlistPosition, arg.WaitlistPosition, arg.ID, arg.EventID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteWaitlistEntry = `
DELETE FROM event_waitlist
WHERE id = ? AND event_id = ?
`

type DeleteWaitlistEntryParams struct {
	ID      int64
	EventID int64
}

func (q *Queries) DeleteWaitlistEntry(ctx context.Context, arg DeleteWaitlistEntryParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteWaitlistEntry, arg.ID, arg.EventID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
