package dbgen

import (
	"context"
	"database/sql"
	"time"
)

const createEvent = `
INSERT INTO events (name, starts_at, status)
VALUES (?, ?, ?)
`

type CreateEventParams struct {
	Name     string
	StartsAt time.Time
	Status   string
}

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (Event, error) {
	result, err := q.db.ExecContext(ctx, createEvent, arg.Name, arg.StartsAt, arg.Status)
	if err != nil {
		return Event{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Event{}, err
	}
	return q.GetEvent(ctx, id)
}

const getEvent = `
SELECT id, name, starts_at, status, created_at, updated_at
FROM events
WHERE id = ?
`

func (q *Queries) GetEvent(ctx context.Context, id int64) (Event, error) {
	row := q.db.QueryRowContext(ctx, getEvent, id)
	var i Event
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.StartsAt,
		&i.Status,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listActiveEventIDs = `
SELECT id
FROM events
WHERE status = 'scheduled'
ORDER BY id
`

func (q *Queries) ListActiveEventIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listActiveEventIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		items = append(items, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createReorderAuditLog = `
INSERT INTO reorder_audit_log (event_id, kind, before_state, after_state)
VALUES (?, ?, ?, ?)
`

type CreateReorderAuditLogParams struct {
	EventID     int64
	Kind        string
	BeforeState sql.NullString
	AfterState  sql.NullString
}

func (q *Queries) CreateReorderAuditLog(ctx context.Context, arg CreateReorderAuditLogParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, createReorderAuditLog,
		arg.EventID,
		arg.Kind,
		arg.BeforeState,
		arg.AfterState,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const listReorderAuditLogs = `
SELECT id, event_id, kind, before_state, after_state, created_at
FROM reorder_audit_log
WHERE event_id = ?
ORDER BY id
`

func (q *Queries) ListReorderAuditLogs(ctx context.Context, eventID int64) ([]ReorderAuditLog, error) {
	rows, err := q.db.QueryContext(ctx, listReorderAuditLogs, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ReorderAuditLog
	for rows.Next() {
		var i ReorderAuditLog
		if err := rows.Scan(
			&i.ID,
			&i.EventID,
			&i.Kind,
			&i.BeforeState,
			&i.AfterState,
			&i.CreatedAt,
		); err != nil {
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

const updateEventStatus = `
UPDATE events
SET status = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

type UpdateEventStatusParams struct {
	Status string
	ID     int64
}

func (q *Queries) UpdateEventStatus(ctx context.Context, arg UpdateEventStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateEventStatus, arg.Status, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
