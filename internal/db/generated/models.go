package dbgen

import (
	"database/sql"
	"time"
)

type Event struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartsAt  time.Time `json:"startsAt"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type EventRegistration struct {
	ID            int64          `json:"id"`
	EventID       int64          `json:"eventId"`
	PlayerName    string         `json:"playerName"`
	Position      string         `json:"position"`
	Team          sql.NullString `json:"team"`
	RosterOrder   sql.NullInt64  `json:"rosterOrder"`
	PaymentStatus string         `json:"paymentStatus"`
	Badges        string         `json:"badges"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

type EventWaitlist struct {
	ID               int64     `json:"id"`
	EventID          int64     `json:"eventId"`
	PlayerName       string    `json:"playerName"`
	Position         string    `json:"position"`
	WaitlistPosition int64     `json:"waitlistPosition"`
	PaymentStatus    string    `json:"paymentStatus"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type ReorderAuditLog struct {
	ID          int64          `json:"id"`
	EventID     int64          `json:"eventId"`
	Kind        string         `json:"kind"`
	BeforeState sql.NullString `json:"beforeState"`
	AfterState  sql.NullString `json:"afterState"`
	CreatedAt   time.Time      `json:"createdAt"`
}
