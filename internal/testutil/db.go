package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/codr1/rinkside/internal/db"
	dbgen "github.com/codr1/rinkside/internal/db/generated"
)

// NewTestDB creates a temporary SQLite database with migrations applied.
func NewTestDB(t *testing.T) *db.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	database, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("create test db: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	return database
}

// SeedEvent inserts a scheduled event starting tomorrow.
func SeedEvent(t *testing.T, database *db.DB, name string) dbgen.Event {
	t.Helper()

	event, err := database.Queries.CreateEvent(context.Background(), dbgen.CreateEventParams{
		Name:     name,
		StartsAt: time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second),
		Status:   "scheduled",
	})
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

// SeedRegistration inserts a registration. An empty team leaves the player
// unassigned; a negative order leaves roster_order NULL.
func SeedRegistration(t *testing.T, database *db.DB, eventID int64, name, position, team string, order int) dbgen.EventRegistration {
	t.Helper()

	params := dbgen.CreateRegistrationParams{
		EventID:       eventID,
		PlayerName:    name,
		Position:      position,
		PaymentStatus: "paid",
	}
	if team != "" {
		params.Team = sql.NullString{String: team, Valid: true}
	}
	if order >= 0 {
		params.RosterOrder = sql.NullInt64{Int64: int64(order), Valid: true}
	}
	registration, err := database.Queries.CreateRegistration(context.Background(), params)
	if err != nil {
		t.Fatalf("seed registration %s: %v", name, err)
	}
	return registration
}

// SeedWaitlist appends a skater to the end of the event's waitlist.
func SeedWaitlist(t *testing.T, database *db.DB, eventID int64, name string) dbgen.EventWaitlist {
	t.Helper()

	entry, err := database.Queries.CreateWaitlistEntry(context.Background(), dbgen.CreateWaitlistEntryParams{
		EventID:       eventID,
		PlayerName:    name,
		Position:      "skater",
		PaymentStatus: "unpaid",
	})
	if err != nil {
		t.Fatalf("seed waitlist %s: %v", name, err)
	}
	return entry
}
