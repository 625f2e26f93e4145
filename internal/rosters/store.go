// Package rosters persists roster and waitlist orders for events. It is the
// store behind the reorder callbacks: every batch is validated against the
// current rows and applied in one transaction with an audit entry.
package rosters

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/rinkside/internal/db"
	dbgen "github.com/codr1/rinkside/internal/db/generated"
	"github.com/codr1/rinkside/internal/reorder"
)

const (
	auditKindRoster   = "roster"
	auditKindWaitlist = "waitlist"
	auditKindUnassign = "unassign"
	auditKindCompact  = "compact"

	eventStatusScheduled = "scheduled"

	MetaPaymentStatus = "payment_status"
	MetaBadges        = "badges"
)

var (
	ErrEventNotFound   = errors.New("event not found")
	ErrEventClosed     = errors.New("event is not open for changes")
	ErrEntrantNotFound = errors.New("entrant not found for event")
	ErrInvalidBatch    = errors.New("invalid reorder batch")
	ErrStaleBatch      = errors.New("reorder batch does not match current entrants")
	ErrNotAssigned     = errors.New("entrant is not assigned to a team")
)

type Store struct {
	db *db.DB
}

func NewStore(database *db.DB) (*Store, error) {
	if database == nil {
		return nil, errors.New("roster store requires a database")
	}
	return &Store{db: database}, nil
}

// placement is the audited state of one entrant.
type placement struct {
	ID    int64  `json:"id"`
	Team  string `json:"team,omitempty"`
	Order *int64 `json:"order,omitempty"`
}

// LoadRoster returns every registration of the event as entrants. Registrations
// without a team are included with an empty group; the grid does not place them.
func (s *Store) LoadRoster(ctx context.Context, eventID int64) ([]reorder.Entrant, error) {
	if _, err := s.getEvent(ctx, s.db.Queries, eventID); err != nil {
		return nil, err
	}
	rows, err := s.db.Queries.ListEventRegistrations(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations for event %d: %w", eventID, err)
	}
	entrants := make([]reorder.Entrant, 0, len(rows))
	for _, row := range rows {
		entrants = append(entrants, registrationEntrant(row))
	}
	return entrants, nil
}

// LoadWaitlist returns the event's waitlist in position order.
func (s *Store) LoadWaitlist(ctx context.Context, eventID int64) ([]reorder.Entrant, error) {
	if _, err := s.getEvent(ctx, s.db.Queries, eventID); err != nil {
		return nil, err
	}
	rows, err := s.db.Queries.ListEventWaitlist(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist for event %d: %w", eventID, err)
	}
	entrants := make([]reorder.Entrant, 0, len(rows))
	for _, row := range rows {
		entrants = append(entrants, waitlistEntrant(row))
	}
	return entrants, nil
}

// ApplyRosterOrder writes a full roster batch. The batch must name every
// team-assigned registration exactly once and number each group from zero
// without gaps.
func (s *Store) ApplyRosterOrder(ctx context.Context, eventID int64, items []reorder.RosterItem) error {
	logger := log.Ctx(ctx).With().
		Str("component", "roster_store").
		Int64("event_id", eventID).
		Int("batch_size", len(items)).
		Logger()

	if err := validateRosterBatch(items); err != nil {
		return err
	}

	err := s.db.RunInTx(ctx, func(txdb *db.DB) error {
		if err := s.requireOpenEvent(ctx, txdb.Queries, eventID); err != nil {
			return err
		}
		rows, err := txdb.Queries.ListEventRegistrations(ctx, eventID)
		if err != nil {
			return fmt.Errorf("list registrations for event %d: %w", eventID, err)
		}

		byID := make(map[int64]dbgen.EventRegistration, len(rows))
		assigned := 0
		for _, row := range rows {
			byID[row.ID] = row
			if row.Team.Valid {
				assigned++
			}
		}
		for _, item := range items {
			row, ok := byID[item.EntrantID]
			if !ok {
				return fmt.Errorf("registration %d: %w", item.EntrantID, ErrEntrantNotFound)
			}
			if !row.Team.Valid {
				return fmt.Errorf("registration %d has no team: %w", item.EntrantID, ErrStaleBatch)
			}
		}
		if assigned != len(items) {
			return fmt.Errorf("batch names %d of %d assigned registrations: %w", len(items), assigned, ErrStaleBatch)
		}

		before := registrationPlacements(rows)
		for _, item := range items {
			affected, err := txdb.Queries.UpdateRegistrationPlacement(ctx, dbgen.UpdateRegistrationPlacementParams{
				Team:        sql.NullString{String: string(item.Group), Valid: true},
				RosterOrder: sql.NullInt64{Int64: int64(item.OrderIndex), Valid: true},
				ID:          item.EntrantID,
				EventID:     eventID,
			})
			if err != nil {
				if db.IsConstraintViolation(err) {
					return fmt.Errorf("update registration %d placement: %w", item.EntrantID, ErrInvalidBatch)
				}
				return fmt.Errorf("update registration %d placement: %w", item.EntrantID, err)
			}
			if affected == 0 {
				return fmt.Errorf("registration %d: %w", item.EntrantID, ErrEntrantNotFound)
			}
		}

		return writeAudit(ctx, txdb.Queries, eventID, auditKindRoster, before, rosterItemPlacements(items))
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Roster order rejected")
		return err
	}

	logger.Info().Msg("Roster order applied")
	return nil
}

// ApplyWaitlistOrder writes a full waitlist batch. Positions must be exactly
// 1..n over the event's current waitlist.
func (s *Store) ApplyWaitlistOrder(ctx context.Context, eventID int64, items []reorder.WaitlistItem) error {
	logger := log.Ctx(ctx).With().
		Str("component", "waitlist_store").
		Int64("event_id", eventID).
		Int("batch_size", len(items)).
		Logger()

	if err := validateWaitlistBatch(items); err != nil {
		return err
	}

	err := s.db.RunInTx(ctx, func(txdb *db.DB) error {
		if err := s.requireOpenEvent(ctx, txdb.Queries, eventID); err != nil {
			return err
		}
		rows, err := txdb.Queries.ListEventWaitlist(ctx, eventID)
		if err != nil {
			return fmt.Errorf("list waitlist for event %d: %w", eventID, err)
		}

		known := make(map[int64]bool, len(rows))
		for _, row := range rows {
			known[row.ID] = true
		}
		for _, item := range items {
			if !known[item.EntrantID] {
				return fmt.Errorf("waitlist entry %d: %w", item.EntrantID, ErrEntrantNotFound)
			}
		}
		if len(items) != len(rows) {
			return fmt.Errorf("batch names %d of %d waitlist entries: %w", len(items), len(rows), ErrStaleBatch)
		}

		before := waitlistPlacements(rows)
		after := make([]placement, 0, len(items))
		for _, item := range items {
			position := int64(item.Position)
			if _, err := txdb.Queries.UpdateWaitlistPosition(ctx, dbgen.UpdateWaitlistPositionParams{
				WaitlistPosition: position,
				ID:               item.EntrantID,
				EventID:          eventID,
			}); err != nil {
				return fmt.Errorf("update waitlist entry %d position: %w", item.EntrantID, err)
			}
			after = append(after, placement{ID: item.EntrantID, Order: &position})
		}

		return writeAudit(ctx, txdb.Queries, eventID, auditKindWaitlist, before, after)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Waitlist order rejected")
		return err
	}

	logger.Info().Msg("Waitlist order applied")
	return nil
}

// UnassignTeam removes a registration from its team and renumbers the team it
// left so its orders stay contiguous.
func (s *Store) UnassignTeam(ctx context.Context, eventID, registrationID int64) error {
	logger := log.Ctx(ctx).With().
		Str("component", "roster_store").
		Int64("event_id", eventID).
		Int64("registration_id", registrationID).
		Logger()

	err := s.db.RunInTx(ctx, func(txdb *db.DB) error {
		if err := s.requireOpenEvent(ctx, txdb.Queries, eventID); err != nil {
			return err
		}
		rows, err := txdb.Queries.ListEventRegistrations(ctx, eventID)
		if err != nil {
			return fmt.Errorf("list registrations for event %d: %w", eventID, err)
		}

		var target *dbgen.EventRegistration
		for i := range rows {
			if rows[i].ID == registrationID {
				target = &rows[i]
				break
			}
		}
		if target == nil {
			return fmt.Errorf("registration %d: %w", registrationID, ErrEntrantNotFound)
		}
		if !target.Team.Valid {
			return fmt.Errorf("registration %d: %w", registrationID, ErrNotAssigned)
		}

		before := registrationPlacements(rows)
		if _, err := txdb.Queries.UpdateRegistrationPlacement(ctx, dbgen.UpdateRegistrationPlacementParams{
			ID:      registrationID,
			EventID: eventID,
		}); err != nil {
			return fmt.Errorf("clear registration %d team: %w", registrationID, err)
		}

		entrants := make([]reorder.Entrant, 0, len(rows))
		for _, row := range rows {
			if row.ID == registrationID {
				continue
			}
			entrants = append(entrants, registrationEntrant(row))
		}
		after, err := renumberRoster(ctx, txdb.Queries, eventID, entrants)
		if err != nil {
			return err
		}
		after = append(after, placement{ID: registrationID})

		return writeAudit(ctx, txdb.Queries, eventID, auditKindUnassign, before, after)
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Team unassignment failed")
		return err
	}

	logger.Info().Msg("Registration removed from team")
	return nil
}

// CompactEvent renumbers roster orders and waitlist positions that drifted
// from contiguous numbering, for instance after deletes. It reports whether
// anything was rewritten.
func (s *Store) CompactEvent(ctx context.Context, eventID int64) (bool, error) {
	var changed bool
	err := s.db.RunInTx(ctx, func(txdb *db.DB) error {
		if _, err := s.getEvent(ctx, txdb.Queries, eventID); err != nil {
			return err
		}

		registrations, err := txdb.Queries.ListEventRegistrations(ctx, eventID)
		if err != nil {
			return fmt.Errorf("list registrations for event %d: %w", eventID, err)
		}
		entrants := make([]reorder.Entrant, 0, len(registrations))
		for _, row := range registrations {
			entrants = append(entrants, registrationEntrant(row))
		}
		rosterBefore := registrationPlacements(registrations)
		rosterAfter, err := renumberRoster(ctx, txdb.Queries, eventID, entrants)
		if err != nil {
			return err
		}

		waitlist, err := txdb.Queries.ListEventWaitlist(ctx, eventID)
		if err != nil {
			return fmt.Errorf("list waitlist for event %d: %w", eventID, err)
		}
		waitlistBefore := waitlistPlacements(waitlist)
		var waitlistAfter []placement
		for i, row := range waitlist {
			position := int64(i + 1)
			if row.WaitlistPosition == position {
				continue
			}
			if _, err := txdb.Queries.UpdateWaitlistPosition(ctx, dbgen.UpdateWaitlistPositionParams{
				WaitlistPosition: position,
				ID:               row.ID,
				EventID:          eventID,
			}); err != nil {
				return fmt.Errorf("compact waitlist entry %d: %w", row.ID, err)
			}
			waitlistAfter = append(waitlistAfter, placement{ID: row.ID, Order: &position})
		}

		if len(rosterAfter) == 0 && len(waitlistAfter) == 0 {
			return nil
		}
		changed = true
		before := append(rosterBefore, waitlistBefore...)
		after := append(rosterAfter, waitlistAfter...)
		return writeAudit(ctx, txdb.Queries, eventID, auditKindCompact, before, after)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// CompactActiveEvents runs CompactEvent for every scheduled event and returns
// how many were rewritten. A failing event is logged and skipped.
func (s *Store) CompactActiveEvents(ctx context.Context) (int, error) {
	logger := log.Ctx(ctx).With().Str("component", "order_compaction").Logger()

	eventIDs, err := s.db.Queries.ListActiveEventIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active events: %w", err)
	}

	compacted := 0
	for _, eventID := range eventIDs {
		changed, err := s.CompactEvent(ctx, eventID)
		if err != nil {
			logger.Error().Err(err).Int64("event_id", eventID).Msg("Failed to compact event orders")
			continue
		}
		if changed {
			compacted++
		}
	}
	logger.Info().Int("event_count", len(eventIDs)).Int("compacted", compacted).Msg("Order compaction finished")
	return compacted, nil
}

// AuditLog returns the applied changes for an event, oldest first.
func (s *Store) AuditLog(ctx context.Context, eventID int64) ([]dbgen.ReorderAuditLog, error) {
	if _, err := s.getEvent(ctx, s.db.Queries, eventID); err != nil {
		return nil, err
	}
	entries, err := s.db.Queries.ListReorderAuditLogs(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list audit log for event %d: %w", eventID, err)
	}
	return entries, nil
}

func (s *Store) getEvent(ctx context.Context, q *dbgen.Queries, eventID int64) (dbgen.Event, error) {
	event, err := q.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dbgen.Event{}, fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
		}
		return dbgen.Event{}, fmt.Errorf("load event %d: %w", eventID, err)
	}
	return event, nil
}

func (s *Store) requireOpenEvent(ctx context.Context, q *dbgen.Queries, eventID int64) error {
	event, err := s.getEvent(ctx, q, eventID)
	if err != nil {
		return err
	}
	if event.Status != eventStatusScheduled {
		return fmt.Errorf("event %d is %s: %w", eventID, event.Status, ErrEventClosed)
	}
	return nil
}

// renumberRoster rewrites any placement that differs from the contiguous
// numbering of the current order and returns the rewritten placements.
func renumberRoster(ctx context.Context, q *dbgen.Queries, eventID int64, entrants []reorder.Entrant) ([]placement, error) {
	current := make(map[int64]*int, len(entrants))
	for _, entrant := range entrants {
		current[entrant.ID] = entrant.Order
	}

	var rewritten []placement
	for _, item := range reorder.PartitionGrid(entrants).Items() {
		if order := current[item.EntrantID]; order != nil && *order == item.OrderIndex {
			continue
		}
		orderIndex := int64(item.OrderIndex)
		if _, err := q.UpdateRegistrationPlacement(ctx, dbgen.UpdateRegistrationPlacementParams{
			Team:        sql.NullString{String: string(item.Group), Valid: true},
			RosterOrder: sql.NullInt64{Int64: orderIndex, Valid: true},
			ID:          item.EntrantID,
			EventID:     eventID,
		}); err != nil {
			return nil, fmt.Errorf("renumber registration %d: %w", item.EntrantID, err)
		}
		rewritten = append(rewritten, placement{ID: item.EntrantID, Team: string(item.Group), Order: &orderIndex})
	}
	return rewritten, nil
}

func validateRosterBatch(items []reorder.RosterItem) error {
	if len(items) == 0 {
		return fmt.Errorf("empty batch: %w", ErrInvalidBatch)
	}
	seen := make(map[int64]bool, len(items))
	orders := map[reorder.Group]map[int]bool{reorder.GroupA: {}, reorder.GroupB: {}}
	for _, item := range items {
		if seen[item.EntrantID] {
			return fmt.Errorf("entrant %d listed twice: %w", item.EntrantID, ErrInvalidBatch)
		}
		seen[item.EntrantID] = true

		groupOrders, ok := orders[item.Group]
		if !ok {
			return fmt.Errorf("entrant %d has unknown group %q: %w", item.EntrantID, item.Group, ErrInvalidBatch)
		}
		if item.OrderIndex < 0 || groupOrders[item.OrderIndex] {
			return fmt.Errorf("group %s order %d invalid or repeated: %w", item.Group, item.OrderIndex, ErrInvalidBatch)
		}
		groupOrders[item.OrderIndex] = true
	}
	for group, groupOrders := range orders {
		for i := 0; i < len(groupOrders); i++ {
			if !groupOrders[i] {
				return fmt.Errorf("group %s has a gap at order %d: %w", group, i, ErrInvalidBatch)
			}
		}
	}
	return nil
}

func validateWaitlistBatch(items []reorder.WaitlistItem) error {
	if len(items) == 0 {
		return fmt.Errorf("empty batch: %w", ErrInvalidBatch)
	}
	seen := make(map[int64]bool, len(items))
	positions := make(map[int]bool, len(items))
	for _, item := range items {
		if seen[item.EntrantID] {
			return fmt.Errorf("entrant %d listed twice: %w", item.EntrantID, ErrInvalidBatch)
		}
		seen[item.EntrantID] = true
		if item.Position < 1 || item.Position > len(items) || positions[item.Position] {
			return fmt.Errorf("position %d out of range or repeated: %w", item.Position, ErrInvalidBatch)
		}
		positions[item.Position] = true
	}
	return nil
}

func writeAudit(ctx context.Context, q *dbgen.Queries, eventID int64, kind string, before, after []placement) error {
	beforeState, err := json.Marshal(before)
	if err != nil {
		return fmt.Errorf("marshal audit before state: %w", err)
	}
	afterState, err := json.Marshal(after)
	if err != nil {
		return fmt.Errorf("marshal audit after state: %w", err)
	}
	if _, err := q.CreateReorderAuditLog(ctx, dbgen.CreateReorderAuditLogParams{
		EventID:     eventID,
		Kind:        kind,
		BeforeState: sql.NullString{String: string(beforeState), Valid: true},
		AfterState:  sql.NullString{String: string(afterState), Valid: true},
	}); err != nil {
		return fmt.Errorf("create %s audit entry: %w", kind, err)
	}
	return nil
}

func registrationEntrant(row dbgen.EventRegistration) reorder.Entrant {
	entrant := reorder.Entrant{
		ID:       row.ID,
		Name:     row.PlayerName,
		Position: positionType(row.Position),
		Meta: map[string]string{
			MetaPaymentStatus: row.PaymentStatus,
		},
	}
	if row.Badges != "" {
		entrant.Meta[MetaBadges] = row.Badges
	}
	if row.Team.Valid {
		entrant.Group = reorder.Group(row.Team.String)
	}
	if row.RosterOrder.Valid {
		entrant.Order = reorder.IntPtr(int(row.RosterOrder.Int64))
	}
	return entrant
}

func waitlistEntrant(row dbgen.EventWaitlist) reorder.Entrant {
	return reorder.Entrant{
		ID:       row.ID,
		Name:     row.PlayerName,
		Position: positionType(row.Position),
		Order:    reorder.IntPtr(int(row.WaitlistPosition)),
		Meta: map[string]string{
			MetaPaymentStatus: row.PaymentStatus,
		},
	}
}

func positionType(value string) reorder.PositionType {
	if strings.EqualFold(value, string(reorder.PositionGoalie)) {
		return reorder.PositionGoalie
	}
	return reorder.PositionSkater
}

func registrationPlacements(rows []dbgen.EventRegistration) []placement {
	out := make([]placement, 0, len(rows))
	for _, row := range rows {
		p := placement{ID: row.ID}
		if row.Team.Valid {
			p.Team = row.Team.String
		}
		if row.RosterOrder.Valid {
			order := row.RosterOrder.Int64
			p.Order = &order
		}
		out = append(out, p)
	}
	return out
}

func rosterItemPlacements(items []reorder.RosterItem) []placement {
	out := make([]placement, 0, len(items))
	for _, item := range items {
		order := int64(item.OrderIndex)
		out = append(out, placement{ID: item.EntrantID, Team: string(item.Group), Order: &order})
	}
	return out
}

func waitlistPlacements(rows []dbgen.EventWaitlist) []placement {
	out := make([]placement, 0, len(rows))
	for _, row := range rows {
		position := row.WaitlistPosition
		out = append(out, placement{ID: row.ID, Order: &position})
	}
	return out
}
