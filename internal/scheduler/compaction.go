package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

const (
	CompactionJobName        = "roster_compaction"
	defaultCompactionTimeout = 2 * time.Minute
)

// Compactor renumbers rosters and waitlists of events still open for changes.
type Compactor interface {
	CompactActiveEvents(ctx context.Context) (int, error)
}

// RegisterCompaction schedules periodic compaction. An empty cronExpr leaves
// compaction disabled and returns a nil job.
func (s *Service) RegisterCompaction(compactor Compactor, cronExpr string, timeout time.Duration) (gocron.Job, error) {
	if cronExpr == "" {
		log.Info().Msg("Roster compaction disabled")
		return nil, nil
	}
	if timeout <= 0 {
		timeout = defaultCompactionTimeout
	}
	return s.AddJob(CompactionJobName, cronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		RunCompaction(ctx, compactor)
	})
}

// RunCompaction runs one compaction pass and logs the outcome.
func RunCompaction(ctx context.Context, compactor Compactor) {
	logger := log.With().Str("job_name", CompactionJobName).Logger()
	start := time.Now()
	changed, err := compactor.CompactActiveEvents(logger.WithContext(ctx))
	if err != nil {
		logger.Error().Err(err).Msg("Roster compaction failed")
		return
	}
	logger.Info().
		Int("events_changed", changed).
		Dur("duration", time.Since(start)).
		Msg("Roster compaction finished")
}
