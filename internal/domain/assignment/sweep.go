package assignment

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// RegistrationSweeper runs SweepExpiredRegistrations once at start and then
// at every local midnight. The wait is recomputed from the wall clock before
// each run, so DST changes and host sleep shift at most one run.
type RegistrationSweeper struct {
	engine *Engine
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time
}

func NewRegistrationSweeper(engine *Engine, loc *time.Location, logger zerolog.Logger) *RegistrationSweeper {
	if loc == nil {
		loc = time.Local
	}
	return &RegistrationSweeper{
		engine: engine,
		loc:    loc,
		logger: logger.With().Str("component", "registration-sweeper").Logger(),
		now:    time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (s *RegistrationSweeper) Start(ctx context.Context) {
	s.RunOnce(ctx)
	for {
		next := nextMidnight(s.now(), s.loc)
		wait := next.Sub(s.now())
		s.logger.Debug().Time("next_run", next).Dur("wait", wait).Msg("registration sweep scheduled")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce sweeps with the current time. Errors are logged, not returned, so
// the schedule keeps going.
func (s *RegistrationSweeper) RunOnce(ctx context.Context) {
	if _, err := s.engine.SweepExpiredRegistrations(ctx, s.now()); err != nil {
		s.logger.Error().Err(err).Msg("registration sweep failed")
	}
}

// nextMidnight returns the first local midnight in loc strictly after now.
func nextMidnight(now time.Time, loc *time.Location) time.Time {
	t := now.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}
