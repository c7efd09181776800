package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/middenhq/midden/pkg/observability"
)

// Sweeper periodically deletes expired verification code rows. Verification
// already ignores expired rows, so the sweeper only reclaims storage; it does
// not change any externally observable behavior.
type Sweeper struct {
	cron   *cron.Cron
	codes  CodeStore
	logger *observability.Logger
}

// NewSweeper schedules expired-code cleanup on the given cron spec
// (e.g. "@every 10m").
func NewSweeper(schedule string, codes CodeStore, logger *observability.Logger) (*Sweeper, error) {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Sweeper{
		cron:   cron.New(),
		codes:  codes,
		logger: logger,
	}

	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	return s, nil
}

// Start begins running the cleanup schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := s.codes.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.WithError(err).Error("expired code sweep failed")
		return
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Info("expired verification codes deleted")
	}
}
