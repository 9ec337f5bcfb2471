package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
	"github.com/smallbiznis/voucherportal/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

const jobPurgeSessions = "purge_sessions"

type Params struct {
	fx.In

	Log      *zap.Logger
	Sessions authdomain.SessionRepository
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   Config `optional:"true"`
}

// Scheduler runs background housekeeping on a fixed interval.
type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	sessions authdomain.SessionRepository
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Sessions == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		sessions: p.Sessions,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, w *sweep) error,
) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, w := s.beginSweep(ctx, name, batchSize)
	err := fn(ctx, w)
	if err != nil {
		w.markFailed()
	}
	s.endSweep(ctx, w)
	if err == nil {
		return nil
	}

	// a deadline only cuts the run short; the next tick continues
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, jobPurgeSessions, s.cfg.BatchSize, s.cfg.JobTimeout, s.PurgeSessionsJob)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PurgeSessionsJob removes sessions that expired or were revoked longer
// than the retention window ago, one batch at a time.
func (s *Scheduler) PurgeSessionsJob(ctx context.Context, w *sweep) error {
	cutoff := s.clock.Now().Add(-s.cfg.SessionRetention)
	w.cutoff = cutoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		purged, err := s.sessions.PurgeSessions(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		w.recordBatch(purged)
		if purged < s.cfg.BatchSize {
			return nil
		}
	}
}
