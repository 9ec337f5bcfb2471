package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/voucherportal/internal/observability/context"
	obslogger "github.com/smallbiznis/voucherportal/internal/observability/logger"
	"go.uber.org/zap"
)

// sweep tracks one housekeeping pass for the finish log line.
type sweep struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time

	cutoff  time.Time
	batches int
	removed int
	failed  bool
}

func (w *sweep) recordBatch(removed int) {
	if w == nil {
		return
	}
	w.batches++
	if removed > 0 {
		w.removed += removed
	}
}

func (w *sweep) markFailed() {
	if w != nil {
		w.failed = true
	}
}

func (w *sweep) fields() []zap.Field {
	fields := []zap.Field{
		zap.String("job", w.job),
		zap.String("run_id", w.runID),
		zap.Int("batch_size", w.batchSize),
	}
	if !w.cutoff.IsZero() {
		fields = append(fields, zap.Time("cutoff", w.cutoff))
	}
	return fields
}

func (s *Scheduler) beginSweep(ctx context.Context, job string, batchSize int) (context.Context, *sweep) {
	w := &sweep{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: time.Now(),
	}
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	s.logger(ctx).Debug("sweep started", w.fields()...)
	return ctx, w
}

func (s *Scheduler) endSweep(ctx context.Context, w *sweep) {
	fields := append(w.fields(),
		zap.Int("batches", w.batches),
		zap.Int("sessions_purged", w.removed),
		zap.Int64("duration_ms", time.Since(w.startedAt).Milliseconds()),
	)
	log := s.logger(ctx)
	switch {
	case w.failed:
		log.Warn("sweep finished with errors", fields...)
	case w.removed == 0:
		log.Debug("sweep finished", fields...)
	default:
		log.Info("sweep finished", fields...)
	}
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
