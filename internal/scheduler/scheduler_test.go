package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/voucherportal/internal/auth/domain"
	authrepository "github.com/smallbiznis/voucherportal/internal/auth/repository"
	"github.com/smallbiznis/voucherportal/internal/clock"
	"github.com/smallbiznis/voucherportal/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func newTestScheduler(t *testing.T, now time.Time, batchSize int) (*Scheduler, *gorm.DB, *snowflake.Node) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	_, sessions := authrepository.New(conn)
	s, err := New(Params{
		Log:      zap.NewNop(),
		Sessions: sessions,
		GenID:    node,
		Clock:    clock.NewFakeClock(now),
		Config:   Config{BatchSize: batchSize, SessionRetention: time.Hour},
	})
	require.NoError(t, err)
	return s, conn, node
}

func insertSession(t *testing.T, conn *gorm.DB, node *snowflake.Node, expiresAt time.Time, revokedAt *time.Time) snowflake.ID {
	t.Helper()
	id := node.Generate()
	require.NoError(t, conn.Create(&authdomain.Session{
		ID:               id,
		UserID:           node.Generate(),
		SessionTokenHash: id.String(),
		ExpiresAt:        expiresAt,
		RevokedAt:        revokedAt,
		CreatedAt:        expiresAt.Add(-24 * time.Hour),
		LastSeenAt:       expiresAt.Add(-24 * time.Hour),
	}).Error)
	return id
}

func TestPurgeSessionsJob(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s, conn, node := newTestScheduler(t, now, 2)

	longExpired := now.Add(-48 * time.Hour)
	recentlyRevoked := now.Add(-10 * time.Minute)
	oldRevoked := now.Add(-3 * time.Hour)

	insertSession(t, conn, node, longExpired, nil)
	insertSession(t, conn, node, longExpired, nil)
	insertSession(t, conn, node, now.Add(24*time.Hour), &oldRevoked)
	keepActive := insertSession(t, conn, node, now.Add(24*time.Hour), nil)
	keepRecent := insertSession(t, conn, node, now.Add(24*time.Hour), &recentlyRevoked)

	require.NoError(t, s.RunOnce(context.Background()))

	var remaining []authdomain.Session
	require.NoError(t, conn.Order("id ASC").Find(&remaining).Error)
	require.Len(t, remaining, 2)
	assert.Equal(t, keepActive, remaining[0].ID)
	assert.Equal(t, keepRecent, remaining[1].ID)
}

func TestRunJobTreatsTimeoutAsSoft(t *testing.T) {
	s, _, _ := newTestScheduler(t, time.Now(), 10)

	err := s.runJob(context.Background(), "timeout_job", 1, 5*time.Millisecond, func(ctx context.Context, w *sweep) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.NoError(t, err)
}

func TestRunJobWrapsFailures(t *testing.T) {
	s, _, _ := newTestScheduler(t, time.Now(), 10)

	err := s.runJob(context.Background(), "broken", 1, time.Second, func(ctx context.Context, w *sweep) error {
		return assert.AnError
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "broken")
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSweepLogsPurgedSessions(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&authdomain.User{}, &authdomain.Session{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	_, sessions := authrepository.New(conn)
	s, err := New(Params{
		Log:      zap.New(core),
		Sessions: sessions,
		GenID:    node,
		Clock:    clock.NewFakeClock(now),
		Config:   Config{BatchSize: 2, SessionRetention: time.Hour},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		insertSession(t, conn, node, now.Add(-48*time.Hour), nil)
	}
	require.NoError(t, s.RunOnce(context.Background()))

	finished := logs.FilterMessage("sweep finished").All()
	require.Len(t, finished, 1)
	fields := finished[0].ContextMap()
	assert.Equal(t, int64(3), fields["sessions_purged"])
	assert.Equal(t, int64(2), fields["batches"])
	assert.Equal(t, jobPurgeSessions, fields["job"])
	cutoff, ok := fields["cutoff"].(time.Time)
	require.True(t, ok)
	assert.True(t, cutoff.Equal(now.Add(-time.Hour)))
}
