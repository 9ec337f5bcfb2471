package logger

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/voucherportal/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextOmitsUnsetFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("bare")

	ctx := obscontext.WithRequestID(context.Background(), "req-9")
	ctx = obscontext.WithActor(ctx, "user", "42")
	WithContext(ctx, base).Info("redeem attempt", VoucherID(snowflake.ID(7)), Outcome("success"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].ContextMap())

	fields := entries[1].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "user", fields["actor_type"])
	assert.Equal(t, "42", fields["actor_id"])
	assert.Equal(t, "7", fields["voucher_id"])
	assert.Equal(t, "success", fields["redemption_outcome"])
	assert.NotContains(t, fields, "trace_id")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "chatty"})
	assert.Error(t, err)

	log, err := New(nil, Config{Level: "warn", Debug: true})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
}
