package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/voucherportal/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/voucherportal/internal/observability/metrics"
	"github.com/smallbiznis/voucherportal/internal/ratelimit"
	"go.uber.org/zap"
)

const (
	rateLimitReasonUserRate        = "user-rate"
	rateLimitReasonUserConcurrency = "user-concurrency"
)

// RedeemRateLimit throttles redeem attempts per user and keeps at most one
// attempt per user in flight. A nil limiter lets every request through.
func (s *Server) RedeemRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		user, ok := currentUser(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()
		userID := user.ID.String()

		result, err := s.limiter.Allow(ctx, userID)
		if err != nil {
			logger.FromContext(ctx).Warn("redeem rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			denyRedeemRateLimit(c, endpoint, rateLimitReasonUserRate, retryAfter, s.obsMetrics)
			return
		}

		release, locked, err := s.limiter.LockUser(ctx, userID)
		if err != nil {
			logger.FromContext(ctx).Warn("redeem concurrency lock failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !locked {
			denyRedeemRateLimit(c, endpoint, rateLimitReasonUserConcurrency, 1, s.obsMetrics)
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				logger.FromContext(ctx).Warn("redeem concurrency unlock failed", zap.Error(err))
			}
		}()

		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func denyRedeemRateLimit(c *gin.Context, endpoint, reason string, retryAfter int, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("redeem rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(ctx, endpoint, reason, metrics)

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ratelimit.ErrRateLimited)
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
