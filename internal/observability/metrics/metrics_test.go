package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outcome", "success"),
		attribute.String("user_id", "456"),
		attribute.String("voucher_code", "SAVE10"),
		attribute.String("endpoint", "/redeem"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	assert.Equal(t, attribute.Key("outcome"), attrs[0].Key)
	assert.Equal(t, attribute.Key("endpoint"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRedemption(context.Background(), "success")
	m.RecordVoucherMutation(context.Background(), "create", nil)
	m.RecordRateLimitAllowed(context.Background(), "/redeem")
	m.RecordRateLimitDenied(context.Background(), "/redeem", "bucket_empty")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "test"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordRedemption(context.Background(), "not_found")
}

func TestHTTPMetricsCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := NewHTTPMetricsWithRegistry(reg)
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/vouchers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/vouchers/1", nil))
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("/vouchers/:id", http.MethodGet, "200")))
}

func TestHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewHTTPMetricsWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewHTTPMetricsWithRegistry(reg)
	require.NoError(t, err)
	assert.Same(t, first.requests, second.requests)
}
