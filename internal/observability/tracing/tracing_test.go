package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/redeem"),
		attribute.String("voucher.code", "SAVE10"),
		attribute.String("password", "secret"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorHidesMessage(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.EqualError(t, SafeError(errors.New(`voucher "SAVE10" broke`)), "internal_error")
	assert.EqualError(t, SafeError(fmt.Errorf("wrap: %w", context.Canceled)), "context_canceled")
}

func TestDisabledProviderNeverSamples(t *testing.T) {
	provider, err := NewProvider(nil, Config{ServiceName: "test"}, zap.NewNop())
	assert.NoError(t, err)

	_, span := provider.Tracer("test").Start(context.Background(), "op")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}

func TestGinMiddlewareSpans(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	r := gin.New()
	r.Use(GinMiddleware(func(route string) bool { return route == "/health" }))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.PATCH("/vouchers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/redeem", func(c *gin.Context) {
		c.Set("redemption_outcome", "already_redeemed")
		c.Status(http.StatusOK)
	})
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New(`code "SAVE10" exploded`))
		c.Status(http.StatusInternalServerError)
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodPatch, "/vouchers/42", nil),
		httptest.NewRequest(http.MethodPost, "/redeem", nil),
		httptest.NewRequest(http.MethodGet, "/boom", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	attrs := func(i int) map[attribute.Key]attribute.Value {
		out := map[attribute.Key]attribute.Value{}
		for _, kv := range spans[i].Attributes() {
			out[kv.Key] = kv.Value
		}
		return out
	}

	assert.Equal(t, "PATCH /vouchers/:id", spans[0].Name())
	assert.Equal(t, "42", attrs(0)["voucher.id"].AsString())

	assert.Equal(t, "already_redeemed", attrs(1)["redemption.outcome"].AsString())

	assert.Equal(t, codes.Error, spans[2].Status().Code)
	require.Len(t, spans[2].Events(), 1)
	for _, kv := range spans[2].Events()[0].Attributes {
		assert.NotContains(t, kv.Value.Emit(), "SAVE10")
	}
}
