package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/voucherportal/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "voucherportal/http"

// resourceParams maps route prefixes to the span attribute that carries the
// :id path parameter.
var resourceParams = map[string]attribute.Key{
	"/vouchers/": "voucher.id",
	"/records/":  "voucher_record.id",
}

// GinMiddleware starts a server span per request. Routes for which skip
// returns true are not traced.
func GinMiddleware(skip func(route string) bool) gin.HandlerFunc {
	tracer := otel.Tracer(tracerName)
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		if skip != nil && skip(route) {
			c.Next()
			return
		}

		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}
		span.SetAttributes(resourceAttributes(c, route)...)

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if actorType, _ := obscontext.ActorFromContext(c.Request.Context()); actorType != "" {
			span.SetAttributes(attribute.String("actor.type", actorType))
		}
		if outcome := c.GetString("redemption_outcome"); outcome != "" {
			span.SetAttributes(attribute.String("redemption.outcome", outcome))
		}

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				span.RecordError(SafeError(lastErr.Err))
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func resourceAttributes(c *gin.Context, route string) []attribute.KeyValue {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return nil
	}
	for prefix, key := range resourceParams {
		if strings.HasPrefix(route, prefix) {
			return SafeAttributes(attribute.String(string(key), id))
		}
	}
	return nil
}
