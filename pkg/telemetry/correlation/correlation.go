package correlation

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// HeaderCorrelationID carries the correlation id across hops.
const HeaderCorrelationID = "X-Correlation-Id"

type correlationKey struct{}

// ExtractCorrelationID fetches a correlation ID from the context if present.
func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(correlationKey{}).(string); ok {
		return val
	}
	return ""
}

// ContextWithCorrelationID sets the correlation ID onto the context.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := ExtractCorrelationID(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return ContextWithCorrelationID(ctx, cid), cid
}

// GinMiddleware accepts an inbound correlation id or mints one, and echoes it back.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ContextWithCorrelationID(c.Request.Context(), c.GetHeader(HeaderCorrelationID))
		ctx, cid := EnsureCorrelationID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderCorrelationID, cid)
		c.Next()
	}
}
