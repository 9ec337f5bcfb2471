package tracing

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Voucher codes and credentials never go on spans.
var blockedAttributeKeys = map[attribute.Key]struct{}{
	"voucher.code":  {},
	"code":          {},
	"password":      {},
	"session_token": {},
	"email":         {},
	"authorization": {},
	"cookie":        {},
}

// ExtractContext reads W3C trace context from an inbound carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// SafeAttributes drops attributes that could carry secrets or customer data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

type redactedError struct {
	kind string
}

func (e redactedError) Error() string { return e.kind }

// SafeError records the error class without its message, which may echo input.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return redactedError{kind: "context_canceled"}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return redactedError{kind: "deadline_exceeded"}
	}
	return redactedError{kind: "internal_error"}
}
