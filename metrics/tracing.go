package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TraceOperation runs fn inside a span named "<component>.<operation>" and
// records a returned error on it.
func TraceOperation(ctx context.Context, component, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := Tracer().Start(ctx, component+"."+operation)
	defer span.End()

	span.SetAttributes(
		attribute.String("dblog.component", component),
		attribute.String("dblog.operation", operation),
	)
	span.SetAttributes(attrs...)

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
