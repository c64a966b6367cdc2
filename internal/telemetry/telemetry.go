// Package telemetry holds tracing helpers shared by the loop and the HTTP clients.
package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used by every package of the module.
const InstrumentationName = "github.com/spachava753/toolloop"

// Tracer returns the module tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// End ends the span with the appropriate status based on the error.
func End(span trace.Span, err error, options ...trace.SpanEndOption) {
	// Set Ok code by default.
	code, description := codes.Ok, ""

	if err != nil {
		code, description = codes.Error, err.Error()
		span.RecordError(err)
		span.SetAttributes(
			attribute.String("error.message", err.Error()),
			attribute.String("error.type", fmt.Sprintf("%T", err)),
		)
	}

	span.SetStatus(code, description)
	span.End(options...)
}
