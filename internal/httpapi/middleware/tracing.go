package middleware

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kissvdb/kissvdb/internal/httpapi"
)

// Tracing starts one span per request, named by HTTP method and path,
// tagged with the resolved status code.
func Tracing(tracer trace.Tracer) httpapi.Middleware {
	return func(next httpapi.Handler) httpapi.Handler {
		return func(ctx *httpapi.RequestContext) error {
			_, span := tracer.Start(ctx.Context(), string(ctx.Method())+" "+string(ctx.Path()))
			defer span.End()

			span.SetAttributes(
				attribute.String("http.method", string(ctx.Method())),
				attribute.String("http.path", string(ctx.Path())),
				attribute.String("request.id", ctx.RequestID),
			)

			err := next(ctx)
			span.SetAttributes(attribute.Int("http.status_code", ctx.Response.StatusCode()))
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}
