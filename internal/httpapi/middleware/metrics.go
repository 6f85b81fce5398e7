package middleware

import (
	"strconv"
	"time"

	"github.com/kissvdb/kissvdb/internal/httpapi"
	"github.com/kissvdb/kissvdb/internal/metrics"
)

// Metrics records every request's method, path, status, and latency
// against the process-wide Prometheus collectors (adapted from fluxor's
// FastHTTPMetricsMiddleware in pkg/observability/prometheus).
func Metrics() httpapi.Middleware {
	m := metrics.Get()
	return func(next httpapi.Handler) httpapi.Handler {
		return func(ctx *httpapi.RequestContext) error {
			start := time.Now()
			method := string(ctx.Method())
			path := string(ctx.Path())

			err := next(ctx)

			status := ctx.Response.StatusCode()
			m.RecordHTTPRequest(method, path, strconv.Itoa(status), time.Since(start))
			return err
		}
	}
}
