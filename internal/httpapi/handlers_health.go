package httpapi

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/kissvdb/kissvdb/internal/metrics"
)

// RegisterHealth mounts the operational health and metrics endpoints
// (spec §6).
func RegisterHealth(r *Router) {
	r.GET("/health", func(ctx *RequestContext) error {
		return ctx.JSON(200, map[string]string{"status": "ok"})
	})

	promHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(metrics.DefaultRegistry, promhttp.HandlerOpts{}))
	r.GET("/metrics", func(ctx *RequestContext) error {
		promHandler(ctx.RequestCtx)
		return nil
	})
}
