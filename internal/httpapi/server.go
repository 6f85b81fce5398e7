package httpapi

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/kissvdb/kissvdb/internal/logging"
)

// ServerConfig configures the fasthttp listener.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MaxRequestBytes int
}

// Server is the fasthttp-backed HTTP surface.
type Server struct {
	router *Router
	log    logging.Logger
	inner  *fasthttp.Server
	addr   string
}

// NewServer builds a Server around router; register routes on router
// before ListenAndServe.
func NewServer(cfg ServerConfig, router *Router, log logging.Logger) *Server {
	s := &Server{router: router, log: log, addr: cfg.Addr}
	s.inner = &fasthttp.Server{
		Handler:               s.handle,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		MaxRequestBodySize:    cfg.MaxRequestBytes,
		NoDefaultServerHeader: true,
		ReduceMemoryUsage:     true,
	}
	return s
}

func (s *Server) handle(rc *fasthttp.RequestCtx) {
	requestID := string(rc.Request.Header.Peek("X-Request-ID"))
	if requestID == "" {
		requestID = uuid.New().String()
	}
	rc.Response.Header.Set("X-Request-ID", requestID)

	ctx := NewRequestContext(rc, requestID)

	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(map[string]interface{}{
				"request_id": requestID,
				"panic":      r,
			}).Errorf("httpapi: panic recovered")
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetContentType("application/json")
			ctx.Response.SetBodyString(`{"error":"internal","message":"internal server error"}`)
		}
	}()

	method := string(rc.Method())
	path := string(rc.Path())
	if !s.router.Dispatch(ctx, method, path) {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetContentType("application/json")
		ctx.Response.SetBodyString(`{"error":"not_found","message":"no route for this path"}`)
	}
}

// ListenAndServe blocks serving HTTP until the listener fails.
func (s *Server) ListenAndServe() error {
	return s.inner.ListenAndServe(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.ShutdownWithContext(ctx)
}
