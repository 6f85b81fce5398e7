package httpapi

import (
	"strings"
	"sync"
)

// Handler handles one matched request.
type Handler func(ctx *RequestContext) error

// Middleware wraps a Handler with cross-cutting behavior.
type Middleware func(Handler) Handler

type route struct {
	method  string
	path    string
	handler Handler
}

// Router is a small method+path-template matcher, the same ":param"
// convention and middleware-chaining shape as fluxor's pkg/web fastRouter,
// without that package's vertx/EventBus coupling.
type Router struct {
	mu         sync.RWMutex
	routes     []*route
	middleware []Middleware
}

func NewRouter() *Router {
	return &Router{}
}

// Use registers global middleware; the first-registered middleware is the outermost.
func (r *Router) Use(mw ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw...)
}

func (r *Router) GET(path string, h Handler)    { r.handle("GET", path, h) }
func (r *Router) POST(path string, h Handler)   { r.handle("POST", path, h) }
func (r *Router) PUT(path string, h Handler)    { r.handle("PUT", path, h) }
func (r *Router) DELETE(path string, h Handler) { r.handle("DELETE", path, h) }

func (r *Router) handle(method, path string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, &route{method: method, path: path, handler: h})
}

// Dispatch finds a matching route, applies global middleware, and invokes
// it. It returns false if no route matched.
func (r *Router) Dispatch(ctx *RequestContext, method, path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.routes {
		if rt.method != method {
			continue
		}
		if !matchPath(rt.path, path) {
			continue
		}
		extractParams(rt.path, path, ctx.Params)
		handler := rt.handler
		for i := len(r.middleware) - 1; i >= 0; i-- {
			handler = r.middleware[i](handler)
		}
		if err := handler(ctx); err != nil {
			ctx.WriteError(err)
		}
		return true
	}
	return false
}

func matchPath(pattern, path string) bool {
	pp := strings.Split(pattern, "/")
	qp := strings.Split(path, "/")
	if len(pp) != len(qp) {
		return false
	}
	for i, part := range pp {
		if strings.HasPrefix(part, ":") {
			continue
		}
		if part != qp[i] {
			return false
		}
	}
	return true
}

func extractParams(pattern, path string, out map[string]string) {
	pp := strings.Split(pattern, "/")
	qp := strings.Split(path, "/")
	for i, part := range pp {
		if strings.HasPrefix(part, ":") && i < len(qp) {
			out[strings.TrimPrefix(part, ":")] = qp[i]
		}
	}
}
