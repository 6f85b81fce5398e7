// Package httpapi is KissVDB's HTTP surface (spec §6): KV and vector
// operations, the event stream, and health/metrics endpoints, served over
// fasthttp in the same request-context-and-router shape as fluxor's
// pkg/web, trimmed of the vertx/verticle runtime this service has no use
// for.
package httpapi

import (
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"

	"github.com/kissvdb/kissvdb/internal/kerrors"
	"github.com/kissvdb/kissvdb/internal/logging"
)

// RequestContext wraps one in-flight fasthttp request with the
// conveniences handlers need: path params, a per-request value bag (for
// middleware like JWT to stash claims), and uniform JSON helpers.
type RequestContext struct {
	*fasthttp.RequestCtx
	Params    map[string]string
	RequestID string

	values map[string]interface{}
}

// NewRequestContext builds a RequestContext around an in-flight fasthttp
// request. Exported for use by middleware tests and callers that need to
// construct one outside of Server.handle's normal dispatch path.
func NewRequestContext(rc *fasthttp.RequestCtx, requestID string) *RequestContext {
	return &RequestContext{
		RequestCtx: rc,
		Params:     make(map[string]string),
		RequestID:  requestID,
		values:     make(map[string]interface{}),
	}
}

// Set stores a value for the lifetime of this request (e.g. JWT claims).
func (c *RequestContext) Set(key string, v interface{}) { c.values[key] = v }

// Get retrieves a value previously stored with Set.
func (c *RequestContext) Get(key string) interface{} { return c.values[key] }

// Context returns a context.Context carrying this request's id, for
// passing down to engine calls that accept one.
func (c *RequestContext) Context() context.Context {
	return logging.WithRequestID(context.Background(), c.RequestID)
}

// Query returns a query-string parameter.
func (c *RequestContext) Query(key string) string {
	return string(c.QueryArgs().Peek(key))
}

// Param returns a path parameter captured by the router.
func (c *RequestContext) Param(key string) string { return c.Params[key] }

// JSON writes a JSON response body with the given status code.
func (c *RequestContext) JSON(status int, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return kerrors.Internalf("httpapi: encode response: %v", err)
	}
	c.SetStatusCode(status)
	c.SetContentType("application/json")
	c.Response.SetBody(data)
	return nil
}

// BindJSON decodes the request body into v.
func (c *RequestContext) BindJSON(v interface{}) error {
	body := c.PostBody()
	if len(body) == 0 {
		return kerrors.InvalidArgumentf("httpapi: empty request body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return kerrors.InvalidArgumentf("httpapi: malformed JSON body: %v", err)
	}
	return nil
}

// errorBody is the uniform {error, message} shape (spec §6).
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError renders err in the uniform error body shape, choosing the
// HTTP status from its kerrors.Kind.
func (c *RequestContext) WriteError(err error) {
	kind := kerrors.KindOf(err)
	status := statusForKind(kind)
	c.SetStatusCode(status)
	c.SetContentType("application/json")
	data, _ := json.Marshal(errorBody{Error: string(kind), Message: err.Error()})
	c.Response.SetBody(data)
}

func statusForKind(kind kerrors.Kind) int {
	switch kind {
	case kerrors.InvalidArgument:
		return fasthttp.StatusBadRequest
	case kerrors.NotFound:
		return fasthttp.StatusNotFound
	case kerrors.Conflict:
		return fasthttp.StatusConflict
	case kerrors.Unavailable:
		return fasthttp.StatusServiceUnavailable
	case kerrors.IOError, kerrors.Internal:
		return fasthttp.StatusInternalServerError
	default:
		return fasthttp.StatusInternalServerError
	}
}
