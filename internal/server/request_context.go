package server

import (
	"context"
	"net/http"
	"strings"
)

var contextKeyRequestContext = contextKey("request-context")

// ForwardHeaders is the per-request overlay of headers to apply to the
// outbound request, keyed by lower-case header name.
type ForwardHeaders map[string]string

func (h ForwardHeaders) Set(name, value string) {
	h[strings.ToLower(name)] = value
}

func (h ForwardHeaders) Get(name string) (string, bool) {
	value, ok := h[strings.ToLower(name)]
	return value, ok
}

// RequestContext is the pipeline's view of a single in-flight request. Its
// request slot is the one canonical indirection cell holding the current
// innermost request: stages that replace the body install a new request here,
// and every later stage (including the outbound forward) reads through it.
type RequestContext struct {
	request        *http.Request
	forwardHeaders ForwardHeaders
	formBody       *FormBody
	dispatched     bool
}

// WithRequestContext installs a fresh RequestContext on the request and
// returns both. The returned request is the initial occupant of the slot.
func WithRequestContext(r *http.Request) (*RequestContext, *http.Request) {
	rc := &RequestContext{
		forwardHeaders: ForwardHeaders{},
	}

	r = r.WithContext(context.WithValue(r.Context(), contextKeyRequestContext, rc))
	rc.request = r
	return rc, r
}

// RequestContextFrom returns the RequestContext carried by ctx, or nil when
// the request never passed through the pipeline entry point.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rc, _ := ctx.Value(contextKeyRequestContext).(*RequestContext)
	return rc
}

// Request returns the current innermost request view.
func (rc *RequestContext) Request() *http.Request {
	return rc.request
}

// SetRequest replaces the innermost request view for all later stages.
func (rc *RequestContext) SetRequest(r *http.Request) {
	rc.request = r
}

func (rc *RequestContext) ForwardHeaders() ForwardHeaders {
	return rc.forwardHeaders
}

func (rc *RequestContext) SetFormBody(body *FormBody) {
	rc.formBody = body
}

func (rc *RequestContext) FormBody() *FormBody {
	return rc.formBody
}

// MarkDispatchedInProcess records that an in-process handler will consume
// this request's body before it is forwarded.
func (rc *RequestContext) MarkDispatchedInProcess() {
	rc.dispatched = true
}

func (rc *RequestContext) DispatchedInProcess() bool {
	return rc.dispatched
}
