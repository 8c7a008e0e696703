package server

import (
	"net/http"

	"github.com/formgate/formgate/internal/metrics"
)

// FormBodyMiddleware guarantees that a form body can be read repeatedly: by
// in-process stages and by the outbound forward, even after an earlier
// consumer has drained the original stream. Eligible requests get a FormBody
// installed in the request slot; the re-encode itself is deferred until
// something actually reads the body.
type FormBodyMiddleware struct {
	extractor   FormExtractor
	encoder     FormEncoder
	maxBytes    int64
	maxMemBytes int64
	next        http.Handler
}

func WithFormBodyMiddleware(extractor FormExtractor, encoder FormEncoder, maxBytes, maxMemBytes int64, next http.Handler) http.Handler {
	return &FormBodyMiddleware{
		extractor:   extractor,
		encoder:     encoder,
		maxBytes:    maxBytes,
		maxMemBytes: maxMemBytes,
		next:        next,
	}
}

func (h *FormBodyMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	if rc == nil {
		rc, r = WithRequestContext(r)
	}

	if !h.shouldRewrite(r, rc) {
		h.next.ServeHTTP(w, rc.Request())
		return
	}

	inner := rc.Request()
	body := NewFormBody(inner, h.extractor, h.encoder, rc.ForwardHeaders(), h.maxBytes, h.maxMemBytes)
	defer body.Close()

	replacement := new(http.Request)
	*replacement = *inner
	replacement.Body = body.Body()

	rc.SetFormBody(body)
	rc.SetRequest(replacement)
	metrics.Tracker.TrackFormRewrite(formFamily(r.Header.Get("Content-Type")))

	h.next.ServeHTTP(w, replacement)
}

// Private

// shouldRewrite is the applicability gate: a pure decision over the request's
// declared content type and pipeline context. Requests without a content
// type (GET and friends) and requests with an unparsable one are left alone.
// Multipart bodies are expensive to buffer, so they are only rewritten when
// an in-process dispatch stage is known to consume the original stream.
func (h *FormBodyMiddleware) shouldRewrite(r *http.Request, rc *RequestContext) bool {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		return false
	}

	mediaType, err := ParseMediaType(contentType)
	if err != nil {
		return false
	}

	if MediaTypeFormURLEncoded.Includes(mediaType) {
		return true
	}

	return rc.DispatchedInProcess() && MediaTypeMultipartForm.Includes(mediaType)
}
