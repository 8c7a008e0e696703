package server

import (
	"log/slog"
	"net/http"

	"github.com/formgate/formgate/internal/metrics"
)

// FormInspectionMiddleware is an in-process dispatch stage: it parses form
// submissions for audit logging before the request is forwarded, consuming
// the original body stream in the process. Requests passing through here are
// marked so the form body stage knows a rewrite is required to keep the body
// forwardable.
type FormInspectionMiddleware struct {
	maxMemBytes int64
	next        http.Handler
}

func WithFormInspectionMiddleware(maxMemBytes int64, next http.Handler) http.Handler {
	return &FormInspectionMiddleware{
		maxMemBytes: maxMemBytes,
		next:        next,
	}
}

func (h *FormInspectionMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := RequestContextFrom(r.Context())
	if rc == nil {
		rc, r = WithRequestContext(r)
	}

	family := formFamily(r.Header.Get("Content-Type"))
	if family != "" {
		rc.MarkDispatchedInProcess()
		h.inspect(r, family)
	}

	h.next.ServeHTTP(w, rc.Request())
}

// Private

func (h *FormInspectionMiddleware) inspect(r *http.Request, family string) {
	var err error
	if family == "multipart" {
		err = r.ParseMultipartForm(h.maxMemBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		slog.Debug("Form inspection failed", "path", r.URL.Path, "error", err)
		return
	}

	fieldCount := len(r.PostForm)
	if r.MultipartForm != nil {
		fieldCount = len(r.MultipartForm.Value) + len(r.MultipartForm.File)
	}

	slog.Debug("Form inspected", "path", r.URL.Path, "family", family, "fields", fieldCount)
	metrics.Tracker.TrackFormInspection(family)
}

func formFamily(contentType string) string {
	if contentType == "" {
		return ""
	}

	mediaType, err := ParseMediaType(contentType)
	if err != nil {
		return ""
	}

	switch {
	case MediaTypeFormURLEncoded.Includes(mediaType):
		return "urlencoded"
	case MediaTypeMultipartForm.Includes(mediaType):
		return "multipart"
	default:
		return ""
	}
}
