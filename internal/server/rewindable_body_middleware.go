package server

import (
	"net/http"
)

// RewindableBodyMiddleware swaps the single-read request body for a
// rewindable one, so later stages can recover the raw bytes even after an
// in-process consumer has drained the stream.
type RewindableBodyMiddleware struct {
	maxBytes    int64
	maxMemBytes int64
	next        http.Handler
}

func WithRewindableBodyMiddleware(maxBytes, maxMemBytes int64, next http.Handler) http.Handler {
	return &RewindableBodyMiddleware{
		maxBytes:    maxBytes,
		maxMemBytes: maxMemBytes,
		next:        next,
	}
}

func (h *RewindableBodyMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		h.next.ServeHTTP(w, r)
		return
	}

	rc := NewRewindableReadCloser(r.Body, h.maxBytes, h.maxMemBytes)
	defer rc.Dispose()

	r.Body = rc
	h.next.ServeHTTP(w, r)
}
