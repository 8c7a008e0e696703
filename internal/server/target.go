package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"regexp"
	"sync"
	"time"
)

const (
	DefaultDrainTimeout = time.Second * 5
	ProxyBufferSize     = 32 * KB
)

var (
	ErrorInvalidHostPattern = errors.New("invalid host pattern")

	hostRegex = regexp.MustCompile(`^(\w[-_.\w+]+)(:\d+)?$`)

	proxyBufferPool = NewBufferPool(ProxyBufferSize)
)

type inflightMap map[*http.Request]context.CancelFunc

// Target forwards requests to one upstream. When the pipeline installed a
// FormBody for the request, the outbound copy is rewritten at forward time
// to carry the re-encoded body, its length, and the finalized content type.
type Target struct {
	targetURL *url.URL
	proxy     *httputil.ReverseProxy

	draining     bool
	inflight     inflightMap
	inflightLock sync.Mutex
}

func NewTarget(targetURL string) (*Target, error) {
	uri, err := parseTargetURL(targetURL)
	if err != nil {
		return nil, err
	}

	target := &Target{
		targetURL: uri,
		inflight:  inflightMap{},
	}

	target.proxy = &httputil.ReverseProxy{
		BufferPool:   proxyBufferPool,
		Rewrite:      target.Rewrite,
		ErrorHandler: target.handleProxyError,
	}

	return target, nil
}

func (t *Target) Target() string {
	return t.targetURL.Host
}

func (t *Target) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	req = t.beginInflightRequest(req)
	if req == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	defer t.endInflightRequest(req)

	if rc := RequestContextFrom(req.Context()); rc != nil && rc.FormBody() != nil {
		err := t.resolveFormBody(req, rc.FormBody())
		if err != nil {
			slog.Error("Unable to convert form data", "target", t.Target(), "path", req.URL.Path, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	t.proxy.ServeHTTP(w, req)
}

func (t *Target) Rewrite(req *httputil.ProxyRequest) {
	// Preserve & append X-Forwarded-For
	req.Out.Header["X-Forwarded-For"] = req.In.Header["X-Forwarded-For"]
	req.SetXForwarded()

	req.SetURL(t.targetURL)
	req.Out.Host = req.In.Host

	if rc := RequestContextFrom(req.In.Context()); rc != nil {
		for name, value := range rc.ForwardHeaders() {
			req.Out.Header.Set(name, value)
		}
	}
}

func (t *Target) Drain(timeout time.Duration) {
	t.updateState(true)

	deadline := time.After(timeout)
	toCancel := t.pendingRequestsToCancel()

WAIT_FOR_REQUESTS_TO_COMPLETE:
	for req := range toCancel {
		select {
		case <-req.Context().Done():
		case <-deadline:
			break WAIT_FOR_REQUESTS_TO_COMPLETE
		}
	}

	for _, cancel := range toCancel {
		cancel()
	}
}

// Private

// resolveFormBody swaps the outbound body for a fresh read of the encoded
// buffer. Reaching this point counts as a body access, so a request whose
// body was never read in-process builds here, just before it is forwarded.
func (t *Target) resolveFormBody(req *http.Request, body *FormBody) error {
	reader, err := body.Reader()
	if err != nil {
		return err
	}

	length, err := body.ContentLength64()
	if err != nil {
		return err
	}

	req.Body = reader
	req.ContentLength = length
	// Let the transport frame the body from ContentLength
	req.Header.Del("Content-Length")
	return nil
}

func (t *Target) handleProxyError(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("Error while proxying", "target", t.Target(), "path", r.URL.Path, "error", err)

	if t.isRequestEntityTooLarge(err) {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
	} else {
		w.WriteHeader(http.StatusBadGateway)
	}
}

func (t *Target) isRequestEntityTooLarge(err error) bool {
	var maxBytesError *http.MaxBytesError
	return errors.As(err, &maxBytesError)
}

func (t *Target) updateState(draining bool) {
	t.inflightLock.Lock()
	defer t.inflightLock.Unlock()

	t.draining = draining
}

func (t *Target) beginInflightRequest(req *http.Request) *http.Request {
	t.inflightLock.Lock()
	defer t.inflightLock.Unlock()

	if t.draining {
		return nil
	}

	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	t.inflight[req] = cancel
	return req
}

func (t *Target) endInflightRequest(req *http.Request) {
	t.inflightLock.Lock()
	defer t.inflightLock.Unlock()

	cancel := t.inflight[req]
	cancel() // If Drain is waiting on us, let it know we're done

	delete(t.inflight, req)
}

func (t *Target) pendingRequestsToCancel() inflightMap {
	// We use a copy of the inflight map to iterate over while draining, so that
	// we don't need to lock it the whole time, which could interfere with the
	// locking that happens when requests end.
	t.inflightLock.Lock()
	defer t.inflightLock.Unlock()

	result := inflightMap{}
	for k, v := range t.inflight {
		result[k] = v
	}
	return result
}

func parseTargetURL(targetURL string) (*url.URL, error) {
	if !hostRegex.MatchString(targetURL) {
		return nil, fmt.Errorf("%s :%w", targetURL, ErrorInvalidHostPattern)
	}

	uri, _ := url.Parse("http://" + targetURL)
	return uri, nil
}
