package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type tracker interface {
	TrackRequest(host, method string, status int, duration time.Duration)
	TrackFormRewrite(family string)
	TrackFormInspection(family string)
}

var Tracker tracker = &nullTracker{}

func Enable() http.Handler {
	Tracker = NewPrometheusTracker()
	return promhttp.Handler()
}

type nullTracker struct{}

func (nullTracker) TrackRequest(host, method string, status int, dur time.Duration) {}
func (nullTracker) TrackFormRewrite(family string)                                  {}
func (nullTracker) TrackFormInspection(family string)                               {}

type prometheusTracker struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	formRewrites    *prometheus.CounterVec
	formInspections *prometheus.CounterVec
}

func NewPrometheusTracker() *prometheusTracker {
	tracker := &prometheusTracker{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:      "http_requests_total",
				Namespace: "formgate",
				Subsystem: "proxy",
				Help:      "HTTP requests processed, labeled by host, status code and method.",
			},
			[]string{"host", "method", "status"},
		),

		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:      "http_request_duration_seconds",
				Namespace: "formgate",
				Subsystem: "proxy",
				Help:      "Duration of HTTP requests, labeled by host, status code and method.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"host", "method", "status"},
		),

		formRewrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:      "form_rewrites_total",
				Namespace: "formgate",
				Subsystem: "proxy",
				Help:      "Form bodies made replayable, labeled by media type family.",
			},
			[]string{"family"},
		),

		formInspections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:      "form_inspections_total",
				Namespace: "formgate",
				Subsystem: "proxy",
				Help:      "Form bodies inspected in-process, labeled by media type family.",
			},
			[]string{"family"},
		),
	}

	prometheus.MustRegister(tracker.httpRequests, tracker.httpDuration, tracker.formRewrites, tracker.formInspections)

	return tracker
}

func (p *prometheusTracker) TrackRequest(host, method string, status int, duration time.Duration) {
	method = normalizeMethod(method)
	statusString := strconv.Itoa(status)

	p.httpRequests.WithLabelValues(host, method, statusString).Inc()
	p.httpDuration.WithLabelValues(host, method, statusString).Observe(duration.Seconds())
}

func (p *prometheusTracker) TrackFormRewrite(family string) {
	p.formRewrites.WithLabelValues(normalizeFamily(family)).Inc()
}

func (p *prometheusTracker) TrackFormInspection(family string) {
	p.formInspections.WithLabelValues(normalizeFamily(family)).Inc()
}

// Private

func normalizeMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost,
		http.MethodPut, http.MethodPatch, http.MethodDelete,
		http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return method
	default:
		return "OTHER"
	}
}

func normalizeFamily(family string) string {
	switch family {
	case "urlencoded", "multipart":
		return family
	default:
		return "other"
	}
}
