// Package metrics defines hubgate's Prometheus collectors. Collectors are
// registered on the default registry and served via promhttp.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts calls to the hub management API by operation
	// (login, fetch_accessories, write_characteristic) and outcome.
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_upstream_requests_total",
		Help: "Calls made to the hub management API.",
	}, []string{"operation", "outcome"})

	// ControlResults counts per-device control outcomes.
	ControlResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_control_results_total",
		Help: "Per-device control attempt outcomes.",
	}, []string{"outcome"})

	// HTTPRequests counts requests to hubgate's own REST surface.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hubgate_http_requests_total",
		Help: "Requests served by the hubgate API.",
	}, []string{"path", "code"})
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
