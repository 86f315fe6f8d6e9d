// Package metrics exposes the Prometheus metrics of the catalogue client.
// The metrics themselves live in the packages that update them (client,
// cache, ratelimit, pagination) and register through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every jshunt metric is registered with.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the matching gatherer served by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus exposition format. Scrapes
// of the handler itself are counted in Registry as
// promhttp_metric_handler_requests_total.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(Registry, promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{}))
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - jshunt_http_requests_total{endpoint, status} (Counter): requests by endpoint and HTTP status
//   - jshunt_http_request_duration_seconds{endpoint} (Histogram): request duration
//   - jshunt_http_errors_total{class} (Counter): errors by class (client, server, rate_limit, network)
//
// Cache Metrics (pkg/cache):
//   - jshunt_cache_hits_total (Counter)
//   - jshunt_cache_misses_total (Counter)
//   - jshunt_cache_not_modified_total (Counter): 304 responses served from the cache
//   - jshunt_cache_conditional_requests_total (Counter): requests sent with If-None-Match or If-Modified-Since
//   - jshunt_cache_errors_total{operation} (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - jshunt_rate_limit_remaining (Gauge): requests left in the current window
//   - jshunt_rate_limit_blocks_total (Counter): requests refused locally while the window is spent
//
// Pagination Metrics (pkg/pagination):
//   - jshunt_pagination_triggers_total{trigger, decision} (Counter): mount, near_end and retry triggers, accepted or skipped
//   - jshunt_pagination_fetches_total{outcome} (Counter): merged, failed or discarded fetches
//   - jshunt_pagination_items_merged_total (Counter)
//   - jshunt_pagination_in_flight (Gauge): never above the number of live controllers
//   - jshunt_batch_pages_total{result} (Counter): export page fetches
//
// Example Prometheus Queries:
//
//   # Skipped load-more signals (scroll jitter while loading)
//   sum by (decision) (rate(jshunt_pagination_triggers_total{trigger="near_end"}[5m]))
//
//   # Page failure ratio
//   rate(jshunt_pagination_fetches_total{outcome="failed"}[5m]) /
//   rate(jshunt_pagination_fetches_total[5m])
//
//   # Revalidation rate
//   rate(jshunt_cache_not_modified_total[5m]) / rate(jshunt_http_requests_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(jshunt_http_request_duration_seconds_bucket[5m]))
