package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jshunt_cache_hits_total",
		Help: "Total number of response cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jshunt_cache_misses_total",
		Help: "Total number of response cache misses",
	})

	// NotModifiedResponses counts 304 answers replayed from the cache.
	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jshunt_cache_not_modified_total",
		Help: "Total number of 304 Not Modified responses served from cache",
	})

	// ConditionalRequestsSent counts requests carrying If-None-Match or If-Modified-Since.
	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jshunt_cache_conditional_requests_total",
		Help: "Total number of conditional requests sent",
	})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jshunt_cache_errors_total",
		Help: "Total number of cache operation errors",
	}, []string{"operation"}) // get, set, delete
)
