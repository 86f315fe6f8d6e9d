package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	triggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jshunt_pagination_triggers_total",
		Help: "Pagination triggers by kind and guard decision",
	}, []string{"trigger", "decision"})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jshunt_pagination_fetches_total",
		Help: "Settled page fetches by outcome",
	}, []string{"outcome"})

	itemsMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jshunt_pagination_items_merged_total",
		Help: "Items appended to paginated lists",
	})

	fetchesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "jshunt_pagination_in_flight",
		Help: "Page fetches currently in flight across all controllers",
	})

	batchPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jshunt_batch_pages_total",
		Help: "Pages fetched by the batch fetcher by result",
	}, []string{"result"})
)
