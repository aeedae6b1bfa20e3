package matching

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "technician_search_seconds",
		Help:    "Time spent searching for nearby technicians.",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	searchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "technician_search_total",
		Help: "Total nearby-technician searches grouped by outcome.",
	}, []string{"result"})
)

func observeSearch(result string, start time.Time) {
	searchDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	searchTotal.WithLabelValues(result).Inc()
}
