package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedwatch_cycles_total",
		Help: "Total number of polling cycles completed",
	})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedwatch_cycle_duration_seconds",
		Help:    "Wall-clock duration of one polling cycle",
		Buckets: prometheus.DefBuckets,
	})

	spikesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedwatch_spikes_detected_total",
		Help: "Total number of listener spikes detected",
	})

	feedsTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedwatch_feeds_tracked",
		Help: "Feeds stepped in the most recent cycle",
	})

	scrapeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedwatch_scrape_errors_total",
		Help: "Total scrape failures by source",
	}, []string{"source"})
)
