// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SyncRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Cumulative number of dataset sync runs started.",
		})

	SyncFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_failures_total",
			Help: "Cumulative number of sync runs that ended in a fatal error.",
		})

	SyncRowsInsertedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_rows_inserted_total",
			Help: "Cumulative number of station rows loaded by successful syncs.",
		})

	SyncRowsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_rows_skipped_total",
			Help: "Cumulative number of undecodable dataset rows skipped.",
		})

	SearchQueriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Cumulative number of place search queries served.",
		})

	PlaceLookupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "place_lookups_total",
			Help: "Cumulative number of by-id place lookups served.",
		})

	PlaceCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "place_cache_hits_total",
			Help: "Cumulative number of by-id lookups answered from cache.",
		})

	PlaceCacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "place_cache_misses_total",
			Help: "Cumulative number of by-id lookups that went to the store.",
		})
)

func init() {
	prometheus.MustRegister(
		SyncRunsTotal,
		SyncFailuresTotal,
		SyncRowsInsertedTotal,
		SyncRowsSkippedTotal,
		SearchQueriesTotal,
		PlaceLookupsTotal,
		PlaceCacheHitsTotal,
		PlaceCacheMissesTotal,
	)
}
