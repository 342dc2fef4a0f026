// Package metrics exposes the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync activity
	SyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefaves_syncs_total",
		Help: "Total number of bookmark sync requests.",
	}, []string{"outcome"}) // outcome: "created", "merged" or "rejected"

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefaves_events_total",
		Help: "Total number of usage events received, by type.",
	}, []string{"type"})

	ShareResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pagefaves_share_resolutions_total",
		Help: "Total number of share link resolutions.",
	}, []string{"outcome"}) // outcome: "hit" or "miss"

	// Housekeeping
	RecordsImportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefaves_records_imported_total",
		Help: "Total number of records created from the import file.",
	})

	RecordsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pagefaves_records_reaped_total",
		Help: "Total number of idle records deleted by the reaper.",
	})

	BookmarksStored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pagefaves_bookmarks_stored",
		Help: "Bookmarks held across all records, as of the last sweep.",
	})
)
