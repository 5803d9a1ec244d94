package appleid

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// KeySetLookupsTotal counts key set lookups by where the set came from.
	//
	// Example usage:
	// KeySetLookupsTotal.WithLabelValues("cache", "OK").Inc()
	KeySetLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appleid_keyset_lookups_total",
			Help: "Number of Apple key set lookups by source and status.",
		},
		[]string{"source", "status"},
	)

	// KeySetFetchDuration measures remote key set fetches.
	KeySetFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appleid_keyset_fetch_duration_seconds",
			Help:    "Duration of Apple key set HTTP fetches.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// IdentityTokenVerificationsTotal counts identity token verifications by result.
	IdentityTokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appleid_identity_token_verifications_total",
			Help: "Number of identity token verifications by result.",
		},
		[]string{"result"},
	)
)
