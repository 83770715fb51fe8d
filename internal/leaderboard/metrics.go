package leaderboard

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the leaderboard cache.
type Metrics struct {
	CacheHits     prometheus.Counter
	CacheMisses   prometheus.Counter
	Invalidations prometheus.Counter
}

// NewMetrics registers and returns leaderboard metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_leaderboard_cache_hits_total",
			Help: "Leaderboard reads served from cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_leaderboard_cache_misses_total",
			Help: "Leaderboard reads recomputed from the store.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetwatch_leaderboard_invalidations_total",
			Help: "Eager leaderboard cache evictions after count-changing writes.",
		}),
	}
	reg.MustRegister(m.CacheHits, m.CacheMisses, m.Invalidations)
	return m
}
