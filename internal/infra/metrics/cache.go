package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(catalogCacheLookups) }

// result is hit, miss or error; cache names the entity (event, product).
var catalogCacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "catalog_cache_lookups_total",
		Help: "Catalog read-through cache lookups.",
	},
	[]string{"cache", "result"},
)

func IncCacheRequest(cacheName, result string) {
	catalogCacheLookups.WithLabelValues(norm(cacheName), norm(result)).Inc()
}
