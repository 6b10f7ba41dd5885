package resolver

import "github.com/VictoriaMetrics/metrics"

var (
	queriesTotal = metrics.NewCounter(`rrdns_resolver_upstream_queries_total`)
	cacheHits    = metrics.NewCounter(`rrdns_resolver_cache_lookups_total{result="hit"}`)
	cacheMisses  = metrics.NewCounter(`rrdns_resolver_cache_lookups_total{result="miss"}`)
)
