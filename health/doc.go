// Package health reports on the protection layer and its Blender bridge.
//
// A Checker probes one component and returns a Result with a Status of
// Healthy, Degraded, or Unhealthy. The package ships checkers for the
// pieces this module owns: the bridge connection (BridgeChecker), the
// response cache (CacheChecker), the rate limiter (LimiterChecker), and
// process memory (MemoryChecker, relevant because cached Blender payloads
// live on the heap).
//
// An Aggregator fans a set of checkers out in parallel under a shared
// timeout and folds their results into one overall status:
//
//	agg := health.NewAggregator(health.AggregatorConfig{})
//	agg.Register("bridge", health.NewBridgeChecker(client))
//	agg.Register("cache", health.NewCacheChecker(g.Cache()))
//	agg.Register("ratelimit", health.NewLimiterChecker(g.Limiter()))
//
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// HTTP probe handlers cover the usual endpoints:
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)  // /healthz, /readyz, /health
//	mux.HandleFunc("/stats", health.StatsHandler(g.Stats))
//
// Degraded components keep /readyz returning 200; only an unhealthy
// component flips it to 503. A degraded cache or a saturated limiter is
// backpressure doing its job, not an outage.
package health
