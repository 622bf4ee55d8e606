// Package health reports whether the locator's dependencies can serve requests.
//
// A Checker inspects one component and returns a Result whose Status is
// Healthy, Degraded or Unhealthy. ProviderChecker asks the platform location
// service which providers are switched on; PingChecker wraps any backend with a
// Ping method, such as the Valkey and Postgres stores.
//
// An Aggregator runs the registered checkers under a shared deadline and folds
// their results into one Status:
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewProviderChecker(backend, "gps", "network"))
//	agg.Register(health.NewPingChecker("valkey", cache))
//	results := agg.CheckAll(ctx)
//	overall := health.OverallStatus(results)
//
// The fiber handlers Liveness, Readiness and Detailed expose the aggregate
// as /healthz, /readyz and /health.
package health
