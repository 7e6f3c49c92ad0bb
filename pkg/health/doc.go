// Package health provides HTTP handlers for health probes.
//
// [LivenessHandler] always answers OK while the process runs.
// [ReadinessHandler] runs a set of named [Checks] in parallel and reports
// the worst result: healthy, degraded or unhealthy.
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "redis":           health.Degradable(redis.Healthcheck(client)),
//	    "medical_records": health.CacheCheck(records),
//	}))
//
// A check returns [ErrDegraded] to say it still works at reduced capacity,
// as a cache does when its shared tier is unreachable. [Degradable] wraps a
// check for an optional dependency so its failures count as degraded. Degraded responses
// keep status 200 so load balancers do not pull the instance; only a failed
// check turns the response into 503.
//
// Handlers answer plain text by default. Request JSON with
// Accept: application/json or ?format=json:
//
//	{
//	  "status": "degraded",
//	  "checks": {
//	    "redis": {"status": "degraded", "error": "..."},
//	    "medical_records": {"status": "degraded", "error": "..."}
//	  }
//	}
package health
