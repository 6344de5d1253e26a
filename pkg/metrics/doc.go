/*
Package metrics defines and registers the Prometheus metrics exported by
the coordinator and worker processes.

All metrics are package-level variables registered with the default
registry in init(), the way client_golang consumers typically do it, so
any package can update a counter or gauge without holding a reference to
a registry. Handler exposes them for a promhttp-backed /metrics route.

Collector periodically samples coordinator state (worker FSM states,
treelet holder counts) into gauges that have no natural inline call
site; counters and histograms like BytesSent or SchedulingLatency are
instead updated directly at the point the event occurs.

health.go additionally exposes a small liveness/readiness surface
modeled after the container-world /health, /ready, and /live endpoints,
repurposed here to track the transport listener and scene registry as
the coordinator's critical components.
*/
package metrics
