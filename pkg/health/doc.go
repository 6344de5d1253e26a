/*
Package health tracks the liveness of the coordinator's object-store
backend independent of the ray traffic itself.

TCPChecker dials the backend's host on an interval and produces a
Result; Status folds a stream of Results into a single Healthy bit
using a consecutive-failure threshold, so one dropped connection
attempt doesn't flip the "storage" component unhealthy. A non-zero
Config.StartPeriod adds a grace window after launch (see InStartPeriod)
during which failures do not flip it either; DefaultConfig, which the
coordinator runs with, sets StartPeriod to zero, so the coordinator has
no such window. The coordinator feeds the resulting Status into
pkg/metrics as the "storage" health component.
*/
package health
