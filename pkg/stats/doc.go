/*
Package stats implements a worker's two self-reporting mechanisms.

Counters accumulates the ray and byte activity of one stats interval
into the WorkerStats payload sent to the coordinator, then resets for
the next interval. Diagnostics tracks nested named timing intervals
(entered with Enter, which returns the matching exit closure) and
periodically flushes them as a JSON line alongside byte deltas and the
outstanding reliable-datagram count.
*/
package stats
