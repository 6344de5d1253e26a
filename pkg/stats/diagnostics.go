package stats

import (
	"encoding/json"
	"io"
	"strings"
	"time"
)

// Diagnostics accumulates wall-clock time spent inside named intervals,
// nesting the current interval stack into a single "outer:inner" key the
// way a profiler's call-stack sample would.
type Diagnostics struct {
	stack         []string
	timePerAction map[string]int64 // microseconds
}

// NewDiagnostics creates an empty diagnostics accumulator.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{timePerAction: make(map[string]int64)}
}

// Enter records entry into a named interval and returns a function that
// must be called on exit to debit the elapsed time. Intervals may nest;
// the debited key is every enclosing interval's name joined by ":".
//
//	defer diag.Enter("trace")()
func (d *Diagnostics) Enter(name string) func() {
	d.stack = append(d.stack, name)
	key := strings.Join(d.stack, ":")
	start := time.Now()
	return func() {
		d.timePerAction[key] += time.Since(start).Microseconds()
		if len(d.stack) > 0 {
			d.stack = d.stack[:len(d.stack)-1]
		}
	}
}

// TimePerAction returns a copy of the accumulated interval timings.
func (d *Diagnostics) TimePerAction() map[string]int64 {
	out := make(map[string]int64, len(d.timePerAction))
	for k, v := range d.timePerAction {
		out[k] = v
	}
	return out
}

// snapshot is the JSON line flushed on each diagnostics interval.
type snapshot struct {
	TimePerAction      map[string]int64 `json:"timePerAction"`
	BytesSentDelta     uint64           `json:"bytesSentDelta"`
	BytesReceivedDelta uint64           `json:"bytesReceivedDelta"`
	OutstandingUDP     int              `json:"outstandingUdp"`
	Timestamp          time.Time        `json:"timestamp"`
}

// Flush writes one JSON line to w summarizing accumulated interval
// timings plus the caller-supplied byte deltas and outstanding
// (unacknowledged reliable) datagram count, then resets the interval
// timings for the next reporting period.
func (d *Diagnostics) Flush(w io.Writer, bytesSentDelta, bytesReceivedDelta uint64, outstandingUDP int, at time.Time) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(snapshot{
		TimePerAction:      d.timePerAction,
		BytesSentDelta:     bytesSentDelta,
		BytesReceivedDelta: bytesReceivedDelta,
		OutstandingUDP:     outstandingUDP,
		Timestamp:          at,
	}); err != nil {
		return err
	}
	d.timePerAction = make(map[string]int64)
	return nil
}
