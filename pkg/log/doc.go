/*
Package log provides structured logging for the coordinator and worker
processes using zerolog.

A single global Logger is initialized once via Init and accessed from
every other package either directly (log.Logger) or through the small
set of helper functions below.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	log.Info("worker connected to coordinator")

	workerLog := log.WithWorkerID(id)
	workerLog.Debug().Int("treelets", len(held)).Msg("treelet set updated")

# Context Loggers

WithComponent, WithWorkerID, WithTreeletID, and WithPeerAddr each
derive a child logger carrying one structured field, so callers don't
repeat the same Str/Uint32 call at every log site in a given scope.
*/
package log
