package wire

import "github.com/alex-ozdemir/raylet/pkg/types"

// HeyPayload carries the assigned worker id, sent in both directions:
// a worker announces itself, and the coordinator echoes back the id it
// assigned on TCP accept.
type HeyPayload struct {
	WorkerID types.WorkerID `json:"workerId"`
}

// GetObjectsPayload lists the scene objects a worker must fetch before
// it can begin tracing.
type GetObjectsPayload struct {
	Objects []types.ObjectKey `json:"objects"`
}

// GenerateRaysPayload assigns a worker its camera-ray tile.
type GenerateRaysPayload struct {
	Tile types.Bounds2i `json:"tile"`
}

// ConnectToPayload instructs a worker to open a peer connection.
type ConnectToPayload struct {
	WorkerID types.WorkerID `json:"workerId"`
	Address  string         `json:"address"`
}

// ConnectionRequestPayload is the handshake datagram sent by the
// initiating side; YourSeed echoes the seed most recently advertised by
// the peer being dialed, or zero if none has been seen yet.
type ConnectionRequestPayload struct {
	WorkerID types.WorkerID `json:"workerId"`
	MySeed   uint64         `json:"mySeed"`
	YourSeed uint64         `json:"yourSeed"`
}

// ConnectionResponsePayload completes the handshake; the responder's
// treelet set lets the requester route rays to it immediately.
type ConnectionResponsePayload struct {
	WorkerID   types.WorkerID    `json:"workerId"`
	MySeed     uint64            `json:"mySeed"`
	YourSeed   uint64            `json:"yourSeed"`
	TreeletIDs []types.TreeletID `json:"treeletIds"`
}

// FinishedSampleRecord is one record inside a FinishedRays payload.
type FinishedSampleRecord = types.FinishedSample

// QueueStats reports the depth of each named internal queue.
type QueueStats struct {
	Ray     int `json:"ray"`
	Out     int `json:"out"`
	Pending int `json:"pending"`
	Finished int `json:"finished"`
}

// WorkerStatsPayload is the periodic aggregate report a worker sends to
// the coordinator; TreeletCounters is keyed by treelet id.
type WorkerStatsPayload struct {
	WorkerID types.WorkerID `json:"workerId"`

	RaysSent      uint64 `json:"raysSent"`
	RaysReceived  uint64 `json:"raysReceived"`
	RaysWaiting   uint64 `json:"raysWaiting"`
	RaysProcessed uint64 `json:"raysProcessed"`
	RaysDemanded  uint64 `json:"raysDemanded"`
	RaysSending   uint64 `json:"raysSending"`
	RaysPending   uint64 `json:"raysPending"`
	FinishedPaths uint64 `json:"finishedPaths"`

	TreeletCounters map[types.TreeletID]uint64 `json:"treeletCounters"`
	Queues          QueueStats                 `json:"queues"`

	BytesSent     uint64 `json:"bytesSent"`
	BytesReceived uint64 `json:"bytesReceived"`
}

// GetWorkerPayload asks the coordinator for a peer holding treeletID.
type GetWorkerPayload struct {
	TreeletID types.TreeletID `json:"treeletId"`
}
