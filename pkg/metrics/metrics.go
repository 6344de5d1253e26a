package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ray lifecycle
	RaysTraced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raylet_rays_traced_total",
			Help: "Total number of ray segments traced, by worker",
		},
		[]string{"worker_id"},
	)

	RaysForwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raylet_rays_forwarded_total",
			Help: "Total number of ray states forwarded to a peer, by destination treelet",
		},
		[]string{"treelet_id"},
	)

	RaysFinished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raylet_rays_finished_total",
			Help: "Total number of rays that produced a finished film sample",
		},
	)

	ShadowRaysTraced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raylet_shadow_rays_traced_total",
			Help: "Total number of shadow (occlusion) ray segments traced",
		},
	)

	// Queue depths
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raylet_queue_depth",
			Help: "Current depth of a worker's internal ray queue",
		},
		[]string{"queue"},
	)

	// Transport
	DatagramsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raylet_datagrams_sent_total",
			Help: "Total UDP datagrams sent, by reliability mode",
		},
		[]string{"mode"},
	)

	DatagramsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raylet_datagrams_received_total",
			Help: "Total UDP datagrams received, by reliability mode",
		},
		[]string{"mode"},
	)

	BytesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raylet_bytes_sent_total",
			Help: "Total payload bytes sent over the reliable-UDP transport",
		},
	)

	BytesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raylet_bytes_received_total",
			Help: "Total payload bytes received over the reliable-UDP transport",
		},
	)

	Retransmits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "raylet_retransmits_total",
			Help: "Total datagrams retransmitted by the reliable-UDP transport",
		},
	)

	// Scene / assignment
	TreeletHolders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raylet_treelet_holders",
			Help: "Number of workers currently holding a given treelet",
		},
		[]string{"treelet_id"},
	)

	WorkersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "raylet_workers_connected",
			Help: "Number of workers currently in the connected state",
		},
	)

	// Demand estimation
	DemandRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raylet_demand_rate",
			Help: "Smoothed demand rate for a treelet, rays per second",
		},
		[]string{"treelet_id"},
	)

	// Peer FSM
	PeerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "raylet_peer_state",
			Help: "Number of peers currently in a given connection FSM state",
		},
		[]string{"state"},
	)

	// Latency
	SchedulingLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raylet_scheduling_latency_seconds",
			Help:    "Time taken to compute a treelet assignment",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutputMergeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "raylet_output_merge_latency_seconds",
			Help:    "Time taken to write the accumulated film to the output image",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		RaysTraced,
		RaysForwarded,
		RaysFinished,
		ShadowRaysTraced,
		QueueDepth,
		DatagramsSent,
		DatagramsReceived,
		BytesSent,
		BytesReceived,
		Retransmits,
		TreeletHolders,
		WorkersConnected,
		DemandRate,
		PeerState,
		SchedulingLatency,
		OutputMergeLatency,
	)
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
