package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alex-ozdemir/raylet/pkg/eventloop"
	"github.com/alex-ozdemir/raylet/pkg/log"
	"github.com/alex-ozdemir/raylet/pkg/metrics"
	"github.com/alex-ozdemir/raylet/pkg/rayengine"
	"github.com/alex-ozdemir/raylet/pkg/storage"
	"github.com/alex-ozdemir/raylet/pkg/transport"
	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/alex-ozdemir/raylet/pkg/wire"
	"github.com/alex-ozdemir/raylet/pkg/worker"
)

const (
	stepInterval       = 20 * time.Millisecond
	peerUpkeepInterval = 1 * time.Second
	statsInterval      = 500 * time.Millisecond
	rebindInterval     = 500 * time.Millisecond
	maxRaysPerStep     = 512
)

func runWorker(cfg config) error {
	var storageClient *storage.Client
	if cfg.storageBackend != "" {
		storageClient = storage.NewClient(cfg.storageBackend)
	}

	w, err := worker.New(rayengine.StubTracer{}, rayengine.StubShader{}, storageClient, cfg.finishedPolicy)
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	log.Logger.Info().Str("finished_rays", string(cfg.finishedPolicy)).Msg("finished-ray policy")

	conn, err := net.Dial("tcp", cfg.coordinatorAddr)
	if err != nil {
		return fmt.Errorf("worker: dial coordinator %s: %w", cfg.coordinatorAddr, err)
	}
	defer conn.Close()

	udpAddr := fmt.Sprintf("%s:%d", cfg.ip, cfg.port)
	tr, err := transport.New(udpAddr, transport.Config{})
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	defer tr.Close()

	rayMode := transport.Reliable
	if !cfg.reliableUDP {
		rayMode = transport.Unreliable
	}

	metrics.RegisterComponent("transport", true, "")

	rt := &runtime{cfg: cfg, w: w, conn: conn, transport: tr, loop: eventloop.New(4096), rayMode: rayMode}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rt.loop.Run(ctx)
	defer rt.loop.Close()

	go rt.serveHTTP()
	go rt.readTCP()
	go rt.readUDP()

	stopStep := rt.loop.AddTimer(stepInterval, rt.step)
	defer stopStep()

	stopPeers := rt.loop.AddTimer(peerUpkeepInterval, rt.peerUpkeep)
	defer stopPeers()

	stopStats := rt.loop.AddTimer(statsInterval, rt.publishStats)
	defer stopStats()

	stopBind := rt.loop.AddTimer(rebindInterval, rt.rebind)
	defer stopBind()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Logger.Info().Msg("worker shutting down")
	done := make(chan struct{})
	rt.loop.Post(func() {
		wire.EncodeJSON(rt.conn, wire.OpBye, nil)
		close(done)
	})
	<-done
	rt.loop.Terminate()
	return nil
}

// runtime owns the sockets a Worker's decision logic is deliberately
// unaware of: the persistent TCP control connection to the coordinator
// and this process's own UDP transport for peer traffic.
type runtime struct {
	cfg       config
	w         *worker.Worker
	conn      net.Conn
	transport *transport.Transport
	loop      *eventloop.Loop
	rayMode   transport.Mode
}

func (rt *runtime) serveHTTP() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	addr := fmt.Sprintf("%s:0", rt.cfg.ip)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Logger.Warn().Err(err).Msg("worker: metrics server stopped")
	}
}

func (rt *runtime) readTCP() {
	for {
		msg, err := wire.Decode(rt.conn)
		if err != nil {
			log.Logger.Warn().Err(err).Msg("worker: coordinator connection closed")
			return
		}
		m := msg
		rt.loop.Post(func() { rt.handleTCPMessage(m) })
	}
}

func (rt *runtime) handleTCPMessage(msg wire.Message) {
	switch msg.Opcode {
	case wire.OpHey:
		var p wire.HeyPayload
		if err := msg.Unmarshal(&p); err != nil {
			log.Logger.Warn().Err(err).Msg("worker: bad Hey payload")
			return
		}
		rt.w.HandleHey(p)
		log.Logger.Info().Uint32("worker_id", uint32(p.WorkerID)).Msg("assigned worker id")

	case wire.OpGetObjects:
		var p wire.GetObjectsPayload
		if err := msg.Unmarshal(&p); err != nil {
			log.Logger.Warn().Err(err).Msg("worker: bad GetObjects payload")
			return
		}
		keys := rt.w.HandleGetObjects(p)
		rt.fetchObjects(keys)

	case wire.OpGenerateRays:
		var p wire.GenerateRaysPayload
		if err := msg.Unmarshal(&p); err != nil {
			log.Logger.Warn().Err(err).Msg("worker: bad GenerateRays payload")
			return
		}
		rt.w.HandleGenerateRays(p)

	case wire.OpConnectTo:
		var p wire.ConnectToPayload
		if err := msg.Unmarshal(&p); err != nil {
			log.Logger.Warn().Err(err).Msg("worker: bad ConnectTo payload")
			return
		}
		action, err := rt.w.HandleConnectTo(p)
		if err != nil {
			log.Logger.Warn().Err(err).Msg("worker: connect to peer failed")
			return
		}
		rt.sendUDPAction(action)

	case wire.OpBye:
		rt.w.HandleBye()

	case wire.OpRequestDiagnostics:
		var buf bytes.Buffer
		if err := rt.w.Diagnostics().Flush(&buf, rt.transport.BytesSent(), rt.transport.BytesReceived(), rt.transport.QueueSize(), time.Now()); err != nil {
			log.Logger.Warn().Err(err).Msg("worker: flush diagnostics failed")
			return
		}
		log.Logger.Info().Str("diagnostics", buf.String()).Msg("worker diagnostics")

	default:
		log.Logger.Warn().Stringer("opcode", msg.Opcode).Msg("worker: unexpected opcode on control channel")
	}
}

func (rt *runtime) fetchObjects(keys []types.ObjectKey) {
	if rt.w.StorageClient() == nil || len(keys) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := rt.w.StorageClient().Get(ctx, keys); err != nil {
			log.Logger.Error().Err(err).Msg("worker: fetch objects failed")
		}
	}()
}

func (rt *runtime) readUDP() {
	for dg := range rt.transport.Recv() {
		msg, _, err := wire.DecodeBytes(dg.Data)
		if err != nil {
			log.Logger.Warn().Err(err).Msg("worker: malformed udp datagram")
			continue
		}
		addr := dg.Addr
		m := msg
		rt.loop.Post(func() { rt.handleUDPMessage(addr, m) })
	}
}

func (rt *runtime) handleUDPMessage(addr *net.UDPAddr, msg wire.Message) {
	switch msg.Opcode {
	case wire.OpConnectionRequest:
		var p wire.ConnectionRequestPayload
		if err := msg.Unmarshal(&p); err != nil {
			log.Logger.Warn().Err(err).Msg("worker: bad ConnectionRequest payload")
			return
		}
		if !rt.w.Ready() {
			return
		}
		action, err := rt.w.HandleConnectionRequest(p.WorkerID, addr, p)
		if err != nil {
			log.Logger.Warn().Err(err).Msg("worker: connection request failed")
			return
		}
		rt.sendUDPAction(action)

	case wire.OpConnectionResponse:
		var p wire.ConnectionResponsePayload
		if err := msg.Unmarshal(&p); err != nil {
			log.Logger.Warn().Err(err).Msg("worker: bad ConnectionResponse payload")
			return
		}
		if !rt.w.CoordinatorBound() && p.WorkerID == 0 {
			rt.w.HandleCoordinatorConnectionResponse(p)
			return
		}
		rt.w.HandleConnectionResponse(p.WorkerID, p)

	case wire.OpSendRays:
		if err := rt.w.HandleSendRays(msg.Payload); err != nil {
			log.Logger.Warn().Err(err).Msg("worker: bad SendRays payload")
		}

	default:
		log.Logger.Warn().Stringer("opcode", msg.Opcode).Msg("worker: unexpected udp opcode")
	}
}

func (rt *runtime) sendUDPAction(a worker.Action) {
	var buf bytes.Buffer
	if err := wire.EncodeJSON(&buf, a.Opcode, a.Payload); err != nil {
		log.Logger.Warn().Err(err).Msg("worker: encode udp action failed")
		return
	}
	addr, err := net.ResolveUDPAddr("udp", a.PeerAddr)
	if err != nil {
		log.Logger.Warn().Err(err).Str("addr", a.PeerAddr).Msg("worker: bad peer address")
		return
	}
	if err := rt.transport.Send(addr, buf.Bytes(), a.Priority, a.Mode); err != nil {
		log.Logger.Warn().Err(err).Msg("worker: send udp action failed")
	}
}

// step advances the ray engine, flushes anything it routed to a peer,
// and forwards finished samples back to the coordinator.
func (rt *runtime) step() {
	if !rt.w.Ready() {
		return
	}
	if err := rt.w.Step(maxRaysPerStep); err != nil {
		log.Logger.Warn().Err(err).Msg("worker: step failed")
	}

	for _, batch := range rt.w.FlushOutbound() {
		addr, ok := rt.w.PeerAddr(batch.Peer)
		if !ok {
			continue
		}
		if err := rt.transport.Send(addr, batch.Payload, transport.Normal, rt.rayMode); err != nil {
			log.Logger.Warn().Err(err).Msg("worker: flush outbound failed")
		}
	}

	if samples, send := rt.w.CollectFinished(); send {
		rw := wire.NewRecordWriter()
		for _, s := range samples {
			if err := rw.Append(s); err != nil {
				log.Logger.Warn().Err(err).Msg("worker: pack finished sample failed")
				continue
			}
		}
		if err := wire.Encode(rt.conn, wire.OpFinishedRays, rw.Bytes()); err != nil {
			log.Logger.Warn().Err(err).Msg("worker: send finished rays failed")
		}
	}
}

func (rt *runtime) peerUpkeep() {
	if !rt.w.Ready() {
		return
	}
	for _, a := range rt.w.PeerUpkeep() {
		switch a.Channel {
		case worker.ChannelTCP:
			if err := wire.EncodeJSON(rt.conn, a.Opcode, a.Payload); err != nil {
				log.Logger.Warn().Err(err).Msg("worker: send peer upkeep control message failed")
			}
		case worker.ChannelUDP:
			rt.sendUDPAction(a)
		}
	}
}

func (rt *runtime) publishStats() {
	if !rt.w.Ready() {
		return
	}
	snap := rt.w.StatsSnapshot()
	if err := wire.EncodeJSON(rt.conn, wire.OpWorkerStats, snap); err != nil {
		log.Logger.Warn().Err(err).Msg("worker: publish stats failed")
	}
}

// rebind resends the coordinator UDP-binding handshake until it
// completes; the coordinator's ConnectionRequest handler is idempotent
// so a stray extra send after binding is harmless.
func (rt *runtime) rebind() {
	if !rt.w.Ready() || rt.w.CoordinatorBound() {
		return
	}
	coordUDPAddr, err := coordinatorUDPAddr(rt.cfg.coordinatorAddr)
	if err != nil {
		log.Logger.Warn().Err(err).Msg("worker: bad coordinator udp address")
		return
	}
	req := rt.w.BindRequest()
	req.PeerAddr = coordUDPAddr
	rt.sendUDPAction(req)
}

// coordinatorUDPAddr derives the coordinator's UDP binding port from
// its TCP registration address: the coordinator always binds UDP on
// tcpPort+1.
func coordinatorUDPAddr(tcpAddr string) (string, error) {
	host, port, err := net.SplitHostPort(tcpAddr)
	if err != nil {
		return "", fmt.Errorf("split %s: %w", tcpAddr, err)
	}
	var p int
	if _, err := fmt.Sscanf(port, "%d", &p); err != nil {
		return "", fmt.Errorf("parse port %s: %w", port, err)
	}
	return fmt.Sprintf("%s:%d", host, p+1), nil
}
