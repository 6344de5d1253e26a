package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alex-ozdemir/raylet/pkg/coordinator"
	"github.com/alex-ozdemir/raylet/pkg/eventloop"
	"github.com/alex-ozdemir/raylet/pkg/events"
	"github.com/alex-ozdemir/raylet/pkg/health"
	"github.com/alex-ozdemir/raylet/pkg/invoke"
	"github.com/alex-ozdemir/raylet/pkg/log"
	"github.com/alex-ozdemir/raylet/pkg/metrics"
	"github.com/alex-ozdemir/raylet/pkg/scene"
	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/alex-ozdemir/raylet/pkg/wire"
)

// Tick intervals for the coordinator's own periodic work: worker-request
// batching, status printing, and output merging.
const (
	workerRequestBatchInterval = 250 * time.Millisecond
	statusPrintInterval        = 1 * time.Second
	outputMergeInterval        = 10 * time.Second
)

func runCoordinator(cfg config) error {
	registry, treeletProbs, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	film := coordinator.NewStubFilm()
	coord, err := coordinator.New(registry, film, coordinator.Config{
		NumberOfWorkers: cfg.numberOfWorkers,
		SampleBounds:    types.Bounds2i{PMax: types.Point2i{X: int32(cfg.width), Y: int32(cfg.height)}},
		AssignmentMode:  cfg.assignmentMode,
		TreeletProbs:    treeletProbs,
		CompleteTopology: cfg.complete,
	})
	if err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}

	r := &runtime{cfg: cfg, coord: coord, loop: eventloop.New(256), conns: make(map[types.WorkerID]net.Conn)}
	return r.run()
}

// loadRegistry rehydrates a previously persisted registry if data-dir
// holds one, otherwise builds a fresh one from the scene manifest and
// persists it for next time.
func loadRegistry(cfg config) (*scene.Registry, map[types.TreeletID]float64, error) {
	manifest, err := scene.LoadManifest(cfg.scenePath)
	if err != nil {
		return nil, nil, fmt.Errorf("coordinator: %w", err)
	}

	if cfg.dataDir == "" {
		registry := scene.NewRegistry()
		if err := registry.LoadManifest(manifest); err != nil {
			return nil, nil, fmt.Errorf("coordinator: %w", err)
		}
		return registry, manifest.TreeletProbs, nil
	}

	store, err := scene.OpenStore(cfg.dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("coordinator: %w", err)
	}
	defer store.Close()

	if registry, ok, err := store.Load(); err != nil {
		return nil, nil, fmt.Errorf("coordinator: %w", err)
	} else if ok {
		log.Logger.Info().Str("data_dir", cfg.dataDir).Msg("rehydrated scene registry from disk")
		return registry, manifest.TreeletProbs, nil
	}

	registry := scene.NewRegistry()
	if err := registry.LoadManifest(manifest); err != nil {
		return nil, nil, fmt.Errorf("coordinator: %w", err)
	}
	if err := store.Save(registry); err != nil {
		return nil, nil, fmt.Errorf("coordinator: persist scene registry: %w", err)
	}
	return registry, manifest.TreeletProbs, nil
}

// runtime owns the sockets and TCP connection table the coordinator's
// decision logic is too transport-agnostic to hold itself.
type runtime struct {
	cfg   config
	coord *coordinator.Coordinator
	loop  *eventloop.Loop

	mu    sync.Mutex
	conns map[types.WorkerID]net.Conn

	udpConn *net.UDPConn
}

func (r *runtime) run() error {
	tcpAddr := fmt.Sprintf("%s:%d", r.cfg.ip, r.cfg.tcpPort)
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("coordinator: listen tcp %s: %w", tcpAddr, err)
	}
	defer ln.Close()

	udpAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", r.cfg.ip, r.cfg.tcpPort+1))
	if err != nil {
		return fmt.Errorf("coordinator: resolve udp addr: %w", err)
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("coordinator: listen udp %s: %w", udpAddr, err)
	}
	defer udpConn.Close()
	r.udpConn = udpConn

	metrics.RegisterComponent("transport", true, "")
	metrics.RegisterComponent("scene", true, "")

	collector := metrics.NewCollector(r.coord)
	collector.Start()
	defer collector.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go r.loop.Run(ctx)
	defer r.loop.Close()

	sub := r.coord.Events().Subscribe()
	go r.logEvents(sub)
	defer func() {
		r.coord.Events().Unsubscribe(sub)
		r.coord.StopEvents()
	}()

	go r.serveHTTP()
	go r.acceptTCP(ln)
	go r.readUDP()
	if r.cfg.storageBackend != "" {
		go r.monitorStorage(ctx)
	}

	stopBatch := r.loop.AddTimer(workerRequestBatchInterval, func() {
		r.dispatch(r.coord.ProcessWorkerRequestBatch())
	})
	defer stopBatch()

	stopStatus := r.loop.AddTimer(statusPrintInterval, func() {
		log.Logger.Info().Str("status", r.coord.Status()).Msg("coordinator status")
	})
	defer stopStatus()

	stopOutput := r.loop.AddTimer(outputMergeInterval, func() {
		if err := r.coord.MergeOutput(r.cfg.outputPath); err != nil {
			log.Logger.Error().Err(err).Msg("coordinator: merge output failed")
		}
	})
	defer stopOutput()

	log.Logger.Info().Str("tcp", tcpAddr).Str("udp", udpAddr.String()).Msg("coordinator listening")

	if r.cfg.invokeEndpoint != "" {
		driver := invoke.NewDriver(r.cfg.invokeEndpoint)
		accepted := driver.InvokeN(ctx, invoke.Request{
			StorageBackend: r.cfg.storageBackend,
			Coordinator:    tcpAddr,
		}, int(r.cfg.numberOfWorkers))
		log.Logger.Info().Int("accepted", accepted).Int("requested", int(r.cfg.numberOfWorkers)).Msg("worker invocation requests sent")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Logger.Info().Msg("coordinator shutting down")
	r.shutdown()
	return nil
}

func (r *runtime) shutdown() {
	if r.cfg.diagnostics {
		done := make(chan struct{})
		r.loop.Post(func() {
			r.dispatch(r.coord.RequestDiagnostics())
			close(done)
		})
		<-done
		time.Sleep(2 * time.Second)
	}

	done := make(chan struct{})
	r.loop.Post(func() {
		r.dispatch(r.coord.Shutdown())
		close(done)
	})
	<-done

	r.loop.Terminate()
}

func (r *runtime) logEvents(sub events.Subscriber) {
	for ev := range sub {
		log.Logger.Info().Str("event", string(ev.Type)).Str("message", ev.Message).Time("at", ev.Timestamp).Msg("coordinator event")
	}
}

// monitorStorage periodically probes the object store's host for TCP
// reachability, since a dead storage backend strands every worker
// mid-fetch long before any ray traffic would surface the problem.
func (r *runtime) monitorStorage(ctx context.Context) {
	u, err := url.Parse(r.cfg.storageBackend)
	if err != nil || u.Host == "" {
		log.Logger.Warn().Str("backend", r.cfg.storageBackend).Msg("coordinator: cannot parse storage backend for health checks")
		return
	}
	checker := health.NewTCPChecker(u.Host)
	cfg := health.DefaultConfig()
	status := health.NewStatus()
	metrics.RegisterComponent("storage", true, "not yet checked")

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status.Update(checker.Check(ctx), cfg)
			metrics.UpdateComponent("storage", status.Healthy, status.LastResult.Message)
		}
	}
}

func (r *runtime) serveHTTP() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
	addr := fmt.Sprintf("%s:%d", r.cfg.ip, r.cfg.tcpPort+2)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Logger.Warn().Err(err).Msg("coordinator: metrics server stopped")
	}
}

func (r *runtime) acceptTCP(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Logger.Warn().Err(err).Msg("coordinator: tcp accept failed")
			return
		}
		go r.handleTCPConn(conn)
	}
}

func (r *runtime) handleTCPConn(conn net.Conn) {
	idCh := make(chan types.WorkerID, 1)
	r.loop.Post(func() {
		rec, actions, err := r.coord.RegisterWorker(conn.RemoteAddr().String())
		if err != nil {
			log.Logger.Error().Err(err).Msg("coordinator: register worker failed")
			idCh <- 0
			return
		}
		r.mu.Lock()
		r.conns[rec.ID] = conn
		r.mu.Unlock()
		idCh <- rec.ID
		r.dispatch(actions)
	})

	id := <-idCh
	if id == 0 {
		conn.Close()
		return
	}
	log.Logger.Info().Uint32("worker_id", uint32(id)).Str("addr", conn.RemoteAddr().String()).Msg("worker registered")

	for {
		msg, err := wire.Decode(conn)
		if err != nil {
			r.loop.Post(func() {
				r.mu.Lock()
				delete(r.conns, id)
				r.mu.Unlock()
			})
			return
		}
		m := msg
		r.loop.Post(func() { r.handleTCPMessage(id, m) })
	}
}

func (r *runtime) handleTCPMessage(from types.WorkerID, msg wire.Message) {
	switch msg.Opcode {
	case wire.OpGetWorker:
		var p wire.GetWorkerPayload
		if err := msg.Unmarshal(&p); err != nil {
			log.Logger.Warn().Err(err).Msg("coordinator: bad GetWorker payload")
			return
		}
		r.coord.EnqueueWorkerRequest(from, p.TreeletID)

	case wire.OpWorkerStats:
		var p wire.WorkerStatsPayload
		if err := msg.Unmarshal(&p); err != nil {
			log.Logger.Warn().Err(err).Msg("coordinator: bad WorkerStats payload")
			return
		}
		r.coord.HandleWorkerStats(from, p, time.Now())

	case wire.OpFinishedRays:
		reader := wire.NewRecordReader(msg.Payload)
		var records []types.FinishedSample
		for {
			var rec types.FinishedSample
			ok, err := reader.Next(&rec)
			if err != nil {
				log.Logger.Warn().Err(err).Msg("coordinator: bad FinishedRays record")
				break
			}
			if !ok {
				break
			}
			records = append(records, rec)
		}
		r.coord.HandleFinishedRays(records)

	case wire.OpBye:
		log.Logger.Info().Uint32("worker_id", uint32(from)).Msg("worker said goodbye")

	default:
		log.Logger.Warn().Stringer("opcode", msg.Opcode).Msg("coordinator: unexpected opcode on control channel")
	}
}

func (r *runtime) readUDP() {
	buf := make([]byte, 65536)
	for {
		n, addr, err := r.udpConn.ReadFromUDP(buf)
		if err != nil {
			log.Logger.Warn().Err(err).Msg("coordinator: udp read failed")
			return
		}
		msg, _, err := wire.DecodeBytes(buf[:n])
		if err != nil {
			log.Logger.Warn().Err(err).Msg("coordinator: malformed udp datagram")
			continue
		}
		if msg.Opcode != wire.OpConnectionRequest {
			log.Logger.Warn().Stringer("opcode", msg.Opcode).Msg("coordinator: unexpected udp opcode")
			continue
		}
		var req wire.ConnectionRequestPayload
		if err := msg.Unmarshal(&req); err != nil {
			log.Logger.Warn().Err(err).Msg("coordinator: bad ConnectionRequest payload")
			continue
		}
		fromAddr := addr
		r.loop.Post(func() {
			actions, err := r.coord.HandleConnectionRequest(req.WorkerID, fromAddr.String(), req)
			if err != nil {
				if errors.Is(err, coordinator.ErrUnexpectedPeer) {
					log.Logger.Fatal().Err(err).Msg("coordinator: connection request from unregistered worker")
				}
				log.Logger.Warn().Err(err).Msg("coordinator: connection request rejected")
				return
			}
			for _, a := range actions {
				if a.Opcode == wire.OpConnectionResponse && a.Target == req.WorkerID {
					r.sendUDP(fromAddr, a.Opcode, a.Payload)
					continue
				}
				r.dispatch([]coordinator.Action{a})
			}
		})
	}
}

func (r *runtime) sendUDP(addr *net.UDPAddr, opcode wire.Opcode, payload any) {
	var buf bytes.Buffer
	if err := wire.EncodeJSON(&buf, opcode, payload); err != nil {
		log.Logger.Warn().Err(err).Msg("coordinator: encode udp message failed")
		return
	}
	if _, err := r.udpConn.WriteToUDP(buf.Bytes(), addr); err != nil {
		log.Logger.Warn().Err(err).Msg("coordinator: write udp message failed")
	}
}

// dispatch sends every action to its target worker over that worker's
// TCP control connection. Actions addressed to a worker this process
// has no live connection for (e.g. one that has since disconnected)
// are silently dropped.
func (r *runtime) dispatch(actions []coordinator.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range actions {
		conn, ok := r.conns[a.Target]
		if !ok {
			continue
		}
		if err := wire.EncodeJSON(conn, a.Opcode, a.Payload); err != nil {
			log.Logger.Warn().Err(err).Uint32("worker_id", uint32(a.Target)).Msg("coordinator: send failed")
		}
	}
}
