// Package transport implements the reliable-UDP layer that carries ray
// traffic and control messages between workers and the coordinator.
package transport

import (
	"container/list"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alex-ozdemir/raylet/pkg/log"
	"github.com/alex-ozdemir/raylet/pkg/metrics"
)

// MaxDatagramBytes bounds every outbound payload; the transport clamps
// to this size rather than letting the kernel fragment a larger one.
const MaxDatagramBytes = 1400

// Priority orders outbound datagrams: High-priority datagrams (control
// messages, handshakes) are always drained before Normal (ray traffic).
type Priority int

const (
	Normal Priority = iota
	High
)

// Mode selects the delivery guarantee for one send.
type Mode int

const (
	Unreliable Mode = iota
	Reliable
)

// Datagram is one inbound or outbound UDP payload.
type Datagram struct {
	Addr *net.UDPAddr
	Data []byte
}

type outbound struct {
	addr     *net.UDPAddr
	data     []byte
	mode     Mode
	seq      uint32
	attempts int
	sentAt   time.Time
}

// Transport is a non-blocking reliable-UDP endpoint: sends are queued by
// priority and retransmitted on timeout when sent Reliable; inbound
// datagrams are handed to the caller as read, and de-duplication is left
// to the caller through SeenReliable. It never blocks the caller; Send
// enqueues and returns, and
// Recv delivers over a channel fed by a background read loop.
type Transport struct {
	conn *net.UDPConn

	mu       sync.Mutex
	highQ    *list.List // of *outbound
	normalQ  *list.List
	inflight map[string]*outbound // key: addr|seq, awaiting ack

	nextSeq uint32

	seen   map[string]time.Time // dedup key -> last-seen, for Reliable receives
	seenMu sync.Mutex

	recvCh chan Datagram
	stopCh chan struct{}
	wg     sync.WaitGroup

	retransmitInterval time.Duration
	maxRetries         int

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
}

// Config configures retransmission behavior; zero values fall back to
// the defaults used across the fleet.
type Config struct {
	RetransmitInterval time.Duration
	MaxRetries         int
}

// New binds a UDP socket at addr and starts the transport's background
// send-pump, receive, and retransmit-sweep goroutines.
func New(addr string, cfg Config) (*Transport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}

	if cfg.RetransmitInterval == 0 {
		cfg.RetransmitInterval = 500 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}

	t := &Transport{
		conn:               conn,
		highQ:              list.New(),
		normalQ:            list.New(),
		inflight:           make(map[string]*outbound),
		seen:               make(map[string]time.Time),
		recvCh:             make(chan Datagram, 4096),
		stopCh:             make(chan struct{}),
		retransmitInterval: cfg.RetransmitInterval,
		maxRetries:         cfg.MaxRetries,
	}

	t.wg.Add(3)
	go t.sendLoop()
	go t.recvLoop()
	go t.retransmitLoop()

	return t, nil
}

// LocalAddr returns the socket's bound address.
func (t *Transport) LocalAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// Send enqueues a payload for delivery. The payload must already fit
// within MaxDatagramBytes; Send returns an error rather than silently
// truncating or fragmenting it.
func (t *Transport) Send(addr *net.UDPAddr, data []byte, priority Priority, mode Mode) error {
	if len(data) > MaxDatagramBytes {
		return fmt.Errorf("transport: payload of %d bytes exceeds %d byte MTU", len(data), MaxDatagramBytes)
	}

	out := &outbound{addr: addr, data: data, mode: mode}

	t.mu.Lock()
	if mode == Reliable {
		out.seq = t.nextSeq
		t.nextSeq++
	}
	if priority == High {
		t.highQ.PushBack(out)
	} else {
		t.normalQ.PushBack(out)
	}
	t.mu.Unlock()

	return nil
}

// Recv returns the channel of inbound datagrams; it does not
// de-duplicate them (see SeenReliable).
func (t *Transport) Recv() <-chan Datagram {
	return t.recvCh
}

// BytesSent returns the cumulative payload bytes written to the socket.
func (t *Transport) BytesSent() uint64 { return t.bytesSent.Load() }

// BytesReceived returns the cumulative payload bytes read from the socket.
func (t *Transport) BytesReceived() uint64 { return t.bytesReceived.Load() }

// QueueSize reports the number of outbound datagrams not yet written to
// the socket, across both priority queues.
func (t *Transport) QueueSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.highQ.Len() + t.normalQ.Len()
}

// Close releases the socket and stops all background goroutines.
func (t *Transport) Close() error {
	close(t.stopCh)
	err := t.conn.Close()
	t.wg.Wait()
	return err
}

// sendLoop drains the high-priority queue before the normal queue,
// writing one datagram per iteration; a Reliable send is also recorded
// in inflight, awaiting either an application-level ack or retransmit.
func (t *Transport) sendLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			for t.drainOne() {
			}
		}
	}
}

func (t *Transport) drainOne() bool {
	t.mu.Lock()
	var el *list.Element
	var q *list.List
	if t.highQ.Len() > 0 {
		q = t.highQ
		el = q.Front()
	} else if t.normalQ.Len() > 0 {
		q = t.normalQ
		el = q.Front()
	}
	if el == nil {
		t.mu.Unlock()
		return false
	}
	q.Remove(el)
	out := el.Value.(*outbound)
	if out.mode == Reliable {
		out.sentAt = time.Now()
		out.attempts++
		t.inflight[inflightKey(out.addr, out.seq)] = out
	}
	t.mu.Unlock()

	t.write(out)
	return true
}

func (t *Transport) write(out *outbound) {
	n, err := t.conn.WriteToUDP(out.data, out.addr)
	if err != nil {
		log.Logger.Warn().Err(err).Str("addr", out.addr.String()).Msg("transport: write failed")
		return
	}
	t.bytesSent.Add(uint64(n))
	metrics.BytesSent.Add(float64(n))
	metrics.DatagramsSent.WithLabelValues(modeLabel(out.mode)).Inc()
}

// retransmitLoop resends any Reliable datagram that hasn't been acked
// within retransmitInterval, up to maxRetries, then gives up silently --
// the ray it carried is treated as lost by whatever queued it.
func (t *Transport) retransmitLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.retransmitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.sweepInflight()
		}
	}
}

func (t *Transport) sweepInflight() {
	now := time.Now()

	t.mu.Lock()
	var toResend []*outbound
	for key, out := range t.inflight {
		if now.Sub(out.sentAt) < t.retransmitInterval {
			continue
		}
		if out.attempts >= t.maxRetries {
			delete(t.inflight, key)
			continue
		}
		toResend = append(toResend, out)
	}
	t.mu.Unlock()

	for _, out := range toResend {
		metrics.Retransmits.Inc()
		t.mu.Lock()
		out.attempts++
		out.sentAt = now
		t.mu.Unlock()
		t.write(out)
	}
}

// Ack marks a Reliable datagram as delivered, stopping further
// retransmits. Callers invoke this once they have decoded an
// application-level acknowledgment carrying the sequence tag.
func (t *Transport) Ack(addr *net.UDPAddr, seq uint32) {
	t.mu.Lock()
	delete(t.inflight, inflightKey(addr, seq))
	t.mu.Unlock()
}

// recvLoop reads datagrams off the socket and pushes them to recvCh; it
// never blocks the event loop that consumes recvCh. The channel is
// generously buffered; when it is full, recvLoop waits for room rather
// than dropping the datagram.
func (t *Transport) recvLoop() {
	defer t.wg.Done()
	buf := make([]byte, 65536)

	for {
		n, addr, err := t.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-t.stopCh:
				return
			default:
				log.Logger.Warn().Err(err).Msg("transport: read failed")
				continue
			}
		}

		t.bytesReceived.Add(uint64(n))
		metrics.BytesReceived.Add(float64(n))

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case t.recvCh <- Datagram{Addr: addr, Data: data}:
		case <-t.stopCh:
			return
		}
	}
}

// SeenReliable reports whether a (addr, seq) reliable datagram has
// already been delivered, and records it as seen if not. Callers use
// this to de-duplicate retransmitted Reliable datagrams before acting
// on their payload twice.
func (t *Transport) SeenReliable(addr *net.UDPAddr, seq uint32) bool {
	key := inflightKey(addr, seq)

	t.seenMu.Lock()
	defer t.seenMu.Unlock()

	if _, ok := t.seen[key]; ok {
		return true
	}
	t.seen[key] = time.Now()
	return false
}

// ForgetOlderThan evicts dedup entries older than ttl, so SeenReliable's
// map doesn't grow without bound over a long-running render.
func (t *Transport) ForgetOlderThan(ttl time.Duration) {
	cutoff := time.Now().Add(-ttl)

	t.seenMu.Lock()
	defer t.seenMu.Unlock()
	for key, seen := range t.seen {
		if seen.Before(cutoff) {
			delete(t.seen, key)
		}
	}
}

func inflightKey(addr *net.UDPAddr, seq uint32) string {
	return fmt.Sprintf("%s|%d", addr.String(), seq)
}

func modeLabel(m Mode) string {
	if m == Reliable {
		return "reliable"
	}
	return "unreliable"
}
