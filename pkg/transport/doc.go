/*
Package transport implements the reliable-UDP layer shared by the
coordinator and worker processes.

A Transport binds one UDP socket and runs three background goroutines:
sendLoop drains the high-priority queue before the normal queue and
writes each outbound datagram to the socket; retransmitLoop resends any
Reliable datagram that hasn't been acked within the configured
interval, up to a bounded number of attempts; recvLoop reads inbound
datagrams and pushes them onto a channel returned by Recv.

Every payload is clamped to MaxDatagramBytes (1400); Send rejects a
payload that doesn't already fit rather than fragmenting it, since
fragmentation would defeat the point of keeping rays bounded to one
frame. Reliable delivery is best-effort: SeenReliable lets a caller
de-duplicate a datagram that was retransmitted before its ack arrived,
and Unreliable sends are simply fire-and-forget, tolerating loss the
way ray forwarding is designed to.

No method blocks the caller: Send only appends to an in-memory queue,
and Recv delivers over a buffered channel fed by recvLoop.
*/
package transport
