/*
Package peer implements the connection handshake and routing table
shared by workers and the coordinator.

A Peer transitions Connecting → Connected once a ConnectionResponse
echoes back the seed this side advertised in its own
ConnectionRequest -- the echo check exists so that a peer restarted
mid-session can't be fooled by a stale reply addressed to its previous
incarnation. The transition is one-way: OnConnectionResponse never
moves an already-Connected peer back to Connecting, matching the FSM's
monotonicity invariant.

Table holds one process's full peer set. Like every other piece of
mutable state in this system, a Table is owned by exactly one
goroutine -- the event loop's dispatcher -- and is not safe to touch
concurrently from elsewhere.
*/
package peer
