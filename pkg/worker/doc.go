// Package worker implements a render worker's decision logic: handling
// each control message from the coordinator, each peer handshake
// datagram, and each periodic tick, in terms of the ray engine and peer
// table it owns. As with pkg/coordinator, all of this is exercised
// without a socket in the loop; a thin runtime in cmd/worker wires the
// Actions returned here through pkg/transport.
package worker
