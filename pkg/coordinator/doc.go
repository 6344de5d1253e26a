// Package coordinator implements the control plane: worker registration,
// tile and treelet assignment, peer-discovery brokering, demand tracking,
// and film accumulation. It holds no network code of its own; every
// method that needs to talk to a worker returns the Actions the caller
// must dispatch, so the decision logic here is exercised by plain state
// transition tests without a transport in the loop.
package coordinator
