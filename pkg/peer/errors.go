package peer

import "errors"

// ErrUnknownPeer marks a ConnectionResponse or other peer-addressed
// message from a worker id with no table entry. No function in this
// module returns it: a worker drops such a message as stale
// (HandleConnectionResponse ignores it), and the coordinator reports an
// unexpected ConnectionRequest with its own coordinator.ErrUnexpectedPeer.
var ErrUnknownPeer = errors.New("peer: unknown peer")
