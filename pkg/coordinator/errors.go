package coordinator

import "errors"

// ErrUnexpectedPeer is returned when a UDP ConnectionRequest arrives for
// a worker id the coordinator has no registration record for. Per the
// error taxonomy this is fatal on the coordinator: a worker that never
// registered over TCP should not be able to address this process at all.
var ErrUnexpectedPeer = errors.New("coordinator: unexpected peer")
