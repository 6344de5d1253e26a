package wire

import "errors"

// ErrProtocolViolation marks a fatal framing or decode error: an unknown
// opcode, a malformed payload, or a length field that doesn't fit the
// buffer it was read from. Per the process's fatal-error taxonomy, a
// handler that surfaces this error should terminate the process rather
// than attempt to resynchronize the stream.
var ErrProtocolViolation = errors.New("wire: protocol violation")
