/*
Package wire implements the binary message format shared by the
coordinator and every worker.

Every message is a fixed 5-byte header -- a 4-byte big-endian payload
length followed by a 1-byte Opcode -- around a JSON payload. Encode and
Decode move one such frame across an io.Writer/io.Reader (used for the
TCP control connection); DecodeBytes parses a frame out of a full
datagram already in memory (used for UDP).

RecordWriter and RecordReader implement a second, nested framing layer:
a sequence of independent length-prefixed JSON records packed into one
message payload. SendRays and FinishedRays use this to batch many
RayState or FinishedSample values into a single 1400-byte datagram
rather than sending one message per ray.

payloads.go defines the JSON shape of every opcode's payload from the
wire protocol table; Ping, Pong, Bye, and RequestDiagnostics carry no
payload and need no type.
*/
package wire
