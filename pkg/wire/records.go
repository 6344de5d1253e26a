package wire

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// recordHeaderLen is the 4-byte big-endian length prefix of one record
// inside a RecordWriter/RecordReader-framed payload.
const recordHeaderLen = 4

// RecordWriter packs a sequence of JSON-encoded records into a single
// byte buffer, each preceded by its own 4-byte length, so SendRays and
// FinishedRays payloads can batch many RayState/FinishedSample values
// into one frame instead of one message per record.
type RecordWriter struct {
	buf []byte
}

// NewRecordWriter creates an empty RecordWriter.
func NewRecordWriter() *RecordWriter {
	return &RecordWriter{}
}

// Len returns the number of bytes written so far, including headers.
func (w *RecordWriter) Len() int {
	return len(w.buf)
}

// WouldFit reports whether appending v would keep the writer's total
// size at or under limit, without mutating the writer. Callers use this
// to decide whether a record belongs in the current datagram or the
// next one.
func (w *RecordWriter) WouldFit(v any, limit int) (bool, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("wire: marshal record: %w", err)
	}
	return len(w.buf)+recordHeaderLen+len(encoded) <= limit, nil
}

// Append JSON-encodes v and appends it as one length-prefixed record.
func (w *RecordWriter) Append(v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: marshal record: %w", err)
	}
	header := make([]byte, recordHeaderLen)
	binary.BigEndian.PutUint32(header, uint32(len(encoded)))
	w.buf = append(w.buf, header...)
	w.buf = append(w.buf, encoded...)
	return nil
}

// Bytes returns the packed payload.
func (w *RecordWriter) Bytes() []byte {
	return w.buf
}

// RecordReader unpacks the records written by a RecordWriter.
type RecordReader struct {
	buf []byte
	pos int
}

// NewRecordReader wraps a record-framed payload for sequential reading.
func NewRecordReader(payload []byte) *RecordReader {
	return &RecordReader{buf: payload}
}

// Next reads the next record into v, returning false once the buffer is
// exhausted. A length that overruns the buffer is a protocol violation.
func (r *RecordReader) Next(v any) (bool, error) {
	if r.pos >= len(r.buf) {
		return false, nil
	}
	if r.pos+recordHeaderLen > len(r.buf) {
		return false, fmt.Errorf("wire: %w: truncated record header", ErrProtocolViolation)
	}
	length := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+recordHeaderLen])
	r.pos += recordHeaderLen

	end := r.pos + int(length)
	if end > len(r.buf) {
		return false, fmt.Errorf("wire: %w: record length %d overruns payload", ErrProtocolViolation, length)
	}
	record := r.buf[r.pos:end]
	r.pos = end

	if err := json.Unmarshal(record, v); err != nil {
		return false, fmt.Errorf("wire: %w: unmarshal record: %v", ErrProtocolViolation, err)
	}
	return true, nil
}
