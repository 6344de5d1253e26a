package wire

import (
	"testing"

	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordWriterReaderRoundTrip(t *testing.T) {
	samples := []types.FinishedSample{
		{PFilm: types.Point2f{X: 1, Y: 2}, L: types.Spectrum{R: 0.1}, Weight: 1},
		{PFilm: types.Point2f{X: 3, Y: 4}, L: types.Spectrum{G: 0.2}, Weight: 1},
		{PFilm: types.Point2f{X: 5, Y: 6}, L: types.Spectrum{B: 0.3}, Weight: 0.5},
	}

	w := NewRecordWriter()
	for _, s := range samples {
		require.NoError(t, w.Append(s))
	}

	r := NewRecordReader(w.Bytes())
	var got []types.FinishedSample
	for {
		var s types.FinishedSample
		ok, err := r.Next(&s)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, s)
	}

	assert.Equal(t, samples, got)
}

func TestRecordReaderEmptyPayload(t *testing.T) {
	r := NewRecordReader(nil)
	var s types.FinishedSample
	ok, err := r.Next(&s)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordReaderTruncatedHeader(t *testing.T) {
	r := NewRecordReader([]byte{0, 0, 1})
	var s types.FinishedSample
	_, err := r.Next(&s)
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestRecordReaderOverrunsPayload(t *testing.T) {
	buf := []byte{0, 0, 0, 50} // declares 50 bytes, none present
	r := NewRecordReader(buf)
	var s types.FinishedSample
	_, err := r.Next(&s)
	assert.ErrorIs(t, err, ErrProtocolViolation)
}

func TestRecordWriterWouldFit(t *testing.T) {
	w := NewRecordWriter()
	fits, err := w.WouldFit(types.FinishedSample{}, 1400)
	require.NoError(t, err)
	assert.True(t, fits)

	fits, err = w.WouldFit(types.FinishedSample{}, 0)
	require.NoError(t, err)
	assert.False(t, fits)
}
