package stats

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnterDebitsElapsedTimeUnderFlatKey(t *testing.T) {
	d := NewDiagnostics()
	exit := d.Enter("trace")
	time.Sleep(time.Millisecond)
	exit()

	times := d.TimePerAction()
	require.Contains(t, times, "trace")
	assert.Greater(t, times["trace"], int64(0))
}

func TestEnterNestsKeysWithColon(t *testing.T) {
	d := NewDiagnostics()
	outer := d.Enter("trace")
	inner := d.Enter("shade")
	inner()
	outer()

	times := d.TimePerAction()
	assert.Contains(t, times, "trace")
	assert.Contains(t, times, "trace:shade")
}

func TestFlushWritesJSONLineAndResets(t *testing.T) {
	d := NewDiagnostics()
	exit := d.Enter("trace")
	exit()

	var buf bytes.Buffer
	require.NoError(t, d.Flush(&buf, 100, 200, 3, time.Now()))

	var got snapshot
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Contains(t, got.TimePerAction, "trace")
	assert.Equal(t, uint64(100), got.BytesSentDelta)
	assert.Equal(t, uint64(200), got.BytesReceivedDelta)
	assert.Equal(t, 3, got.OutstandingUDP)

	assert.Empty(t, d.TimePerAction())
}
