package invoke

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeNPostsExpectedBodyAndCountsAcceptances(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)

		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Event", r.Header.Get("X-Invocation-Type"))

		var body Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "s3://bucket", body.StorageBackend)
		assert.Equal(t, "10.0.0.1:9000", body.Coordinator)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	d := NewDriver(srv.URL)
	accepted := d.InvokeN(context.Background(), Request{
		StorageBackend: "s3://bucket",
		Coordinator:    "10.0.0.1:9000",
	}, 5)

	assert.Equal(t, 5, accepted)
	assert.Equal(t, int32(5), atomic.LoadInt32(&received))
}

func TestInvokeNCountsFailuresWithoutRetrying(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := NewDriver(srv.URL)
	accepted := d.InvokeN(context.Background(), Request{}, 3)

	assert.Equal(t, 0, accepted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestInvokeNUnreachableEndpointReturnsZero(t *testing.T) {
	d := NewDriver("http://127.0.0.1:1")
	accepted := d.InvokeN(context.Background(), Request{}, 2)
	assert.Equal(t, 0, accepted)
}
