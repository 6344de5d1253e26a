package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/alex-ozdemir/raylet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectNameIsTypeTagPlusID(t *testing.T) {
	key := types.ObjectKey{Type: types.ObjectTreelet, ID: 7}
	assert.Equal(t, "TREELET7", ObjectName(key))
}

func objectStore(t *testing.T) (*httptest.Server, map[string][]byte) {
	t.Helper()
	data := map[string][]byte{
		"TREELET1": []byte("treelet-bytes"),
		"MATERIAL2": []byte("material-bytes"),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Path[1:]
		switch r.Method {
		case http.MethodGet:
			body, ok := data[name]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write(body)
		case http.MethodPut:
			w.WriteHeader(http.StatusOK)
		}
	}))
	return srv, data
}

func TestGetFetchesEveryKeyConcurrently(t *testing.T) {
	srv, _ := objectStore(t)
	defer srv.Close()

	c := NewClient(srv.URL)
	keys := []types.ObjectKey{
		{Type: types.ObjectTreelet, ID: 1},
		{Type: types.ObjectMaterial, ID: 2},
	}
	got, err := c.Get(context.Background(), keys)
	require.NoError(t, err)
	assert.Equal(t, []byte("treelet-bytes"), got[keys[0]])
	assert.Equal(t, []byte("material-bytes"), got[keys[1]])
}

func TestGetFailsWholeBatchOnMissingObject(t *testing.T) {
	srv, _ := objectStore(t)
	defer srv.Close()

	c := NewClient(srv.URL)
	keys := []types.ObjectKey{{Type: types.ObjectTreelet, ID: 99}}
	_, err := c.Get(context.Background(), keys)
	assert.Error(t, err)
}

func TestPutUploadsEveryObject(t *testing.T) {
	var received int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	objects := map[types.ObjectKey][]byte{
		{Type: types.ObjectTreelet, ID: 1}: []byte("a"),
		{Type: types.ObjectTreelet, ID: 2}: []byte("b"),
	}
	require.NoError(t, c.Put(context.Background(), objects))
	assert.Equal(t, 2, received)
}

func TestFetchToDirWritesFilesNamedByObjectName(t *testing.T) {
	srv, _ := objectStore(t)
	defer srv.Close()

	dir := t.TempDir()
	c := NewClient(srv.URL)
	keys := []types.ObjectKey{{Type: types.ObjectTreelet, ID: 1}}
	require.NoError(t, c.FetchToDir(context.Background(), keys, dir))

	data, err := os.ReadFile(filepath.Join(dir, "TREELET1"))
	require.NoError(t, err)
	assert.Equal(t, "treelet-bytes", string(data))
}
