// Package storage implements a worker's batched get/put client against
// an S3-compatible object store, keyed by scene object name.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/alex-ozdemir/raylet/pkg/types"
)

// maxConcurrentRequests bounds how many object fetches/puts a single
// Get or Put batch runs at once, so a large treelet dependency closure
// doesn't open hundreds of sockets simultaneously.
const maxConcurrentRequests = 16

// ObjectName returns the fixed object-store key for a scene object:
// its type tag immediately followed by its numeric id, e.g. "TREELET5".
func ObjectName(key types.ObjectKey) string {
	return fmt.Sprintf("%s%d", key.Type, key.ID)
}

// Client batches get/put requests against an S3-compatible bucket
// reachable at baseURL (e.g. "https://bucket.s3.us-east-1.amazonaws.com").
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client targeting baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

// Get fetches every key in the batch concurrently and returns each
// object's bytes keyed by its ObjectKey. If any fetch fails the whole
// batch fails; per §7 a storage fetch failure is fatal to the worker.
func (c *Client) Get(ctx context.Context, keys []types.ObjectKey) (map[types.ObjectKey][]byte, error) {
	type result struct {
		key  types.ObjectKey
		data []byte
		err  error
	}

	results := make(chan result, len(keys))
	sem := make(chan struct{}, maxConcurrentRequests)
	var wg sync.WaitGroup

	for _, key := range keys {
		wg.Add(1)
		go func(key types.ObjectKey) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := c.getOne(ctx, key)
			results <- result{key: key, data: data, err: err}
		}(key)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[types.ObjectKey][]byte, len(keys))
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("storage: fetch %s: %w", ObjectName(r.key), r.err)
			}
			continue
		}
		out[r.key] = r.data
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

func (c *Client) getOne(ctx context.Context, key types.ObjectKey) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+ObjectName(key), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Put uploads every object in the batch concurrently.
func (c *Client) Put(ctx context.Context, objects map[types.ObjectKey][]byte) error {
	sem := make(chan struct{}, maxConcurrentRequests)
	errs := make(chan error, len(objects))
	var wg sync.WaitGroup

	for key, data := range objects {
		wg.Add(1)
		go func(key types.ObjectKey, data []byte) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := c.putOne(ctx, key, data); err != nil {
				errs <- fmt.Errorf("storage: put %s: %w", ObjectName(key), err)
			}
		}(key, data)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}
	return nil
}

func (c *Client) putOne(ctx context.Context, key types.ObjectKey, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/"+ObjectName(key), strings.NewReader(string(data)))
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// FetchToDir fetches every key in the batch and writes each object's
// bytes to dir, named by ObjectName, for the intersection engine to
// memory-map.
func (c *Client) FetchToDir(ctx context.Context, keys []types.ObjectKey, dir string) error {
	objects, err := c.Get(ctx, keys)
	if err != nil {
		return err
	}
	for key, data := range objects {
		path := filepath.Join(dir, ObjectName(key))
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("storage: write %s: %w", path, err)
		}
	}
	return nil
}
