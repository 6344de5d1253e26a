// Package invoke fires the HTTP requests that start ephemeral worker
// processes on a function-invocation service.
package invoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/alex-ozdemir/raylet/pkg/log"
)

// Request is the JSON body POSTed to the invocation endpoint for each
// worker: which storage backend to use and where to dial back to.
type Request struct {
	StorageBackend string `json:"storage_backend"`
	Coordinator    string `json:"coordinator"`
}

// Driver issues fire-and-forget invocation requests against a single
// function-service endpoint.
type Driver struct {
	endpoint string
	client   *http.Client
}

// NewDriver creates a driver targeting endpoint (e.g.
// "https://lambda.us-east-1.amazonaws.com/start-worker").
func NewDriver(endpoint string) *Driver {
	return &Driver{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// InvokeN issues count invocation requests, each carrying req as its
// body. Invocations are EVENT-style: the driver does not wait for the
// worker to finish, only for the invocation service to accept the
// request. A failed invocation is logged and counted but not retried;
// a worker that never starts simply never appears in the topology.
//
// InvokeN returns the number of requests the service accepted.
func (d *Driver) InvokeN(ctx context.Context, req Request, count int) int {
	accepted := 0
	for i := 0; i < count; i++ {
		if err := d.invokeOne(ctx, req); err != nil {
			log.Logger.Error().Err(err).Int("index", i).Msg("worker invocation failed")
			continue
		}
		accepted++
	}
	return accepted
}

func (d *Driver) invokeOne(ctx context.Context, req Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("invoke: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("invoke: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Invocation-Type", "Event")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("invoke: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("invoke: unexpected status %d", resp.StatusCode)
	}
	return nil
}
