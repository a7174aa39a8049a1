package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/fashnai/fashnai/runtime/agent/model"
	"github.com/fashnai/fashnai/runtime/credentials"
)

type (
	// ClientFactory builds a provider client authenticated with key.
	ClientFactory func(key string) (model.Client, error)

	// RotatingClient dispatches each request to the next client in a fixed
	// round-robin order. Each client is bound to one API key.
	RotatingClient struct {
		clients []model.Client
		next    atomic.Uint64
	}
)

// Rotate builds one client per key in pool using build and returns a client
// that rotates over them. When rpm is positive each client is wrapped in its
// own adaptive rate limiter of rpm requests per minute; otherwise requests
// are not limited client side.
func Rotate(pool *credentials.Pool, rpm float64, build ClientFactory) (*RotatingClient, error) {
	keys := pool.Keys()
	if len(keys) == 0 {
		return nil, credentials.ErrNoCredentials
	}
	if build == nil {
		return nil, errors.New("middleware: client factory is required")
	}
	clients := make([]model.Client, 0, len(keys))
	for i, k := range keys {
		c, err := build(k)
		if err != nil {
			return nil, fmt.Errorf("middleware: build client for key %d: %w", i+1, err)
		}
		if rpm > 0 {
			c = NewAdaptiveRateLimiter(rpm, rpm).Middleware()(c)
		}
		clients = append(clients, c)
	}
	return &RotatingClient{clients: clients}, nil
}

// Len returns the number of clients in rotation.
func (r *RotatingClient) Len() int { return len(r.clients) }

// Complete sends req with the next client in rotation.
func (r *RotatingClient) Complete(ctx context.Context, req model.Request) (model.Response, error) {
	i := r.next.Add(1) - 1
	return r.clients[i%uint64(len(r.clients))].Complete(ctx, req)
}
