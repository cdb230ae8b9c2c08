package index

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Registry hands out one client per index URL so that packages on the same
// index share a connection. It is owned by a single run and is not safe for
// concurrent use.
type Registry struct {
	factory Factory
	clients map[string]Client
}

// NewRegistry creates a Registry that builds missing clients with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		clients: make(map[string]Client),
	}
}

// Get returns the client for indexURL, creating it on first use.
func (r *Registry) Get(indexURL string) (Client, error) {
	key := strings.TrimRight(indexURL, "/")
	if c, ok := r.clients[key]; ok {
		return c, nil
	}

	c, err := r.factory(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create index client for %s: %w", key, err)
	}
	r.clients[key] = c
	return c, nil
}

// Len returns the number of clients created so far.
func (r *Registry) Len() int {
	return len(r.clients)
}

// Close releases clients that hold connections.
func (r *Registry) Close() error {
	var errs []error
	for key, c := range r.clients {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close index client for %s: %w", key, err))
			}
		}
		delete(r.clients, key)
	}
	return errors.Join(errs...)
}
