package inmem

import (
	"context"
	"sync"

	"github.com/tinytablet/tinytablet/client"
)

// Registry is a process-local address table standing in for the network:
// clusters are served on address strings and the client's dialer resolves
// through it. Dialing an address nothing is serving fails, which is what an
// unreachable master looks like from the client's side.
type Registry struct {
	mu       sync.RWMutex
	services map[string]client.Service
}

var _ client.Dialer = (*Registry)(nil)

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]client.Service)}
}

// Serve exposes svc on addr, replacing any previous occupant.
func (r *Registry) Serve(addr string, svc client.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[addr] = svc
}

// Remove takes addr out of service.
func (r *Registry) Remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.services, addr)
}

// Dial implements client.Dialer.
func (r *Registry) Dial(ctx context.Context, addr string) (client.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[addr]
	if !ok {
		return nil, client.NotFoundf("no service listening on %q", addr)
	}
	return svc, nil
}

// DefaultRegistry is the registry binaries serve and dial through when they
// do not build their own.
var DefaultRegistry = NewRegistry()
