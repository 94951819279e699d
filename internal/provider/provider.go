// Package provider adapts the vendor AI backends to one streaming contract.
// The orchestrator never inspects which concrete adapter it holds.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Chunk is one element of a completion stream. A non-nil Err is terminal:
// the channel is closed right after and the operation failed.
type Chunk struct {
	Text string
	Err  error
}

// Adapter streams completion fragments for a model it serves. The returned
// channel is forward-only, finite and not restartable; producers stop when
// ctx is cancelled.
type Adapter interface {
	Name() string
	Configured() bool
	// Models lists the catalog model identifiers this adapter serves.
	Models() []string
	StreamCompletion(ctx context.Context, modelID, prompt string) (<-chan Chunk, error)
}

// Registry resolves the adapter for a vendor. It is built once at startup;
// an unknown vendor is a configuration error, never a silent fallback.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) ForVendor(vendor string) (Adapter, error) {
	a, ok := r.adapters[vendor]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for vendor %q", vendor)
	}
	return a, nil
}

func (r *Registry) Vendors() []string {
	out := make([]string, 0, len(r.adapters))
	for v := range r.adapters {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Minute}
}

// send delivers one chunk unless the consumer is gone.
func send(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
