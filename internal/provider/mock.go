package provider

import (
	"context"
	"time"
)

// MockAdapter replays a scripted fragment sequence. Used in tests and as the
// local "mock" vendor when no real provider is configured.
type MockAdapter struct {
	name      string
	models    []string
	fragments []string
	failAfter int // emit Err after this many fragments; -1 disables
	failErr   error
	delay     time.Duration
}

func NewMockAdapter(fragments ...string) *MockAdapter {
	return &MockAdapter{name: "mock", fragments: fragments, failAfter: -1}
}

// Named overrides the vendor name so tests can register the mock under a
// real vendor identifier.
func (a *MockAdapter) Named(name string) *MockAdapter {
	a.name = name
	return a
}

// FailAfter makes the sequence terminate abruptly with err once n fragments
// have been emitted.
func (a *MockAdapter) FailAfter(n int, err error) *MockAdapter {
	a.failAfter = n
	a.failErr = err
	return a
}

// WithDelay paces fragment emission.
func (a *MockAdapter) WithDelay(d time.Duration) *MockAdapter {
	a.delay = d
	return a
}

// Serving records which catalog models route to this adapter.
func (a *MockAdapter) Serving(models ...string) *MockAdapter {
	a.models = append([]string(nil), models...)
	return a
}

func (a *MockAdapter) Name() string { return a.name }

func (a *MockAdapter) Configured() bool { return true }

func (a *MockAdapter) Models() []string { return append([]string(nil), a.models...) }

func (a *MockAdapter) StreamCompletion(ctx context.Context, _, _ string) (<-chan Chunk, error) {
	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		for i, f := range a.fragments {
			if a.failAfter >= 0 && i == a.failAfter {
				send(ctx, ch, Chunk{Err: a.failErr})
				return
			}
			if a.delay > 0 {
				select {
				case <-time.After(a.delay):
				case <-ctx.Done():
					return
				}
			}
			if !send(ctx, ch, Chunk{Text: f}) {
				return
			}
		}
		if a.failAfter >= 0 && a.failAfter >= len(a.fragments) {
			send(ctx, ch, Chunk{Err: a.failErr})
		}
	}()
	return ch, nil
}
