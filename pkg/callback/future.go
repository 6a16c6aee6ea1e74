package callback

import (
	"context"
	"sync"
)

// MissingCode is the Result.Error recorded when a callback request carries
// neither a code nor a provider error.
const MissingCode = "missing code"

// Result is what the browser redirect delivered to the listener.
type Result struct {
	// Code is the authorization code, empty on failure.
	Code string

	// State is the state parameter echoed by the provider.
	State string

	// Error is the provider's error code, or MissingCode.
	Error string

	// ErrorDescription is the provider's error_description, if any.
	ErrorDescription string
}

// OK reports whether the result carries a code and no error.
func (r Result) OK() bool {
	return r.Code != "" && r.Error == ""
}

// Future holds a Result that is written at most once.
type Future struct {
	once   sync.Once
	done   chan struct{}
	result Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolve stores r if nothing has been stored yet. It reports whether r won.
func (f *Future) resolve(r Result) bool {
	won := false
	f.once.Do(func() {
		f.result = r
		won = true
		close(f.done)
	})
	return won
}

// Done is closed once a Result has been stored.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Get returns the stored Result and whether one has been stored.
func (f *Future) Get() (Result, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until a Result is stored or ctx is done.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	if r, ok := f.Get(); ok {
		return r, nil
	}
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
