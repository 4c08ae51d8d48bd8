package states

import (
	"context"
	"sync"
)

// Result is the outcome reported back to whoever triggered an event.
type Result string

const (
	Successful  Result = "Successful"
	Failed      Result = "Failed"
	NotExecuted Result = "NotExecuted"
)

// Future is a Result that may only be known once a CSMS response arrives.
type Future struct {
	once   sync.Once
	done   chan struct{}
	result Result
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Completed returns a Future that already holds r.
func Completed(r Result) *Future {
	f := newFuture()
	f.complete(r)
	return f
}

// complete stores r unless the future already holds a result.
func (f *Future) complete(r Result) {
	f.once.Do(func() {
		f.result = r
		close(f.done)
	})
}

func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome and whether it is known yet.
func (f *Future) Result() (Result, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return "", false
	}
}

func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
