// Package geo resolves best-effort IP and location metadata for admin sessions
// from an ordered chain of external providers.
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAllProvidersFailed is returned by FirstSuccess when every provider failed
var ErrAllProvidersFailed = errors.New("all providers failed")

// Provider is one interchangeable source in a fallback chain
type Provider[In, Out any] struct {
	Name    string
	Timeout time.Duration
	Fetch   func(ctx context.Context, in In) (Out, error)
}

// FailureFunc observes a failed provider call
type FailureFunc func(provider string, err error)

// FirstSuccess tries providers in order, each exactly once and bounded by its own
// timeout, and returns the first successful output with the winning provider name.
// A panicking provider counts as a failure.
func FirstSuccess[In, Out any](ctx context.Context, providers []Provider[In, Out], in In, onFailure FailureFunc) (Out, string, error) {
	var zero Out
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		out, err := call(ctx, p, in)
		if err == nil {
			return out, p.Name, nil
		}
		if onFailure != nil {
			onFailure(p.Name, err)
		}
	}
	return zero, "", ErrAllProvidersFailed
}

type result[Out any] struct {
	out Out
	err error
}

func call[In, Out any](ctx context.Context, p Provider[In, Out], in In) (Out, error) {
	var zero Out
	if p.Fetch == nil {
		return zero, fmt.Errorf("provider %s has no fetch function", p.Name)
	}

	callCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	// Buffered so an abandoned provider goroutine can still finish
	done := make(chan result[Out], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[Out]{err: fmt.Errorf("provider %s panicked: %v", p.Name, r)}
			}
		}()
		out, err := p.Fetch(callCtx, in)
		done <- result[Out]{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-callCtx.Done():
		return zero, fmt.Errorf("provider %s: %w", p.Name, callCtx.Err())
	}
}
