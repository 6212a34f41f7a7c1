package forcegraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dd0wney/cluso-forcegraph/pkg/logging"
	"github.com/dd0wney/cluso-forcegraph/pkg/source"
)

// ErrLoadInProgress is returned when a load starts before the previous one
// finished
var ErrLoadInProgress = errors.New("graph load already in progress")

// LoadError wraps a failure to fetch or decode a graph source
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load graph from %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadGraph fetches a graph from url in the background and replaces the
// rendered graph with it. The returned channel receives the outcome once and
// is then closed. Only one load runs at a time.
func (f *ForceGraph) LoadGraph(ctx context.Context, url string) (<-chan error, error) {
	scheme := source.Scheme(url)

	f.mu.Lock()
	if f.closed {
		f.unlock()
		return nil, ErrClosed
	}
	if f.loading {
		if f.metrics != nil {
			f.metrics.RecordLoad(scheme, "rejected", 0)
		}
		f.unlock()
		return nil, ErrLoadInProgress
	}
	f.loading = true
	load := f.loader
	if load == nil {
		load = source.Load
	}
	f.notify(f.onLoading)
	f.unlock()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- f.load(ctx, load, url, scheme)
	}()
	return done, nil
}

func (f *ForceGraph) load(ctx context.Context, load SourceLoader, url, scheme string) error {
	timer := logging.StartTimer(f.log, "graph load", logging.Source(url))
	started := time.Now()

	g, err := load(ctx, url)
	if err != nil {
		err = &LoadError{URL: url, Err: err}
	} else {
		// Swapped while still loading, so no later load can land first
		err = f.Set(WithGraph(g))
	}

	f.mu.Lock()
	f.loading = false
	if f.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		f.metrics.RecordLoad(scheme, status, time.Since(started))
	}
	var lerr *LoadError
	switch {
	case errors.As(err, &lerr):
		if fn := f.onLoadError; fn != nil {
			f.notify(func() { fn(lerr) })
		}
	case err == nil:
		f.notify(f.onFinishLoading)
	}
	f.unlock()

	if err != nil {
		timer.EndError(err)
		return err
	}
	timer.End(logging.Count(g.Order()))
	return nil
}
