package scene

import (
	"sync"
	"sync/atomic"
)

// Disposable is a reference-counted rendering resource (geometry or
// material). Each holder retains it once and releases it when done; the
// resource is disposed when the last reference goes away.
type Disposable interface {
	Retain()
	Release()
	Dispose()
	Disposed() bool
	DisposeCount() int
	Refs() int
	resource() *Resource
}

// Resource implements Disposable and is embedded by geometries and materials
type Resource struct {
	refs         atomic.Int32
	disposeCount atomic.Int32
	tracker      atomic.Pointer[Tracker]
	owner        Disposable // guarded by tracker.mu
}

func (r *Resource) resource() *Resource { return r }

// Retain adds a reference
func (r *Resource) Retain() {
	r.refs.Add(1)
}

// Release drops a reference and disposes at zero. Releasing more often
// than retaining shows up as a second disposal.
func (r *Resource) Release() {
	if r.refs.Add(-1) <= 0 {
		r.Dispose()
	}
}

// Dispose frees the resource regardless of references
func (r *Resource) Dispose() {
	n := r.disposeCount.Add(1)
	if t := r.tracker.Load(); t != nil {
		t.disposed(r, int(n))
	}
}

// Disposed reports whether the resource has been freed
func (r *Resource) Disposed() bool {
	return r.disposeCount.Load() > 0
}

// DisposeCount returns how many times Dispose ran; more than one means a
// double free
func (r *Resource) DisposeCount() int {
	return int(r.disposeCount.Load())
}

// Refs returns the current number of holders
func (r *Resource) Refs() int {
	return int(r.refs.Load())
}

// Tracker watches resources for leaks and double frees. It holds on to a
// resource only until its first disposal, so a long-running engine keeps
// it bounded by the live resource count.
type Tracker struct {
	mu      sync.Mutex
	live    map[*Resource]Disposable
	doubles []Disposable
	tracked int
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{live: make(map[*Resource]Disposable)}
}

// Track records r. A nil tracker ignores the call, as does a resource
// tracked before.
func (t *Tracker) Track(r Disposable) {
	if t == nil || r == nil {
		return
	}
	res := r.resource()

	t.mu.Lock()
	defer t.mu.Unlock()
	if !res.tracker.CompareAndSwap(nil, t) {
		return
	}
	res.owner = r
	t.tracked++
	switch n := res.DisposeCount(); {
	case n == 0:
		t.live[res] = r
	case n > 1:
		t.doubles = append(t.doubles, r)
	}
}

func (t *Tracker) disposed(res *Resource, n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch n {
	case 1:
		delete(t.live, res)
	case 2:
		t.doubles = append(t.doubles, res.owner)
	}
}

// Len returns how many tracked resources are still live
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

// Tracked returns how many resources were ever tracked
func (t *Tracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracked
}

// DoubleDisposed returns resources disposed more than once
func (t *Tracker) DoubleDisposed() []Disposable {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Disposable(nil), t.doubles...)
}

// Live returns resources that were not disposed yet
func (t *Tracker) Live() []Disposable {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Disposable, 0, len(t.live))
	for _, r := range t.live {
		out = append(out, r)
	}
	return out
}
