package parfor

import (
	"time"

	"github.com/baxromumarov/parfor/syncq"
)

// source is the collection side of a run. Only the manager goroutine calls
// it, so cursors need no locking.
type source interface {
	// cut detaches up to n further items and returns a function that feeds
	// them to the callback, the number of items detached, and the number of
	// items the collection produced beyond its declared length, which are
	// discarded.
	cut(n int) (exec func(*faults), got, overrun int)

	// close releases the cursor once the run is over.
	close()
}

// run is the state of one parallel-for invocation.
//
// Invariant: finished <= submitted <= count. The run is complete exactly
// when finished == count.
type run struct {
	id    uint64
	kind  Collection
	count int
	src   source

	// Owned by the manager while the run is in flight.
	submitted int
	finished  int
	runTime   time.Duration
	pos       int // index in manager.runs

	errs    []error
	dropped int
	panic   *PanicError // first recovered panic

	reply *syncq.Queue[*run]
}

func (r *run) info() RunInfo {
	return RunInfo{
		ID:            r.id,
		Kind:          r.kind,
		Items:         r.count,
		Submitted:     r.submitted,
		Finished:      r.finished,
		RunTime:       r.runTime,
		Errors:        len(r.errs),
		DroppedErrors: r.dropped,
	}
}

// fold merges a finished bundle's failures into the run.
func (r *run) fold(f *faults, maxErrors int) {
	if r.panic == nil {
		r.panic = f.panic
	}
	for _, err := range f.errs {
		if maxErrors > 0 && len(r.errs) >= maxErrors {
			r.dropped++
			continue
		}
		r.errs = append(r.errs, err)
	}
}

// bundle is a contiguous slice of a run's items dispatched to one worker.
type bundle struct {
	run    *run
	worker *worker
	size   int
	exec   func(*faults)

	// Filled in by the worker.
	start    time.Time
	end      time.Time
	cpuStart time.Duration
	cpuEnd   time.Duration
	faults   faults
}

// faults collects the item failures of one bundle. The attribution fields
// are filled in by the manager before the bundle is dispatched.
type faults struct {
	run    uint64
	kind   Collection
	worker int

	errs  []error
	panic *PanicError
}

func (f *faults) add(index int, item any, err error) {
	f.errs = append(f.errs, &ItemError{Run: f.run, Kind: f.kind, Index: index, Item: item, Err: err})
	if pe, ok := err.(*PanicError); ok && f.panic == nil {
		f.panic = pe
	}
}

// call invokes fn on one item, recording a returned error or a panic.
func call[T any](f *faults, fn func(int, T) error, index int, item T) {
	defer func() {
		if r := recover(); r != nil {
			f.add(index, item, recovered(r, f.worker))
		}
	}()
	if err := fn(index, item); err != nil {
		f.add(index, item, err)
	}
}

// sliceSource cuts zero-copy sub-slices. fn receives the element's offset
// in items along with the element.
type sliceSource[T any] struct {
	items []T
	off   int
	fn    func(int, T) error
}

func (s *sliceSource[T]) cut(n int) (func(*faults), int, int) {
	n = min(n, len(s.items)-s.off)
	base := s.off
	part := s.items[base : base+n : base+n]
	s.off += n

	fn := s.fn
	return func(f *faults) {
		for j, item := range part {
			call(f, fn, base+j, item)
		}
	}, n, 0
}

func (s *sliceSource[T]) close() {}

// keyedSource materializes entries pulled from a cursor. remaining is the
// declared length not yet handed out; entries past it are discarded.
type keyedSource[E any] struct {
	cursor    Cursor[E]
	remaining int
	fn        func(int, E) error
}

func (s *keyedSource[E]) cut(n int) (func(*faults), int, int) {
	part := s.cursor.Next(make([]E, 0, n), n)

	// A cursor may hand back a larger batch than requested; the extra
	// entries are already consumed, so keep them as long as they fit.
	overrun := 0
	if len(part) > s.remaining {
		overrun = len(part) - s.remaining
		part = part[:s.remaining]
	}
	s.remaining -= len(part)

	fn := s.fn
	return func(f *faults) {
		for _, item := range part {
			call(f, fn, NoIndex, item)
		}
	}, len(part), overrun
}

func (s *keyedSource[E]) close() {
	s.cursor.Close()
}

// rangeSource generates contiguous integer spans.
type rangeSource struct {
	next int
	end  int
	fn   func(int) error
}

func (s *rangeSource) cut(n int) (func(*faults), int, int) {
	n = min(n, s.end-s.next)
	lo, hi := s.next, s.next+n
	s.next = hi

	user := s.fn
	fn := func(i, _ int) error { return user(i) }
	return func(f *faults) {
		for i := lo; i < hi; i++ {
			call(f, fn, i, i)
		}
	}, n, 0
}

func (s *rangeSource) close() {}
