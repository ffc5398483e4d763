package parfor

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrBusy is returned by [Scheduler.Close] while runs are still in flight.
	ErrBusy = errors.New("parfor: scheduler has runs in flight")

	// ErrInvalidConfig is wrapped by [Config.Validate] failures.
	ErrInvalidConfig = errors.New("parfor: invalid config")
)

// NoIndex is the [ItemError.Index] of keyed entries, which have no position.
const NoIndex = -1

// ItemError is the failure of one item of a run. A run never stops on a
// failure; the entry point returns one ItemError per failed item, joined with
// [errors.Join].
type ItemError struct {
	Run  uint64     // run ID, shared by every failure of one entry-point call
	Kind Collection // collection the run iterated

	// Index locates the item: the slice offset for [ForEach] and [MapSlice],
	// the integer itself for [ForRange], NoIndex for [ForEachKeyed].
	Index int

	Item any   // value passed to the callback
	Err  error // returned error, or a *PanicError
}

func (e *ItemError) Error() string {
	switch e.Kind {
	case CollectionSlice:
		return fmt.Sprintf("parfor: run %d: element %d (%v): %v", e.Run, e.Index, e.Item, e.Err)
	case CollectionRange:
		return fmt.Sprintf("parfor: run %d: index %d: %v", e.Run, e.Index, e.Err)
	default:
		return fmt.Sprintf("parfor: run %d: entry %v: %v", e.Run, e.Item, e.Err)
	}
}

func (e *ItemError) Unwrap() error { return e.Err }

// Panicked reports whether the item failed by panicking.
func (e *ItemError) Panicked() bool {
	_, ok := e.Err.(*PanicError)
	return ok
}

// FailedItems returns every [*ItemError] reachable from err, ordered by run
// and then by index. Keyed entries keep the order the workers reported them.
// Returns nil if err holds no item failures.
func FailedItems(err error) []*ItemError {
	var out []*ItemError
	walk(err, func(ie *ItemError) { out = append(out, ie) })

	slices.SortStableFunc(out, func(a, b *ItemError) int {
		if c := cmp.Compare(a.Run, b.Run); c != 0 {
			return c
		}
		return cmp.Compare(a.Index, b.Index)
	})
	return out
}

// FailedIndexes returns the sorted indexes of the failed slice elements or
// range values in err. Keyed failures have no index and are skipped.
func FailedIndexes(err error) []int {
	var out []int
	walk(err, func(ie *ItemError) {
		if ie.Index != NoIndex {
			out = append(out, ie.Index)
		}
	})
	slices.Sort(out)
	return out
}

// Panics returns the recovered panics among the item failures in err.
func Panics(err error) []*PanicError {
	var out []*PanicError
	for _, ie := range FailedItems(err) {
		if pe, ok := ie.Err.(*PanicError); ok {
			out = append(out, pe)
		}
	}
	return out
}

// walk visits every *ItemError in err's tree. It does not descend into an
// ItemError, so a nested run's failures returned from a callback are
// reported once, as the cause of the outer item.
func walk(err error, visit func(*ItemError)) {
	stack := []error{err}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch x := e.(type) {
		case nil:
		case *ItemError:
			visit(x)
		case interface{ Unwrap() []error }:
			errs := x.Unwrap()
			for i := len(errs) - 1; i >= 0; i-- {
				stack = append(stack, errs[i])
			}
		case interface{ Unwrap() error }:
			stack = append(stack, x.Unwrap())
		}
	}
}
