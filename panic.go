package parfor

import (
	"fmt"
	"runtime"
)

// PanicError is the [ItemError.Err] of an item whose callback panicked.
// The worker recovers, records the stack of its own OS thread, and moves on
// to the next item of the bundle.
//
// With WithPanicAsError(false) the first PanicError of a run is re-raised in
// the calling goroutine once every item has finished.
type PanicError struct {
	Value  any    // argument to panic
	Worker int    // worker that ran the item
	Stack  string // that worker's stack at the point of recovery
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic on worker %d: %v\n\n%s", e.Worker, e.Value, e.Stack)
}

// Unwrap exposes the panic value when it is itself an error, so that
// errors.Is sees through panic(err).
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func recovered(v any, worker int) *PanicError {
	buf := make([]byte, 8<<10)
	buf = buf[:runtime.Stack(buf, false)]
	return &PanicError{Value: v, Worker: worker, Stack: string(buf)}
}
