// Package parfor runs an operation on every element of a collection, in
// parallel, and returns once every element has been processed.
//
// # Running Over Collections
//
// A [Scheduler] is created once with a target thread count and shared by
// everything that wants parallel loops:
//
//	s := parfor.New(runtime.GOMAXPROCS(0))
//	defer s.Close()
//
//	err := parfor.ForRange(s, 0, len(rows), func(i int) error {
//	    return rows[i].Normalize()
//	})
//
// Four entry points funnel into the same machinery:
//
//   - [ForEach]: every element of a slice, cut into zero-copy sub-slices.
//   - [ForEachKeyed]: every entry of a cursor-walked collection, such as a
//     map adapted with [MapOf].
//   - [ForRange]: every integer of a half-open range.
//   - [MapSlice]: like ForEach, collecting one result per element in order.
//
// Each call blocks until the whole run is done. There is no cancellation
// and no early exit; a run always visits every item exactly once.
//
// # Scheduling
//
// A single manager goroutine owns all scheduling state. Customers send it a
// run and block on a private reply queue; the manager cuts the run into
// bundles, hands each bundle to one worker, and folds finished bundles back
// into the run. Workers are goroutines locked to their own OS thread, each
// with a private inbox from [github.com/baxromumarov/parfor/syncq].
//
// Bundle sizes adapt to the observed cost of items:
//
//   - The first bundle of a run is items / (workers * 10), to get a timing
//     sample quickly.
//   - Once items have finished, bundles aim for 5ms of work based on the
//     average cost so far.
//   - If items turn out to be essentially free, bundles become
//     items / workers.
//
// The constants are tunable with [WithFirstBundleDivisor],
// [WithTargetBundleTime] and [WithCostEpsilon], or through [Config].
//
// # Nested Runs
//
// A callback may start a run of its own on the same scheduler. The worker
// then blocks as a customer while the manager serves the inner run from its
// reserve of idle workers, creating one if none is left. Nesting therefore
// never deadlocks, and finished inner runs leave their worker in reserve so
// the pool stays close to the target thread count.
//
// # Errors and Panics
//
// A callback error or panic fails only its own item. The run still delivers
// every other item and the entry point returns one [*ItemError] per failure,
// joined via [errors.Join]. Each failure names its run and the item's
// position; [FailedItems] and [FailedIndexes] list them. Panics are captured
// as [*PanicError] with the worker stack. Use [WithPanicAsError] to
// re-raise the first panic in the caller instead, and [WithMaxErrors] to cap
// stored errors.
//
// # Observability
//
//   - [Scheduler.Stats]: consistent snapshot of worker pools and counters.
//   - [WithOnEvent]: hook receiving an [Event] for every run, bundle and
//     worker transition.
//   - [WithLogger]: zerolog logger for manager diagnostics.
//   - [github.com/baxromumarov/parfor/metrics]: Prometheus collectors over
//     both of the above.
package parfor
