package parfor

import (
	"fmt"
	"time"
)

// Collection identifies which kind of collection a run iterates.
type Collection int

const (
	// CollectionSlice is a run started by [ForEach] or [MapSlice].
	CollectionSlice Collection = iota
	// CollectionKeyed is a run started by [ForEachKeyed].
	CollectionKeyed
	// CollectionRange is a run started by [ForRange].
	CollectionRange
)

func (c Collection) String() string {
	switch c {
	case CollectionSlice:
		return "slice"
	case CollectionKeyed:
		return "keyed"
	case CollectionRange:
		return "range"
	default:
		return fmt.Sprintf("Collection(%d)", int(c))
	}
}

// EventKind classifies a scheduling [Event].
type EventKind int

const (
	// EventRunStarted fires when the manager accepts a new run.
	EventRunStarted EventKind = iota
	// EventBundleCut fires each time a bundle is cut from a run.
	EventBundleCut
	// EventBundleDone fires when a finished bundle is folded into its run.
	EventBundleDone
	// EventRunDone fires when every item of a run has finished.
	EventRunDone
	// EventWorkerCreated fires when the pool grows by one worker.
	EventWorkerCreated
	// EventClockCorrected fires when a bundle duration had to be corrected.
	EventClockCorrected
)

func (k EventKind) String() string {
	switch k {
	case EventRunStarted:
		return "run-started"
	case EventBundleCut:
		return "bundle-cut"
	case EventBundleDone:
		return "bundle-done"
	case EventRunDone:
		return "run-done"
	case EventWorkerCreated:
		return "worker-created"
	case EventClockCorrected:
		return "clock-corrected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// RunInfo is a snapshot of a run's progress counters.
type RunInfo struct {
	ID            uint64
	Kind          Collection
	Items         int           // total item count
	Submitted     int           // items cut into bundles so far
	Finished      int           // items whose bundle has been folded back
	RunTime       time.Duration // summed wall time of finished bundles
	Errors        int           // stored item errors
	DroppedErrors int           // item errors discarded by WithMaxErrors
}

// Event is delivered to the [WithOnEvent] hook.
type Event struct {
	Kind EventKind

	// Run is the state of the affected run after the event. Zero for
	// EventWorkerCreated.
	Run RunInfo

	// Worker is the id of the worker involved, or -1.
	Worker int

	// Size is the bundle size for EventBundleCut and EventBundleDone.
	Size int

	// Left is the number of unsubmitted items just before an EventBundleCut.
	Left int

	// Elapsed is the folded wall time of the bundle for EventBundleDone, or
	// the raw, uncorrected reading for EventClockCorrected.
	Elapsed time.Duration

	// CPU is the thread CPU time the bundle consumed, if the platform
	// reports it.
	CPU time.Duration
}
