package parfor

import (
	"runtime"
	"time"

	"github.com/baxromumarov/parfor/syncq"
)

// workerSet names the manager pool a worker currently belongs to.
type workerSet int

const (
	setActive  workerSet = iota // has an outstanding bundle
	setReady                    // idle capacity slot
	setReserve                  // idle spare, taken first by new runs
)

// worker is one goroutine locked to an OS thread plus its private inbox.
// The set field is owned by the manager; the worker goroutine never reads it.
type worker struct {
	id    int
	inbox *syncq.Queue[*bundle]
	set   workerSet
}

// clock reads the wall and thread CPU time around a bundle.
type clock struct {
	now func() time.Time
	cpu func() time.Duration
}

// loop runs bundles until it receives the nil stop sentinel. Finished
// bundles go back to out.
func (w *worker) loop(out *syncq.Queue[message], clk clock, exited func()) {
	defer exited()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		b := w.inbox.Get()
		if b == nil {
			return
		}

		b.start, b.cpuStart = clk.now(), clk.cpu()
		b.exec(&b.faults)
		b.end, b.cpuEnd = clk.now(), clk.cpu()

		out.Put(b)
	}
}
