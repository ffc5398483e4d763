package parfor

import (
	"fmt"
	"sync"

	"github.com/baxromumarov/parfor/syncq"
	"github.com/rs/zerolog"
)

// manager owns every piece of scheduling state. All fields are touched only
// by the manager goroutine, which reacts to messages arriving on inbox.
type manager struct {
	cfg   config
	log   zerolog.Logger
	size  sizer
	inbox *syncq.Queue[message]
	clk   clock

	active  map[*worker]struct{}
	ready   []*worker // stack, the top is the front
	reserve []*worker
	runs    []*run
	created int

	runsDone   uint64
	dispatched uint64
	processed  uint64

	exited sync.WaitGroup // worker goroutines
}

func newManager(cfg config, workers int, inbox *syncq.Queue[message]) *manager {
	m := &manager{
		cfg:   cfg,
		log:   cfg.logger.With().Str("component", "parfor-manager").Logger(),
		inbox: inbox,
		size: sizer{
			workers:      workers,
			firstDivisor: cfg.firstDivisor,
			target:       cfg.targetBundle,
			epsilon:      cfg.costEpsilon,
		},
		clk:    clock{now: cfg.now, cpu: cfg.cpuTime},
		active: make(map[*worker]struct{}),
	}

	// The caller occupies one CPU itself.
	for range workers - 1 {
		w := m.newWorker()
		w.set = setReady
		m.ready = append(m.ready, w)
	}
	return m
}

// loop handles messages until a close request is accepted.
func (m *manager) loop() {
	for {
		switch msg := m.inbox.Get().(type) {
		case *run:
			m.scheduleRun(msg)

		case *bundle:
			m.checkWork(msg)

		case statsRequest:
			msg.reply.Put(m.snapshot())

		case closeRequest:
			if len(m.runs) > 0 {
				msg.reply.Put(ErrBusy)
				continue
			}
			*msg.final = m.shutdown()
			msg.reply.Put(nil)
			return

		default:
			panic("parfor: unknown manager message")
		}
	}
}

// scheduleRun starts a new run: one worker from reserve (or a new one), then
// every ready worker for as long as the run has items to hand out.
func (m *manager) scheduleRun(r *run) {
	m.addRun(r)
	m.emit(Event{Kind: EventRunStarted, Run: r.info(), Worker: -1})
	m.log.Debug().
		Uint64("run", r.id).
		Stringer("kind", r.kind).
		Int("items", r.count).
		Msg("run scheduled")

	w := m.takeReserve()
	b := m.cutBundle(r)
	if b == nil {
		// The cursor was empty despite a non-zero length.
		m.toReserve(w)
		m.completeIfDone(r)
		return
	}
	m.dispatch(w, b)

	for len(m.ready) > 0 {
		w := m.ready[len(m.ready)-1]
		m.ready = m.ready[:len(m.ready)-1]

		b := m.cutBundle(r)
		if b == nil {
			m.ready = append(m.ready, w)
			break
		}
		m.dispatch(w, b)
	}
}

// checkWork folds a finished bundle into its run and decides what the now
// idle worker does next.
func (m *manager) checkWork(b *bundle) {
	r, w := b.run, b.worker
	delete(m.active, w)

	raw := b.end.Sub(b.start)
	elapsed, corrected := correctElapsed(raw)
	if corrected {
		m.log.Warn().
			Uint64("run", r.id).
			Dur("raw", raw).
			Dur("used", elapsed).
			Msg("implausible bundle duration corrected")
		m.emit(Event{Kind: EventClockCorrected, Run: r.info(), Worker: w.id, Size: b.size, Elapsed: raw})
	}

	r.runTime += elapsed
	r.finished += b.size
	r.fold(&b.faults, m.cfg.maxErrors)
	m.processed += uint64(b.size)

	m.emit(Event{
		Kind:    EventBundleDone,
		Run:     r.info(),
		Worker:  w.id,
		Size:    b.size,
		Elapsed: elapsed,
		CPU:     b.cpuEnd - b.cpuStart,
	})

	if m.completeIfDone(r) {
		m.toReserve(w)
		return
	}

	// Stay on the same run while it has unserved items.
	if r.submitted < r.count {
		if nb := m.cutBundle(r); nb != nil {
			m.dispatch(w, nb)
			return
		}
		if m.completeIfDone(r) {
			m.toReserve(w)
			return
		}
	}

	m.redistribute(w, r)
}

// redistribute hands an idle worker to any other run with unserved items,
// or parks it as ready.
func (m *manager) redistribute(w *worker, skip *run) {
	for i := 0; i < len(m.runs); i++ {
		other := m.runs[i]
		if other == skip || other.submitted >= other.count {
			continue
		}
		if b := m.cutBundle(other); b != nil {
			m.dispatch(w, b)
			return
		}
		if m.completeIfDone(other) {
			// other was swapped out of position i.
			i--
		}
	}

	w.set = setReady
	m.ready = append(m.ready, w)
}

// cutBundle cuts the next bundle from r, or returns nil if r has nothing
// left to submit. A cursor that runs dry early shrinks the run to what it
// actually yielded.
func (m *manager) cutBundle(r *run) *bundle {
	left := r.count - r.submitted
	if left <= 0 {
		return nil
	}

	n := m.size.next(r.count, r.submitted, r.finished, r.runTime)
	exec, got, overrun := r.src.cut(n)
	if overrun > 0 {
		m.log.Warn().
			Uint64("run", r.id).
			Int("items", r.count).
			Int("discarded", overrun).
			Msg("collection yielded more items than its length")
	}
	if got < n {
		m.log.Warn().
			Uint64("run", r.id).
			Int("items", r.count).
			Int("yielded", r.submitted+got).
			Msg("collection yielded fewer items than its length")
		r.count = r.submitted + got
	}
	if got == 0 {
		return nil
	}

	r.submitted += got
	m.emit(Event{Kind: EventBundleCut, Run: r.info(), Worker: -1, Size: got, Left: left})

	return &bundle{
		run:    r,
		size:   got,
		exec:   exec,
		faults: faults{run: r.id, kind: r.kind},
	}
}

func (m *manager) dispatch(w *worker, b *bundle) {
	b.worker = w
	b.faults.worker = w.id
	w.set = setActive
	m.active[w] = struct{}{}
	m.dispatched++
	w.inbox.Put(b)
}

// completeIfDone retires r and wakes its customer if every item finished.
func (m *manager) completeIfDone(r *run) bool {
	if r.finished < r.count {
		return false
	}

	m.removeRun(r)
	r.src.close()
	m.runsDone++

	m.emit(Event{Kind: EventRunDone, Run: r.info(), Worker: -1})
	m.log.Debug().
		Uint64("run", r.id).
		Int("items", r.count).
		Dur("run_time", r.runTime).
		Int("errors", len(r.errs)+r.dropped).
		Msg("run complete")

	r.reply.Put(r)
	return true
}

func (m *manager) takeReserve() *worker {
	if n := len(m.reserve); n > 0 {
		w := m.reserve[n-1]
		m.reserve = m.reserve[:n-1]
		return w
	}
	return m.newWorker()
}

func (m *manager) toReserve(w *worker) {
	w.set = setReserve
	m.reserve = append(m.reserve, w)
}

func (m *manager) newWorker() *worker {
	w := &worker{
		id:    m.created,
		inbox: syncq.New[*bundle](),
		set:   setReserve,
	}
	m.created++

	m.exited.Add(1)
	go w.loop(m.inbox, m.clk, m.exited.Done)

	m.emit(Event{Kind: EventWorkerCreated, Worker: w.id})
	m.log.Debug().Int("worker", w.id).Int("total", m.created).Msg("worker created")
	return w
}

func (m *manager) addRun(r *run) {
	r.pos = len(m.runs)
	m.runs = append(m.runs, r)
}

func (m *manager) removeRun(r *run) {
	last := len(m.runs) - 1
	moved := m.runs[last]
	m.runs[r.pos] = moved
	moved.pos = r.pos
	m.runs[last] = nil
	m.runs = m.runs[:last]
}

// shutdown stops every worker and waits for their goroutines to exit.
// Only valid when no run is in flight, so no worker is active.
func (m *manager) shutdown() Stats {
	st := m.snapshot()
	for _, w := range m.ready {
		w.inbox.Put(nil)
	}
	for _, w := range m.reserve {
		w.inbox.Put(nil)
	}
	m.exited.Wait()

	m.log.Debug().Int("workers", m.created).Uint64("runs", m.runsDone).Msg("scheduler closed")
	return st
}

func (m *manager) snapshot() Stats {
	m.verifyPools()
	return Stats{
		Workers:           m.size.workers,
		Created:           m.created,
		Active:            len(m.active),
		Ready:             len(m.ready),
		Reserve:           len(m.reserve),
		Runs:              len(m.runs),
		RunsCompleted:     m.runsDone,
		BundlesDispatched: m.dispatched,
		ItemsProcessed:    m.processed,
	}
}

// verifyPools panics unless every created worker sits in exactly one pool
// and carries that pool's tag.
func (m *manager) verifyPools() {
	seen := make(map[*worker]struct{}, m.created)
	check := func(w *worker, want workerSet) {
		if _, dup := seen[w]; dup {
			panic(fmt.Sprintf("parfor: worker %d is in two pools", w.id))
		}
		seen[w] = struct{}{}
		if w.set != want {
			panic(fmt.Sprintf("parfor: worker %d tagged %d in pool %d", w.id, w.set, want))
		}
	}

	for w := range m.active {
		check(w, setActive)
	}
	for _, w := range m.ready {
		check(w, setReady)
	}
	for _, w := range m.reserve {
		check(w, setReserve)
	}
	if len(seen) != m.created {
		panic(fmt.Sprintf("parfor: %d workers in pools, %d created", len(seen), m.created))
	}
}

func (m *manager) emit(e Event) {
	if m.cfg.onEvent != nil {
		m.cfg.onEvent(e)
	}
}
