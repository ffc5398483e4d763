package parfor

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/baxromumarov/parfor/syncq"
)

// Stats is a consistent point-in-time snapshot of a scheduler, taken on the
// manager goroutine between two messages.
//
// Active + Ready + Reserve always equals Created.
type Stats struct {
	Workers           int    // target thread count passed to New
	Created           int    // workers created so far
	Active            int    // workers with an outstanding bundle
	Ready             int    // idle workers available to any run
	Reserve           int    // idle spares left behind by finished runs
	Runs              int    // runs in flight
	RunsCompleted     uint64 // runs finished since creation
	BundlesDispatched uint64 // bundles handed to workers
	ItemsProcessed    uint64 // items whose bundle has been folded back
	IdleQueues        int    // cached reply queues
}

// Scheduler runs parallel-for operations over collections. A Scheduler owns
// one manager goroutine and a lazily growing set of worker goroutines, each
// locked to its own OS thread.
//
// Entry points ([ForEach], [ForEachKeyed], [ForRange], [MapSlice]) may be
// called from any goroutine, including from inside a callback running on one
// of this scheduler's workers.
type Scheduler struct {
	cfg     config
	workers int
	inbox   *syncq.Queue[message]
	replies *syncq.Pool[*run]
	nextID  atomic.Uint64

	// closeMu orders inbox writers against shutdown: requests are put
	// under the read lock, Close holds the write lock until the manager
	// has answered.
	closeMu sync.RWMutex
	closed  bool
	final   Stats
}

// New starts a scheduler targeting cpus threads. It creates cpus-1 idle
// workers immediately, since the calling goroutine occupies one CPU itself;
// further workers are created when nested runs need them.
//
// Panics if cpus <= 0.
func New(cpus int, opts ...Option) *Scheduler {
	if cpus <= 0 {
		panic("parfor: New requires cpus > 0")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Scheduler{
		cfg:     cfg,
		workers: cpus,
		inbox:   syncq.New[message](),
		replies: syncq.NewPool[*run](),
	}

	m := newManager(cfg, cpus, s.inbox)
	go m.loop()

	return s
}

// Workers returns the target thread count the scheduler was created with.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Stats returns a snapshot of the scheduler. After [Scheduler.Close] it
// returns the snapshot taken at shutdown.
func (s *Scheduler) Stats() Stats {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()

	if s.closed {
		return s.final
	}

	reply := syncq.New[Stats]()
	s.inbox.Put(statsRequest{reply: reply})
	st := reply.Get()
	st.IdleQueues = s.replies.Idle()
	return st
}

// Close stops every worker and the manager. It returns [ErrBusy], leaving the
// scheduler usable, if any run is still in flight.
//
// Close is idempotent and safe to call concurrently with Stats and entry
// points. A run submitted before Close makes Close return ErrBusy; a run
// started after a successful Close panics.
func (s *Scheduler) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()

	if s.closed {
		return nil
	}

	reply := syncq.New[error]()
	var final Stats
	s.inbox.Put(closeRequest{reply: reply, final: &final})
	if err := reply.Get(); err != nil {
		return err
	}

	s.final = final
	s.final.IdleQueues = s.replies.Idle()
	s.closed = true
	return nil
}

// submit hands a run to the manager and blocks until it completes. src is
// always closed, including when the run is rejected.
func (s *Scheduler) submit(kind Collection, count int, src source) error {
	s.closeMu.RLock()
	if s.closed {
		s.closeMu.RUnlock()
		src.close()
		panic("parfor: scheduler is closed")
	}
	if count <= 0 {
		s.closeMu.RUnlock()
		src.close()
		return nil
	}

	reply := s.replies.Acquire()
	r := &run{
		id:    s.nextID.Add(1),
		kind:  kind,
		count: count,
		src:   src,
		reply: reply,
	}

	s.inbox.Put(r)
	s.closeMu.RUnlock()

	done := reply.Get()
	s.replies.Release(reply)

	if !s.cfg.panicAsErr && done.panic != nil {
		panic(done.panic)
	}
	return errors.Join(done.errs...)
}
