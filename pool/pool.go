// Package pool implements a work-stealing thread pool: a fixed set of
// worker goroutines, each with its own bounded local deque, backed by a
// shared overflow queue for spillover and external submission.
//
// It is the Go-goroutine analogue of the source engine's thread pool: no
// OS threads are managed directly (the Go runtime already multiplexes
// goroutines onto threads), but the work-stealing discipline, the
// spin-then-park wake policy, and the local/global queue split are kept,
// since they are what gives a system scheduler predictable latency under
// bursty stage submission.
package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kestrel-engine/kestrel/task"
)

// Submitter is the pool's enqueue capability. Pool itself is a Submitter
// for work originating outside any worker, always entering through the
// shared overflow queue; a running worker is also a Submitter, for work a
// callback submits from inside the pool, which is pushed onto that
// worker's own local deque first. Code dispatching follow-up work from
// inside a callback already running on the pool should submit through the
// Submitter it was handed rather than going back through the Pool, so a
// chain of work stays on one worker instead of round-tripping the shared
// queue at every step.
type Submitter interface {
	Submit(fn func(Submitter)) *task.Task[struct{}]
}

// Config tunes pool construction. New replaces every zero (or negative)
// field with its DefaultConfig value, so the zero value is valid and
// selects all defaults.
type Config struct {
	// Workers is the number of worker goroutines. If zero, defaults to
	// max(1, runtime.GOMAXPROCS(0)-1).
	Workers int
	// SpinBound is how many times a worker spins looking for work before
	// parking.
	SpinBound int
	// ParkBackoff is the sleep between the end of the spin phase and a
	// worker's next queue check while parked.
	ParkBackoff time.Duration
	// LocalQueueSize is the capacity of each worker's local deque before
	// it spills to the overflow queue.
	LocalQueueSize int
	// Logger receives worker park/wake events at debug level. If nil, a
	// no-op logger is used and the pool logs nothing.
	Logger *zap.Logger
}

// DefaultConfig returns the configuration the pool uses when none is
// supplied explicitly.
func DefaultConfig() Config {
	workers := runtime.GOMAXPROCS(0) - 1
	if workers < 1 {
		workers = 1
	}
	return Config{
		Workers:        workers,
		SpinBound:      64,
		ParkBackoff:    200 * time.Microsecond,
		LocalQueueSize: 256,
	}
}

// Pool is a running set of worker goroutines. Construct with New and stop
// with Stop; a stopped Pool cannot be restarted.
type Pool struct {
	cfg      Config
	workers  []*worker
	overflow overflowQueue
	log      *zap.Logger

	parkedCount atomic.Int32
	wakeCh      chan struct{}

	stopped atomic.Bool
	wg      sync.WaitGroup
}

type worker struct {
	pool  *Pool
	id    int
	local *chaseLevDeque
	rng   uint32
}

// New starts a pool with cfg, filling in zero fields from DefaultConfig.
func New(cfg Config) *Pool {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.SpinBound <= 0 {
		cfg.SpinBound = def.SpinBound
	}
	if cfg.ParkBackoff <= 0 {
		cfg.ParkBackoff = def.ParkBackoff
	}
	if cfg.LocalQueueSize <= 0 {
		cfg.LocalQueueSize = def.LocalQueueSize
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pool{
		cfg:    cfg,
		log:    log,
		wakeCh: make(chan struct{}, cfg.Workers),
	}
	p.workers = make([]*worker, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		p.workers[i] = &worker{
			pool:  p,
			id:    i,
			local: newChaseLevDeque(cfg.LocalQueueSize),
			rng:   uint32(i*2654435761 + 1),
		}
	}
	p.wg.Add(cfg.Workers)
	for _, w := range p.workers {
		go w.run()
	}
	return p
}

// Workers returns the number of worker goroutines this pool runs.
func (p *Pool) Workers() int {
	return len(p.workers)
}

// Go submits fn to run on the pool and returns a task that becomes ready
// once fn returns. fn's panics are not recovered; a panicking system is a
// programmer error the scheduler surfaces by crashing, per this engine's
// no-exceptions-for-control-flow stance. Go always enters through the
// shared overflow queue; code already running on the pool that wants to
// submit follow-up work without leaving its worker should use Submit
// instead (via the Submitter it was handed), not call back into Go.
func (p *Pool) Go(fn func()) *task.Task[struct{}] {
	return p.Submit(func(Submitter) { fn() })
}

// Submit is Go, but fn receives the Submitter of whichever worker ends up
// running it, letting fn's own follow-up work chain onto that worker's
// local deque. Submit itself always enters through the shared overflow
// queue; it's the worker-side Submit (handed to fn's argument) that
// pushes locally.
func (p *Pool) Submit(fn func(Submitter)) *task.Task[struct{}] {
	t := task.New[struct{}]()
	t.Start()
	p.submitExternal(func(s Submitter) {
		fn(s)
		t.Finalize(struct{}{}, nil)
	})
	return t
}

// Schedule returns a task that becomes ready the next time a pool worker
// picks it up. Installing a continuation on it (Continue) is how a caller
// running off the pool moves follow-up work onto a worker goroutine, since
// the continuation runs on the worker that finalizes the task; this is the
// Go stand-in for the source engine's co_await pool.Schedule(). Wait and
// Result only block the caller, which keeps running on its own goroutine.
func (p *Pool) Schedule() *task.Task[struct{}] {
	return p.Go(func() {})
}

func (p *Pool) submitExternal(item workItem) {
	p.overflow.push(item)
	p.wake()
}

func (p *Pool) wake() {
	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
}

// Stop signals every worker to exit once its queues drain and blocks until
// they do.
func (p *Pool) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < len(p.workers); i++ {
		p.wake()
	}
	p.wg.Wait()
}

// Submit implements Submitter for a running worker: fn is pushed onto the
// worker's own local deque, so a callback already executing on the pool
// can chain follow-up work without round-tripping the shared overflow
// queue. If the local deque is full, it falls back to external
// submission, same as Pool.Submit.
func (w *worker) Submit(fn func(Submitter)) *task.Task[struct{}] {
	t := task.New[struct{}]()
	t.Start()
	item := workItem(func(s Submitter) {
		fn(s)
		t.Finalize(struct{}{}, nil)
	})
	if w.local.pushBottom(item) {
		w.pool.wake()
	} else {
		w.pool.submitExternal(item)
	}
	return t
}

func (w *worker) run() {
	defer w.pool.wg.Done()
	spin := 0
	for {
		item := w.local.popBottom()
		if item == nil {
			item = w.steal()
		}
		if item == nil {
			item = w.pool.overflow.pop()
		}
		if item != nil {
			spin = 0
			item(w)
			continue
		}

		if w.pool.stopped.Load() && w.pool.overflow.len() == 0 && w.local.len() == 0 {
			return
		}

		spin++
		if spin < w.pool.cfg.SpinBound {
			runtime.Gosched()
			continue
		}

		w.park()
		spin = 0
	}
}

func (w *worker) park() {
	w.pool.log.Debug("worker parking", zap.Int("worker", w.id))
	w.pool.parkedCount.Add(1)
	defer w.pool.parkedCount.Add(-1)

	select {
	case <-w.pool.wakeCh:
		w.pool.log.Debug("worker woke", zap.Int("worker", w.id))
	case <-time.After(w.pool.cfg.ParkBackoff):
	}
}

func (w *worker) steal() workItem {
	n := len(w.pool.workers)
	if n <= 1 {
		return nil
	}
	start := w.nextRand() % uint32(n)
	for i := 0; i < n; i++ {
		idx := (start + uint32(i)) % uint32(n)
		victim := w.pool.workers[idx]
		if victim == w {
			continue
		}
		if item := victim.local.popTop(); item != nil {
			return item
		}
	}
	return nil
}

func (w *worker) nextRand() uint32 {
	// xorshift32, good enough for steal-victim selection.
	x := w.rng
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	w.rng = x
	return x
}
