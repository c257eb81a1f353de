// Package scheduler partitions registered systems into named stages,
// infers a dependency DAG per stage from each system's declared access
// set, and drives execution of that DAG on a pool.Pool, running
// independent systems concurrently while preserving the ordering implied
// by conflicting accesses.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kestrel-engine/kestrel/pool"
	"github.com/kestrel-engine/kestrel/task"
)

// System is one unit of scheduled work: a callable plus the access set it
// declared at registration.
type System struct {
	Name    string
	Access  *AccessSet
	Run     func(ctx context.Context) error
}

// SystemFailure records one system's failure within a stage run.
type SystemFailure struct {
	Stage string
	System string
	Err    error
}

func (f SystemFailure) Error() string {
	return fmt.Sprintf("system %q in stage %q failed: %v", f.System, f.Stage, f.Err)
}

// ScheduleError aggregates every SystemFailure observed across the
// stages a single RunScheduler call executed.
type ScheduleError struct {
	Failures []SystemFailure
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("scheduler: %d system failure(s), first: %v", len(e.Failures), e.Failures[0])
}

type stage struct {
	name    string
	systems []*System
}

// MutationSource is the minimal surface a race-checked World exposes: a
// counter that increments once per structural mutation. *kestrel.World
// satisfies this without the scheduler package importing kestrel.
type MutationSource interface {
	MutationVersion() uint64
}

// Scheduler owns stage registration and the pool systems run on.
type Scheduler struct {
	pool   *pool.Pool
	log    *zap.Logger
	mu     sync.Mutex
	stages map[string]*stage
	queue  []string // stages enqueued via Schedule, in order

	raceCheck bool
	world     MutationSource
}

// New returns a Scheduler that submits work to p. If log is nil, a no-op
// logger is used and the scheduler logs nothing.
func New(p *pool.Pool, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		pool:   p,
		log:    log,
		stages: make(map[string]*stage),
	}
}

// EnableRaceCheck turns on a best-effort runtime check that no two
// concurrently-running systems in the same stage performed overlapping
// structural mutations against world. It is off by default: the check
// adds a mutation-counter read before and after every system and is meant
// for development builds, not steady-state running. A violation panics
// rather than returning an error, since by the time it's observed the
// World's internal state may already be inconsistent.
func (s *Scheduler) EnableRaceCheck(world MutationSource) {
	s.raceCheck = true
	s.world = world
}

// AddSystem registers sys under the named stage, appending it after any
// systems already registered there. Registration order is significant: it
// is the order conflict edges are drawn in.
func (s *Scheduler) AddSystem(stageName string, sys *System) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stages[stageName]
	if !ok {
		st = &stage{name: stageName}
		s.stages[stageName] = st
	}
	st.systems = append(st.systems, sys)
}

// Schedule appends an intent to run the named stage the next time
// RunScheduler executes. Scheduling the same stage more than once before a
// RunScheduler call runs it that many times, in the order scheduled.
func (s *Scheduler) Schedule(stageName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, stageName)
}

// RunScheduler executes every queued stage intent, in order, and returns a
// task that completes once they've all run. ctx stops new stages from
// starting once canceled, but does not abort a stage already in flight on
// the pool.
func (s *Scheduler) RunScheduler(ctx context.Context) *task.Task[struct{}] {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()

	out := task.New[struct{}]()
	out.Start()
	go func() {
		var failures []SystemFailure
		for _, name := range queue {
			if ctx.Err() != nil {
				break
			}
			st := s.lookupStage(name)
			if st == nil {
				s.log.Warn("stage scheduled with no registered systems", zap.String("stage", name))
				continue
			}
			failures = append(failures, s.runStage(ctx, st)...)
		}
		if len(failures) == 0 {
			out.Finalize(struct{}{}, nil)
			return
		}
		out.Finalize(struct{}{}, &ScheduleError{Failures: failures})
	}()
	return out
}

func (s *Scheduler) lookupStage(name string) *stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stages[name]
}

// node is one system's position in a stage's dependency DAG.
type node struct {
	sys        *System
	indegree   atomic.Int32
	successors []*node
}

// runStage builds the DAG for st's current systems and drives it to
// completion on the pool, returning any failures observed.
func (s *Scheduler) runStage(ctx context.Context, st *stage) []SystemFailure {
	nodes := make([]*node, len(st.systems))
	for i, sys := range st.systems {
		nodes[i] = &node{sys: sys}
	}
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			if nodes[i].sys.Access.conflictsWith(nodes[j].sys.Access) {
				nodes[i].successors = append(nodes[i].successors, nodes[j])
				nodes[j].indegree.Add(1)
			}
		}
	}

	var (
		mu       sync.Mutex
		failures []SystemFailure
		wg       sync.WaitGroup
		inFlight atomic.Int32
	)

	var dispatch func(n *node, sub pool.Submitter)
	dispatch = func(n *node, sub pool.Submitter) {
		wg.Add(1)
		sub.Submit(func(next pool.Submitter) {
			defer wg.Done()
			err := s.runSystem(ctx, st, n, &inFlight)
			if err != nil {
				mu.Lock()
				failures = append(failures, SystemFailure{Stage: st.name, System: n.sys.Name, Err: err})
				mu.Unlock()
				s.log.Error("system failed",
					zap.String("stage", st.name),
					zap.String("system", n.sys.Name),
					zap.Error(err))
			}
			for _, succ := range n.successors {
				if succ.indegree.Add(-1) == 0 {
					dispatch(succ, next)
				}
			}
		})
	}

	for _, n := range nodes {
		if n.indegree.Load() == 0 {
			dispatch(n, s.pool)
		}
	}
	wg.Wait()

	return failures
}

// runSystem runs n.sys, optionally wrapped in the race checker. inFlight
// tracks how many systems in this stage are concurrently executing;
// runSystem uses it to tell whether another system was still running
// while this one mutated the world.
func (s *Scheduler) runSystem(ctx context.Context, st *stage, n *node, inFlight *atomic.Int32) error {
	if !s.raceCheck || s.world == nil {
		return n.sys.Run(ctx)
	}

	before := s.world.MutationVersion()
	inFlight.Add(1)
	err := n.sys.Run(ctx)
	overlapped := inFlight.Add(-1) > 0
	after := s.world.MutationVersion()

	if after != before && overlapped {
		panic(fmt.Sprintf(
			"scheduler: race check: system %q in stage %q mutated the world while another system in the same stage was still running; "+
				"declare a conflicting access between them or move one to a later stage",
			n.sys.Name, st.name))
	}
	return err
}
