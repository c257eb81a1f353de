package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kestrel-engine/kestrel/pool"
)

func newTestScheduler(t *testing.T) (*Scheduler, func()) {
	p := pool.New(pool.Config{Workers: 4})
	s := New(p, nil)
	return s, func() { p.Stop() }
}

// countingWorld is a minimal MutationSource for exercising the race
// checker without depending on the kestrel package.
type countingWorld struct {
	version atomic.Uint64
}

func (w *countingWorld) MutationVersion() uint64 { return w.version.Load() }
func (w *countingWorld) mutate()                 { w.version.Add(1) }

func TestIndependentSystemsRunConcurrently(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()

	var running atomic.Int32
	var maxConcurrent atomic.Int32
	barrier := make(chan struct{})
	var once sync.Once

	mk := func(name string) *System {
		return &System{
			Name:   name,
			Access: Access().Writes(name), // disjoint keys: no conflicts
			Run: func(ctx context.Context) error {
				n := running.Add(1)
				for {
					cur := maxConcurrent.Load()
					if n <= cur || maxConcurrent.CompareAndSwap(cur, n) {
						break
					}
				}
				// Hold every system until a second one has entered, so an
				// overlap is observed whenever the scheduler allows one; the
				// timeout turns a serial scheduler into a failure, not a hang.
				if n >= 2 {
					once.Do(func() { close(barrier) })
				}
				select {
				case <-barrier:
				case <-time.After(time.Second):
				}
				running.Add(-1)
				return nil
			},
		}
	}

	s.AddSystem("update", mk("a"))
	s.AddSystem("update", mk("b"))
	s.AddSystem("update", mk("c"))
	s.Schedule("update")

	done := s.RunScheduler(context.Background())
	done.Wait()

	if maxConcurrent.Load() < 2 {
		t.Fatalf("expected at least 2 systems to overlap, observed max concurrency %d", maxConcurrent.Load())
	}
}

func TestConflictingSystemsRunInRegistrationOrder(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()

	var order []string
	var mu sync.Mutex
	record := func(name string) { mu.Lock(); order = append(order, name); mu.Unlock() }

	s.AddSystem("update", &System{
		Name:   "writer",
		Access: Access().Writes("position"),
		Run:    func(ctx context.Context) error { time.Sleep(time.Millisecond); record("writer"); return nil },
	})
	s.AddSystem("update", &System{
		Name:   "reader",
		Access: Access().Reads("position"),
		Run:    func(ctx context.Context) error { record("reader"); return nil },
	})
	s.Schedule("update")

	s.RunScheduler(context.Background()).Wait()

	if len(order) != 2 || order[0] != "writer" || order[1] != "reader" {
		t.Fatalf("expected [writer reader] due to the declared conflict, got %v", order)
	}
}

func TestFailureDoesNotCancelSuccessors(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()

	var ranSuccessor atomic.Bool
	boom := errors.New("boom")

	s.AddSystem("update", &System{
		Name:   "failing",
		Access: Access().Writes("shared"),
		Run:    func(ctx context.Context) error { return boom },
	})
	s.AddSystem("update", &System{
		Name:   "after",
		Access: Access().Writes("shared"),
		Run:    func(ctx context.Context) error { ranSuccessor.Store(true); return nil },
	})
	s.Schedule("update")

	_, err := s.RunScheduler(context.Background()).Result()
	if err == nil {
		t.Fatal("expected an aggregated ScheduleError")
	}
	var schedErr *ScheduleError
	if !errors.As(err, &schedErr) {
		t.Fatalf("expected *ScheduleError, got %T", err)
	}
	if len(schedErr.Failures) != 1 || schedErr.Failures[0].System != "failing" {
		t.Fatalf("unexpected failures: %+v", schedErr.Failures)
	}
	if !ranSuccessor.Load() {
		t.Fatal("expected the conflicting successor to still run despite the failure")
	}
}

func TestStagesRunInScheduledOrder(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()

	var order []string
	var mu sync.Mutex
	record := func(name string) { mu.Lock(); order = append(order, name); mu.Unlock() }

	s.AddSystem("early", &System{Name: "e", Access: Access(), Run: func(ctx context.Context) error { record("early"); return nil }})
	s.AddSystem("late", &System{Name: "l", Access: Access(), Run: func(ctx context.Context) error { record("late"); return nil }})

	s.Schedule("early")
	s.Schedule("late")

	s.RunScheduler(context.Background()).Wait()

	if len(order) != 2 || order[0] != "early" || order[1] != "late" {
		t.Fatalf("expected stages to run in scheduled order, got %v", order)
	}
}

func TestUnknownStageIsSkipped(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()

	s.Schedule("never-registered")
	_, err := s.RunScheduler(context.Background()).Result()
	if err != nil {
		t.Fatalf("expected no error for an unregistered stage, got %v", err)
	}
}

func TestRaceCheckPanicsOnConcurrentMutation(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()

	world := &countingWorld{}
	s.EnableRaceCheck(world)

	started := make(chan struct{}, 2)
	proceed := make(chan struct{})

	// Disjoint declared access: the scheduler runs these concurrently, but
	// both mutate the shared world once released, which is never safe
	// regardless of what they declared.
	mk := func(name string) *System {
		return &System{
			Name:   name,
			Access: Access().Writes(name),
			Run: func(ctx context.Context) error {
				started <- struct{}{}
				<-proceed
				world.mutate()
				return nil
			},
		}
	}
	s.AddSystem("update", mk("a"))
	s.AddSystem("update", mk("b"))
	s.Schedule("update")

	go func() {
		<-started
		<-started
		close(proceed)
	}()

	defer func() {
		if recover() == nil {
			t.Fatal("expected the race checker to panic on concurrent mutation")
		}
	}()
	s.RunScheduler(context.Background()).Wait()
}

func TestRaceCheckAllowsSequentialConflictingMutation(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()

	world := &countingWorld{}
	s.EnableRaceCheck(world)

	s.AddSystem("update", &System{
		Name:   "writer",
		Access: Access().Writes("shared"),
		Run:    func(ctx context.Context) error { world.mutate(); return nil },
	})
	s.AddSystem("update", &System{
		Name:   "also-writer",
		Access: Access().Writes("shared"), // conflicts with "writer": runs after it, never concurrently
		Run:    func(ctx context.Context) error { world.mutate(); return nil },
	})
	s.Schedule("update")

	_, err := s.RunScheduler(context.Background()).Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRaceCheckDisabledByDefaultDoesNotPanic(t *testing.T) {
	s, cleanup := newTestScheduler(t)
	defer cleanup()

	// Race checking is off unless EnableRaceCheck is called; concurrent
	// mutation should pass through uninstrumented.
	world := &countingWorld{}
	s.AddSystem("update", &System{
		Name:   "a",
		Access: Access().Writes("a"),
		Run:    func(ctx context.Context) error { world.mutate(); return nil },
	})
	s.AddSystem("update", &System{
		Name:   "b",
		Access: Access().Writes("b"),
		Run:    func(ctx context.Context) error { world.mutate(); return nil },
	})
	s.Schedule("update")

	_, err := s.RunScheduler(context.Background()).Result()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
