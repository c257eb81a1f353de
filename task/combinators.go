package task

import "golang.org/x/sync/errgroup"

// WhenAllReady returns a Task that becomes ready once every task in tasks
// has completed. Results and errors are discarded; callers that need them
// should use WhenAll2..WhenAll4 or WhenAllSlice instead. A call with no
// tasks completes immediately.
func WhenAllReady(tasks ...*Task[struct{}]) *Task[struct{}] {
	return whenAllReadyAny(toAny(tasks))
}

func toAny[T any](tasks []*Task[T]) []interface{ Wait() } {
	out := make([]interface{ Wait() }, len(tasks))
	for i, t := range tasks {
		out[i] = t
	}
	return out
}

func whenAllReadyAny(tasks []interface{ Wait() }) *Task[struct{}] {
	out := New[struct{}]()
	out.Start()
	go func() {
		for _, t := range tasks {
			t.Wait()
		}
		out.Finalize(struct{}{}, nil)
	}()
	return out
}

// WhenAllReadySlice is the range form of WhenAllReady for a homogeneous
// slice of tasks whose results the caller doesn't need.
func WhenAllReadySlice[T any](tasks []*Task[T]) *Task[struct{}] {
	waiters := make([]interface{ Wait() }, len(tasks))
	for i, t := range tasks {
		waiters[i] = t
	}
	return whenAllReadyAny(waiters)
}

// pair2 through pair4 hold the aggregated results of WhenAll2..WhenAll4.
type pair2[T1, T2 any] struct {
	V1 T1
	V2 T2
}

type pair3[T1, T2, T3 any] struct {
	V1 T1
	V2 T2
	V3 T3
}

type pair4[T1, T2, T3, T4 any] struct {
	V1 T1
	V2 T2
	V3 T3
	V4 T4
}

// WhenAll2 waits on two tasks and returns a task carrying both results. If
// either task errors, the returned task carries the first error observed in
// argument order; the other task's result is still populated.
func WhenAll2[T1, T2 any](a *Task[T1], b *Task[T2]) *Task[pair2[T1, T2]] {
	out := New[pair2[T1, T2]]()
	out.Start()
	go func() {
		v1, err1 := a.Result()
		v2, err2 := b.Result()
		err := err1
		if err == nil {
			err = err2
		}
		out.Finalize(pair2[T1, T2]{V1: v1, V2: v2}, err)
	}()
	return out
}

// WhenAll3 is WhenAll2 for three tasks.
func WhenAll3[T1, T2, T3 any](a *Task[T1], b *Task[T2], c *Task[T3]) *Task[pair3[T1, T2, T3]] {
	out := New[pair3[T1, T2, T3]]()
	out.Start()
	go func() {
		v1, err1 := a.Result()
		v2, err2 := b.Result()
		v3, err3 := c.Result()
		err := firstError(err1, err2, err3)
		out.Finalize(pair3[T1, T2, T3]{V1: v1, V2: v2, V3: v3}, err)
	}()
	return out
}

// WhenAll4 is WhenAll2 for four tasks.
func WhenAll4[T1, T2, T3, T4 any](a *Task[T1], b *Task[T2], c *Task[T3], d *Task[T4]) *Task[pair4[T1, T2, T3, T4]] {
	out := New[pair4[T1, T2, T3, T4]]()
	out.Start()
	go func() {
		v1, err1 := a.Result()
		v2, err2 := b.Result()
		v3, err3 := c.Result()
		v4, err4 := d.Result()
		err := firstError(err1, err2, err3, err4)
		out.Finalize(pair4[T1, T2, T3, T4]{V1: v1, V2: v2, V3: v3, V4: v4}, err)
	}()
	return out
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// WhenAllSlice waits on a homogeneous slice of tasks and returns a task
// carrying their results in the same order, the range form the source
// engine provides via FastVector<Task<T>> overloads of WhenAll.
func WhenAllSlice[T any](tasks []*Task[T]) *Task[[]T] {
	out := New[[]T]()
	out.Start()
	go func() {
		results := make([]T, len(tasks))
		errs := make([]error, len(tasks))

		var g errgroup.Group
		for i, t := range tasks {
			i, t := i, t
			g.Go(func() error {
				v, err := t.Result()
				results[i] = v
				errs[i] = err
				return nil // collected by index below, not by errgroup's own first-error
			})
		}
		_ = g.Wait()

		out.Finalize(results, firstError(errs...))
	}()
	return out
}

// SyncWait blocks the calling goroutine until t completes and returns its
// result, the synchronous escape hatch out of the async world used at
// program entry points and in tests.
func SyncWait[T any](t *Task[T]) (T, error) {
	return t.Result()
}
