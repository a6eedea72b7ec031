package pipeline

import "context"

// Task is a running loop. It can be awaited independently of its sibling.
type Task struct {
	name string
	done chan struct{}
	err  error
}

func startTask(ctx context.Context, name string, fn func(context.Context) error) *Task {
	t := &Task{name: name, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.err = fn(ctx)
	}()
	return t
}

// Name identifies the loop.
func (t *Task) Name() string { return t.name }

// Done is closed once the loop has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the loop returns and reports its error. A loop ended
// by context cancellation returns nil.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Err reports the loop error without blocking; nil while still running.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}
