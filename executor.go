package disruptor

import (
	"runtime"

	"github.com/panjf2000/ants/v2"
)

// Executor runs processing stages. Each task is a long-lived loop that
// only returns when its stage halts, so an Executor must give every
// task its own goroutine.
type Executor interface {
	Execute(task func()) error
}

// ThreadExecutor runs each task on a new goroutine locked to its own
// OS thread.
type ThreadExecutor struct{}

// NewThreadExecutor returns a ThreadExecutor.
func NewThreadExecutor() *ThreadExecutor {
	return &ThreadExecutor{}
}

func (*ThreadExecutor) Execute(task func()) error {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		task()
	}()
	return nil
}

// AntsExecutor runs tasks on an ants goroutine pool. A stage holds its
// worker for its whole life, so the pool needs a free worker per stage.
// Create the pool with ants.WithNonblocking(true) so that Start fails
// with ants.ErrPoolOverload instead of blocking when it is too small.
type AntsExecutor struct {
	pool *ants.Pool
}

// NewAntsExecutor returns an executor submitting to pool.
func NewAntsExecutor(pool *ants.Pool) *AntsExecutor {
	return &AntsExecutor{pool: pool}
}

func (e *AntsExecutor) Execute(task func()) error {
	return e.pool.Submit(task)
}
