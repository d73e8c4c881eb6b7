package oss

import "sync"

// TickQueue holds work deferred to the next update of the owning game loop.
// Completions scheduled from inside a task run on the following tick, never the
// current one.
type TickQueue struct {
	sync.Mutex
	tasks []func()
}

func NewTickQueue() *TickQueue {
	return &TickQueue{}
}

func (q *TickQueue) ExecuteNextTick(fn func()) {
	if fn == nil {
		return
	}
	q.Lock()
	q.tasks = append(q.tasks, fn)
	q.Unlock()
}

// Tick runs the tasks that were queued before the call and returns how many ran.
func (q *TickQueue) Tick() int {
	q.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.Unlock()

	for _, fn := range tasks {
		fn()
	}
	return len(tasks)
}

func (q *TickQueue) Pending() int {
	q.Lock()
	defer q.Unlock()
	return len(q.tasks)
}

// Drain ticks until the queue is empty or maxTicks ticks have run. It returns the
// number of ticks that ran work.
func (q *TickQueue) Drain(maxTicks int) int {
	ticks := 0
	for ticks < maxTicks && q.Pending() > 0 {
		q.Tick()
		ticks++
	}
	return ticks
}
