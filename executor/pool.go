package executor

import (
	"runtime"
	"sync"
	"time"
)

// Task is a unit of work submitted to the pool. It receives the Worker
// currently running it so it can push follow-up work directly onto that
// worker's own deque instead of round-tripping through the global queue.
type Task func(w *Worker)

// Worker owns one deque and runs tasks popped from it, the pool's global
// queue, or stolen from a peer. The closure captured by each worker's
// goroutine stands in for the thread_local pointer an equivalent C++
// worker thread would keep to its own queue.
type Worker struct {
	id    int
	deque *Deque[Task]
	pool  *Pool
}

// Submit pushes a follow-up task onto this worker's own deque. Call this
// from inside a running Task, not from outside the pool.
func (w *Worker) Submit(t Task) {
	w.deque.Push(t)
}

// Pool is a fixed-size work-stealing executor.
type Pool struct {
	workers []*Worker
	global  *GlobalQueue[Task]
	wg      sync.WaitGroup
	stop    chan struct{}
}

// New starts a pool of n workers. n <= 0 selects runtime.NumCPU().
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p := &Pool{
		global: NewGlobalQueue[Task](),
		stop:   make(chan struct{}),
	}
	p.workers = make([]*Worker, n)
	for i := range p.workers {
		p.workers[i] = &Worker{id: i, deque: NewDeque[Task](), pool: p}
	}
	p.wg.Add(n)
	for _, w := range p.workers {
		go p.runWorker(w)
	}
	return p
}

// Submit enqueues a task on the shared global queue, for callers outside
// the pool. Tasks running inside the pool that want to fan out should use
// the *Worker passed to them instead. Submit reports false once Shutdown
// has drained the queues and signalled the workers to stop; the task is
// not enqueued. Tasks submitted while Shutdown is still draining are
// accepted.
func (p *Pool) Submit(t Task) bool {
	select {
	case <-p.stop:
		return false
	default:
	}
	p.global.Push(t)
	return true
}

func (p *Pool) runWorker(w *Worker) {
	defer p.wg.Done()
	for {
		if t, ok := w.deque.Pop(); ok {
			t(w)
			continue
		}
		if t, ok := p.global.TryPop(); ok {
			t(w)
			continue
		}
		if t, ok := p.steal(w); ok {
			t(w)
			continue
		}
		select {
		case <-p.stop:
			return
		case <-time.After(time.Millisecond):
		}
	}
}

// steal tries every peer once, starting just after w in the ring, so
// repeated failed rounds don't all hammer the same neighbor.
func (p *Pool) steal(w *Worker) (Task, bool) {
	n := len(p.workers)
	for i := 1; i < n; i++ {
		peer := p.workers[(w.id+i)%n]
		if t, ok := peer.deque.Steal(); ok {
			return t, true
		}
	}
	var zero Task
	return zero, false
}

// Shutdown blocks until every deque and the global queue have drained,
// then signals workers to exit and waits for them to join.
func (p *Pool) Shutdown() {
	for !p.allEmpty() {
		time.Sleep(time.Millisecond)
	}
	close(p.stop)
	p.wg.Wait()
}

func (p *Pool) allEmpty() bool {
	if p.global.Len() > 0 {
		return false
	}
	for _, w := range p.workers {
		if w.deque.Len() > 0 {
			return false
		}
	}
	return true
}
