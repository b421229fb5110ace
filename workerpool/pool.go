package workerpool

import (
	"errors"
	"sync"

	"github.com/yadunandan004/dblogger/logerr"
)

const (
	MinWorkers = 1
	MaxWorkers = 256
)

var ErrStopped = errors.New("worker pool is stopped")

// Pool runs submitted tasks on a fixed set of goroutines fed by one unbounded FIFO queue.
type Pool struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	drained  *sync.Cond
	queue    []func()
	inFlight int
	stopped  bool
	wg       sync.WaitGroup
	size     int
}

func New(workers int) (*Pool, error) {
	if workers < MinWorkers || workers > MaxWorkers {
		return nil, logerr.Errorf(logerr.KindInvalidArgument, "workerpool.new", "worker count %d outside [%d, %d]", workers, MinWorkers, MaxWorkers)
	}
	p := &Pool{size: workers}
	p.notEmpty = sync.NewCond(&p.mu)
	p.drained = sync.NewCond(&p.mu)
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p, nil
}

func (p *Pool) Size() int {
	return p.size
}

// Submit enqueues task without blocking on capacity.
func (p *Pool) Submit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return ErrStopped
	}
	p.queue = append(p.queue, task)
	p.notEmpty.Signal()
	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.stopped {
			p.notEmpty.Wait()
		}
		if p.stopped {
			p.mu.Unlock()
			return
		}
		task := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.inFlight++
		p.mu.Unlock()

		p.run(task)

		p.mu.Lock()
		p.inFlight--
		if p.inFlight == 0 && len(p.queue) == 0 {
			p.drained.Broadcast()
		}
		p.mu.Unlock()
	}
}

// run keeps a panicking task from taking the worker down with it.
func (p *Pool) run(task func()) {
	defer func() { _ = recover() }()
	task()
}

// WaitForCompletion blocks until the queue is empty and no task is running.
func (p *Pool) WaitForCompletion() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for (len(p.queue) > 0 || p.inFlight > 0) && !p.stopped {
		p.drained.Wait()
	}
}

// IsQueueEmpty reports the same condition WaitForCompletion waits for.
func (p *Pool) IsQueueEmpty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) == 0 && p.inFlight == 0
}

// Pending counts queued plus running tasks.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) + p.inFlight
}

// Stop wakes every worker and waits for them to exit. Queued tasks that have
// not started are discarded and their count is returned.
func (p *Pool) Stop() int {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return 0
	}
	p.stopped = true
	dropped := len(p.queue)
	p.queue = nil
	p.notEmpty.Broadcast()
	p.drained.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	return dropped
}
