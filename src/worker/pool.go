package worker

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
)

// Job is one unit of work. It runs on a pool goroutine.
type Job func(ctx context.Context)

// PanicHandler is told about a job that panicked. The pool keeps running.
type PanicHandler func(recovered any)

// Pool is a fixed-size worker pool with a bounded input queue (strict back-pressure).
type Pool struct {
	jobs    chan job
	wg      sync.WaitGroup
	onPanic PanicHandler

	mu     sync.Mutex
	closed bool
}

type job struct {
	ctx context.Context
	run Job
}

// New creates a worker pool. Size defaults to NumCPU when size<=0; queue defaults to 1 slot.
func New(size, queue int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = 1
	}
	p := &Pool{jobs: make(chan job, queue)}
	p.start(size)
	return p
}

// OnPanic installs a handler for panicking jobs. Call before submitting work.
func (p *Pool) OnPanic(h PanicHandler) { p.onPanic = h }

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for j := range p.jobs {
				p.runJob(id, j)
			}
		}(i)
	}
}

func (p *Pool) runJob(id int, j job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %d: job panicked: %v", id, r)
			if p.onPanic != nil {
				p.onPanic(r)
			}
		}
	}()
	if err := j.ctx.Err(); err != nil {
		log.Printf("Worker %d: skipping job, context done: %v", id, err)
		return
	}
	j.run(j.ctx)
}

// Submit enqueues a job if the queue has room. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, run Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || run == nil {
		return false
	}
	select {
	case p.jobs <- job{ctx: ctx, run: run}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining queued work.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// PanicError converts a recovered value into an error.
func PanicError(recovered any) error {
	if err, ok := recovered.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", recovered)
}
