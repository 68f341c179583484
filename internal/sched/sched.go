// Package sched implements cx's pipelined job scheduler: a single
// lazily-started worker pool shared by every builder in a build, a
// shared pending queue, and one Batch (producer handle) per builder
// with its own private done queue. Job completion order is unspecified
// relative to submission order; Batch.Receive only guarantees it
// returns nil once every job that Batch has sent has completed.
package sched

import "sync"

// Job is anything the pool can run. Jobs are plain variants
// distinguished by their concrete type, not by an explicit tag field —
// CompileJob and LibraryAssemblyJob in package builder both satisfy it.
type Job interface {
	Run()
}

type queued struct {
	job   Job
	batch *Batch
}

// Pool is a process-wide (or test-scoped) thread pool. It starts its
// workers when a Batch is created while none are running (not on the
// first Send) and tears them down when the last live Batch closes.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  []queued
	workers  int
	started  bool
	refCount int
}

// NewPool returns an unstarted pool sized to n workers (started lazily).
func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{workers: n}
}

// NewBatch returns a new producer handle, starting the pool's workers
// if this is the first live batch.
func (p *Pool) NewBatch() *Batch {
	p.mu.Lock()
	if !p.started {
		p.cond = sync.NewCond(&p.mu)
		p.started = true
		for i := 0; i < p.workers; i++ {
			go p.worker()
		}
	}
	p.refCount++
	p.mu.Unlock()
	b := &Batch{pool: p}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (p *Pool) worker() {
	for {
		p.mu.Lock()
		for len(p.pending) == 0 {
			p.cond.Wait()
		}
		q := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()

		if q.job == nil { // terminator
			return
		}
		q.job.Run()

		b := q.batch
		b.mu.Lock()
		b.done = append(b.done, q.job)
		b.completed++
		b.cond.Signal()
		b.mu.Unlock()
	}
}

// send pushes job onto the shared pending queue on behalf of batch.
func (p *Pool) send(batch *Batch, job Job) {
	p.mu.Lock()
	p.pending = append(p.pending, queued{job, batch})
	p.cond.Signal()
	p.mu.Unlock()
}

// release drops one reference to the pool; the last releaser tears the
// workers down by sending one terminator per worker.
func (p *Pool) release() {
	p.mu.Lock()
	p.refCount--
	if p.refCount == 0 {
		for i := 0; i < p.workers; i++ {
			p.pending = append(p.pending, queued{})
		}
		p.cond.Broadcast()
		p.started = false
	}
	p.mu.Unlock()
}

// Batch is a single producer's handle onto the shared pool: a private
// done queue plus the bookkeeping Receive needs to know when it has
// drained everything this batch has sent.
type Batch struct {
	pool      *Pool
	mu        sync.Mutex
	cond      *sync.Cond
	done      []Job
	sent      int
	completed int
	closed    bool
}

// Send enqueues job on the shared pool, remembering this batch as its producer.
func (b *Batch) Send(job Job) {
	b.mu.Lock()
	b.sent++
	b.mu.Unlock()
	b.pool.send(b, job)
}

// Receive blocks until a finished job is available, or returns nil once
// every job this batch has sent has completed and been drained.
func (b *Batch) Receive() Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.done) == 0 {
		if b.completed >= b.sent {
			return nil
		}
		b.cond.Wait()
	}
	j := b.done[0]
	b.done = b.done[1:]
	return j
}

// Discard drops any completed-but-undrained jobs.
func (b *Batch) Discard() {
	b.mu.Lock()
	b.done = nil
	b.mu.Unlock()
}

// Close releases this batch's reference to the pool. The last batch to
// close tears the pool's workers down.
func (b *Batch) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()
	b.pool.release()
}
