package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/natours/tour-booking/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 64
)

// ErrPoolClosed is returned by Do once the pool has stopped accepting work.
var ErrPoolClosed = errors.New("worker pool closed")

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// Pool runs CPU-bound jobs on a fixed set of workers so a burst of requests
// cannot start more concurrent bcrypt computations than there are workers.
type Pool struct {
	jobs    chan job
	workers int
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

// NewPool creates a Pool with numWorkers workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewPool(numWorkers int, log zerolog.Logger) *Pool {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	return &Pool{
		jobs:    make(chan job, channelBuffer),
		workers: numWorkers,
		log:     log,
	}
}

// Start launches all worker goroutines. Cancelling ctx stops intake: Do
// returns ErrPoolClosed from then on, while jobs already queued still run
// before the workers return.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
	go func() {
		<-ctx.Done()
		p.stop()
	}()
}

// stop closes the queue. Senders hold the read lock, so no Do can be
// mid-send when the channel closes.
func (p *Pool) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.jobs)
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Do runs fn on a worker and waits for its result. It returns ctx.Err() if ctx
// ends first, whether the job was still queued or already running.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	if err := p.enqueue(j); err != nil {
		return err
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) enqueue(j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- j:
		metrics.HashPoolQueueDepth.Inc()
		return nil
	case <-j.ctx.Done():
		return j.ctx.Err()
	}
}

func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	for j := range p.jobs {
		metrics.HashPoolQueueDepth.Dec()
		// The caller may have given up while the job sat in the queue.
		if err := j.ctx.Err(); err != nil {
			j.done <- err
			continue
		}
		j.done <- p.run(id, j)
	}
}

func (p *Pool) run(id int, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker_id", id).Interface("panic", r).Msg("worker job panicked")
			err = fmt.Errorf("worker job panicked: %v", r)
		}
	}()
	return j.fn(j.ctx)
}
