package scheduler

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/libetude/libetude/internal/errs"
)

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Workers is the total worker count, including the reserved real-time
	// worker when ReserveRealTime is set.
	Workers int
	// MaxQueueSize bounds the general-priority queue; 0 means unbounded.
	MaxQueueSize int
	// ReserveRealTime dedicates one worker to RealTime-flagged tasks.
	ReserveRealTime bool
}

// DefaultPoolConfig returns one worker per CPU with no bound and no
// real-time reservation.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Workers: runtime.NumCPU(), MaxQueueSize: 0, ReserveRealTime: false}
}

// Stats reports pool-wide execution counters.
type Stats struct {
	Completed       int64
	MissedDeadlines int64
}

// Pool is a bounded priority work queue feeding a fixed set of workers,
// with deadline-miss accounting and an optional reserved real-time worker.
type Pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	general  *priorityQueue
	realtime *priorityQueue
	cfg      PoolConfig

	shuttingDown bool
	wg           sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// NewPool starts cfg.Workers goroutines draining the pool's queues.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	p := &Pool{
		cfg:      cfg,
		general:  newPriorityQueue(cfg.MaxQueueSize),
		realtime: newPriorityQueue(0),
	}
	p.cond = sync.NewCond(&p.mu)

	rtWorkers := 0
	if cfg.ReserveRealTime {
		rtWorkers = 1
	}
	for i := 0; i < rtWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(true)
	}
	for i := 0; i < cfg.Workers-rtWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(false)
	}
	return p
}

// Submit enqueues t, assigning it a generated id if it has none. Returns an
// error if the general queue (non-real-time tasks only) is at capacity.
func (p *Pool) Submit(t Task) (TaskID, error) {
	if t.ID == "" {
		t.ID = TaskID(uuid.NewString())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shuttingDown {
		return "", errs.New(errs.InvalidState, "pool is shutting down")
	}

	tt := t
	var ok bool
	if tt.RealTime && p.cfg.ReserveRealTime {
		ok = p.realtime.push(&tt)
	} else {
		ok = p.general.push(&tt)
	}
	if !ok {
		return "", errs.New(errs.InvalidState, "task queue is full")
	}
	p.cond.Signal()
	return tt.ID, nil
}

// runWorker pulls tasks for this worker, preferring the real-time queue
// when realtimeOnly is true; that worker steps down to general work only
// once its own queue is empty, so audio-class tasks are never starved by a
// full general queue.
func (p *Pool) runWorker(realtimeOnly bool) {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		var t *Task
		for {
			if realtimeOnly {
				t = p.realtime.pop()
				if t == nil {
					t = p.general.pop()
				}
			} else {
				t = p.general.pop()
			}
			if t != nil || p.shuttingDown {
				break
			}
			p.cond.Wait()
		}
		p.mu.Unlock()

		if t == nil {
			return // shutting down, nothing left for this worker
		}
		p.runTask(t)
	}
}

func (p *Pool) runTask(t *Task) {
	var result any
	var err error
	if t.Fn != nil {
		result, err = t.Fn(t.Data)
	}
	end := time.Now()

	missed := t.HasDeadline() && end.After(t.Deadline)

	p.statsMu.Lock()
	p.stats.Completed++
	if missed {
		p.stats.MissedDeadlines++
	}
	p.statsMu.Unlock()

	if t.OnComplete != nil {
		t.OnComplete(result, err, missed)
	}
}

// Stats returns a snapshot of the pool's execution counters.
func (p *Pool) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// Shutdown broadcasts the shutdown condition and waits for every worker to
// drain its queue and exit, or for ctx to be done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.shuttingDown = true
	p.cond.Broadcast()
	p.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	done := make(chan struct{})
	g.Go(func() error {
		p.wg.Wait()
		close(done)
		return nil
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.InvalidState, "shutdown timed out waiting for workers to drain", ctx.Err())
	}
}
