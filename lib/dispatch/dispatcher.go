package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/TecharoHQ/powhash/lib/digest"
)

var (
	ErrClosed    = errors.New("dispatch: dispatcher is closed")
	ErrQueueFull = errors.New("dispatch: queue is full")
	ErrNilJob    = errors.New("dispatch: job is nil")
)

type Options struct {
	// Workers is the number of jobs that can run at once. Zero or less means
	// runtime.GOMAXPROCS(0): hashing is CPU bound, more workers only add
	// contention.
	Workers int

	// MaxPending bounds the number of queued jobs that no worker has picked
	// up yet. Zero or less means unbounded.
	MaxPending int

	// Engine computes the digests. Nil means digest.Default().
	Engine *digest.Engine

	Logger *slog.Logger
}

// Stats is a point in time snapshot of the dispatcher.
type Stats struct {
	Workers int `json:"workers"`
	Busy    int `json:"busy"`
	Idle    int `json:"idle"`
	Pending int `json:"pending"`
}

// Dispatcher owns a fixed pool of worker goroutines and a FIFO queue of
// pending jobs. Jobs start in submission order; they may finish in any order.
type Dispatcher struct {
	engine     *digest.Engine
	lg         *slog.Logger
	workers    int
	maxPending int

	lock    sync.Mutex
	cond    *sync.Cond
	pending []*Job
	busy    int
	closed  bool
	wg      sync.WaitGroup
}

// New starts a dispatcher and its workers. Call Close to stop them.
func New(opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	if opts.Engine == nil {
		opts.Engine = digest.Default()
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	d := &Dispatcher{
		engine:     opts.Engine,
		lg:         opts.Logger.With("component", "dispatch"),
		workers:    opts.Workers,
		maxPending: opts.MaxPending,
	}
	d.cond = sync.NewCond(&d.lock)

	d.wg.Add(opts.Workers)
	for i := range opts.Workers {
		go d.worker(i)
	}

	return d
}

// Submit queues j and returns without waiting for it to run. On error the
// job was not queued and its sink will never be called.
func (d *Dispatcher) Submit(j *Job) error {
	if j == nil {
		return ErrNilJob
	}

	d.lock.Lock()
	defer d.lock.Unlock()

	if d.closed {
		jobsRejected.WithLabelValues("closed").Inc()
		return ErrClosed
	}

	if d.maxPending > 0 && len(d.pending) >= d.maxPending {
		jobsRejected.WithLabelValues("queue_full").Inc()
		return fmt.Errorf("%w: %d jobs pending", ErrQueueFull, len(d.pending))
	}

	if err := j.advance(Created, Queued); err != nil {
		jobsRejected.WithLabelValues("reused").Inc()
		return fmt.Errorf("%w: %w", ErrJobReused, err)
	}

	j.SubmittedAt = time.Now()
	d.pending = append(d.pending, j)
	pendingJobs.Inc()
	jobsSubmitted.WithLabelValues(j.Variant.String()).Inc()
	d.cond.Signal()

	d.lg.Debug("job queued", "job", j.ID, "variant", j.Variant, "size", j.Len(), "pending", len(d.pending))

	return nil
}

// next blocks until there is a job to run and takes it off the queue. It
// returns nil once the dispatcher is closed and the queue is drained.
func (d *Dispatcher) next() *Job {
	d.lock.Lock()
	defer d.lock.Unlock()

	for len(d.pending) == 0 {
		if d.closed {
			return nil
		}
		d.cond.Wait()
	}

	j := d.pending[0]
	d.pending[0] = nil
	d.pending = d.pending[1:]
	d.busy++

	pendingJobs.Dec()
	busyWorkers.Inc()

	return j
}

func (d *Dispatcher) done() {
	d.lock.Lock()
	d.busy--
	d.lock.Unlock()

	busyWorkers.Dec()
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		j := d.next()
		if j == nil {
			return
		}

		d.execute(id, j)
		d.done()
	}
}

func (d *Dispatcher) execute(worker int, j *Job) {
	queueWait.WithLabelValues(j.Variant.String()).Observe(float64(time.Since(j.SubmittedAt).Milliseconds()))

	if err := j.advance(Queued, Running); err != nil {
		// Submit is the only way into the queue, so this is a bug.
		d.lg.Error("[unexpected] job in queue is not queued", "job", j.ID, "err", err)
	}

	res := j.run(d.engine)

	if err := j.advance(Running, Completed); err != nil {
		d.lg.Error("[unexpected] running job is not running", "job", j.ID, "err", err)
	}

	outcome := "ok"
	if !res.OK() {
		outcome = "error"
		d.lg.Error("job failed", "job", j.ID, "worker", worker, "err", res.Err)
	}
	jobsCompleted.WithLabelValues(j.Variant.String(), outcome).Inc()

	d.deliver(j, res)

	d.lg.Debug("job completed", "job", j.ID, "worker", worker, "outcome", outcome, "took", time.Since(j.SubmittedAt))
}

// deliver hands res to the job's sink. Whatever the sink does, including
// panicking, stays contained to this job.
func (d *Dispatcher) deliver(j *Job, res Result) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("panic: %v", r)
			}
			reportFault(&SinkFault{JobID: j.ID, Err: err})
		}
	}()

	sink := j.sink
	j.sink = nil

	if err := sink.Complete(res); err != nil {
		reportFault(&SinkFault{JobID: j.ID, Err: err})
	}
}

// Stats returns the current worker and queue occupancy.
func (d *Dispatcher) Stats() Stats {
	d.lock.Lock()
	defer d.lock.Unlock()

	return Stats{
		Workers: d.workers,
		Busy:    d.busy,
		Idle:    d.workers - d.busy,
		Pending: len(d.pending),
	}
}

// Engine returns the engine jobs are computed with.
func (d *Dispatcher) Engine() *digest.Engine {
	return d.engine
}

// Close stops accepting jobs, waits for every queued and running job to
// resolve its sink, then stops the workers. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.lock.Lock()
	if d.closed {
		d.lock.Unlock()
		d.wg.Wait()
		return
	}
	d.closed = true
	d.cond.Broadcast()
	d.lock.Unlock()

	d.wg.Wait()
	d.lg.Debug("dispatcher closed")
}
