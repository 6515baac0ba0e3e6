package workers

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"salespilot/internal/observability"
)

// Job is one unit of keyed work. Jobs sharing a key run on the same
// worker, so they execute in submission order.
type Job struct {
	Key string
	Run func(ctx context.Context)
}

// DispatcherConfig holds configuration for the keyed dispatcher.
type DispatcherConfig struct {
	// NumWorkers is the number of concurrent workers to run.
	NumWorkers int

	// QueueSize is the per-worker queue buffer. If a worker's queue is
	// full, Submit() will block.
	QueueSize int

	// DrainTimeout is the maximum time to wait for in-flight jobs to
	// complete during graceful shutdown.
	DrainTimeout time.Duration
}

// DefaultDispatcherConfig returns sensible defaults for a dispatcher.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		NumWorkers:   8,
		QueueSize:    64,
		DrainTimeout: 30 * time.Second,
	}
}

// Dispatcher routes jobs to workers by hashing the job key, giving
// per-key ordering with pool-wide concurrency.
type Dispatcher struct {
	config DispatcherConfig
	logger *observability.Logger

	queues []chan Job
	wg     sync.WaitGroup

	mu       sync.Mutex
	started  bool
	draining bool
	stopped  bool
	cancelFn context.CancelFunc
}

func NewDispatcher(config DispatcherConfig, logger *observability.Logger) *Dispatcher {
	defaults := DefaultDispatcherConfig()
	if config.NumWorkers <= 0 {
		config.NumWorkers = defaults.NumWorkers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = defaults.DrainTimeout
	}

	queues := make([]chan Job, config.NumWorkers)
	for i := range queues {
		queues[i] = make(chan Job, config.QueueSize)
	}

	return &Dispatcher{
		config: config,
		logger: logger,
		queues: queues,
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("dispatcher already started")
	}
	if d.stopped {
		return fmt.Errorf("dispatcher already stopped")
	}

	workerCtx, cancel := context.WithCancel(ctx)
	d.cancelFn = cancel
	d.started = true

	for i := 0; i < d.config.NumWorkers; i++ {
		d.wg.Add(1)
		go d.worker(workerCtx, i)
	}

	d.logger.Info(ctx, fmt.Sprintf("Started %d dispatcher workers", d.config.NumWorkers))
	return nil
}

// Submit routes a job to the worker owning its key. Blocks when that
// worker's queue is full, or returns early if ctx is cancelled.
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher not started")
	}
	if d.draining || d.stopped {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher is shutting down")
	}
	d.mu.Unlock()

	queue := d.queues[keyIndex(job.Key, len(d.queues))]
	select {
	case queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain stops accepting new jobs and waits for queued jobs to complete.
func (d *Dispatcher) Drain(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher not started")
	}
	if d.draining {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already draining")
	}
	d.draining = true
	d.mu.Unlock()

	d.logger.Info(ctx, "Draining dispatcher, waiting for in-flight jobs")
	for _, queue := range d.queues {
		close(queue)
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	drainCtx, cancel := context.WithTimeout(ctx, d.config.DrainTimeout)
	defer cancel()

	select {
	case <-done:
		d.logger.Info(ctx, "Successfully drained dispatcher")
		return nil
	case <-drainCtx.Done():
		d.logger.Warn(ctx, "Drain timeout exceeded, forcing shutdown")
		d.Stop()
		return fmt.Errorf("drain timeout exceeded")
	}
}

// Stop immediately stops all workers.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true

	if d.cancelFn != nil {
		d.cancelFn()
	}
	if !d.draining {
		for _, queue := range d.queues {
			close(queue)
		}
	}
}

func (d *Dispatcher) worker(ctx context.Context, workerID int) {
	defer d.wg.Done()

	workerCtx := observability.WithFields(ctx,
		observability.Field{Key: "worker_id", Value: workerID},
	)
	queue := d.queues[workerID]

	for {
		select {
		case <-ctx.Done():
			d.logger.Info(workerCtx, fmt.Sprintf("Worker %d stopping: context cancelled", workerID))
			return
		case job, ok := <-queue:
			if !ok {
				d.logger.Info(workerCtx, fmt.Sprintf("Worker %d stopping: queue closed", workerID))
				return
			}
			jobCtx := observability.WithFields(workerCtx,
				observability.Field{Key: "job_key", Value: job.Key},
			)
			job.Run(jobCtx)
		}
	}
}

func keyIndex(key string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}
