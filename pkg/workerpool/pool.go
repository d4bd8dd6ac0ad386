// Package workerpool provides a small bounded worker pool for fire-and-forget
// work, such as learning feedback emission after a save.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task is a unit of background work. Run is retried on failure up to the
// pool's retry limit.
type Task struct {
	ID  string
	Run func(ctx context.Context) error
}

// Config holds worker pool configuration
type Config struct {
	// Workers is the number of concurrent workers
	Workers int
	// QueueSize is the size of the task queue
	QueueSize int
	// MaxRetries is the maximum number of retries for failed tasks
	MaxRetries int
	// RetryDelay is the base delay between retries (linear backoff)
	RetryDelay time.Duration
	// ShutdownTimeout bounds how long Stop waits for in-flight tasks
	ShutdownTimeout time.Duration
}

// DefaultConfig returns defaults sized for best-effort side channels, not
// throughput.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		QueueSize:       256,
		MaxRetries:      2,
		RetryDelay:      200 * time.Millisecond,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Pool manages a fixed set of workers draining a bounded queue.
type Pool struct {
	config Config
	logger *zap.Logger

	taskChan chan Task
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	tasksSubmitted int64
	tasksCompleted int64
	tasksFailed    int64
	tasksRetried   int64
}

// New creates a new worker pool
func New(cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		config:   cfg,
		logger:   logger,
		taskChan: make(chan Task, cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches all workers
func (p *Pool) Start() {
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize))
}

// Submit queues a task. A full queue is an error; callers treat it as a
// dropped best-effort emission.
func (p *Pool) Submit(task Task) error {
	select {
	case <-p.ctx.Done():
		return fmt.Errorf("pool is shutting down")
	default:
	}

	select {
	case p.taskChan <- task:
		atomic.AddInt64(&p.tasksSubmitted, 1)
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// Stop drains the queue and waits for workers, bounded by ShutdownTimeout.
func (p *Pool) Stop() {
	p.logger.Info("stopping worker pool")
	close(p.taskChan)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("worker pool shutdown timed out")
	}
	p.cancel()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for task := range p.taskChan {
		p.process(id, task)
	}
}

func (p *Pool) process(workerID int, task Task) {
	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		select {
		case <-p.ctx.Done():
			atomic.AddInt64(&p.tasksFailed, 1)
			return
		default:
		}

		if lastErr = task.Run(p.ctx); lastErr == nil {
			atomic.AddInt64(&p.tasksCompleted, 1)
			return
		}

		if attempt < p.config.MaxRetries {
			atomic.AddInt64(&p.tasksRetried, 1)
			p.logger.Debug("retrying task",
				zap.String("task_id", task.ID),
				zap.Int("attempt", attempt+1),
				zap.Error(lastErr))

			select {
			case <-p.ctx.Done():
				atomic.AddInt64(&p.tasksFailed, 1)
				return
			case <-time.After(p.config.RetryDelay * time.Duration(attempt+1)):
			}
		}
	}

	atomic.AddInt64(&p.tasksFailed, 1)
	p.logger.Error("task failed",
		zap.String("task_id", task.ID),
		zap.Int("worker_id", workerID),
		zap.Error(lastErr))
}

// Stats holds current pool counters.
type Stats struct {
	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
	TasksRetried   int64
	QueueDepth     int
	QueueCapacity  int
	Workers        int
}

// Stats returns current pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		TasksSubmitted: atomic.LoadInt64(&p.tasksSubmitted),
		TasksCompleted: atomic.LoadInt64(&p.tasksCompleted),
		TasksFailed:    atomic.LoadInt64(&p.tasksFailed),
		TasksRetried:   atomic.LoadInt64(&p.tasksRetried),
		QueueDepth:     len(p.taskChan),
		QueueCapacity:  p.config.QueueSize,
		Workers:        p.config.Workers,
	}
}
