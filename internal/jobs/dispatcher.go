package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Store is the job queue the dispatcher drains. Claims are conditional so several dispatchers can share a queue.
type Store interface {
	EnqueueJob(ctx context.Context, job *Job) error
	// ClaimJobs marks up to limit due jobs as running for workerID until leaseUntil and increments their attempts.
	// Running jobs whose lease ended before now are claimable again until they expire.
	ClaimJobs(ctx context.Context, workerID string, now, leaseUntil time.Time, limit int) ([]Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID, workerID string, now time.Time) error
	RetryJob(ctx context.Context, id uuid.UUID, workerID string, runAt time.Time, lastErr string, now time.Time) error
	FailJob(ctx context.Context, id uuid.UUID, workerID string, lastErr string, now time.Time) error
	ExpireJobs(ctx context.Context, now time.Time) (int64, error)
	PurgeJobs(ctx context.Context, finishedBefore time.Time) (int64, error)
}

type Config struct {
	PollInterval time.Duration
	BatchSize    int
	RetryDelay   time.Duration
	Lease        time.Duration
	Retention    time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		BatchSize:    20,
		RetryDelay:   30 * time.Second,
		Lease:        time.Minute,
		Retention:    7 * 24 * time.Hour,
	}
}

type Dispatcher struct {
	store     Store
	publisher Publisher
	clock     clockwork.Clock
	config    Config
	logger    *slog.Logger
	workerID  string

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewDispatcher(store Store, publisher Publisher, clock clockwork.Clock, cfg Config, logger *slog.Logger) (*Dispatcher, error) {
	workerID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate worker id: %w", err)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Dispatcher{
		store:     store,
		publisher: publisher,
		clock:     clock,
		config:    cfg,
		logger:    logger.With(slog.String("worker_id", workerID)),
		workerID:  workerID,
		stopChan:  make(chan struct{}),
	}, nil
}

func (d *Dispatcher) WorkerID() string {
	return d.workerID
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already running")
	}
	d.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.run(ctx)

	d.logger.Info("job dispatcher started",
		slog.Duration("poll_interval", d.config.PollInterval),
		slog.Int("batch_size", d.config.BatchSize))
	return nil
}

func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher not running")
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopChan)
	d.wg.Wait()

	d.logger.Info("job dispatcher stopped")
	return nil
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	ticker := d.clock.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		case <-ticker.Chan():
			d.RunOnce(ctx)
		}
	}
}

// RunOnce performs one poll: expire stale jobs, publish a batch of due jobs, then drop old finished ones.
// It returns the number of jobs it claimed.
func (d *Dispatcher) RunOnce(ctx context.Context) int {
	now := d.clock.Now().UTC()

	if expired, err := d.store.ExpireJobs(ctx, now); err != nil {
		d.logger.Error("failed to expire jobs", slog.String("error", err.Error()))
	} else if expired > 0 {
		d.logger.Info("expired jobs", slog.Int64("count", expired))
	}

	claimed, err := d.store.ClaimJobs(ctx, d.workerID, now, now.Add(d.config.Lease), d.config.BatchSize)
	if err != nil {
		d.logger.Error("failed to claim jobs", slog.String("error", err.Error()))
		return 0
	}

	for _, job := range claimed {
		d.process(ctx, job)
	}

	if d.config.Retention > 0 {
		if purged, err := d.store.PurgeJobs(ctx, now.Add(-d.config.Retention)); err != nil {
			d.logger.Error("failed to purge jobs", slog.String("error", err.Error()))
		} else if purged > 0 {
			d.logger.Debug("purged finished jobs", slog.Int64("count", purged))
		}
	}

	if len(claimed) > 0 {
		d.logger.Info("processed jobs", slog.Int("count", len(claimed)))
	}
	return len(claimed)
}

func (d *Dispatcher) process(ctx context.Context, job Job) {
	logger := d.logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("kind", string(job.Kind)),
		slog.Int("attempt", job.Attempts))

	a, err := job.Announcement()
	if err == nil {
		err = d.publisher.Publish(ctx, Message{
			JobID:        job.ID,
			Kind:         job.Kind,
			TournamentID: job.TournamentID,
			Announcement: a,
			CreatedAt:    job.CreatedAt,
		})
	}

	now := d.clock.Now().UTC()
	if err == nil {
		d.settle(logger, d.store.CompleteJob(ctx, job.ID, d.workerID, now))
		return
	}

	if job.Attempts < job.MaxAttempts {
		runAt := now.Add(time.Duration(job.Attempts) * d.config.RetryDelay)
		logger.Warn("job failed, retrying", slog.Time("run_at", runAt), slog.String("error", err.Error()))
		d.settle(logger, d.store.RetryJob(ctx, job.ID, d.workerID, runAt, err.Error(), now))
		return
	}

	logger.Error("job failed permanently", slog.String("error", err.Error()))
	d.settle(logger, d.store.FailJob(ctx, job.ID, d.workerID, err.Error(), now))
}

func (d *Dispatcher) settle(logger *slog.Logger, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrLeaseLost):
		logger.Warn("job lease expired before it was settled")
	default:
		logger.Error("failed to update job", slog.String("error", err.Error()))
	}
}
