package worker

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hapnesbitt/FroogleOne/internal/config"
	"github.com/hapnesbitt/FroogleOne/internal/metrics"
)

// Broker enqueues a typed payload and returns the queue's job id.
type Broker interface {
	Enqueue(jobType string, payload interface{}) (string, error)
}

const defaultRetryDelay = 60 * time.Second

// Dispatcher submits pipeline jobs and schedules their retries. Retry
// decisions live in the handlers; the dispatcher only owns the backoff
// schedule and the re-enqueue itself.
type Dispatcher struct {
	broker      Broker
	maxAttempts int
	baseDelays  map[string]time.Duration
	log         *slog.Logger

	afterFunc func(time.Duration, func()) *time.Timer
}

func NewDispatcher(b Broker, cfg *config.Config, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		broker:      b,
		maxAttempts: cfg.MaxRetries,
		baseDelays: map[string]time.Duration{
			JobTypeVideoTranscode: cfg.VideoRetryDelay,
			JobTypeAudioTranscode: cfg.AudioRetryDelay,
		},
		log:       log,
		afterFunc: time.AfterFunc,
	}
}

// MaxAttempts is the number of retries allowed after the first execution.
func (d *Dispatcher) MaxAttempts() int { return d.maxAttempts }

func (d *Dispatcher) Submit(jobType string, payload interface{}) (string, error) {
	id, err := d.broker.Enqueue(jobType, payload)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", jobType, err)
	}
	metrics.RecordJobEnqueued(jobType)
	return id, nil
}

// Backoff returns the delay before re-running a job whose attempt-th
// execution just failed: baseDelay * 2^attempt.
func (d *Dispatcher) Backoff(jobType string, attempt int) time.Duration {
	base := d.baseDelays[jobType]
	if base <= 0 {
		base = defaultRetryDelay
	}
	return base * time.Duration(1<<attempt)
}

// RetryLater re-enqueues payload after the backoff delay. The payload must
// already carry the incremented attempt counter.
func (d *Dispatcher) RetryLater(jobType string, payload interface{}, failedAttempt int) {
	delay := d.Backoff(jobType, failedAttempt)
	metrics.RecordJobRetry(jobType)
	d.log.Info("retry scheduled", "job_type", jobType, "failed_attempt", failedAttempt, "delay", delay.String())
	d.afterFunc(delay, func() {
		if _, err := d.broker.Enqueue(jobType, payload); err != nil {
			d.log.Error("failed to re-enqueue retry", "job_type", jobType, "error", err)
		}
	})
}
