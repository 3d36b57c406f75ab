// Package worker runs background jobs popped from the Redis queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/pkg/metrics"
	"github.com/mhp-app/backend/pkg/queue"
)

// DefaultPoll is how long one Dequeue blocks before the loop promotes due jobs again.
const DefaultPoll = time.Second

// JobQueue is the subset of *queue.Queue the worker needs.
type JobQueue interface {
	PromoteDue(ctx context.Context) (int, error)
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ScheduledPublisher sends a scheduled announcement once it is due.
type ScheduledPublisher interface {
	PublishScheduled(ctx context.Context, id uuid.UUID) (bool, error)
}

// AnnouncementPublisher processes scheduled announcement jobs.
type AnnouncementPublisher struct {
	queue     JobQueue
	publisher ScheduledPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	poll      time.Duration
	backoff   time.Duration
}

// NewAnnouncementPublisher creates a scheduled announcement processor. m may be nil.
func NewAnnouncementPublisher(q JobQueue, publisher ScheduledPublisher, m *metrics.Metrics, logger *zap.Logger) *AnnouncementPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementPublisher{
		queue:     q,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		poll:      DefaultPoll,
		backoff:   queue.RetryBackoff,
	}
}

// SetPoll overrides the dequeue wait.
func (p *AnnouncementPublisher) SetPoll(d time.Duration) {
	if d > 0 {
		p.poll = d
	}
}

// Process executes one job. Jobs for announcements that are no longer due succeed without effect.
func (p *AnnouncementPublisher) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypePublishAnnouncement {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.AnnouncementPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	sent, err := p.publisher.PublishScheduled(ctx, payload.AnnouncementID)
	if err != nil {
		return fmt.Errorf("publish announcement %s: %w", payload.AnnouncementID, err)
	}
	if !sent {
		p.logger.Info("announcement no longer due", zap.String("announcement_id", payload.AnnouncementID.String()))
	}
	return nil
}

// Run starts the worker loop: promote due jobs, dequeue, process, retry on error.
func (p *AnnouncementPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("announcement worker stopping")
			return
		default:
		}
		if !p.step(ctx) {
			select {
			case <-ctx.Done():
			case <-time.After(p.backoff):
			}
		}
	}
}

// step runs one iteration and reports false when the loop should back off.
func (p *AnnouncementPublisher) step(ctx context.Context) bool {
	if _, err := p.queue.PromoteDue(ctx); err != nil {
		p.logger.Warn("promote error", zap.Error(err))
		return ctx.Err() != nil
	}
	job, err := p.queue.Dequeue(ctx, p.poll)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("dequeue error", zap.Error(err))
		}
		return ctx.Err() != nil
	}
	if job == nil {
		return true
	}

	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	if err := p.Process(ctx, job); err != nil {
		p.metrics.IncJob(string(job.Type), "failed")
		p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		if reErr := p.queue.Retry(ctx, job); reErr != nil {
			p.logger.Error("retry enqueue failed", zap.Error(reErr))
		}
		return true
	}
	p.metrics.IncJob(string(job.Type), "ok")
	return true
}
