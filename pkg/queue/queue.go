package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueReady is the Redis list of jobs that are due now.
	QueueReady = "worker:jobs"
	// QueueDelayed is the sorted set of jobs scored by their due time in unix milliseconds.
	QueueDelayed = "worker:delayed"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// promoteBatch caps how many due jobs one PromoteDue call moves.
	promoteBatch = 100
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypePublishAnnouncement JobType = "publish_announcement"
)

// AnnouncementPayload is the payload for scheduled announcement jobs.
type AnnouncementPayload struct {
	AnnouncementID uuid.UUID `json:"announcement_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	RunAt     time.Time       `json:"run_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// promoteScript moves due members from the delayed set to the ready list atomically,
// so two workers never promote the same job.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, raw in ipairs(due) do
  redis.call('ZREM', KEYS[1], raw)
  redis.call('RPUSH', KEYS[2], raw)
end
return #due
`)

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger, now: time.Now}
}

func (q *Queue) newJob(t JobType, payload any, runAt time.Time) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		RunAt:     runAt,
		CreatedAt: q.now(),
	}, nil
}

// Enqueue makes a job available immediately.
func (q *Queue) Enqueue(ctx context.Context, t JobType, payload any) (*Job, error) {
	job, err := q.newJob(t, payload, q.now())
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueReady, raw).Err(); err != nil {
		return nil, fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(t)))
	return job, nil
}

// Schedule makes a job available at runAt. Past times are due on the next promotion.
func (q *Queue) Schedule(ctx context.Context, t JobType, payload any, runAt time.Time) (*Job, error) {
	job, err := q.newJob(t, payload, runAt)
	if err != nil {
		return nil, err
	}
	if err := q.delay(ctx, job); err != nil {
		return nil, err
	}
	q.logger.Debug("scheduled job", zap.String("job_id", job.ID), zap.String("type", string(t)), zap.Time("run_at", runAt))
	return job, nil
}

func (q *Queue) delay(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	z := redis.Z{Score: float64(job.RunAt.UnixMilli()), Member: raw}
	if err := q.client.ZAdd(ctx, QueueDelayed, z).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	return nil
}

// ScheduleAnnouncement queues publication of an announcement at runAt.
func (q *Queue) ScheduleAnnouncement(ctx context.Context, id uuid.UUID, runAt time.Time) error {
	_, err := q.Schedule(ctx, JobTypePublishAnnouncement, AnnouncementPayload{AnnouncementID: id}, runAt)
	return err
}

// PromoteDue moves delayed jobs whose time has come onto the ready list.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	n, err := promoteScript.Run(ctx, q.client, []string{QueueDelayed, QueueReady}, now, promoteBatch).Int()
	if err != nil {
		return 0, fmt.Errorf("promote due jobs: %w", err)
	}
	if n > 0 {
		q.logger.Debug("promoted due jobs", zap.Int("count", n))
	}
	return n, nil
}

// Dequeue blocks up to timeout for a ready job. It returns nil, nil when none arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueReady).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Retry re-schedules a job after RetryBackoff with incremented attempt.
// If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		raw, err := json.Marshal(job)
		if err != nil {
			return err
		}
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	job.RunAt = q.now().Add(RetryBackoff)
	if err := q.delay(ctx, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}

// Lengths reports the ready, delayed and dead-letter backlog sizes.
func (q *Queue) Lengths(ctx context.Context) (ready, delayed, dead int64, err error) {
	pipe := q.client.Pipeline()
	r := pipe.LLen(ctx, QueueReady)
	d := pipe.ZCard(ctx, QueueDelayed)
	x := pipe.LLen(ctx, QueueDLQ)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, 0, err
	}
	return r.Val(), d.Val(), x.Val(), nil
}
