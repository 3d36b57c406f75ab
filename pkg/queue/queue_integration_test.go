//go:build integration

package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhp-app/backend/pkg/testutil/containers"
)

func TestScheduleAndPromote(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	q := NewQueue(rc.Client, nil)
	base := time.Now()
	q.now = func() time.Time { return base }

	id := uuid.New()
	_, err := q.Schedule(ctx, JobTypePublishAnnouncement, AnnouncementPayload{AnnouncementID: id}, base.Add(time.Minute))
	require.NoError(t, err)

	n, err := q.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	job, err := q.Dequeue(ctx, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)

	q.now = func() time.Time { return base.Add(2 * time.Minute) }
	n, err = q.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	var p AnnouncementPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, id, p.AnnouncementID)
}

func TestRetryEndsInDLQ(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	q := NewQueue(rc.Client, nil)

	job, err := q.Enqueue(ctx, JobTypePublishAnnouncement, AnnouncementPayload{AnnouncementID: uuid.New()})
	require.NoError(t, err)
	for i := 0; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
	}
	ready, delayed, dead, err := q.Lengths(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ready)
	assert.Equal(t, int64(MaxRetries-1), delayed)
	assert.Equal(t, int64(1), dead)
}
