package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhp-app/backend/internal/cutoff"
	"github.com/mhp-app/backend/internal/headcount"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/participation"
	"github.com/mhp-app/backend/internal/store/memory"
	"github.com/mhp-app/backend/pkg/apperr"
)

var hubDate = models.NewDate(2030, 1, 15)

type hubFixture struct {
	store *memory.Store
	hub   *Hub
	svc   *participation.Service
	admin *models.User
	lead  *models.User
	emp   *models.User
	other *models.User
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	f := &hubFixture{store: st}
	add := func(name string, role models.Role, team string) *models.User {
		u := &models.User{Name: name, Email: name + "@example.com", Role: role, Team: team, Active: true}
		require.NoError(t, st.CreateUser(ctx, u))
		return u
	}
	f.admin = add("admin", models.RoleAdmin, "")
	f.lead = add("lead", models.RoleTeamLead, "Platform")
	f.emp = add("emp", models.RoleEmployee, "Platform")
	f.other = add("other", models.RoleEmployee, "Design")

	f.hub = NewHub(headcount.NewEngine(st, nil, nil), nil, nil, nil, nil)
	t.Cleanup(f.hub.Close)
	now := time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC)
	f.svc = participation.NewService(st, participation.Options{
		Policy:   cutoff.New(cutoff.DefaultHour, time.UTC),
		Notifier: f.hub,
		Clock:    func() time.Time { return now },
	})
	return f
}

func nextSnapshot(t *testing.T, sub *Subscription) *models.HeadcountAggregate {
	t.Helper()
	select {
	case ev := <-sub.Snapshots():
		require.Equal(t, EventHeadcount, ev.Name)
		var agg models.HeadcountAggregate
		require.NoError(t, json.Unmarshal(ev.Data, &agg))
		return &agg
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
		return nil
	}
}

func TestSubscribeSendsSnapshotFirst(t *testing.T) {
	f := newHubFixture(t)
	sub, err := f.hub.Subscribe(context.Background(), f.admin, hubDate, "")
	require.NoError(t, err)
	defer sub.Close()

	agg := nextSnapshot(t, sub)
	assert.Equal(t, hubDate, agg.Date)
	assert.Equal(t, 4, agg.TotalUsers)
	assert.Equal(t, 4, agg.Meals[models.MealLunch].OptedIn)
	assert.Equal(t, 4, agg.TotalParticipating)
}

func TestWritePushesUpdatedSnapshot(t *testing.T) {
	f := newHubFixture(t)
	sub, err := f.hub.Subscribe(context.Background(), f.lead, hubDate, "")
	require.NoError(t, err)
	defer sub.Close()
	first := nextSnapshot(t, sub)
	assert.Equal(t, "Platform", first.Team)
	assert.Equal(t, 2, first.Meals[models.MealLunch].OptedIn)

	_, err = f.svc.Set(context.Background(), participation.SetRequest{
		UserID: f.emp.ID, Date: hubDate, MealType: models.MealLunch, Value: false, Actor: f.emp,
	})
	require.NoError(t, err)

	updated := nextSnapshot(t, sub)
	assert.Equal(t, 1, updated.Meals[models.MealLunch].OptedIn)
	assert.Equal(t, 1, updated.Meals[models.MealLunch].OptedOut)
}

func TestSubscribeScope(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	_, err := f.hub.Subscribe(ctx, f.emp, hubDate, "")
	assert.Equal(t, apperr.PermissionDenied, apperr.KindOf(err))

	_, err = f.hub.Subscribe(ctx, f.lead, hubDate, "Design")
	assert.Equal(t, apperr.PermissionDenied, apperr.KindOf(err))

	sub, err := f.hub.Subscribe(ctx, f.admin, hubDate, "Design")
	require.NoError(t, err)
	defer sub.Close()
	agg := nextSnapshot(t, sub)
	assert.Equal(t, 1, agg.TotalUsers)

	_, err = f.hub.Subscribe(ctx, f.admin, models.Date{}, "")
	assert.Equal(t, apperr.ValidationError, apperr.KindOf(err))
}

func TestContextCancelUnsubscribes(t *testing.T) {
	f := newHubFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	sub, err := f.hub.Subscribe(ctx, f.admin, hubDate, "")
	require.NoError(t, err)
	assert.Equal(t, 1, f.hub.SubscriberCount(hubDate))

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
	assert.Eventually(t, func() bool { return f.hub.SubscriberCount(hubDate) == 0 }, time.Second, 10*time.Millisecond)

	// Notifying a date without subscribers is a no-op.
	f.hub.Notify(hubDate)
	sub.Close()
}

func TestAnnouncementsReachMatchingViewers(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()
	admin, err := f.hub.Subscribe(ctx, f.admin, hubDate, "")
	require.NoError(t, err)
	defer admin.Close()
	lead, err := f.hub.Subscribe(ctx, f.lead, hubDate.AddDays(1), "")
	require.NoError(t, err)
	defer lead.Close()

	require.NoError(t, f.hub.PublishAnnouncement(&models.Announcement{ID: uuid.New(), Title: "Pizza", Audience: "Design"}))

	select {
	case ev := <-admin.Notices():
		assert.Equal(t, EventAnnouncement, ev.Name)
		assert.Contains(t, string(ev.Data), "Pizza")
	case <-time.After(time.Second):
		t.Fatal("admin did not receive announcement")
	}
	select {
	case <-lead.Notices():
		t.Fatal("lead of another team received announcement")
	case <-time.After(50 * time.Millisecond):
	}
}

// slowComputer blocks each Compute until released and counts calls.
type slowComputer struct {
	calls   atomic.Int32
	release chan struct{}
}

func (c *slowComputer) Compute(ctx context.Context, date models.Date, scope headcount.Scope) (*models.HeadcountAggregate, error) {
	n := c.calls.Add(1)
	if n > 1 {
		<-c.release
	}
	return &models.HeadcountAggregate{Date: date, TotalUsers: int(n)}, nil
}

func TestRefreshesAreCoalescedAndOrdered(t *testing.T) {
	comp := &slowComputer{release: make(chan struct{})}
	hub := NewHub(comp, nil, nil, nil, nil)
	defer hub.Close()
	admin := &models.User{ID: uuid.New(), Role: models.RoleAdmin}

	sub, err := hub.Subscribe(context.Background(), admin, hubDate, "")
	require.NoError(t, err)
	defer sub.Close()
	assert.Equal(t, 1, nextSnapshot(t, sub).TotalUsers)

	for i := 0; i < 20; i++ {
		hub.Notify(hubDate)
	}
	close(comp.release)

	var last int
	deadline := time.After(2 * time.Second)
	for last < int(comp.calls.Load()) || comp.calls.Load() < 2 {
		select {
		case ev := <-sub.Snapshots():
			var agg models.HeadcountAggregate
			require.NoError(t, json.Unmarshal(ev.Data, &agg))
			assert.Greater(t, agg.TotalUsers, last)
			last = agg.TotalUsers
		case <-deadline:
			t.Fatalf("stalled at %d of %d", last, comp.calls.Load())
		}
	}
	// One running pass plus at most one coalesced pass after the initial snapshot.
	assert.LessOrEqual(t, comp.calls.Load(), int32(3))
}

// loopbackRedis is an in-process stand-in for the Redis bridge.
type loopbackRedis struct {
	mu        sync.Mutex
	dates     map[models.Date][]func()
	ann       []func([]byte)
	published atomic.Int32
}

func newLoopback() *loopbackRedis {
	return &loopbackRedis{dates: make(map[models.Date][]func())}
}

func (l *loopbackRedis) PublishDateChanged(date models.Date) error {
	l.published.Add(1)
	l.mu.Lock()
	hs := append([]func(){}, l.dates[date]...)
	l.mu.Unlock()
	for _, h := range hs {
		h()
	}
	return nil
}

func (l *loopbackRedis) PublishAnnouncement(payload []byte) error {
	l.mu.Lock()
	hs := append([]func([]byte){}, l.ann...)
	l.mu.Unlock()
	for _, h := range hs {
		h(payload)
	}
	return nil
}

func (l *loopbackRedis) SubscribeDate(date models.Date, handler func()) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dates[date] = append(l.dates[date], handler)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.dates, date)
	}, nil
}

func (l *loopbackRedis) SubscribeAnnouncements(handler func([]byte)) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ann = append(l.ann, handler)
	return func() {}, nil
}

func TestNotifyGoesThroughRedisWhenConfigured(t *testing.T) {
	f := newHubFixture(t)
	bus := newLoopback()
	hubA := NewHub(headcount.NewEngine(f.store, nil, nil), nil, nil, bus, bus)
	hubB := NewHub(headcount.NewEngine(f.store, nil, nil), nil, nil, bus, bus)
	defer hubA.Close()
	defer hubB.Close()
	require.NoError(t, hubA.Start())
	require.NoError(t, hubB.Start())

	subB, err := hubB.Subscribe(context.Background(), f.admin, hubDate, "")
	require.NoError(t, err)
	defer subB.Close()
	nextSnapshot(t, subB)

	require.NoError(t, f.store.UpsertParticipation(context.Background(), &models.ParticipationRecord{
		UserID: f.other.ID, Date: hubDate, MealType: models.MealSnacks, IsParticipating: false, ModifiedBy: models.ModifiedBySelf,
	}))
	hubA.Notify(hubDate)

	agg := nextSnapshot(t, subB)
	assert.Equal(t, 3, agg.Meals[models.MealSnacks].OptedIn)
	assert.Equal(t, int32(1), bus.published.Load())

	require.NoError(t, hubA.PublishAnnouncement(&models.Announcement{ID: uuid.New(), Title: "Menu", Audience: models.AudienceAll}))
	select {
	case ev := <-subB.Notices():
		assert.Equal(t, EventAnnouncement, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("announcement did not cross instances")
	}
}

// deafRedis publishes fine but cannot subscribe to date channels.
type deafRedis struct{ *loopbackRedis }

func (deafRedis) SubscribeDate(models.Date, func()) (func(), error) {
	return nil, errors.New("redis: connection refused")
}

func TestNotifyRefreshesRoomWithoutRedisFeed(t *testing.T) {
	f := newHubFixture(t)
	bus := deafRedis{newLoopback()}
	hub := NewHub(headcount.NewEngine(f.store, nil, nil), nil, nil, bus, bus)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), f.admin, hubDate, "")
	require.NoError(t, err)
	defer sub.Close()
	nextSnapshot(t, sub)

	require.NoError(t, f.store.UpsertParticipation(context.Background(), &models.ParticipationRecord{
		UserID: f.other.ID, Date: hubDate, MealType: models.MealLunch, IsParticipating: false, ModifiedBy: models.ModifiedBySelf,
	}))
	hub.Notify(hubDate)

	agg := nextSnapshot(t, sub)
	assert.Equal(t, 3, agg.Meals[models.MealLunch].OptedIn)
	assert.Equal(t, int32(1), bus.published.Load())
}
