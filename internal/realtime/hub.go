package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/internal/headcount"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/apperr"
	"github.com/mhp-app/backend/pkg/metrics"
)

// Event names pushed to subscribers.
const (
	EventHeadcount    = "headcount"
	EventHeartbeat    = "heartbeat"
	EventAnnouncement = "announcement"
)

const (
	// DefaultHeartbeat is the idle interval after which a heartbeat is sent.
	DefaultHeartbeat = 30 * time.Second
	noticeBuffer     = 16
	computeTimeout   = 10 * time.Second
)

// Computer produces the aggregate for a date and scope.
type Computer interface {
	Compute(ctx context.Context, date models.Date, scope headcount.Scope) (*models.HeadcountAggregate, error)
}

// Publisher publishes hub events to Redis for cross-instance fan-out.
type Publisher interface {
	PublishDateChanged(date models.Date) error
	PublishAnnouncement(payload []byte) error
}

// Subscriber subscribes to Redis channels and invokes handlers for incoming events.
type Subscriber interface {
	SubscribeDate(date models.Date, handler func()) (cancel func(), err error)
	SubscribeAnnouncements(handler func(payload []byte)) (cancel func(), err error)
}

// Event is one message for a subscriber.
type Event struct {
	Name string
	Data json.RawMessage
}

// room holds the subscribers of one date. mu serializes compute+deliver so
// every subscriber of the date receives snapshots in compute order.
type room struct {
	mu      sync.Mutex
	subs    map[string]*Subscription
	running bool
	dirty   bool
	cancel  func()
	// unfed is set when the Redis date subscription failed; Notify refreshes
	// such rooms directly.
	unfed bool
}

// Hub fans headcount snapshots out to live subscribers grouped by date.
// Uses Redis pub/sub for horizontal scaling when configured: changes are
// published to Redis and the subscription callback refreshes local rooms.
type Hub struct {
	computer  Computer
	logger    *zap.Logger
	metrics   *metrics.Metrics
	redis     Publisher
	redisSub  Subscriber
	heartbeat time.Duration

	mu        sync.RWMutex
	rooms     map[models.Date]*room
	annCancel func()
	closed    bool
}

// NewHub creates a hub. redisPub and redisSub may be nil for single-instance deployments.
func NewHub(computer Computer, logger *zap.Logger, m *metrics.Metrics, redisPub Publisher, redisSub Subscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		computer:  computer,
		logger:    logger,
		metrics:   m,
		redis:     redisPub,
		redisSub:  redisSub,
		heartbeat: DefaultHeartbeat,
		rooms:     make(map[models.Date]*room),
	}
}

// SetHeartbeat overrides the heartbeat interval.
func (h *Hub) SetHeartbeat(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// Heartbeat returns the idle interval after which transports send a heartbeat.
func (h *Hub) Heartbeat() time.Duration { return h.heartbeat }

// Start subscribes to cross-instance announcements.
func (h *Hub) Start() error {
	if h.redisSub == nil {
		return nil
	}
	cancel, err := h.redisSub.SubscribeAnnouncements(func(payload []byte) {
		var a models.Announcement
		if err := json.Unmarshal(payload, &a); err != nil {
			h.logger.Warn("decode announcement", zap.Error(err))
			return
		}
		h.broadcastAnnouncement(&a)
	})
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.annCancel = cancel
	h.mu.Unlock()
	return nil
}

// Close ends every subscription and Redis subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var subs []*Subscription
	for date, r := range h.rooms {
		for _, s := range r.subs {
			subs = append(subs, s)
		}
		if r.cancel != nil {
			r.cancel()
		}
		delete(h.rooms, date)
	}
	if h.annCancel != nil {
		h.annCancel()
		h.annCancel = nil
	}
	h.mu.Unlock()
	for _, s := range subs {
		s.closeLocal()
		h.metrics.SubscriberLeft()
	}
}

// Subscribe registers viewer for date and delivers the current snapshot before returning.
// The subscription ends when ctx is done or Close is called.
func (h *Hub) Subscribe(ctx context.Context, viewer *models.User, date models.Date, team string) (*Subscription, error) {
	if viewer == nil {
		return nil, apperr.New(apperr.NotAuthenticated, "authentication required")
	}
	if date.IsZero() {
		return nil, apperr.New(apperr.ValidationError, "date is required")
	}
	scope, err := headcount.ScopeFor(viewer, team)
	if err != nil {
		return nil, err
	}
	sub := &Subscription{
		ID:       uuid.New().String(),
		Date:     date,
		Scope:    scope,
		UserID:   viewer.ID,
		Role:     viewer.Role,
		Team:     viewer.Team,
		hub:      h,
		snapshot: make(chan Event, 1),
		notices:  make(chan Event, noticeBuffer),
		done:     make(chan struct{}),
	}

	r, err := h.register(sub)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	ev, err := h.snapshotEvent(ctx, date, scope)
	if err == nil {
		sub.deliverSnapshot(ev)
	}
	r.mu.Unlock()
	if err != nil {
		sub.Close()
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

func (h *Hub) register(sub *Subscription) (*room, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, apperr.New(apperr.TransientStoreError, "live updates are shutting down")
	}
	r := h.rooms[sub.Date]
	if r == nil {
		r = &room{subs: make(map[string]*Subscription)}
		h.rooms[sub.Date] = r
		h.feedRoomLocked(sub.Date, r)
	} else if r.unfed {
		h.feedRoomLocked(sub.Date, r)
	}
	r.subs[sub.ID] = sub
	count := len(r.subs)
	h.mu.Unlock()

	h.metrics.SubscriberJoined()
	h.logger.Debug("subscriber joined",
		zap.String("subscription_id", sub.ID),
		zap.String("user_id", sub.UserID.String()),
		zap.String("date", sub.Date.String()),
		zap.Int("subscribers", count))
	return r, nil
}

// feedRoomLocked subscribes r to cross-instance changes for date. Caller holds h.mu.
func (h *Hub) feedRoomLocked(date models.Date, r *room) {
	if h.redisSub == nil {
		return
	}
	cancel, err := h.redisSub.SubscribeDate(date, func() { h.refreshLocal(date) })
	if err != nil {
		r.unfed = true
		h.logger.Warn("redis subscribe failed, room refreshes locally", zap.String("date", date.String()), zap.Error(err))
		return
	}
	r.cancel = cancel
	r.unfed = false
}

func (h *Hub) unregister(sub *Subscription) {
	h.mu.Lock()
	r, ok := h.rooms[sub.Date]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := r.subs[sub.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(r.subs, sub.ID)
	if len(r.subs) == 0 && !r.running {
		h.dropRoomLocked(sub.Date, r)
	}
	h.mu.Unlock()

	h.metrics.SubscriberLeft()
	h.logger.Debug("subscriber left", zap.String("subscription_id", sub.ID), zap.String("date", sub.Date.String()))
}

// dropRoomLocked removes an empty room. Caller holds h.mu.
func (h *Hub) dropRoomLocked(date models.Date, r *room) {
	if h.rooms[date] != r {
		return
	}
	delete(h.rooms, date)
	if r.cancel != nil {
		r.cancel()
	}
}

// Notify reports a committed change for date. With Redis configured the change is
// published, and the Redis callback refreshes every instance including this one.
// Rooms without a Redis feed are refreshed directly.
func (h *Hub) Notify(date models.Date) {
	if h.redis != nil {
		err := h.redis.PublishDateChanged(date)
		if err == nil {
			if h.unfed(date) {
				h.refreshLocal(date)
			}
			return
		}
		h.logger.Warn("redis publish failed, refreshing locally", zap.String("date", date.String()), zap.Error(err))
	}
	h.refreshLocal(date)
}

func (h *Hub) unfed(date models.Date) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r := h.rooms[date]
	return r != nil && r.unfed
}

// NotifyAll reports a change that can affect every date, such as a meal
// config toggle or a user deactivation. Only dates with live rooms on this
// instance are announced.
func (h *Hub) NotifyAll() {
	h.mu.RLock()
	dates := make([]models.Date, 0, len(h.rooms))
	for d := range h.rooms {
		dates = append(dates, d)
	}
	h.mu.RUnlock()
	for _, d := range dates {
		h.Notify(d)
	}
}

// refreshLocal schedules a recompute for date's room. Calls arriving while a
// recompute runs are coalesced into one more pass.
func (h *Hub) refreshLocal(date models.Date) {
	h.mu.Lock()
	r := h.rooms[date]
	if r == nil {
		h.mu.Unlock()
		return
	}
	if r.running {
		r.dirty = true
		h.mu.Unlock()
		return
	}
	r.running = true
	h.mu.Unlock()

	go h.refreshLoop(date, r)
}

func (h *Hub) refreshLoop(date models.Date, r *room) {
	for {
		h.refreshOnce(date, r)

		h.mu.Lock()
		if !r.dirty {
			r.running = false
			if len(r.subs) == 0 {
				h.dropRoomLocked(date, r)
			}
			h.mu.Unlock()
			return
		}
		r.dirty = false
		h.mu.Unlock()
	}
}

// refreshOnce computes each distinct scope once and delivers to its subscribers.
func (h *Hub) refreshOnce(date models.Date, r *room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h.mu.RLock()
	byScope := make(map[headcount.Scope][]*Subscription)
	for _, s := range r.subs {
		byScope[s.Scope] = append(byScope[s.Scope], s)
	}
	h.mu.RUnlock()

	for scope, subs := range byScope {
		ctx, cancel := context.WithTimeout(context.Background(), computeTimeout)
		ev, err := h.snapshotEvent(ctx, date, scope)
		cancel()
		if err != nil {
			h.logger.Error("recompute headcount", zap.String("date", date.String()), zap.String("team", scope.Team), zap.Error(err))
			continue
		}
		for _, s := range subs {
			s.deliverSnapshot(ev)
		}
	}
}

func (h *Hub) snapshotEvent(ctx context.Context, date models.Date, scope headcount.Scope) (Event, error) {
	agg, err := h.computer.Compute(ctx, date, scope)
	if err != nil {
		return Event{}, err
	}
	data, err := json.Marshal(agg)
	if err != nil {
		return Event{}, err
	}
	return Event{Name: EventHeadcount, Data: data}, nil
}

// PublishAnnouncement delivers a to every matching subscriber on every instance.
func (h *Hub) PublishAnnouncement(a *models.Announcement) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if h.redis != nil {
		if err := h.redis.PublishAnnouncement(data); err == nil {
			return nil
		}
		h.logger.Warn("redis publish announcement failed, delivering locally", zap.String("announcement_id", a.ID.String()))
	}
	h.broadcastAnnouncement(a)
	return nil
}

func (h *Hub) broadcastAnnouncement(a *models.Announcement) {
	data, err := json.Marshal(a)
	if err != nil {
		return
	}
	ev := Event{Name: EventAnnouncement, Data: data}

	h.mu.RLock()
	var targets []*Subscription
	for _, r := range h.rooms {
		for _, s := range r.subs {
			if a.Reaches(s.Team, s.Role) {
				targets = append(targets, s)
			}
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.deliverNotice(ev)
	}
}

// SubscriberCount returns the number of live subscribers for date.
func (h *Hub) SubscriberCount(date models.Date) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r := h.rooms[date]; r != nil {
		return len(r.subs)
	}
	return 0
}

// Subscription is one viewer's feed for one date.
type Subscription struct {
	ID     string
	Date   models.Date
	Scope  headcount.Scope
	UserID uuid.UUID
	Role   models.Role
	Team   string

	hub       *Hub
	snapshot  chan Event
	notices   chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Snapshots yields headcount events. Only the latest undelivered snapshot is kept.
func (s *Subscription) Snapshots() <-chan Event { return s.snapshot }

// Notices yields announcement events.
func (s *Subscription) Notices() <-chan Event { return s.notices }

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.unregister(s)
	s.closeLocal()
}

func (s *Subscription) closeLocal() {
	s.closeOnce.Do(func() { close(s.done) })
}

// deliverSnapshot replaces any unread snapshot with ev.
func (s *Subscription) deliverSnapshot(ev Event) {
	select {
	case <-s.done:
		return
	default:
	}
	for {
		select {
		case s.snapshot <- ev:
			return
		default:
		}
		select {
		case <-s.snapshot:
		default:
		}
	}
}

// deliverNotice drops the notice when the buffer is full.
func (s *Subscription) deliverNotice(ev Event) {
	select {
	case <-s.done:
	case s.notices <- ev:
	default:
		s.hub.logger.Debug("notice dropped, buffer full", zap.String("subscription_id", s.ID))
	}
}
