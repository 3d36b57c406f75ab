// Package announcements manages drafts and their immediate or scheduled publication.
package announcements

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/pkg/apperr"
)

const (
	MaxTitleLength = 200
	MaxBodyLength  = 5000
)

// Publisher pushes a sent announcement to live viewers.
type Publisher interface {
	PublishAnnouncement(a *models.Announcement) error
}

// Scheduler queues publication of an announcement at a later time.
type Scheduler interface {
	ScheduleAnnouncement(ctx context.Context, id uuid.UUID, at time.Time) error
}

// DraftInput is the content of a new announcement.
type DraftInput struct {
	Title    string
	Body     string
	Audience string
}

// Service owns the announcement lifecycle draft -> scheduled -> sent.
type Service struct {
	store     store.AnnouncementStore
	publisher Publisher
	scheduler Scheduler
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates an announcement service. scheduler may be nil, in which case
// only immediate publication is available.
func NewService(st store.AnnouncementStore, publisher Publisher, scheduler Scheduler, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, publisher: publisher, scheduler: scheduler, logger: logger, now: time.Now}
}

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateDraft stores a new draft authored by actor.
func (s *Service) CreateDraft(ctx context.Context, actor *models.User, in DraftInput) (*models.Announcement, error) {
	if actor == nil || !actor.Role.Elevated() {
		return nil, apperr.New(apperr.PermissionDenied, "only team leads and admins can write announcements")
	}
	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)
	switch {
	case title == "":
		return nil, apperr.New(apperr.ValidationError, "title is required")
	case len(title) > MaxTitleLength:
		return nil, apperr.New(apperr.ValidationError, "title exceeds %d characters", MaxTitleLength)
	case body == "":
		return nil, apperr.New(apperr.ValidationError, "body is required")
	case len(body) > MaxBodyLength:
		return nil, apperr.New(apperr.ValidationError, "body exceeds %d characters", MaxBodyLength)
	}
	audience := strings.TrimSpace(in.Audience)
	if audience == "" {
		audience = models.AudienceAll
	}
	if actor.Role != models.RoleAdmin && audience != actor.Team {
		return nil, apperr.New(apperr.PermissionDenied, "team leads can only address their own team")
	}

	a := &models.Announcement{
		Title:     title,
		Body:      body,
		Audience:  audience,
		Status:    models.AnnouncementDraft,
		CreatedBy: actor.ID,
	}
	if err := s.store.CreateAnnouncement(ctx, a); err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not save announcement")
	}
	s.logger.Info("announcement drafted", zap.String("announcement_id", a.ID.String()), zap.String("actor_id", actor.ID.String()))
	return a, nil
}

// ListOwn returns the actor's announcements, optionally filtered by status.
func (s *Service) ListOwn(ctx context.Context, actor *models.User, status models.AnnouncementStatus) ([]models.Announcement, error) {
	if actor == nil || !actor.Role.Elevated() {
		return nil, apperr.New(apperr.PermissionDenied, "only team leads and admins can list announcements")
	}
	switch status {
	case "", models.AnnouncementDraft, models.AnnouncementScheduled, models.AnnouncementSent:
	default:
		return nil, apperr.New(apperr.ValidationError, "unknown status %q", status)
	}
	list, err := s.store.ListAnnouncements(ctx, actor.ID, status)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not list announcements")
	}
	if list == nil {
		list = []models.Announcement{}
	}
	return list, nil
}

// Feed returns sent announcements that reach the viewer, newest first.
func (s *Service) Feed(ctx context.Context, viewer *models.User) ([]models.Announcement, error) {
	list, err := s.store.ListAnnouncements(ctx, uuid.Nil, models.AnnouncementSent)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not list announcements")
	}
	out := make([]models.Announcement, 0, len(list))
	for _, a := range list {
		if a.Reaches(viewer.Team, viewer.Role) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Publish sends the announcement now, or schedules it when at is in the future.
func (s *Service) Publish(ctx context.Context, actor *models.User, id uuid.UUID, at *time.Time) (*models.Announcement, error) {
	if actor == nil || !actor.Role.Elevated() {
		return nil, apperr.New(apperr.PermissionDenied, "only team leads and admins can publish announcements")
	}
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && a.CreatedBy != actor.ID {
		return nil, apperr.New(apperr.PermissionDenied, "you can only publish your own announcements")
	}
	if a.Status == models.AnnouncementSent {
		return nil, apperr.New(apperr.Conflict, "announcement already sent")
	}

	now := s.now()
	if at != nil && at.After(now) {
		return s.schedule(ctx, a, at.UTC())
	}
	if err := s.send(ctx, a, now); err != nil {
		return nil, err
	}
	s.logger.Info("announcement published", zap.String("announcement_id", a.ID.String()), zap.String("actor_id", actor.ID.String()))
	return a, nil
}

// PublishScheduled sends a scheduled announcement whose time has come. It reports
// false when there is nothing to do: the announcement was already sent, moved back,
// or rescheduled to a later time by another job.
func (s *Service) PublishScheduled(ctx context.Context, id uuid.UUID) (bool, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return false, err
	}
	now := s.now()
	if a.Status != models.AnnouncementScheduled || (a.ScheduledAt != nil && a.ScheduledAt.After(now)) {
		return false, nil
	}
	if err := s.send(ctx, a, now); err != nil {
		return false, err
	}
	s.logger.Info("scheduled announcement published", zap.String("announcement_id", a.ID.String()))
	return true, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*models.Announcement, error) {
	a, err := s.store.GetAnnouncement(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.NotFound, "announcement not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not load announcement")
	}
	return a, nil
}

func (s *Service) schedule(ctx context.Context, a *models.Announcement, at time.Time) (*models.Announcement, error) {
	if s.scheduler == nil {
		return nil, apperr.New(apperr.ValidationError, "scheduled publishing is unavailable without a job queue")
	}
	a.Status = models.AnnouncementScheduled
	a.ScheduledAt = &at
	if err := s.store.UpdateAnnouncement(ctx, a); err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not save announcement")
	}
	if err := s.scheduler.ScheduleAnnouncement(ctx, a.ID, at); err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not queue announcement")
	}
	s.logger.Info("announcement scheduled", zap.String("announcement_id", a.ID.String()), zap.Time("scheduled_at", at))
	return a, nil
}

// send marks a sent and pushes it. Delivery is best effort once the state is stored.
func (s *Service) send(ctx context.Context, a *models.Announcement, now time.Time) error {
	published := now.UTC()
	a.Status = models.AnnouncementSent
	a.PublishedAt = &published
	if err := s.store.UpdateAnnouncement(ctx, a); err != nil {
		return apperr.Wrap(apperr.TransientStoreError, err, "could not save announcement")
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAnnouncement(a); err != nil {
			s.logger.Warn("announcement push failed", zap.String("announcement_id", a.ID.String()), zap.Error(err))
		}
	}
	return nil
}
