// Package memory is an in-process Store used by tests and by STORE_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
)

type locationKey struct {
	userID uuid.UUID
	date   models.Date
}

// Store keeps every table in maps behind one mutex. Values are copied in and out.
type Store struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]models.User
	participation map[models.ParticipationKey]models.ParticipationRecord
	locations     map[locationKey]models.WorkLocation
	specialDays   map[uuid.UUID]models.SpecialDay
	meals         []models.MealTypeConfig
	mealVersion   int64
	announcements map[uuid.UUID]models.Announcement
	now           func() time.Time
}

var _ store.Store = (*Store)(nil)

// New returns an empty store seeded with the default meal configuration.
func New() *Store {
	meals := models.DefaultMealConfig()
	return &Store{
		users:         make(map[uuid.UUID]models.User),
		participation: make(map[models.ParticipationKey]models.ParticipationRecord),
		locations:     make(map[locationKey]models.WorkLocation),
		specialDays:   make(map[uuid.UUID]models.SpecialDay),
		meals:         meals,
		mealVersion:   1,
		announcements: make(map[uuid.UUID]models.Announcement),
		now:           time.Now,
	}
}

// SetClock overrides the timestamp source.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return store.ErrConflict
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, f models.UserFilter) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		if f.ActiveOnly && !u.Active {
			continue
		}
		if f.Team != "" && u.Team != f.Team {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Email < out[j].Email
	})
	return out, nil
}

func (s *Store) UpdateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.users[u.ID]
	if !ok {
		return store.ErrNotFound
	}
	for id, other := range s.users {
		if id != u.ID && strings.EqualFold(other.Email, u.Email) {
			return store.ErrConflict
		}
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = s.now()
	s.users[u.ID] = *u
	return nil
}

func (s *Store) ListTeams(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, u := range s.users {
		if u.Team != "" && u.Active {
			seen[u.Team] = struct{}{}
		}
	}
	teams := make([]string, 0, len(seen))
	for t := range seen {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	return teams, nil
}

// Participation

func (s *Store) UpsertParticipation(_ context.Context, rec *models.ParticipationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = s.now()
	s.participation[rec.Key()] = *rec
	return nil
}

func (s *Store) ListParticipation(_ context.Context, date models.Date, userIDs []uuid.UUID) ([]models.ParticipationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var want map[uuid.UUID]struct{}
	if userIDs != nil {
		want = make(map[uuid.UUID]struct{}, len(userIDs))
		for _, id := range userIDs {
			want[id] = struct{}{}
		}
	}
	var out []models.ParticipationRecord
	for k, rec := range s.participation {
		if k.Date != date {
			continue
		}
		if want != nil {
			if _, ok := want[k.UserID]; !ok {
				continue
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Work locations

func (s *Store) UpsertWorkLocation(_ context.Context, wl *models.WorkLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wl.UpdatedAt = s.now()
	s.locations[locationKey{wl.UserID, wl.Date}] = *wl
	return nil
}

func (s *Store) GetWorkLocation(_ context.Context, userID uuid.UUID, date models.Date) (*models.WorkLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wl, ok := s.locations[locationKey{userID, date}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &wl, nil
}

func (s *Store) ListWorkLocations(_ context.Context, date models.Date) ([]models.WorkLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.WorkLocation
	for k, wl := range s.locations {
		if k.date == date {
			out = append(out, wl)
		}
	}
	return out, nil
}

// Special days

func (s *Store) CreateSpecialDay(_ context.Context, d *models.SpecialDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.specialDays {
		if existing.Date == d.Date {
			return store.ErrConflict
		}
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = s.now()
	s.specialDays[d.ID] = *d
	return nil
}

func (s *Store) GetSpecialDay(_ context.Context, date models.Date) (*models.SpecialDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.specialDays {
		if d.Date == date {
			return &d, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListSpecialDays(_ context.Context, start, end models.Date) ([]models.SpecialDay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SpecialDay
	for _, d := range s.specialDays {
		if d.Date.Before(start) || d.Date.After(end) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) DeleteSpecialDay(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.specialDays[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.specialDays, id)
	return nil
}

// Meal configuration

func (s *Store) GetMealConfig(_ context.Context) (models.MealConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mealSnapshot(), nil
}

func (s *Store) SetMealEnabled(_ context.Context, mt models.MealType, enabled bool) (models.MealConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.meals {
		if s.meals[i].MealType == mt {
			s.meals[i].Enabled = enabled
			s.meals[i].UpdatedAt = s.now()
			s.mealVersion++
			return s.mealSnapshot(), nil
		}
	}
	return models.MealConfig{}, store.ErrNotFound
}

func (s *Store) mealSnapshot() models.MealConfig {
	types := make([]models.MealTypeConfig, len(s.meals))
	copy(types, s.meals)
	return models.MealConfig{Version: s.mealVersion, Types: types}
}

// Announcements

func (s *Store) CreateAnnouncement(_ context.Context, a *models.Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	s.announcements[a.ID] = *a
	return nil
}

func (s *Store) GetAnnouncement(_ context.Context, id uuid.UUID) (*models.Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.announcements[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAnnouncements(_ context.Context, createdBy uuid.UUID, status models.AnnouncementStatus) ([]models.Announcement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Announcement
	for _, a := range s.announcements {
		if createdBy != uuid.Nil && a.CreatedBy != createdBy {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateAnnouncement(_ context.Context, a *models.Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.announcements[a.ID]
	if !ok {
		return store.ErrNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = s.now()
	s.announcements[a.ID] = *a
	return nil
}
