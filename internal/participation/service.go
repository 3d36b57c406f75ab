// Package participation applies meal opt-in and opt-out edits under the cutoff policy.
package participation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/internal/cutoff"
	"github.com/mhp-app/backend/internal/headcount"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/pkg/apperr"
	"github.com/mhp-app/backend/pkg/metrics"
)

// Store is the persistence the service reads and writes.
type Store interface {
	store.UserStore
	store.ParticipationStore
	store.SpecialDayStore
	store.MealConfigStore
}

// Notifier is told about every date whose participation changed.
type Notifier interface {
	Notify(date models.Date)
}

// Options configures a Service.
type Options struct {
	Policy cutoff.Policy
	// AllowForceOnBlockedDays lets an elevated override with Force write on closed days and holidays.
	AllowForceOnBlockedDays bool
	Notifier                Notifier
	Metrics                 *metrics.Metrics
	Logger                  *zap.Logger
	Clock                   func() time.Time
}

// Service is the single entry point for participation writes.
type Service struct {
	store      Store
	policy     cutoff.Policy
	allowForce bool
	notifier   Notifier
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a participation service.
func NewService(st Store, opts Options) *Service {
	s := &Service{
		store:      st,
		policy:     opts.Policy,
		allowForce: opts.AllowForceOnBlockedDays,
		notifier:   opts.Notifier,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        opts.Clock,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Policy returns the cutoff policy in force.
func (s *Service) Policy() cutoff.Policy { return s.policy }

// Now returns the service clock.
func (s *Service) Now() time.Time { return s.now() }

// SetRequest is one participation edit.
type SetRequest struct {
	UserID   uuid.UUID
	Date     models.Date
	MealType models.MealType
	Value    bool
	Actor    *models.User
	// Override marks an elevated edit even when the actor edits their own record.
	Override bool
	// Force asks to write on a blocked day; honored only when the service allows it.
	Force  bool
	Reason string
}

func (r SetRequest) isOverride() bool {
	return r.Override || (r.Actor != nil && r.Actor.ID != r.UserID)
}

// editContext is the state shared by every item of one call.
type editContext struct {
	cfg     models.MealConfig
	special *models.SpecialDay
	now     time.Time
}

func (s *Service) loadEditContext(ctx context.Context, date models.Date) (*editContext, error) {
	cfg, err := s.store.GetMealConfig(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not load meal configuration")
	}
	special, err := s.store.GetSpecialDay(ctx, date)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not load special days")
	}
	return &editContext{cfg: cfg, special: special, now: s.now()}, nil
}

// Set validates and stores one participation value, then notifies subscribers of the date.
func (s *Service) Set(ctx context.Context, req SetRequest) (*models.ParticipationRecord, error) {
	rec, err := s.set(ctx, req)
	if err != nil {
		s.metrics.IncRejected(string(apperr.KindOf(err)))
		return nil, err
	}
	s.notify(req.Date)
	return rec, nil
}

func (s *Service) set(ctx context.Context, req SetRequest) (*models.ParticipationRecord, error) {
	if req.Actor == nil {
		return nil, apperr.New(apperr.NotAuthenticated, "authentication required")
	}
	if req.Date.IsZero() {
		return nil, apperr.New(apperr.ValidationError, "date is required")
	}
	target, err := s.lookupUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	ec, err := s.loadEditContext(ctx, req.Date)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, ec, target, req)
}

func (s *Service) lookupUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.UserNotFound, "user %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not load user")
	}
	return u, nil
}

// apply runs the checks for one (user, meal) pair and writes the record.
func (s *Service) apply(ctx context.Context, ec *editContext, target *models.User, req SetRequest) (*models.ParticipationRecord, error) {
	if !target.Active {
		return nil, apperr.New(apperr.UserInactive, "user %s is inactive", target.Email)
	}
	override := req.isOverride()
	if override {
		if err := authorizeOverride(req.Actor, target); err != nil {
			return nil, err
		}
	}
	mc, ok := ec.cfg.Lookup(req.MealType)
	if !ok {
		return nil, apperr.New(apperr.UnknownMealType, "unknown meal type %q", req.MealType)
	}
	if !mc.Enabled {
		return nil, apperr.New(apperr.MealTypeDisabled, "meal type %q is disabled", req.MealType)
	}
	if err := s.checkPolicy(ec, req, override); err != nil {
		return nil, err
	}

	rec := &models.ParticipationRecord{
		UserID:          target.ID,
		Date:            req.Date,
		MealType:        req.MealType,
		IsParticipating: req.Value,
		ModifiedBy:      models.ModifiedBySelf,
		UpdatedBy:       req.Actor.ID,
		Reason:          req.Reason,
	}
	if override {
		rec.ModifiedBy = models.ModifiedByAdminOverride
	}
	if err := s.store.UpsertParticipation(ctx, rec); err != nil {
		s.logger.Error("upsert participation",
			zap.String("user_id", target.ID.String()),
			zap.String("date", req.Date.String()),
			zap.String("meal_type", string(req.MealType)),
			zap.Error(err))
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "could not save participation")
	}
	s.metrics.IncWrite(string(rec.ModifiedBy))
	return rec, nil
}

// checkPolicy applies the cutoff rules. Overrides skip the time-of-day cutoff but
// never write to past dates, and write on blocked days only when forced and allowed.
func (s *Service) checkPolicy(ec *editContext, req SetRequest, override bool) error {
	if !override {
		d := s.policy.CanEdit(req.Date, ec.now, ec.special)
		if d.Allowed {
			return nil
		}
		return decisionError(d, req.Date, ec.special)
	}
	if req.Date.Before(s.policy.Today(ec.now)) {
		return decisionError(cutoff.Decision{Reason: cutoff.ReasonPastDate}, req.Date, ec.special)
	}
	if ec.special.BlocksParticipation() && !(req.Force && s.allowForce) {
		return decisionError(cutoff.Decision{Reason: cutoff.ReasonDayBlocked}, req.Date, ec.special)
	}
	return nil
}

// decisionError converts a denied decision into a kinded error.
func decisionError(d cutoff.Decision, date models.Date, special *models.SpecialDay) error {
	switch d.Reason {
	case cutoff.ReasonDayBlocked:
		msg := "Meal participation is not available: " + special.DayType.Label()
		if special.Note != "" {
			msg += " - " + special.Note
		}
		return &apperr.Error{Kind: apperr.DayBlocked, Message: msg}
	case cutoff.ReasonPastDate:
		return apperr.New(apperr.CutoffPassed, "cannot change participation for past date %s", date)
	default:
		return apperr.New(apperr.CutoffPassed, "cutoff for %s has passed", date)
	}
}

// authorizeOverride allows admins over anyone and team leads over their own team.
func authorizeOverride(actor, target *models.User) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleTeamLead:
		if actor.Team != "" && actor.Team == target.Team {
			return nil
		}
		return apperr.New(apperr.PermissionDenied, "team leads can only manage their own team")
	}
	return apperr.New(apperr.PermissionDenied, "you can only change your own participation")
}

// CanView reports whether actor may read target's participation.
func CanView(actor, target *models.User) bool {
	if actor.ID == target.ID {
		return true
	}
	return authorizeOverride(actor, target) == nil
}

func (s *Service) notify(date models.Date) {
	if s.notifier != nil {
		s.notifier.Notify(date)
	}
}

// BulkRequest applies Meals to every user in UserIDs.
type BulkRequest struct {
	UserIDs []uuid.UUID
	Date    models.Date
	Meals   map[models.MealType]bool
	Reason  string
	Actor   *models.User
	Force   bool
}

// BulkFailure is one item that could not be applied.
type BulkFailure struct {
	UserID   uuid.UUID       `json:"user_id"`
	MealType models.MealType `json:"meal_type"`
	Error    apperr.Kind     `json:"error"`
	Message  string          `json:"message"`
}

// BulkResult reports partial success.
type BulkResult struct {
	UpdatedCount int           `json:"updated_count"`
	Failed       []BulkFailure `json:"failed"`
}

// BulkUpdate applies the cross product of users and meals as elevated overrides.
// Item failures are collected; the batch always runs to completion.
func (s *Service) BulkUpdate(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	if req.Actor == nil {
		return nil, apperr.New(apperr.NotAuthenticated, "authentication required")
	}
	if !req.Actor.Role.Elevated() {
		return nil, apperr.New(apperr.PermissionDenied, "bulk updates require team lead or admin")
	}
	if req.Date.IsZero() || len(req.UserIDs) == 0 || len(req.Meals) == 0 {
		return nil, apperr.New(apperr.ValidationError, "date, user_ids and meals are required")
	}
	ec, err := s.loadEditContext(ctx, req.Date)
	if err != nil {
		return nil, err
	}

	meals := make([]models.MealType, 0, len(req.Meals))
	for mt := range req.Meals {
		meals = append(meals, mt)
	}
	sort.Slice(meals, func(i, j int) bool { return meals[i] < meals[j] })

	res := &BulkResult{Failed: []BulkFailure{}}
	fail := func(id uuid.UUID, mt models.MealType, err error) {
		res.Failed = append(res.Failed, BulkFailure{UserID: id, MealType: mt, Error: apperr.KindOf(err), Message: apperr.Message(err)})
	}
	for _, id := range uniqueIDs(req.UserIDs) {
		target, err := s.lookupUser(ctx, id)
		for _, mt := range meals {
			if err != nil {
				fail(id, mt, err)
				continue
			}
			item := SetRequest{UserID: id, Date: req.Date, MealType: mt, Value: req.Meals[mt],
				Actor: req.Actor, Override: true, Force: req.Force, Reason: req.Reason}
			if _, err := s.apply(ctx, ec, target, item); err != nil {
				fail(id, mt, err)
				continue
			}
			res.UpdatedCount++
		}
	}

	s.metrics.AddBulkFailures(len(res.Failed))
	for _, f := range res.Failed {
		s.metrics.IncRejected(string(f.Error))
	}
	if res.UpdatedCount > 0 {
		s.notify(req.Date)
	}
	s.logger.Info("bulk participation update",
		zap.String("actor_id", req.Actor.ID.String()),
		zap.String("date", req.Date.String()),
		zap.Int("updated", res.UpdatedCount),
		zap.Int("failed", len(res.Failed)))
	return res, nil
}

// uniqueIDs drops repeated ids, keeping first-seen order.
func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// MealStatus is one meal in a user's daily view.
type MealStatus struct {
	MealType        models.MealType   `json:"meal_type"`
	IsParticipating bool              `json:"is_participating"`
	Source          headcount.Source  `json:"source"`
	AdminControlled bool              `json:"admin_controlled"`
	ModifiedBy      models.ModifiedBy `json:"modified_by,omitempty"`
	UpdatedAt       *time.Time        `json:"updated_at,omitempty"`
}

// DayView is a user's meals for a date plus whether they may still edit them.
type DayView struct {
	UserID     uuid.UUID          `json:"user_id"`
	Date       models.Date        `json:"date"`
	Meals      []MealStatus       `json:"meals"`
	CanEdit    bool               `json:"can_edit"`
	Reason     cutoff.Reason      `json:"reason,omitempty"`
	SpecialDay *models.SpecialDay `json:"special_day,omitempty"`
	CutoffHour int                `json:"cutoff_hour"`
}

// Meals returns userID's effective participation for date as seen by actor.
func (s *Service) Meals(ctx context.Context, actor *models.User, userID uuid.UUID, date models.Date) (*DayView, error) {
	if actor == nil {
		return nil, apperr.New(apperr.NotAuthenticated, "authentication required")
	}
	if date.IsZero() {
		return nil, apperr.New(apperr.ValidationError, "date is required")
	}
	target, err := s.lookupUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, target) {
		return nil, apperr.New(apperr.PermissionDenied, "you cannot view this user's meals")
	}
	ec, err := s.loadEditContext(ctx, date)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.ListParticipation(ctx, date, []uuid.UUID{userID})
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, fmt.Sprintf("could not load participation for %s", date))
	}
	byMeal := make(map[models.MealType]models.ParticipationRecord, len(recs))
	for _, r := range recs {
		byMeal[r.MealType] = r
	}
	ix := headcount.IndexRecords(recs)

	d := s.policy.CanEdit(date, ec.now, ec.special)
	view := &DayView{
		UserID:     userID,
		Date:       date,
		CanEdit:    d.Allowed,
		Reason:     d.Reason,
		CutoffHour: s.policy.CutoffHour,
	}
	if ec.special != nil {
		view.SpecialDay = ec.special
	}
	for _, mc := range ec.cfg.Enabled() {
		c := ix.Choice(userID, mc.MealType)
		st := MealStatus{
			MealType:        mc.MealType,
			IsParticipating: c.Participating(mc),
			Source:          c.Source(),
			AdminControlled: mc.AdminControlled,
		}
		if r, ok := byMeal[mc.MealType]; ok {
			st.ModifiedBy = r.ModifiedBy
			updated := r.UpdatedAt
			st.UpdatedAt = &updated
		}
		view.Meals = append(view.Meals, st)
	}
	return view, nil
}
