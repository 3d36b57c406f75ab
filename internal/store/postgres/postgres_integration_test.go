//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
	ctx   context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.Pool)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.Pool.Exec(s.ctx, `TRUNCATE participation, work_locations, special_days, announcements, users CASCADE`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) createUser(email, team string) *models.User {
	u := &models.User{Name: email, Email: email, Password: "x", Role: models.RoleEmployee, Team: team, Active: true}
	s.Require().NoError(s.store.CreateUser(s.ctx, u))
	return u
}

func (s *PostgresStoreSuite) TestUserEmailUnique() {
	s.createUser("dup@example.com", "")
	err := s.store.CreateUser(s.ctx, &models.User{Name: "x", Email: "dup@example.com", Password: "x", Role: models.RoleEmployee})
	s.ErrorIs(err, store.ErrConflict)

	_, err = s.store.GetUser(s.ctx, uuid.New())
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpsertParticipationIsLastWriteWins() {
	u := s.createUser("a@example.com", "Platform")
	date := models.NewDate(2030, 1, 2)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(v bool) {
			defer wg.Done()
			rec := &models.ParticipationRecord{UserID: u.ID, Date: date, MealType: models.MealLunch,
				IsParticipating: v, ModifiedBy: models.ModifiedBySelf, UpdatedBy: u.ID}
			s.NoError(s.store.UpsertParticipation(s.ctx, rec))
		}(i%2 == 0)
	}
	wg.Wait()

	recs, err := s.store.ListParticipation(s.ctx, date, nil)
	s.Require().NoError(err)
	s.Len(recs, 1)
	s.Equal(date, recs[0].Date)
}

func (s *PostgresStoreSuite) TestListParticipationByUsers() {
	a := s.createUser("a@example.com", "")
	b := s.createUser("b@example.com", "")
	date := models.NewDate(2030, 1, 2)
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		s.Require().NoError(s.store.UpsertParticipation(s.ctx, &models.ParticipationRecord{
			UserID: id, Date: date, MealType: models.MealSnacks, ModifiedBy: models.ModifiedBySelf, UpdatedBy: id,
		}))
	}
	recs, err := s.store.ListParticipation(s.ctx, date, []uuid.UUID{b.ID})
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(b.ID, recs[0].UserID)
}

func (s *PostgresStoreSuite) TestMealConfigVersion() {
	before, err := s.store.GetMealConfig(s.ctx)
	s.Require().NoError(err)
	s.Len(before.Types, 5)

	after, err := s.store.SetMealEnabled(s.ctx, models.MealIftar, true)
	s.Require().NoError(err)
	s.Equal(before.Version+1, after.Version)

	_, err = s.store.SetMealEnabled(s.ctx, models.MealIftar, false)
	s.Require().NoError(err)

	_, err = s.store.SetMealEnabled(s.ctx, "brunch", true)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *PostgresStoreSuite) TestWorkLocationsAndSpecialDays() {
	u := s.createUser("w@example.com", "")
	date := models.NewDate(2030, 3, 4)

	_, err := s.store.GetWorkLocation(s.ctx, u.ID, date)
	s.ErrorIs(err, store.ErrNotFound)

	s.Require().NoError(s.store.UpsertWorkLocation(s.ctx, &models.WorkLocation{UserID: u.ID, Date: date, Location: models.LocationWFH, UpdatedBy: u.ID}))
	wl, err := s.store.GetWorkLocation(s.ctx, u.ID, date)
	s.Require().NoError(err)
	s.Equal(models.LocationWFH, wl.Location)

	day := &models.SpecialDay{Date: date, DayType: models.DayOfficeClosed, Note: "maintenance", CreatedBy: u.ID}
	s.Require().NoError(s.store.CreateSpecialDay(s.ctx, day))
	s.ErrorIs(s.store.CreateSpecialDay(s.ctx, &models.SpecialDay{Date: date, DayType: models.DaySpecialEvent}), store.ErrConflict)

	got, err := s.store.GetSpecialDay(s.ctx, date)
	s.Require().NoError(err)
	s.Equal("maintenance", got.Note)
	s.Require().NoError(s.store.DeleteSpecialDay(s.ctx, day.ID))
	s.ErrorIs(s.store.DeleteSpecialDay(s.ctx, day.ID), store.ErrNotFound)
}
