package headcount

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store/memory"
)

var testDate = models.NewDate(2025, 7, 1)

func users(n int, team string) []models.User {
	out := make([]models.User, n)
	for i := range out {
		out[i] = models.User{ID: uuid.New(), Name: team + string(rune('a'+i)), Team: team, Active: true}
	}
	return out
}

func config(types ...models.MealTypeConfig) models.MealConfig {
	return models.MealConfig{Version: 7, Types: types}
}

func TestTallyDefaults(t *testing.T) {
	us := users(5, "Platform")
	cfg := config(
		models.MealTypeConfig{MealType: models.MealLunch, Enabled: true, DefaultParticipating: true},
		models.MealTypeConfig{MealType: models.MealEventDinner, Enabled: true, DefaultParticipating: false},
		models.MealTypeConfig{MealType: models.MealIftar, Enabled: false, DefaultParticipating: true},
	)

	agg := Tally(Input{Date: testDate, Users: us, Config: cfg})

	assert.Equal(t, 5, agg.TotalUsers)
	assert.Equal(t, 5, agg.Meals[models.MealLunch].OptedIn)
	assert.Equal(t, 0, agg.Meals[models.MealLunch].OptedOut)
	assert.Equal(t, 0, agg.Meals[models.MealEventDinner].OptedIn)
	assert.Equal(t, 5, agg.Meals[models.MealEventDinner].OptedOut)
	assert.NotContains(t, agg.Meals, models.MealIftar)
	assert.Equal(t, int64(7), agg.ConfigVersion)
}

func TestTallyExplicitOverridesDefault(t *testing.T) {
	us := users(3, "Ops")
	cfg := config(models.MealTypeConfig{MealType: models.MealLunch, Enabled: true, DefaultParticipating: true})
	recs := []models.ParticipationRecord{
		{UserID: us[0].ID, Date: testDate, MealType: models.MealLunch, IsParticipating: false},
		{UserID: us[1].ID, Date: testDate, MealType: models.MealLunch, IsParticipating: true},
	}

	agg := Tally(Input{Date: testDate, Users: us, Config: cfg, Records: recs})
	assert.Equal(t, 2, agg.Meals[models.MealLunch].OptedIn)
	assert.Equal(t, 1, agg.Meals[models.MealLunch].OptedOut)
	assert.Equal(t, 2, agg.Meals[models.MealLunch].ByTeam["Ops"])
}

func TestTallyUnionTotal(t *testing.T) {
	us := users(3, "")
	cfg := config(
		models.MealTypeConfig{MealType: models.MealLunch, Enabled: true, DefaultParticipating: true},
		models.MealTypeConfig{MealType: models.MealSnacks, Enabled: true, DefaultParticipating: true},
	)
	recs := []models.ParticipationRecord{
		{UserID: us[0].ID, MealType: models.MealLunch, IsParticipating: false},
		{UserID: us[0].ID, MealType: models.MealSnacks, IsParticipating: false},
		{UserID: us[1].ID, MealType: models.MealSnacks, IsParticipating: false},
	}

	agg := Tally(Input{Date: testDate, Users: us, Config: cfg, Records: recs})
	// us[1] and us[2] are in at least one meal; per-meal sum would be 3.
	assert.Equal(t, 2, agg.TotalParticipating)
	assert.Equal(t, 2, agg.Meals[models.MealLunch].ByTeam[models.UnassignedTeam])
}

func TestTallyLocations(t *testing.T) {
	us := users(4, "Design")
	cfg := config(models.MealTypeConfig{MealType: models.MealLunch, Enabled: true, DefaultParticipating: true})
	locs := map[uuid.UUID]models.Location{us[0].ID: models.LocationWFH}
	recs := []models.ParticipationRecord{{UserID: us[0].ID, MealType: models.MealLunch, IsParticipating: false}}

	agg := Tally(Input{Date: testDate, Users: us, Config: cfg, Records: recs, Locations: locs})
	lunch := agg.Meals[models.MealLunch]
	assert.Equal(t, 3, lunch.ByLocation["Office"])
	assert.Equal(t, 0, lunch.ByLocation["WFH"])

	wfh := Tally(Input{Date: testDate, Users: us, Config: cfg, Records: recs, Locations: locs,
		Scope: Scope{Location: models.LocationWFH}})
	assert.Equal(t, 1, wfh.TotalUsers)
	assert.Equal(t, 0, wfh.Meals[models.MealLunch].OptedIn)
}

func TestTallyScopeAndInactive(t *testing.T) {
	us := append(users(2, "A"), users(3, "B")...)
	us[0].Active = false
	cfg := config(models.MealTypeConfig{MealType: models.MealLunch, Enabled: true, DefaultParticipating: true})

	all := Tally(Input{Date: testDate, Users: us, Config: cfg})
	assert.Equal(t, 4, all.TotalUsers)

	teamA := Tally(Input{Date: testDate, Users: us, Config: cfg, Scope: Scope{Team: "A"}})
	assert.Equal(t, 1, teamA.TotalUsers)
	assert.Equal(t, map[string]int{"A": 1}, teamA.Meals[models.MealLunch].ByTeam)
}

func TestTallyOrderIndependent(t *testing.T) {
	us := append(users(6, "A"), users(4, "B")...)
	cfg := config(
		models.MealTypeConfig{MealType: models.MealLunch, Enabled: true, DefaultParticipating: true},
		models.MealTypeConfig{MealType: models.MealSnacks, Enabled: true, DefaultParticipating: false},
	)
	var recs []models.ParticipationRecord
	for i, u := range us {
		recs = append(recs, models.ParticipationRecord{UserID: u.ID, MealType: models.MealSnacks, IsParticipating: i%3 == 0})
	}
	ts := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	want := Tally(Input{Date: testDate, Users: us, Config: cfg, Records: recs, Now: ts})

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 5; i++ {
		shuffled := append([]models.User(nil), us...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Tally(Input{Date: testDate, Users: shuffled, Config: cfg, Records: recs, Now: ts}))
	}
}

func TestChoiceSource(t *testing.T) {
	id := uuid.New()
	ix := IndexRecords([]models.ParticipationRecord{{UserID: id, MealType: models.MealLunch, IsParticipating: false}})

	c := ix.Choice(id, models.MealLunch)
	assert.Equal(t, SourceExplicit, c.Source())
	assert.False(t, c.Participating(models.MealTypeConfig{DefaultParticipating: true}))

	d := ix.Choice(id, models.MealSnacks)
	assert.Equal(t, SourceDefault, d.Source())
	assert.Equal(t, Default{MealType: models.MealSnacks}, d)
	assert.True(t, d.Participating(models.MealTypeConfig{DefaultParticipating: true}))
}

func TestGroupings(t *testing.T) {
	us := append(users(2, "A"), users(1, "")...)
	cfg := config(models.MealTypeConfig{MealType: models.MealLunch, Enabled: true, DefaultParticipating: true})
	locs := map[uuid.UUID]models.Location{us[1].ID: models.LocationWFH}
	in := Input{Date: testDate, Users: us, Config: cfg, Locations: locs}

	roster := BuildRoster(in)
	require.Len(t, roster, 3)

	teams := GroupByTeam(roster)
	require.Len(t, teams, 2)
	assert.Equal(t, "A", teams[0].Name)
	assert.Equal(t, 2, teams[0].Meals[models.MealLunch])
	assert.Equal(t, models.UnassignedTeam, teams[1].Name)

	byLoc := GroupByLocation(roster)
	require.Len(t, byLoc, 2)
	assert.Equal(t, "Office", byLoc[0].Name)
	assert.Equal(t, 2, byLoc[0].TotalMembers)
	assert.Equal(t, "WFH", byLoc[1].Name)
}

func TestEngineComputeFromStore(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	for _, u := range users(4, "Platform") {
		u := u
		u.Email = u.Name + "@example.com"
		require.NoError(t, st.CreateUser(ctx, &u))
	}
	ts := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	e := NewEngine(st, nil, nil).WithClock(func() time.Time { return ts })

	agg, err := e.Compute(ctx, testDate, Scope{})
	require.NoError(t, err)
	assert.Equal(t, 4, agg.TotalUsers)
	assert.Equal(t, 4, agg.Meals[models.MealLunch].OptedIn)
	assert.Equal(t, 4, agg.Meals[models.MealOptionalDinner].OptedIn)
	assert.NotContains(t, agg.Meals, models.MealIftar)
	assert.Equal(t, 4, agg.TotalParticipating)
	assert.Equal(t, ts, agg.Timestamp)

	_, err = e.Compute(ctx, models.Date{}, Scope{})
	assert.Error(t, err)
}
