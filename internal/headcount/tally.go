package headcount

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mhp-app/backend/internal/models"
)

// Scope restricts an aggregation to one team and/or one location. Empty fields match all.
type Scope struct {
	Team     string
	Location models.Location
}

// Input is everything one aggregation pass reads for a date.
type Input struct {
	Date      models.Date
	Scope     Scope
	Users     []models.User
	Config    models.MealConfig
	Records   []models.ParticipationRecord
	Locations map[uuid.UUID]models.Location
	Now       time.Time
}

func teamBucket(team string) string {
	if team == "" {
		return models.UnassignedTeam
	}
	return team
}

func (in Input) locationOf(id uuid.UUID) models.Location {
	if loc, ok := in.Locations[id]; ok && loc != "" {
		return loc
	}
	return models.LocationOffice
}

// members returns the active users inside the scope.
func (in Input) members() []models.User {
	out := make([]models.User, 0, len(in.Users))
	for _, u := range in.Users {
		if !u.Active {
			continue
		}
		if in.Scope.Team != "" && u.Team != in.Scope.Team {
			continue
		}
		if in.Scope.Location != "" && in.locationOf(u.ID) != in.Scope.Location {
			continue
		}
		out = append(out, u)
	}
	return out
}

// Tally folds the input into an aggregate. It is pure and independent of user order.
// total_participating counts distinct users opted into at least one enabled meal.
func Tally(in Input) *models.HeadcountAggregate {
	enabled := in.Config.Enabled()
	members := in.members()
	ix := IndexRecords(in.Records)

	agg := &models.HeadcountAggregate{
		Date:          in.Date,
		Team:          in.Scope.Team,
		Location:      in.Scope.Location,
		Meals:         make(map[models.MealType]models.MealHeadcount, len(enabled)),
		ConfigVersion: in.Config.Version,
		Timestamp:     in.Now,
	}
	for _, mc := range enabled {
		h := models.MealHeadcount{
			ByTeam:     make(map[string]int),
			ByLocation: map[string]int{string(models.LocationOffice): 0, string(models.LocationWFH): 0},
		}
		for _, u := range members {
			h.ByTeam[teamBucket(u.Team)] = 0
		}
		agg.Meals[mc.MealType] = h
	}

	for _, u := range members {
		agg.TotalUsers++
		loc := in.locationOf(u.ID)
		joined := false
		for _, mc := range enabled {
			h := agg.Meals[mc.MealType]
			if ix.Choice(u.ID, mc.MealType).Participating(mc) {
				h.OptedIn++
				h.ByTeam[teamBucket(u.Team)]++
				h.ByLocation[string(loc)]++
				joined = true
			} else {
				h.OptedOut++
			}
			agg.Meals[mc.MealType] = h
		}
		if joined {
			agg.TotalParticipating++
		}
	}
	return agg
}

// BuildRoster returns each member's effective meals, ordered by team then name.
func BuildRoster(in Input) []models.RosterEntry {
	enabled := in.Config.Enabled()
	ix := IndexRecords(in.Records)
	members := in.members()

	out := make([]models.RosterEntry, 0, len(members))
	for _, u := range members {
		e := models.RosterEntry{
			UserID:   u.ID.String(),
			Name:     u.Name,
			Email:    u.Email,
			Team:     teamBucket(u.Team),
			Location: in.locationOf(u.ID),
			Meals:    make(map[models.MealType]bool, len(enabled)),
		}
		for _, mc := range enabled {
			e.Meals[mc.MealType] = ix.Choice(u.ID, mc.MealType).Participating(mc)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Team != out[j].Team {
			return out[i].Team < out[j].Team
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Group is a breakdown bucket of a roster.
type Group struct {
	Name         string                  `json:"name"`
	TotalMembers int                     `json:"total_members"`
	Meals        map[models.MealType]int `json:"meals"`
	Members      []models.RosterEntry    `json:"members"`
}

// GroupByTeam buckets roster entries by team.
func GroupByTeam(entries []models.RosterEntry) []Group {
	return groupBy(entries, func(e models.RosterEntry) string { return e.Team })
}

// GroupByLocation buckets roster entries by work location.
func GroupByLocation(entries []models.RosterEntry) []Group {
	return groupBy(entries, func(e models.RosterEntry) string { return string(e.Location) })
}

func groupBy(entries []models.RosterEntry, key func(models.RosterEntry) string) []Group {
	idx := make(map[string]int)
	var groups []Group
	for _, e := range entries {
		k := key(e)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, Group{Name: k, Meals: make(map[models.MealType]int)})
		}
		g := &groups[i]
		g.TotalMembers++
		g.Members = append(g.Members, e)
		for mt, in := range e.Meals {
			if _, seen := g.Meals[mt]; !seen {
				g.Meals[mt] = 0
			}
			if in {
				g.Meals[mt]++
			}
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })
	return groups
}
