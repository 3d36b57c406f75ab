package headcount

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhp-app/backend/internal/auth"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store/memory"
)

func newHandlerRouter(t *testing.T) (*gin.Engine, map[string]*models.User, **models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	st := memory.New()
	users := map[string]*models.User{}
	for _, u := range []models.User{
		{Name: "admin", Email: "admin@example.com", Role: models.RoleAdmin, Active: true},
		{Name: "lead", Email: "lead@example.com", Role: models.RoleTeamLead, Team: "A", Active: true},
		{Name: "a1", Email: "a1@example.com", Role: models.RoleEmployee, Team: "A", Active: true},
		{Name: "b1", Email: "b1@example.com", Role: models.RoleEmployee, Team: "B", Active: true},
	} {
		u := u
		require.NoError(t, st.CreateUser(ctx, &u))
		users[u.Name] = &u
	}
	require.NoError(t, st.UpsertWorkLocation(ctx, &models.WorkLocation{
		UserID: users["b1"].ID, Date: testDate, Location: models.LocationWFH,
	}))
	require.NoError(t, st.UpsertParticipation(ctx, &models.ParticipationRecord{
		UserID: users["a1"].ID, Date: testDate, MealType: models.MealLunch, IsParticipating: false, ModifiedBy: models.ModifiedBySelf,
	}))

	actor := new(*models.User)
	h := NewHandler(NewEngine(st, nil, nil), func() models.Date { return testDate })
	r := gin.New()
	g := r.Group("/api/headcount", func(c *gin.Context) { c.Set(auth.ActorKey, *actor) })
	g.GET("/today", h.Today)
	g.GET("/by-team", h.ByTeam)
	g.GET("/by-location", h.ByLocation)
	g.GET("/:date", h.ForDate)
	return r, users, actor
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHeadcountHandlerScopes(t *testing.T) {
	r, users, actor := newHandlerRouter(t)

	*actor = users["a1"]
	assert.Equal(t, http.StatusForbidden, get(r, "/api/headcount/today").Code)

	*actor = users["lead"]
	assert.Equal(t, http.StatusForbidden, get(r, "/api/headcount/today?team=B").Code)
	w := get(r, "/api/headcount/today")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data models.HeadcountAggregate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.TotalUsers)
	assert.Equal(t, 1, body.Data.Meals[models.MealLunch].OptedIn)

	*actor = users["admin"]
	w = get(r, "/api/headcount/"+testDate.String()+"?location=WFH")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Data.TotalUsers)

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/headcount/2025-13-45").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/headcount/today?location=Moon").Code)
}

func TestHeadcountBreakdowns(t *testing.T) {
	r, users, actor := newHandlerRouter(t)
	*actor = users["admin"]

	w := get(r, "/api/headcount/by-team")
	require.Equal(t, http.StatusOK, w.Code)
	var team struct {
		Data struct {
			Total int     `json:"total_employees"`
			Teams []Group `json:"teams"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &team))
	assert.Equal(t, 4, team.Data.Total)
	names := []string{}
	for _, g := range team.Data.Teams {
		names = append(names, g.Name)
	}
	assert.Equal(t, []string{"A", "B", models.UnassignedTeam}, names)

	w = get(r, "/api/headcount/by-location?team=B")
	require.Equal(t, http.StatusOK, w.Code)
	var loc struct {
		Data struct {
			Office int `json:"office_count"`
			WFH    int `json:"wfh_count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loc))
	assert.Equal(t, 0, loc.Data.Office)
	assert.Equal(t, 1, loc.Data.WFH)
}
