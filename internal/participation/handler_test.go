package participation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhp-app/backend/internal/auth"
	"github.com/mhp-app/backend/internal/cutoff"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store/memory"
	"github.com/mhp-app/backend/pkg/apperr"
)

type handlerFixture struct {
	router *gin.Engine
	store  *memory.Store
	actor  *models.User
	emp    *models.User
	lead   *models.User
	admin  *models.User
}

func newHandlerFixture(t *testing.T, now time.Time) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memory.New()
	f := &handlerFixture{store: st}
	add := func(email string, role models.Role) *models.User {
		u := &models.User{Name: email, Email: email, Role: role, Team: "Platform", Active: true}
		require.NoError(t, st.CreateUser(context.Background(), u))
		return u
	}
	f.emp = add("emp@example.com", models.RoleEmployee)
	f.lead = add("lead@example.com", models.RoleTeamLead)
	f.admin = add("admin@example.com", models.RoleAdmin)

	svc := NewService(st, Options{
		Policy: cutoff.New(cutoff.DefaultHour, time.UTC),
		Clock:  func() time.Time { return now },
	})
	h := NewHandler(svc)
	r := gin.New()
	api := r.Group("/api/meals", func(c *gin.Context) { c.Set(auth.ActorKey, f.actor) })
	api.GET("/today", h.Today)
	api.GET("/date/:date", h.ForDate)
	api.GET("/user/:id", h.ForUser)
	api.PUT("/participation", h.Update)
	api.POST("/participation/admin", h.Override)
	api.POST("/participation/bulk", h.Bulk)
	f.router = r
	return f
}

func (f *handlerFixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(method, path, &buf))
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    apperr.Kind     `json:"kind"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestHandlerTodayDefaults(t *testing.T) {
	f := newHandlerFixture(t, time.Date(2030, 1, 10, 9, 0, 0, 0, time.UTC))
	f.actor = f.emp

	w := f.do(http.MethodGet, "/api/meals/today", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view DayView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	assert.Equal(t, models.NewDate(2030, 1, 10), view.Date)
	assert.True(t, view.CanEdit)
	for _, m := range view.Meals {
		assert.True(t, m.IsParticipating, m.MealType)
	}
}

func TestHandlerUpdateAfterCutoff(t *testing.T) {
	f := newHandlerFixture(t, time.Date(2030, 1, 10, 21, 0, 0, 0, time.UTC))
	f.actor = f.emp

	w := f.do(http.MethodPut, "/api/meals/participation", map[string]any{"meal_type": "lunch", "is_participating": false})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperr.CutoffPassed, decode(t, w).Kind)

	w = f.do(http.MethodPut, "/api/meals/participation", map[string]any{"date": "2030-01-11", "meal_type": "lunch", "is_participating": false})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPut, "/api/meals/participation", map[string]any{"meal_type": "lunch"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPut, "/api/meals/participation", map[string]any{"date": "2030-01-11", "meal_type": "brunch", "is_participating": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperr.UnknownMealType, decode(t, w).Kind)
}

func TestHandlerOverrideAndBulk(t *testing.T) {
	f := newHandlerFixture(t, time.Date(2030, 1, 10, 22, 0, 0, 0, time.UTC))

	f.actor = f.emp
	w := f.do(http.MethodPost, "/api/meals/participation/admin", map[string]any{
		"user_id": f.lead.ID, "date": "2030-01-10", "meal_type": "lunch", "is_participating": false,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperr.PermissionDenied, decode(t, w).Kind)

	f.actor = f.lead
	w = f.do(http.MethodPost, "/api/meals/participation/admin", map[string]any{
		"user_id": f.emp.ID, "date": "2030-01-10", "meal_type": "lunch", "is_participating": false, "reason": "sick",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var rec models.ParticipationRecord
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &rec))
	assert.Equal(t, models.ModifiedByAdminOverride, rec.ModifiedBy)

	f.actor = f.admin
	w = f.do(http.MethodPost, "/api/meals/participation/bulk", map[string]any{
		"user_ids": []any{f.emp.ID, f.lead.ID},
		"date":     "2030-01-12",
		"meals":    map[string]bool{"lunch": false, "snacks": false},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var res BulkResult
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &res))
	assert.Equal(t, 4, res.UpdatedCount)
	assert.Empty(t, res.Failed)

	w = f.do(http.MethodGet, "/api/meals/user/"+f.emp.ID.String()+"?date=2030-01-12", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view DayView
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &view))
	for _, m := range view.Meals {
		if m.MealType == models.MealLunch || m.MealType == models.MealSnacks {
			assert.False(t, m.IsParticipating, m.MealType)
		}
	}

	w = f.do(http.MethodGet, "/api/meals/date/not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
