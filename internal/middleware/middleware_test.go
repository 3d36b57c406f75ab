package middleware

import (
	"context"
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

func setup(t *testing.T) (*gin.Engine, map[models.Role]string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memory.New()
	jwt := auth.NewJWTService("secret", 1)
	svc := auth.NewService(st, jwt, nil)

	tokens := map[models.Role]string{}
	for _, role := range []models.Role{models.RoleEmployee, models.RoleTeamLead, models.RoleAdmin} {
		u := &models.User{Name: string(role), Email: string(role) + "@example.com", Role: role, Active: true}
		require.NoError(t, st.CreateUser(context.Background(), u))
		tok, err := jwt.Generate(u)
		require.NoError(t, err)
		tokens[role] = tok
	}

	r := gin.New()
	api := r.Group("", JWT(svc))
	api.GET("/any", func(c *gin.Context) { c.String(http.StatusOK, Actor(c).Email) })
	api.GET("/elevated", RequireElevated(), func(c *gin.Context) { c.Status(http.StatusOK) })
	api.GET("/admin", RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r, tokens
}

func do(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMiddleware(t *testing.T) {
	r, tokens := setup(t)

	assert.Equal(t, http.StatusUnauthorized, do(r, "/any", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/any", "bogus").Code)

	w := do(r, "/any", tokens[models.RoleEmployee])
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "employee@example.com", w.Body.String())
}

func TestRoleGuards(t *testing.T) {
	r, tokens := setup(t)

	tests := []struct {
		path string
		role models.Role
		want int
	}{
		{"/elevated", models.RoleEmployee, http.StatusForbidden},
		{"/elevated", models.RoleTeamLead, http.StatusOK},
		{"/elevated", models.RoleAdmin, http.StatusOK},
		{"/admin", models.RoleTeamLead, http.StatusForbidden},
		{"/admin", models.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, do(r, tt.path, tokens[tt.role]).Code)
		})
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://localhost:3000"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
