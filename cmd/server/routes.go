package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/config"
	"github.com/mhp-app/backend/internal/announcements"
	"github.com/mhp-app/backend/internal/auth"
	"github.com/mhp-app/backend/internal/headcount"
	"github.com/mhp-app/backend/internal/mealconfig"
	"github.com/mhp-app/backend/internal/middleware"
	"github.com/mhp-app/backend/internal/participation"
	"github.com/mhp-app/backend/internal/realtime"
	"github.com/mhp-app/backend/internal/specialdays"
	"github.com/mhp-app/backend/internal/teams"
	"github.com/mhp-app/backend/internal/users"
	"github.com/mhp-app/backend/internal/worklocation"
	"github.com/mhp-app/backend/pkg/response"
)

type handlers struct {
	auth          *auth.Handler
	participation *participation.Handler
	mealConfig    *mealconfig.Handler
	headcount     *headcount.Handler
	workLocation  *worklocation.Handler
	specialDays   *specialdays.Handler
	users         *users.Handler
	teams         *teams.Handler
	announcements *announcements.Handler
	stream        *realtime.Stream
}

func newRouter(cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry, authSvc *auth.Service, h handlers, checks []healthCheck) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", health(checks))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Streams authenticate from ?token= since EventSource cannot set headers.
	router.GET("/api/stream/headcount", h.stream.ServeSSE)
	router.GET("/ws/headcount", h.stream.ServeWS)

	api := router.Group("/api")
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.auth.Register)
		authGroup.POST("/login", h.auth.Login)
	}

	api.Use(middleware.JWT(authSvc))
	admin := middleware.RequireAdmin()
	elevated := middleware.RequireElevated()

	api.GET("/auth/me", h.auth.Me)

	meals := api.Group("/meals")
	{
		meals.GET("/today", h.participation.Today)
		meals.GET("/date/:date", h.participation.ForDate)
		meals.GET("/user/:id", h.participation.ForUser)
		meals.PUT("/participation", h.participation.Update)
		meals.POST("/participation/admin", elevated, h.participation.Override)
		meals.POST("/participation/bulk", elevated, h.participation.Bulk)
		meals.GET("/config", h.mealConfig.Get)
		meals.PUT("/config", admin, h.mealConfig.Update)
	}

	hc := api.Group("/headcount", elevated)
	{
		hc.GET("/today", h.headcount.Today)
		hc.GET("/by-team", h.headcount.ByTeam)
		hc.GET("/by-location", h.headcount.ByLocation)
		hc.GET("/:date", h.headcount.ForDate)
	}

	wl := api.Group("/work-locations")
	{
		wl.GET("/me", h.workLocation.Me)
		wl.PUT("", h.workLocation.Update)
		wl.PUT("/admin", elevated, h.workLocation.AdminUpdate)
		wl.GET("/date", elevated, h.workLocation.ByDate)
	}

	sd := api.Group("/special-days")
	{
		sd.GET("", h.specialDays.Get)
		sd.GET("/range", h.specialDays.Range)
		sd.POST("", admin, h.specialDays.Create)
		sd.DELETE("/:id", admin, h.specialDays.Delete)
	}

	u := api.Group("/users")
	{
		u.GET("", admin, h.users.List)
		u.GET("/team", elevated, h.users.Team)
		u.POST("", admin, h.users.Create)
		u.PATCH("/:id", admin, h.users.Update)
		u.DELETE("/:id", admin, h.users.Deactivate)
	}

	t := api.Group("/teams")
	{
		t.GET("", h.teams.List)
		t.GET("/me", elevated, h.teams.Mine)
		t.GET("/all", admin, h.teams.All)
		t.GET("/:name", elevated, h.teams.ByName)
	}

	ann := api.Group("/announcements")
	{
		ann.GET("", h.announcements.Feed)
		ann.POST("/draft", elevated, h.announcements.Draft)
		ann.GET("/drafts", elevated, h.announcements.Drafts)
		ann.POST("/:id/publish", elevated, h.announcements.Publish)
	}

	return router
}

func health(checks []healthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		status := gin.H{"status": "ok"}
		for _, hc := range checks {
			if err := hc.check(ctx); err != nil {
				response.ServiceUnavailable(c, hc.name+": "+err.Error())
				return
			}
			status[hc.name] = "ok"
		}
		c.JSON(http.StatusOK, response.Body{Success: true, Data: status})
	}
}
