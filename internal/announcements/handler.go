package announcements

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mhp-app/backend/internal/middleware"
	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/response"
)

// DraftRequest is the body for POST /api/announcements/draft.
type DraftRequest struct {
	Title    string `json:"title" binding:"required"`
	Body     string `json:"body" binding:"required"`
	Audience string `json:"audience"`
}

// PublishRequest is the optional body for POST /api/announcements/:id/publish.
type PublishRequest struct {
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// Handler serves announcement endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an announcements handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Feed handles GET /api/announcements.
func (h *Handler) Feed(c *gin.Context) {
	list, err := h.svc.Feed(c.Request.Context(), middleware.Actor(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"announcements": list, "total": len(list)})
}

// Draft handles POST /api/announcements/draft.
func (h *Handler) Draft(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	a, err := h.svc.CreateDraft(c.Request.Context(), middleware.Actor(c), DraftInput(req))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, a)
}

// Drafts handles GET /api/announcements/drafts?status=.
func (h *Handler) Drafts(c *gin.Context) {
	status := models.AnnouncementStatus(c.Query("status"))
	list, err := h.svc.ListOwn(c.Request.Context(), middleware.Actor(c), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"announcements": list, "total": len(list)})
}

// Publish handles POST /api/announcements/:id/publish.
func (h *Handler) Publish(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid announcement id")
		return
	}
	var req PublishRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	a, err := h.svc.Publish(c.Request.Context(), middleware.Actor(c), id, req.ScheduledAt)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, a)
}
