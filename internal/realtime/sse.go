package realtime

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/pkg/apperr"
	"github.com/mhp-app/backend/pkg/response"
)

// RetryMillis is the reconnect delay advertised to EventSource clients.
const RetryMillis = 5000

// Authenticator resolves a bearer token to an active user.
type Authenticator func(ctx context.Context, token string) (*models.User, error)

// Stream serves the live headcount feed over server-sent events and websockets.
type Stream struct {
	hub    *Hub
	auth   Authenticator
	today  func() models.Date
	logger *zap.Logger
}

// NewStream creates the streaming transport. today returns the current date in the app zone.
func NewStream(hub *Hub, auth Authenticator, today func() models.Date, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{hub: hub, auth: auth, today: today, logger: logger}
}

func bearerToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// subscribe authenticates the request and opens a subscription for ?date=&team=.
func (s *Stream) subscribe(c *gin.Context) (*Subscription, bool) {
	token := bearerToken(c)
	if token == "" {
		response.Unauthorized(c, "missing token")
		return nil, false
	}
	viewer, err := s.auth(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	date := s.today()
	if raw := c.Query("date"); raw != "" {
		date, err = models.ParseDate(raw)
		if err != nil {
			response.Error(c, apperr.New(apperr.ValidationError, "%s", err.Error()))
			return nil, false
		}
	}
	sub, err := s.hub.Subscribe(c.Request.Context(), viewer, date, c.Query("team"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return sub, true
}

// ServeSSE handles GET /api/stream/headcount.
func (s *Stream) ServeSSE(c *gin.Context) {
	sub, ok := s.subscribe(c)
	if !ok {
		return
	}
	defer sub.Close()

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	first := true
	write := func(ev sse.Event) bool {
		if first {
			ev.Retry = RetryMillis
			first = false
		}
		if err := sse.Encode(w, ev); err != nil {
			s.logger.Debug("sse write failed", zap.String("subscription_id", sub.ID), zap.Error(err))
			return false
		}
		w.Flush()
		s.hub.metrics.IncEvent(ev.Event)
		return true
	}

	heartbeat := time.NewTimer(s.hub.Heartbeat())
	defer heartbeat.Stop()
	resetHeartbeat := func() {
		if !heartbeat.Stop() {
			select {
			case <-heartbeat.C:
			default:
			}
		}
		heartbeat.Reset(s.hub.Heartbeat())
	}

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case ev := <-sub.Snapshots():
			if !write(sse.Event{Event: ev.Name, Data: ev.Data}) {
				return
			}
			resetHeartbeat()
		case ev := <-sub.Notices():
			if !write(sse.Event{Event: ev.Name, Data: ev.Data}) {
				return
			}
			resetHeartbeat()
		case <-heartbeat.C:
			if !write(sse.Event{Event: EventHeartbeat, Data: ""}) {
				return
			}
			heartbeat.Reset(s.hub.Heartbeat())
		}
	}
}
