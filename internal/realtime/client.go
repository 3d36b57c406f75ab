package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for the websocket heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the token query parameter authenticates the upgrade
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client is a single WebSocket connection bound to one subscription.
type Client struct {
	sub    *Subscription
	hub    *Hub
	conn   *websocket.Conn
	logger *zap.Logger
}

// ServeWS handles GET /ws/headcount: the same feed as ServeSSE over a websocket.
func (s *Stream) ServeWS(c *gin.Context) {
	sub, ok := s.subscribe(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		sub.Close()
		return
	}
	client := &Client{sub: sub, hub: s.hub, conn: conn, logger: s.logger}
	go client.writePump()
	client.readPump()
}

// readPump drains client frames so close and pong frames are processed.
func (c *Client) readPump() {
	defer func() {
		c.sub.Close()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	}
}

func (c *Client) write(msg WSMessage) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		return false
	}
	c.hub.metrics.IncEvent(msg.Event)
	return true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	heartbeat := time.NewTicker(c.hub.Heartbeat())
	defer func() {
		ticker.Stop()
		heartbeat.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.sub.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev := <-c.sub.Snapshots():
			if !c.write(WSMessage{Event: ev.Name, Data: ev.Data}) {
				return
			}
			heartbeat.Reset(c.hub.Heartbeat())
		case ev := <-c.sub.Notices():
			if !c.write(WSMessage{Event: ev.Name, Data: ev.Data}) {
				return
			}
			heartbeat.Reset(c.hub.Heartbeat())
		case <-heartbeat.C:
			if !c.write(WSMessage{Event: EventHeartbeat}) {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
