package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/participation"
)

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func readWSHeadcount(t *testing.T, conn *websocket.Conn) *models.HeadcountAggregate {
	t.Helper()
	for {
		msg := readWS(t, conn)
		if msg.Event == EventHeartbeat {
			continue
		}
		require.Equal(t, EventHeadcount, msg.Event)
		var agg models.HeadcountAggregate
		require.NoError(t, json.Unmarshal(msg.Data, &agg))
		return &agg
	}
}

func TestWebsocketStream(t *testing.T) {
	f := newHubFixture(t)
	f.hub.SetHeartbeat(100 * time.Millisecond)
	srv := newStreamServer(t, f)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/headcount?token=admin-token"

	conn := dialWS(t, url)
	defer conn.Close()

	first := readWS(t, conn)
	require.Equal(t, EventHeadcount, first.Event)
	var agg models.HeadcountAggregate
	require.NoError(t, json.Unmarshal(first.Data, &agg))
	assert.Equal(t, hubDate, agg.Date)
	assert.Equal(t, 4, agg.Meals[models.MealLunch].OptedIn)
	assert.Equal(t, 1, f.hub.SubscriberCount(hubDate))

	hb := readWS(t, conn)
	assert.Equal(t, EventHeartbeat, hb.Event)
	assert.Empty(t, hb.Data)

	_, err := f.svc.Set(context.Background(), participation.SetRequest{
		UserID: f.emp.ID, Date: hubDate, MealType: models.MealLunch, Value: false, Actor: f.emp,
	})
	require.NoError(t, err)

	updated := readWSHeadcount(t, conn)
	assert.Equal(t, 3, updated.Meals[models.MealLunch].OptedIn)
	assert.Equal(t, 1, updated.Meals[models.MealLunch].OptedOut)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return f.hub.SubscriberCount(hubDate) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	f := newHubFixture(t)
	srv := newStreamServer(t, f)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/headcount?token=bogus"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, 401, resp.StatusCode)
	assert.Zero(t, f.hub.SubscriberCount(hubDate))
}
