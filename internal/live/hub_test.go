package live

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colorbet/internal/game"
)

func TestHub_DeliversEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(4, nil)
	defer hub.Close()

	r := gin.New()
	r.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Notify(game.RoundEvent{
		Type:  game.EventRoundCreated,
		Round: game.Round{ID: "r1", SequenceNumber: 7, Status: game.StatusWaiting},
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got game.RoundEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, game.EventRoundCreated, got.Type)
	assert.Equal(t, "r1", got.Round.ID)
	assert.Equal(t, int64(7), got.Round.SequenceNumber)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	hub := NewHub(1, nil)
	slow := hub.subscribe("slow")
	fast := hub.subscribe("fast")

	event := game.RoundEvent{Type: game.EventRoundBetting}
	hub.Notify(event)
	<-fast.send
	hub.Notify(event)

	assert.Equal(t, 1, hub.Clients())
	_, open := <-slow.send
	assert.True(t, open, "queued event is still readable")
	_, open = <-slow.send
	assert.False(t, open, "slow client queue is closed")

	<-fast.send
	hub.Close()
	_, open = <-fast.send
	assert.False(t, open)
}
