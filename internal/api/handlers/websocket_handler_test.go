package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipshape-api-server/internal/auth"
	"shipshape-api-server/internal/socket"
)

func newWsServer(t *testing.T) (*httptest.Server, *socket.Hub, *auth.UserTokens) {
	t.Helper()
	tokens, err := auth.NewUserTokens("ws-secret", time.Hour)
	require.NoError(t, err)
	hub := socket.NewHub()

	r := gin.New()
	h := &WebSocketHandler{Hub: hub, Tokens: tokens}
	r.GET("/ws", h.ServeWs)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub, tokens
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func TestServeWsRejectsMissingOrBadToken(t *testing.T) {
	srv, hub, _ := newWsServer(t)
	other, err := auth.NewUserTokens("not-ours", time.Hour)
	require.NoError(t, err)
	forged, err := other.Sign("carrier-1", "carrier")
	require.NoError(t, err)

	for _, q := range []string{"?userId=carrier-1", "?token=garbage", "?token=" + forged} {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, q), nil)
		require.Error(t, err, q)
		require.NotNil(t, resp, q)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, q)
	}
	assert.Zero(t, hub.Connected("carrier-1"))
}

func TestServeWsRegistersTokenSubject(t *testing.T) {
	srv, hub, tokens := newWsServer(t)
	signed, err := tokens.Sign("carrier-1", "carrier")
	require.NoError(t, err)

	// userId in the query does not choose the stream; the token does.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token="+signed+"&userId=exporter-9"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return hub.Connected("carrier-1") == 1 }, time.Second, 10*time.Millisecond)
	assert.Zero(t, hub.Connected("exporter-9"))

	require.NoError(t, hub.Send("carrier-1", []byte(`{"event":"notification"}`)))
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"notification"}`, string(msg))
}
