package network

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer upgrades every request and echoes text frames back through Send.
func echoServer(t *testing.T, conns chan<- *WSConnection) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewWSConnection(ws, 4)
		if conns != nil {
			conns <- c
		}
		_ = c.Serve(func(data []byte) {
			_ = c.Send(data)
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestWSConnectionEcho(t *testing.T) {
	srv := echoServer(t, nil)
	ws := dial(t, srv)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"RESET_FOG"}`)))
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.Equal(t, `{"type":"RESET_FOG"}`, string(data))
}

func TestWSConnectionCloseWithCode(t *testing.T) {
	conns := make(chan *WSConnection, 1)
	srv := echoServer(t, conns)
	ws := dial(t, srv)

	var c *WSConnection
	select {
	case c = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("server connection not established")
	}

	c.CloseWith(CloseReplaced, "replaced")

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := ws.ReadMessage()
	require.Error(t, err)
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, CloseReplaced, closeErr.Code)
	assert.Equal(t, "replaced", closeErr.Text)

	assert.ErrorIs(t, c.Send([]byte("late")), ErrConnectionClosed)
}

func TestWSConnectionSendQueueFull(t *testing.T) {
	c := &WSConnection{send: make(chan []byte, 2), done: make(chan struct{})}

	require.NoError(t, c.Send([]byte("a")))
	require.NoError(t, c.Send([]byte("b")))
	assert.ErrorIs(t, c.Send([]byte("c")), ErrSendQueueFull)
}
