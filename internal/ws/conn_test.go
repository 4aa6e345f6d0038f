package ws_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewire/pulsewire/internal/ws"
)

type captureHandler struct {
	msgs   chan []byte
	closed chan int
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{
		msgs:   make(chan []byte, 16),
		closed: make(chan int, 1),
	}
}

func (h *captureHandler) OnMessage(c *ws.Conn, data []byte) {
	h.msgs <- append([]byte(nil), data...)
}

func (h *captureHandler) OnClose(c *ws.Conn, code int) {
	h.closed <- code
}

type discardHandler struct{}

func (discardHandler) OnMessage(*ws.Conn, []byte) {}
func (discardHandler) OnClose(*ws.Conn, int)      {}

// startConnServer runs a server that accepts one connection, hands it
// to the test through the returned channel, and drives it with Run.
func startConnServer(t *testing.T, opts ws.Options, h ws.Handler) (string, <-chan *ws.Conn) {
	t.Helper()
	conns := make(chan *ws.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := ws.Accept(w, r, "conn-under-test", opts, h)
		if err != nil {
			return
		}
		conns <- c
		c.Run()
	}))
	t.Cleanup(srv.Close)
	return srv.URL, conns
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(url, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func waitConn(t *testing.T, conns <-chan *ws.Conn) *ws.Conn {
	t.Helper()
	select {
	case c := <-conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server connection")
		return nil
	}
}

func waitClose(t *testing.T, closed <-chan int) int {
	t.Helper()
	select {
	case code := <-closed:
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for OnClose")
		return 0
	}
}

func TestConn_RoundTrip(t *testing.T) {
	h := newCaptureHandler()
	url, conns := startConnServer(t, ws.Options{}, h)

	client := dial(t, url)
	c := waitConn(t, conns)
	assert.Equal(t, ws.StateOpen, c.State())
	assert.Equal(t, "conn-under-test", c.ID())

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"ping":true}`)))
	select {
	case got := <-h.msgs:
		assert.JSONEq(t, `{"ping":true}`, string(got))
	case <-time.After(2 * time.Second):
		t.Fatal("inbound frame never reached the handler")
	}

	require.NoError(t, c.Send([]byte(`{"pong":true}`)))
	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, got, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"pong":true}`, string(got))
}

func TestConn_ServerCloseReachesPeerAndHandler(t *testing.T) {
	h := newCaptureHandler()
	url, conns := startConnServer(t, ws.Options{}, h)

	client := dial(t, url)
	c := waitConn(t, conns)

	c.Close(websocket.CloseGoingAway, "shutting down")

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()
	var ce *websocket.CloseError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, websocket.CloseGoingAway, ce.Code)
	assert.Equal(t, "shutting down", ce.Text)

	assert.Equal(t, websocket.CloseGoingAway, waitClose(t, h.closed))
	assert.Equal(t, ws.StateClosed, c.State())
}

func TestConn_PeerCloseCodePropagates(t *testing.T) {
	h := newCaptureHandler()
	url, conns := startConnServer(t, ws.Options{}, h)

	client := dial(t, url)
	c := waitConn(t, conns)

	deadline := time.Now().Add(time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	require.NoError(t, client.WriteControl(websocket.CloseMessage, msg, deadline))

	assert.Equal(t, websocket.CloseNormalClosure, waitClose(t, h.closed))
	assert.Equal(t, ws.StateClosed, c.State())
}

func TestConn_SendAfterCloseReportsClosed(t *testing.T) {
	h := newCaptureHandler()
	url, conns := startConnServer(t, ws.Options{}, h)

	dial(t, url)
	c := waitConn(t, conns)

	c.Close(websocket.CloseNormalClosure, "")
	waitClose(t, h.closed)

	assert.ErrorIs(t, c.Send([]byte("late")), ws.ErrConnClosed)
}

func TestConn_SendQueueOverrunForcesClose(t *testing.T) {
	conns := make(chan *ws.Conn, 1)
	var once sync.Once
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No Run here: nothing drains the queue, so the overflow
		// path is deterministic.
		c, err := ws.Accept(w, r, "slow-peer", ws.Options{SendBuffer: 2}, discardHandler{})
		if err != nil {
			return
		}
		conns <- c
		<-release
	}))
	t.Cleanup(func() {
		once.Do(func() { close(release) })
		srv.Close()
	})

	dial(t, srv.URL)
	c := waitConn(t, conns)

	require.NoError(t, c.Send([]byte("a")))
	require.NoError(t, c.Send([]byte("b")))

	err := c.Send([]byte("c"))
	assert.ErrorIs(t, err, ws.ErrSendBufferFull)
	assert.ErrorIs(t, c.Send([]byte("d")), ws.ErrConnClosed)

	once.Do(func() { close(release) })
}

func TestConn_NonWebSocketRequestFailsUpgrade(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := ws.Accept(w, r, "x", ws.Options{}, discardHandler{})
		assert.Error(t, err)
	}))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
