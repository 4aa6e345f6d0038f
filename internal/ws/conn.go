package ws

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout  = 10 * time.Second
	defaultPongTimeout   = 60 * time.Second
	defaultSendBuffer    = 64
	defaultMaxFrameBytes = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// State is a connection's lifecycle phase. It only moves forward:
// Connecting -> Open -> Closing -> Closed.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

var (
	// ErrConnClosed reports a Send on a connection already tearing
	// down. Callers treat it as a no-op.
	ErrConnClosed = errors.New("connection closed")

	// ErrSendBufferFull reports a Send that found the queue full. The
	// connection is force-closed as a side effect.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Handler receives a connection's inbound frames and its teardown.
type Handler interface {
	// OnMessage is called from the read loop, one frame at a time per
	// connection.
	OnMessage(c *Conn, data []byte)

	// OnClose is called exactly once, after both loops have stopped
	// and the state is Closed.
	OnClose(c *Conn, code int)
}

// Options bounds a connection's queue and timing. Zero fields use the
// package defaults.
type Options struct {
	SendBuffer    int
	MaxFrameBytes int64
	WriteTimeout  time.Duration
	PongTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.MaxFrameBytes <= 0 {
		o.MaxFrameBytes = defaultMaxFrameBytes
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = defaultPongTimeout
	}
	return o
}

// Conn is one upgraded socket. Send may be called from any goroutine;
// inbound frames arrive on the handler from the read loop.
type Conn struct {
	id      string
	ws      *websocket.Conn
	opts    Options
	handler Handler

	send   chan []byte
	closed chan struct{}

	state     atomic.Int32
	closeOnce sync.Once
	closeCode atomic.Int32
	reason    string // written once inside closeOnce, read after closed
}

// Accept upgrades the request and returns the open connection. The
// caller registers it, queues any welcome frames, then calls Run.
func Accept(w http.ResponseWriter, r *http.Request, id string, opts Options, h Handler) (*Conn, error) {
	opts = opts.withDefaults()
	c := &Conn{
		id:      id,
		opts:    opts,
		handler: h,
		send:    make(chan []byte, opts.SendBuffer),
		closed:  make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))

	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.state.Store(int32(StateClosed))
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	c.ws = socket
	c.state.Store(int32(StateOpen))
	return c, nil
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) State() State { return State(c.state.Load()) }

// RemoteAddr reports the peer address, for logging.
func (c *Conn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// Send queues one frame for the write loop without blocking. A closed
// connection reports ErrConnClosed; a full queue force-closes the
// connection and reports ErrSendBufferFull. A frame accepted while
// teardown races the enqueue may still be dropped.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.closed:
		return ErrConnClosed
	default:
		c.Close(websocket.ClosePolicyViolation, "send queue overrun")
		return fmt.Errorf("%w: conn %s", ErrSendBufferFull, c.id)
	}
}

// Close starts teardown with the given close code. Safe from any
// goroutine; only the first call takes effect.
func (c *Conn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
		c.closeCode.Store(int32(code))
		c.reason = reason
		close(c.closed)
	})
}

// Run drives the connection: it starts the write loop, reads frames
// until the peer goes away or Close is called, then tears down. It
// returns after OnClose has fired, so an HTTP handler can hold the
// request open for the connection's whole lifetime.
func (c *Conn) Run() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writeLoop()
	}()

	code := c.readLoop()
	c.Close(code, "")
	wg.Wait()

	c.state.Store(int32(StateClosed))
	c.handler.OnClose(c, int(c.closeCode.Load()))
}

func (c *Conn) readLoop() int {
	defer c.ws.Close()

	c.ws.SetReadLimit(c.opts.MaxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			switch {
			case errors.As(err, &ce):
				return ce.Code
			case errors.Is(err, websocket.ErrReadLimit):
				return websocket.CloseMessageTooBig
			default:
				return websocket.CloseAbnormalClosure
			}
		}
		c.handler.OnMessage(c, data)
	}
}

func (c *Conn) writeLoop() {
	ping := time.NewTicker(pingPeriod(c.opts.PongTimeout))
	defer ping.Stop()
	defer c.ws.Close()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		case <-c.closed:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			msg := websocket.FormatCloseMessage(int(c.closeCode.Load()), c.reason)
			_ = c.ws.WriteMessage(websocket.CloseMessage, msg)
			return
		}
	}
}

// pingPeriod keeps pings comfortably inside the pong deadline.
func pingPeriod(pongTimeout time.Duration) time.Duration {
	return pongTimeout * 9 / 10
}
