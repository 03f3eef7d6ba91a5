package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"market-gateway/src/models"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// -----------------------------------------------------------------------------
// Connection lifecycle. Only the gateway moves a client between states;
// the hub and registry just read handles.
//
//	Connecting -> Active -> Draining -> Closed
//	Connecting -> Closed          (auth failure)
// -----------------------------------------------------------------------------

type ConnState int32

const (
	StateConnecting ConnState = iota
	StateActive
	StateDraining
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	default:
		return "closed"
	}
}

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

type Client struct {
	ID        string
	Principal string

	gateway *GatewayServer
	conn    *websocket.Conn

	send       chan *models.MServerMessage
	sendMu     sync.Mutex
	sendClosed bool

	state     atomic.Int32
	inflight  sync.WaitGroup // analysis requests still being answered
	drainInit sync.Once

	Dropped atomic.Int64 // outbound messages discarded by drop-oldest
}

// -----------------------------------------------------------------------------

func newClient(gw *GatewayServer, conn *websocket.Conn, id string, bufferSize int) *Client {
	c := &Client{
		ID:      id,
		gateway: gw,
		conn:    conn,
		send:    make(chan *models.MServerMessage, bufferSize),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// -----------------------------------------------------------------------------

func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) setState(s ConnState) {
	c.state.Store(int32(s))
}

// -----------------------------------------------------------------------------

// enqueue places msg on the outbound channel without ever blocking. When
// the buffer is full the oldest queued message is dropped to make room,
// so a stalled consumer only loses its own backlog.
func (c *Client) enqueue(msg *models.MServerMessage) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return false
	}

	for {
		select {
		case c.send <- msg:
			return true
		default:
			select {
			case <-c.send:
				c.Dropped.Add(1)
			default:
			}
		}
	}
}

// -----------------------------------------------------------------------------

// closeSend releases the outbound channel. Called by the hub exactly once,
// on unregister.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// -----------------------------------------------------------------------------

// beginDrain moves the client to Draining, waits out any in-flight
// analysis requests in the background and then hands the connection to
// the hub for teardown. Safe to call more than once.
func (c *Client) beginDrain() {
	c.drainInit.Do(func() {
		if c.State() != StateClosed {
			c.setState(StateDraining)
		}
		go func() {
			c.inflight.Wait()
			c.gateway.Hub.Unregister(c)
		}()
	})
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from the client.
// Also acts as the watchdog for the connection.
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		c.beginDrain()
		c.conn.Close()
		c.gateway.Logger.Info("Client %s (%s) disconnected", c.ID, c.Principal)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.gateway.Logger.Info("WebSocket error on %s: %v", c.ID, err)
			}
			break
		}

		if !c.gateway.handleClientMessage(c, message) {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// writePump - delivers outbound messages, protocol pings and heartbeats
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	pingTicker := time.NewTicker(pingPeriod)
	heartbeat := time.NewTicker(time.Duration(c.gateway.Config.Gateway.HeartbeatSeconds) * time.Second)
	defer func() {
		pingTicker.Stop()
		heartbeat.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				c.gateway.Logger.Info("Write error on %s: %v", c.ID, err)
				return
			}

		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-heartbeat.C:
			if c.State() != StateActive {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(&models.MServerMessage{
				Type:      models.MsgHeartbeat,
				Timestamp: time.Now().UnixMilli(),
			}); err != nil {
				return
			}
		}
	}
}
