/*
Package room contains the realtime session layer: WebSocket clients, the broadcast hub and
the coordinator that turns client commands into game state changes.

This file defines the Client struct, representing one WebSocket connection. It runs the
read and write loops (ReadPump and WritePump), keeps the connection alive with ping/pong
and hands every inbound frame to a Dispatcher.
*/
package room

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"planpoker/internal/pkg/logx"
	"planpoker/internal/pkg/randx"
)

// sendBufferSize is the number of frames queued per client before it is dropped as too slow.
const sendBufferSize = 256

// Settings tunes the transport-level liveness of a connection.
type Settings struct {
	// PongWait is how long the server waits for any pong before declaring the socket dead.
	PongWait time.Duration

	// WriteWait bounds every single write.
	WriteWait time.Duration

	// MaxMessageBytes is the largest frame accepted from the client.
	MaxMessageBytes int64
}

// DefaultSettings are used by tests and as fallback values.
var DefaultSettings = Settings{
	PongWait:        90 * time.Second,
	WriteWait:       10 * time.Second,
	MaxMessageBytes: 16 << 10,
}

func (s Settings) pingPeriod() time.Duration {
	return (s.PongWait * 9) / 10
}

// Dispatcher consumes what a client reads.
type Dispatcher interface {
	// Dispatch handles one inbound frame. It is called from the client's read loop only.
	Dispatch(c *Client, data []byte)

	// Disconnect is called once when the read loop ends.
	Disconnect(c *Client)
}

// Client struct represents an active WebSocket connection.
type Client struct {
	// ID identifies this connection, not the participant.
	ID string

	// underlying WebSocket connection object; nil for in-process clients in tests.
	conn *websocket.Conn

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// closed when the client is shutting down; send itself is never closed.
	done      chan struct{}
	closeOnce sync.Once

	settings   Settings
	dispatcher Dispatcher

	// mu protects the game binding.
	mu     sync.RWMutex
	gameID string
	userID string

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewClient constructs and returns a new Client instance.
func NewClient(conn *websocket.Conn, settings Settings, dispatcher Dispatcher) *Client {
	id := randx.ConnID()

	return &Client{
		ID:         id,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		done:       make(chan struct{}),
		settings:   settings,
		dispatcher: dispatcher,
		logger:     logx.Component("client").With().Str("client_id", id).Logger(),
	}
}

// Bind associates the connection with a participant of a game. Empty values unbind it.
func (c *Client) Bind(gameID, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gameID = gameID
	c.userID = userID
}

// Binding returns the game and participant the connection is bound to.
func (c *Client) Binding() (gameID, userID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.gameID, c.userID
}

// Done is closed once the client starts shutting down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close asks the write loop to send a close frame and tear the connection down.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue queues a frame without blocking. It reports false if the client is closing or
// its buffer is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ReadPump reads frames until the connection fails, then reports the disconnect.
// The read deadline only moves on pongs, so liveness is decided by the transport.
func (c *Client) ReadPump() {
	defer func() {
		c.dispatcher.Disconnect(c)
		c.Close()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in ReadPump")
		}
	}()

	c.conn.SetReadLimit(c.settings.MaxMessageBytes)

	if err := c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			return
		}

		c.dispatcher.Dispatch(c, data)
	}
}

// WritePump writes queued frames and periodic pings until the client is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.settings.pingPeriod())

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case data := <-c.send:
			if !c.write(websocket.TextMessage, data) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing message")
		return false
	}

	return true
}
