package wsgateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mohamedkhairy/coin-alerts/pkg/logger"
)

// Connection represents a WebSocket connection with a subscriber. Every
// connection receives all price updates and trigger events; load_alerts
// messages carry only the owner's alerts.
type Connection struct {
	ID        string
	OwnerID   string
	Conn      *websocket.Conn
	Send      chan []byte
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	lastPong  time.Time
	createdAt time.Time
}

// NewConnection creates a new WebSocket connection
func NewConnection(id string, ownerID string, conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ID:        id,
		OwnerID:   ownerID,
		Conn:      conn,
		Send:      make(chan []byte, 256), // buffered; full buffer drops
		ctx:       ctx,
		cancel:    cancel,
		createdAt: time.Now(),
		lastPong:  time.Now(),
	}
}

// UpdateLastPong updates the last pong time
func (c *Connection) UpdateLastPong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPong = time.Now()
}

// GetLastPong returns the last pong time
func (c *Connection) GetLastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong
}

// Close closes the connection. The Send channel is left open so concurrent
// broadcasts cannot hit a closed channel; the pumps exit through the closed
// socket and the cancelled context.
func (c *Connection) Close() {
	c.cancel()
	c.Conn.Close()
}

// SendEvent enqueues a server message for delivery. Delivery is at most
// once: if the send buffer stays full the message is dropped.
func (c *Connection) SendEvent(eventType string, data interface{}) error {
	message := ServerMessage{
		Type: eventType,
		Data: data,
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.Send <- payload:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	case <-time.After(1 * time.Second):
		logger.Warn("Dropping event, send buffer full",
			logger.String("connection_id", c.ID),
			logger.String("owner_id", c.OwnerID),
			logger.String("event_type", eventType),
		)
		return nil
	}
}

// SendError sends an error message to the client
func (c *Connection) SendError(code string, message string) error {
	errorMsg := ServerMessage{
		Type:    "error",
		Code:    code,
		Message: message,
	}

	payload, err := json.Marshal(errorMsg)
	if err != nil {
		return err
	}

	select {
	case c.Send <- payload:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		// Drop error message if channel is full
		return nil
	}
}

// SendPong sends a pong message to the client
func (c *Connection) SendPong() error {
	payload, err := json.Marshal(ServerMessage{Type: "pong"})
	if err != nil {
		return err
	}

	select {
	case c.Send <- payload:
		return nil
	default:
		return nil
	}
}
