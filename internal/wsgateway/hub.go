package wsgateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mohamedkhairy/coin-alerts/internal/alerts"
	"github.com/mohamedkhairy/coin-alerts/internal/config"
	"github.com/mohamedkhairy/coin-alerts/internal/models"
	"github.com/mohamedkhairy/coin-alerts/pkg/logger"
)

// storeTimeout bounds alert-store calls made on behalf of a single client
const storeTimeout = 5 * time.Second

// Hub manages WebSocket connections. It fans out price snapshots and trigger
// events from the watcher to every connection, and accepts alert submissions
// from clients, writing them through to the alert store.
type Hub struct {
	config   config.WSGatewayConfig
	registry *ConnectionRegistry
	store    alerts.Store

	mu           sync.RWMutex
	lastSnapshot *models.PriceSnapshot
	running      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stats  HubStats
}

// HubStats holds statistics about the hub
type HubStats struct {
	ConnectionsTotal  int64
	ConnectionsActive int64
	SnapshotsSent     int64
	TriggersSent      int64
	AlertsSubmitted   int64
	MessagesDropped   int64
	mu                sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub(cfg config.WSGatewayConfig, store alerts.Store) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		config:   cfg,
		registry: NewConnectionRegistry(),
		store:    store,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the hub background workers
func (h *Hub) Start() error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	logger.Info("Starting WebSocket hub",
		logger.Duration("ping_interval", h.config.PingInterval),
		logger.Int("max_connections", h.config.MaxConnections),
	)

	h.wg.Add(1)
	go h.monitorConnections()

	return nil
}

// Stop stops the hub and closes all connections
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	logger.Info("Stopping WebSocket hub")
	h.cancel()
	for _, conn := range h.registry.GetAll() {
		h.Unregister(conn)
	}
	h.wg.Wait()
	logger.Info("WebSocket hub stopped")
}

// Register registers a new connection, starts its pumps, and sends it the
// initial state: the last broadcast snapshot (if any) plus the owner's
// enabled alerts, so state survives reconnects.
func (h *Hub) Register(conn *Connection) {
	h.registry.Add(conn)
	h.recordConnection()

	logger.Info("Connection registered",
		logger.String("connection_id", conn.ID),
		logger.String("owner_id", conn.OwnerID),
		logger.Int("total_connections", h.registry.Count()),
	)

	h.wg.Add(2)
	go h.writePump(conn)
	go h.readPump(conn)

	h.mu.RLock()
	lastSnapshot := h.lastSnapshot
	h.mu.RUnlock()
	if lastSnapshot != nil {
		conn.SendEvent(EventPriceUpdate, lastSnapshot)
	}

	h.sendOwnerAlerts(conn)
}

// Unregister unregisters a connection and closes it
func (h *Hub) Unregister(conn *Connection) {
	if !h.registry.Remove(conn.ID) {
		return // already unregistered by the other pump
	}
	h.recordDisconnection()
	conn.Close()

	logger.Info("Connection unregistered",
		logger.String("connection_id", conn.ID),
		logger.String("owner_id", conn.OwnerID),
		logger.Int("total_connections", h.registry.Count()),
	)
}

// BroadcastSnapshot fans out a price snapshot to all connections. The
// snapshot is retained so newly connecting clients receive it immediately.
func (h *Hub) BroadcastSnapshot(snapshot *models.PriceSnapshot) {
	h.mu.Lock()
	h.lastSnapshot = snapshot
	h.mu.Unlock()

	for _, conn := range h.registry.GetAll() {
		if err := conn.SendEvent(EventPriceUpdate, snapshot); err != nil {
			h.recordDrop()
			continue
		}
		h.recordSnapshotSent()
	}
}

// BroadcastTrigger fans out a trigger event to all connections
func (h *Hub) BroadcastTrigger(event *models.TriggerEvent) {
	for _, conn := range h.registry.GetAll() {
		if err := conn.SendEvent(EventAlertTriggered, event); err != nil {
			h.recordDrop()
			continue
		}
		h.recordTriggerSent()
	}

	logger.Debug("Broadcast trigger event",
		logger.String("alert_id", event.AlertID),
		logger.String("asset_id", event.Coin),
		logger.Int("connections", h.registry.Count()),
	)
}

// handleClientMessage dispatches an inbound client message
func (h *Hub) handleClientMessage(conn *Connection, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeSetAlert:
		return h.handleSetAlert(conn, msg.Data)
	case MessageTypePing:
		return conn.SendPong()
	default:
		return conn.SendError("unknown_message_type", "unknown message type: "+msg.Type)
	}
}

// handleSetAlert creates a new alert for the connection's owner and replies
// with the owner's refreshed enabled-alert list
func (h *Hub) handleSetAlert(conn *Connection, data json.RawMessage) error {
	var payload SetAlertPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return conn.SendError("invalid_payload", "failed to parse set_alert payload")
	}

	alert := &models.Alert{
		ID:        uuid.New().String(),
		OwnerID:   conn.OwnerID,
		AssetID:   models.NormalizeAssetID(payload.Coin),
		Kind:      payload.Kind,
		Threshold: float64(payload.Threshold),
		Enabled:   true,
	}
	if err := alert.Validate(); err != nil {
		return conn.SendError("invalid_alert", err.Error())
	}

	ctx, cancel := context.WithTimeout(h.ctx, storeTimeout)
	defer cancel()

	if err := h.store.CreateAlert(ctx, alert); err != nil {
		logger.Error("Failed to create alert from WebSocket",
			logger.ErrorField(err),
			logger.String("connection_id", conn.ID),
			logger.String("owner_id", conn.OwnerID),
		)
		return conn.SendError("store_error", "failed to save alert")
	}

	h.recordAlertSubmitted()
	logger.Info("Alert created via WebSocket",
		logger.String("alert_id", alert.ID),
		logger.String("owner_id", alert.OwnerID),
		logger.String("asset_id", alert.AssetID),
		logger.String("kind", alert.Kind),
		logger.Float64("threshold", alert.Threshold),
	)

	h.sendOwnerAlerts(conn)
	return nil
}

// sendOwnerAlerts sends the owner's currently enabled alerts to a single
// connection
func (h *Hub) sendOwnerAlerts(conn *Connection) {
	ctx, cancel := context.WithTimeout(h.ctx, storeTimeout)
	defer cancel()

	ownerAlerts, err := h.store.ListAlerts(ctx, alerts.Filter{
		OwnerID:     conn.OwnerID,
		EnabledOnly: true,
	})
	if err != nil {
		logger.Error("Failed to load alerts for connection",
			logger.ErrorField(err),
			logger.String("connection_id", conn.ID),
			logger.String("owner_id", conn.OwnerID),
		)
		conn.SendError("store_error", "failed to load alerts")
		return
	}

	conn.SendEvent(EventLoadAlerts, map[string]interface{}{
		"alerts": ownerAlerts,
	})
}

// writePump pumps messages from the send buffer to the WebSocket connection
func (h *Hub) writePump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-conn.ctx.Done():
			conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump pumps messages from the WebSocket connection into the hub
func (h *Hub) readPump(conn *Connection) {
	defer h.wg.Done()
	defer h.Unregister(conn)

	conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.UpdateLastPong()
		conn.Conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket error",
					logger.ErrorField(err),
					logger.String("connection_id", conn.ID),
				)
			}
			break
		}

		var clientMsg ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			conn.SendError("invalid_message", "failed to parse message")
			continue
		}

		if err := h.handleClientMessage(conn, &clientMsg); err != nil {
			logger.Debug("Failed to handle client message",
				logger.ErrorField(err),
				logger.String("connection_id", conn.ID),
			)
		}
	}
}

// monitorConnections removes connections whose pongs have gone stale
func (h *Hub) monitorConnections() {
	defer h.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			staleThreshold := h.config.ReadTimeout * 2

			for _, conn := range h.registry.GetAll() {
				if now.Sub(conn.GetLastPong()) > staleThreshold {
					logger.Info("Removing stale connection",
						logger.String("connection_id", conn.ID),
						logger.String("owner_id", conn.OwnerID),
					)
					h.Unregister(conn)
				}
			}
		}
	}
}

// GetStats returns hub statistics
func (h *Hub) GetStats() HubStats {
	h.stats.mu.RLock()
	defer h.stats.mu.RUnlock()

	return HubStats{
		ConnectionsTotal:  h.stats.ConnectionsTotal,
		ConnectionsActive: int64(h.registry.Count()),
		SnapshotsSent:     h.stats.SnapshotsSent,
		TriggersSent:      h.stats.TriggersSent,
		AlertsSubmitted:   h.stats.AlertsSubmitted,
		MessagesDropped:   h.stats.MessagesDropped,
	}
}

// ActiveConnections returns the number of registered connections
func (h *Hub) ActiveConnections() int {
	return h.registry.Count()
}

func (h *Hub) recordConnection() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.ConnectionsTotal++
	h.stats.ConnectionsActive++
	activeConnections.Inc()
}

func (h *Hub) recordDisconnection() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	if h.stats.ConnectionsActive > 0 {
		h.stats.ConnectionsActive--
	}
	activeConnections.Dec()
}

func (h *Hub) recordSnapshotSent() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.SnapshotsSent++
}

func (h *Hub) recordTriggerSent() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.TriggersSent++
}

func (h *Hub) recordAlertSubmitted() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.AlertsSubmitted++
	alertsSubmitted.Inc()
}

func (h *Hub) recordDrop() {
	h.stats.mu.Lock()
	defer h.stats.mu.Unlock()
	h.stats.MessagesDropped++
	messagesDropped.Inc()
}
