// Package notification pushes workspace updates to browser map pages over websockets.
package notification

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

type MessageType string

const (
	MessageAreaChanged       MessageType = "area_changed"
	MessageContextChanged    MessageType = "context_changed"
	MessageLocationRequested MessageType = "location_requested"
	MessageLocationFailed    MessageType = "location_failed"
	MessagePredictionResult  MessageType = "prediction_result"
	MessagePositionReport    MessageType = "position_report"
	MessageSurfaceEvent      MessageType = "surface_event"
)

type Message struct {
	Type        MessageType     `json:"type"`
	WorkspaceID string          `json:"workspace_id"`
	Data        json.RawMessage `json:"data,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewMessage encodes data into a message for workspaceID.
func NewMessage(workspaceID string, kind MessageType, data any) (Message, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s message: %w", kind, err)
	}
	return Message{Type: kind, WorkspaceID: workspaceID, Data: raw, Timestamp: time.Now()}, nil
}

type Connection struct {
	ID          string
	WorkspaceID string
	Conn        *websocket.Conn
	Send        chan Message

	closeOnce sync.Once
}

func (c *Connection) closeSend() {
	c.closeOnce.Do(func() { close(c.Send) })
}

// Manager tracks websocket connections grouped by workspace.
type Manager struct {
	upgrader  websocket.Upgrader
	logger    *slog.Logger
	onMessage func(Message)

	mu          sync.RWMutex
	connections map[string]map[string]*Connection
}

// NewManager builds a manager. onMessage, when non-nil, receives every inbound message
// with its WorkspaceID set to the connection's workspace.
func NewManager(logger *slog.Logger, onMessage func(Message)) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:      logger.With("component", "ws-manager"),
		onMessage:   onMessage,
		connections: make(map[string]map[string]*Connection),
	}
}

// HandleConnection upgrades the request and serves it until the client goes away.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, workspaceID string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Conn:        conn,
		Send:        make(chan Message, sendBuffer),
	}

	m.mu.Lock()
	if m.connections[workspaceID] == nil {
		m.connections[workspaceID] = make(map[string]*Connection)
	}
	m.connections[workspaceID][c.ID] = c
	m.mu.Unlock()

	m.logger.Info("websocket connected", "workspace_id", workspaceID, "connection_id", c.ID)

	go m.readPump(c)
	go m.writePump(c)
	return c, nil
}

// Publish delivers msg to every connection of its workspace and returns how many got it.
// A connection whose buffer is full is dropped.
func (m *Manager) Publish(msg Message) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	sent := 0
	for id, c := range m.connections[msg.WorkspaceID] {
		select {
		case c.Send <- msg:
			sent++
		default:
			m.logger.Warn("dropping slow websocket client", "workspace_id", msg.WorkspaceID, "connection_id", id)
			m.removeLocked(c)
		}
	}
	return sent
}

// Notify encodes data and publishes it to the workspace. Encoding failures are logged.
func (m *Manager) Notify(workspaceID string, kind MessageType, data any) {
	msg, err := NewMessage(workspaceID, kind, data)
	if err != nil {
		m.logger.Error("failed to build websocket message", "workspace_id", workspaceID, "error", err)
		return
	}
	m.Publish(msg)
}

// Count returns the number of connections attached to a workspace.
func (m *Manager) Count(workspaceID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections[workspaceID])
}

// CloseWorkspace disconnects every client of a workspace.
func (m *Manager) CloseWorkspace(workspaceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.connections[workspaceID] {
		m.removeLocked(c)
	}
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, group := range m.connections {
		for _, c := range group {
			m.removeLocked(c)
		}
	}
}

func (m *Manager) remove(c *Connection) {
	m.mu.Lock()
	m.removeLocked(c)
	m.mu.Unlock()
}

func (m *Manager) removeLocked(c *Connection) {
	group := m.connections[c.WorkspaceID]
	if _, ok := group[c.ID]; !ok {
		return
	}
	delete(group, c.ID)
	if len(group) == 0 {
		delete(m.connections, c.WorkspaceID)
	}
	c.closeSend()
}

func (m *Manager) readPump(c *Connection) {
	defer func() {
		m.remove(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("websocket read failed", "connection_id", c.ID, "error", err)
			}
			return
		}
		msg.WorkspaceID = c.WorkspaceID
		if m.onMessage != nil {
			m.onMessage(msg)
		}
	}
}

func (m *Manager) writePump(c *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
