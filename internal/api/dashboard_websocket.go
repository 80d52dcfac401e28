package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/enplerp/backoffice/internal/events"
	"github.com/enplerp/backoffice/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsSendBuffer = 64
)

// WebSocket upgrader configuration. The feed sits behind bearer auth, so
// the browser origin carries no extra trust.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// DashboardEvent represents a WebSocket message sent to dashboard clients
type DashboardEvent struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan DashboardEvent
}

// DashboardWebSocket pushes backup events to connected admin dashboards
type DashboardWebSocket struct {
	bus         *events.EventBus
	unsubscribe func()
	clients     map[*wsClient]struct{}
	mu          sync.Mutex
	closed      bool
}

// NewDashboardWebSocket subscribes to every backup event type on bus
func NewDashboardWebSocket(bus *events.EventBus) *DashboardWebSocket {
	ws := &DashboardWebSocket{
		bus:     bus,
		clients: make(map[*wsClient]struct{}),
	}
	ws.unsubscribe = bus.Subscribe(ws.onEvent, events.BackupEventTypes...)
	return ws
}

func (ws *DashboardWebSocket) onEvent(event events.Event) {
	ws.Broadcast(DashboardEvent{
		Type:      string(event.Type),
		Timestamp: event.Timestamp,
		Data: map[string]interface{}{
			"id":      event.ID,
			"archive": event.Archive,
			"source":  event.Source,
			"details": event.Data,
		},
	})
}

// Broadcast queues event for every client. Clients whose buffer is full
// are dropped.
func (ws *DashboardWebSocket) Broadcast(event DashboardEvent) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for client := range ws.clients {
		select {
		case client.send <- event:
		default:
			ws.removeLocked(client)
		}
	}
}

// ClientCount returns the number of connected dashboards
func (ws *DashboardWebSocket) ClientCount() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.clients)
}

// HandleConnection handles GET /api/admin/backups/ws
func (ws *DashboardWebSocket) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Info("DashboardWebSocket: Failed to upgrade connection", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := &wsClient{conn: conn, send: make(chan DashboardEvent, wsSendBuffer)}

	ws.mu.Lock()
	if ws.closed {
		ws.mu.Unlock()
		conn.Close()
		return
	}
	ws.clients[client] = struct{}{}
	total := len(ws.clients)
	ws.mu.Unlock()

	logger.Info("DashboardWebSocket: Client connected", map[string]interface{}{
		"total_clients": total,
	})

	go ws.writePump(client)
	go ws.readPump(client)
}

// readPump discards client messages and notices disconnects
func (ws *DashboardWebSocket) readPump(client *wsClient) {
	defer ws.remove(client)

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Info("DashboardWebSocket: Unexpected close error", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return
		}
	}
}

// writePump is the only writer of client.conn
func (ws *DashboardWebSocket) writePump(client *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case event, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteJSON(event); err != nil {
				ws.remove(client)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.remove(client)
				return
			}
		}
	}
}

func (ws *DashboardWebSocket) remove(client *wsClient) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.removeLocked(client)
}

func (ws *DashboardWebSocket) removeLocked(client *wsClient) {
	if _, ok := ws.clients[client]; !ok {
		return
	}
	delete(ws.clients, client)
	close(client.send)
	logger.Info("DashboardWebSocket: Client disconnected", map[string]interface{}{
		"total_clients": len(ws.clients),
	})
}

// Shutdown unsubscribes from the bus and closes every client
func (ws *DashboardWebSocket) Shutdown() {
	ws.unsubscribe()

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.closed = true
	for client := range ws.clients {
		ws.removeLocked(client)
	}
	logger.Info("DashboardWebSocket: Shutting down", nil)
}
