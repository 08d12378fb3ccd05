package handlers

import (
	"net/http"
	"sync"
	"time"

	"ttlcache-api/internal/realtime"
	"ttlcache-api/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsClient implements realtime.Client by wrapping a websocket connection.
// Disposals of different namespaces are broadcast from different
// goroutines, so writes are serialized.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(message []byte) bool {
	if c == nil || c.conn == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		return false
	}
	return true
}

func (c *wsClient) Close() {
	if c != nil && c.conn != nil {
		_ = c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled at Gin level
		return true
	},
}

// WSHandler streams disposal events to WebSocket subscribers.
type WSHandler struct {
	Hub *realtime.Hub
	Log *zap.Logger
}

// Stream handles GET /api/ws?namespace=
// namespace defaults to "*", which subscribes to every namespace.
// It requires JWT middleware to have set "user_id" in context.
func (h *WSHandler) Stream(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authorized"})
		return
	}

	namespace := c.DefaultQuery("namespace", realtime.AllNamespaces)
	if namespace != realtime.AllNamespaces {
		if err := store.ValidateName(namespace); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Warn("websocket upgrade", zap.String("user_id", userID), zap.Error(err))
		return
	}

	client := &wsClient{conn: conn}
	h.Hub.Register(namespace, client)
	h.Log.Debug("websocket subscribed",
		zap.String("user_id", userID),
		zap.String("namespace", namespace),
	)

	// Heartbeat: send periodic pings; close on error
	pingTicker := time.NewTicker(30 * time.Second)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-pingTicker.C:
				if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
					// reader loop exits on the next error
					return
				}
			}
		}
	}()
	defer func() {
		close(done)
		pingTicker.Stop()
		h.Hub.Unregister(namespace, client)
		client.Close()
		h.Log.Debug("websocket closed",
			zap.String("user_id", userID),
			zap.String("namespace", namespace),
		)
	}()

	// Reader loop: drain messages and keep connection alive via pong handler
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
