package hub

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"broadcastd/internal/protocol"
)

var dashboardUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// dashboardClient is one unauthenticated browser subscriber.
type dashboardClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan protocol.DashboardEvent
}

// ServeDashboard upgrades the request to a WebSocket, registers the client,
// sends it a full_sync snapshot, then pumps broadcast events to it until it
// disconnects.
func (h *Hub) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	conn, err := dashboardUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log().WithError(err).Warn("dashboard upgrade failed")
		return
	}

	c := &dashboardClient{hub: h, conn: conn, send: make(chan protocol.DashboardEvent, 32)}
	h.registerDashboard(c)

	go c.writePump()
	go c.readPump()
}

func (c *dashboardClient) readPump() {
	defer func() {
		c.hub.unregisterDashboard(c)
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// Dashboard subscribers are read-only; we still must read to process
		// control frames (ping/pong/close) and detect disconnects.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *dashboardClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
