package obs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a minimal OBS WebSocket v5 client for scene switching: it
// dials the socket and sends SetCurrentProgramScene requests. It does not
// perform the Identify handshake or password authentication; the Password
// field is not used.
// A real deployment would use a fuller client library; this keeps the
// actuator's Client dependency small and testable.
type WSClient struct {
	Host     string
	Port     int
	Password string

	conn *websocket.Conn
}

// Connect dials the OBS WebSocket endpoint. Any failure here is returned to
// the caller (the actuator) to treat as non-fatal.
func (c *WSClient) Connect() error {
	url := fmt.Sprintf("ws://%s:%d", c.Host, c.Port)
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("dial obs websocket: %w", err)
	}
	c.conn = conn
	return nil
}

type obsRequest struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

// SwitchScene issues a SetCurrentProgramScene request for the given scene
// name.
func (c *WSClient) SwitchScene(name string) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	req := obsRequest{
		Op: 6, // Request
		D: map[string]any{
			"requestType": "SetCurrentProgramScene",
			"requestId":   fmt.Sprintf("switch-%d", time.Now().UnixNano()),
			"requestData": map[string]string{"sceneName": name},
		},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode obs request: %w", err)
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}
