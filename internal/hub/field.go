package hub

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"broadcastd/internal/pipeline"
	"broadcastd/internal/protocol"
)

var fieldUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Close codes for field-agent auth failures (§4.9, §7, §8 scenarios 2-3).
const (
	closeCodeBadCredential = 4001
	closeCodeUnapproved    = 4003
)

// closeWithCode upgrades having already happened, sends a close frame
// carrying code and closes the connection. Auth failures must still
// complete the WebSocket handshake before the peer can observe a close
// code; a plain HTTP error never reaches it.
func closeWithCode(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}

// fieldClient is one authenticated field agent uplink.
type fieldClient struct {
	streamerID string
	conn       *websocket.Conn
}

// ServeField authenticates the field agent, registers it as the sole
// connection for its streamer ID (closing any prior one), starts its
// pipeline, and pumps inbound telemetry until disconnect. Grounded on
// connect_field/disconnect_field/handle_field_message in ws_handler.py.
func (h *Hub) ServeField(w http.ResponseWriter, r *http.Request, streamerID, apiKey string) {
	ctx := r.Context()

	status, err := h.store.ValidateFieldCredential(ctx, streamerID, apiKey)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if status != CredentialValid {
		conn, upErr := fieldUpgrader.Upgrade(w, r, nil)
		if upErr != nil {
			h.log().WithError(upErr).Warn("field upgrade failed")
			return
		}
		code := closeCodeBadCredential
		reason := "invalid credentials"
		if status == CredentialUnapproved {
			code = closeCodeUnapproved
			reason = "streamer not approved"
		}
		closeWithCode(conn, code, reason)
		return
	}

	record, err := h.store.GetStreamerRecord(ctx, streamerID)
	if err != nil {
		http.Error(w, "streamer not found", http.StatusNotFound)
		return
	}

	conn, err := fieldUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log().WithError(err).Warn("field upgrade failed")
		return
	}

	client := &fieldClient{streamerID: streamerID, conn: conn}

	h.mu.Lock()
	if prior, exists := h.fieldAgents[streamerID]; exists {
		prior.conn.Close()
	}
	h.fieldAgents[streamerID] = client
	h.streamers[streamerID] = &LiveStreamer{
		ID:        record.ID,
		Name:      record.Name,
		AvatarURL: record.AvatarURL,
		Color:     record.Color,
		IsCrown:   record.IsCrown,
		IsLive:    true,
		Socials:   record.Socials,
		UpdatedAt: time.Now(),
	}
	h.mu.Unlock()

	if record.IsCrown {
		h.SetCrown(streamerID, true)
	}

	h.log().WithField("streamer_id", streamerID).Info("field agent connected")

	p, err := pipeline.Start(ctx, h.pipelineCfg, streamerID, record.Destinations, h.relays)
	if err != nil {
		h.log().WithError(err).WithField("streamer_id", streamerID).Error("pipeline start failed")
	} else {
		h.mu.Lock()
		h.pipelines[streamerID] = p
		h.mu.Unlock()
	}

	h.broadcastToDashboards(protocol.DashboardEvent{
		Type: protocol.EventStreamerOnline,
		Data: map[string]any{"streamer": h.snapshotLocked(streamerID)},
	})

	h.readFieldMessages(client)
	h.disconnectField(streamerID, client)
}

func (h *Hub) snapshotLocked(streamerID string) *LiveStreamer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.streamers[streamerID]
}

func (h *Hub) readFieldMessages(client *fieldClient) {
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.FieldMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			return
		}
		if err := h.validator.ValidateFieldMessage(&msg); err != nil {
			h.log().WithError(err).WithField("streamer_id", client.streamerID).Warn("invalid field message")
			continue
		}
		h.applyFieldMessage(client.streamerID, &msg)
	}
}

// applyFieldMessage updates the in-memory streamer snapshot per message type
// and broadcasts the result to dashboards.
func (h *Hub) applyFieldMessage(streamerID string, msg *protocol.FieldMessage) {
	h.mu.Lock()
	s, ok := h.streamers[streamerID]
	if !ok {
		h.mu.Unlock()
		h.log().WithField("streamer_id", streamerID).Warn("message for streamer not live")
		return
	}
	s.UpdatedAt = time.Now()

	switch msg.Type {
	case protocol.MessageGPS:
		if msg.GPS != nil {
			s.GPS = *msg.GPS
		}
	case protocol.MessageHardware:
		if msg.Hardware != nil {
			s.Hardware = *msg.Hardware
		}
	case protocol.MessageNetwork:
		if msg.Network != nil {
			s.Network = msg.Network.Links
		}
	case protocol.MessageStarlink:
		if msg.Starlink != nil {
			s.Starlink = *msg.Starlink
		}
	case protocol.MessageHealth:
		// Self-reported health is informational only; authoritative health
		// comes from the server-side pipeline's own monitor (§4.7).
	}
	gps := s.GPS
	h.mu.Unlock()

	if msg.Type == protocol.MessageGPS && h.geo != nil {
		go h.updateLocation(streamerID, gps.Lat, gps.Lng)
	}

	h.broadcastToDashboards(protocol.DashboardEvent{
		Type: protocol.EventStreamerUpdate,
		Data: map[string]any{"streamer_id": streamerID, "streamer": h.snapshotLocked(streamerID)},
	})
}

func (h *Hub) updateLocation(streamerID string, lat, lng float64) {
	name, err := h.geo.ReverseGeocode(context.Background(), streamerID, lat, lng)
	if err != nil || name == "" {
		return
	}
	h.mu.Lock()
	if s, ok := h.streamers[streamerID]; ok {
		s.LocationName = name
	}
	h.mu.Unlock()
}

// disconnectField removes streamerID's live state and notifies dashboards.
// The snapshot is deleted before broadcasting streamer_offline (§13 Open
// Question #1 decision).
func (h *Hub) disconnectField(streamerID string, client *fieldClient) {
	h.mu.Lock()
	if current, ok := h.fieldAgents[streamerID]; ok && current == client {
		delete(h.fieldAgents, streamerID)
	}
	delete(h.streamers, streamerID)
	p, hasPipeline := h.pipelines[streamerID]
	delete(h.pipelines, streamerID)
	if h.crownedID == streamerID {
		h.crownedID = ""
	}
	h.mu.Unlock()

	if hasPipeline {
		p.Stop()
	}
	if err := h.store.DeleteLiveSnapshot(context.Background(), streamerID); err != nil {
		h.log().WithError(err).WithField("streamer_id", streamerID).Warn("delete live snapshot failed")
	}

	h.log().WithField("streamer_id", streamerID).Info("field agent disconnected")
	h.broadcastToDashboards(protocol.DashboardEvent{
		Type: protocol.EventStreamerOffline,
		Data: map[string]any{"streamer_id": streamerID},
	})
}
