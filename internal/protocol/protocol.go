// Package protocol defines the wire messages exchanged between field agents
// and the dashboard hub, and between the hub and browser subscribers.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// MessageType identifies the kind of telemetry a field agent is reporting.
type MessageType string

const (
	MessageGPS      MessageType = "gps"
	MessageHardware MessageType = "hardware"
	MessageNetwork  MessageType = "network"
	MessageStarlink MessageType = "starlink"
	MessageHealth   MessageType = "health"
)

// FieldMessage is the envelope a field agent sends over its uplink
// connection: `{"type":...,"streamer_id":...,"timestamp":...,"data":{...}}`.
// Exactly one of the typed payload fields is populated, selected by Type and
// decoded from the wire's `data` object. Grounded on ProtocolMessage in
// protocol.py.
type FieldMessage struct {
	Type       MessageType `json:"type" validate:"required,oneof=gps hardware network starlink health"`
	StreamerID string      `json:"streamer_id" validate:"required"`
	Timestamp  time.Time   `json:"timestamp" validate:"required"`

	GPS      *GPSPosition    `json:"-"`
	Hardware *HardwareReport `json:"-"`
	Network  *NetworkReport  `json:"-"`
	Starlink *StarlinkReport `json:"-"`
	Health   *HealthReport   `json:"-"`
}

// UnmarshalJSON decodes the envelope, then decodes `data` into whichever
// typed payload field matches `type`.
func (m *FieldMessage) UnmarshalJSON(b []byte) error {
	var env struct {
		Type       MessageType     `json:"type"`
		StreamerID string          `json:"streamer_id"`
		Timestamp  time.Time       `json:"timestamp"`
		Data       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	m.Type = env.Type
	m.StreamerID = env.StreamerID
	m.Timestamp = env.Timestamp

	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	switch env.Type {
	case MessageGPS:
		m.GPS = &GPSPosition{}
		return json.Unmarshal(env.Data, m.GPS)
	case MessageHardware:
		m.Hardware = &HardwareReport{}
		return json.Unmarshal(env.Data, m.Hardware)
	case MessageNetwork:
		m.Network = &NetworkReport{}
		return json.Unmarshal(env.Data, m.Network)
	case MessageStarlink:
		m.Starlink = &StarlinkReport{}
		return json.Unmarshal(env.Data, m.Starlink)
	case MessageHealth:
		m.Health = &HealthReport{}
		return json.Unmarshal(env.Data, m.Health)
	}
	return nil
}

// GPSPosition is the field agent's current location fix.
type GPSPosition struct {
	Lat        float64 `json:"lat" validate:"required,latitude"`
	Lng        float64 `json:"lng" validate:"required,longitude"`
	SpeedKmh   float64 `json:"speed_kmh"`
	AltitudeM  float64 `json:"altitude_m"`
	Heading    float64 `json:"heading"`
	Satellites int     `json:"satellites"`
	Fix        string  `json:"fix" validate:"omitempty,oneof=none 2d 3d"`
}

// HardwareReport carries onboard hardware vitals.
type HardwareReport struct {
	CPUPercent      float64  `json:"cpu_percent"`
	CPUTempC        float64  `json:"cpu_temp_c"`
	RAMPercent      float64  `json:"ram_percent"`
	DiskPercent     float64  `json:"disk_percent"`
	BatteryPercent  *float64 `json:"battery_percent,omitempty"`
	BatteryCharging bool     `json:"battery_charging"`
}

// NetworkLink describes one bonded uplink interface as reported by the field
// agent's own bonding logic (distinct from the server's SRT link scoring).
type NetworkLink struct {
	Interface     string  `json:"interface" validate:"required"`
	Type          string  `json:"type" validate:"omitempty,oneof=4g wifi starlink ethernet unknown"`
	Connected     bool    `json:"connected"`
	RTTMs         float64 `json:"rtt_ms"`
	JitterMs      float64 `json:"jitter_ms"`
	PacketLossPct float64 `json:"packet_loss_pct"`
	BandwidthMbps float64 `json:"bandwidth_mbps"`
	Score         int     `json:"score"`
}

// NetworkReport carries the field agent's bonded-link snapshot.
type NetworkReport struct {
	Links []NetworkLink `json:"links"`
}

// StarlinkReport carries dish telemetry, when present.
type StarlinkReport struct {
	Connected      bool    `json:"connected"`
	LatencyMs      float64 `json:"latency_ms"`
	DownloadMbps   float64 `json:"download_mbps"`
	UploadMbps     float64 `json:"upload_mbps"`
	ObstructionPct float64 `json:"obstruction_pct"`
	UptimeS        int     `json:"uptime_s"`
}

// HealthReport carries the field agent's self-reported health snapshot,
// independent of the server-side SRT-link-derived health score.
type HealthReport struct {
	Score        int    `json:"score"`
	State        string `json:"state"`
	ActiveLinks  int    `json:"active_links"`
	TotalLinks   int    `json:"total_links"`
	BitrateKbps  float64 `json:"bitrate_kbps"`
	Message      string `json:"message"`
}

// DashboardEventType identifies the kind of update broadcast to dashboard
// subscribers.
type DashboardEventType string

const (
	EventFullSync       DashboardEventType = "full_sync"
	EventStreamerOnline DashboardEventType = "streamer_online"
	EventStreamerOffline DashboardEventType = "streamer_offline"
	EventStreamerUpdate DashboardEventType = "streamer_update"
)

// DashboardEvent is the envelope broadcast to browser subscribers.
type DashboardEvent struct {
	Type DashboardEventType `json:"type"`
	Data any                `json:"data"`
}

// Validator wraps struct-tag validation for inbound field messages, grounded
// on the same go-playground/validator usage as the rest of the stack.
type Validator struct {
	v *validator.Validate
}

// NewValidator constructs a Validator with standard struct validation.
func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

// ValidateFieldMessage checks envelope shape and that the populated payload
// field matches the declared Type.
func (vd *Validator) ValidateFieldMessage(msg *FieldMessage) error {
	if err := vd.v.Struct(msg); err != nil {
		return fmt.Errorf("field message validation failed: %w", err)
	}

	var populated any
	switch msg.Type {
	case MessageGPS:
		populated = msg.GPS
	case MessageHardware:
		populated = msg.Hardware
	case MessageNetwork:
		populated = msg.Network
	case MessageStarlink:
		populated = msg.Starlink
	case MessageHealth:
		populated = msg.Health
	}
	if populated == nil {
		return fmt.Errorf("field message validation failed: type %q has no matching payload", msg.Type)
	}

	switch p := populated.(type) {
	case *GPSPosition:
		if err := vd.v.Struct(p); err != nil {
			return fmt.Errorf("gps payload validation failed: %w", err)
		}
	case *NetworkReport:
		for i := range p.Links {
			if err := vd.v.Struct(&p.Links[i]); err != nil {
				return fmt.Errorf("network link %d validation failed: %w", i, err)
			}
		}
	}
	return nil
}
