package hub

import (
	"time"

	"broadcastd/internal/health"
	"broadcastd/internal/protocol"
)

// LiveStreamer is the in-memory snapshot of one connected field agent,
// grounded on Streamer in models.py.
type LiveStreamer struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	AvatarURL    string   `json:"avatar_url"`
	Color        string   `json:"color"`
	IsCrown      bool     `json:"is_crown"`
	IsLive       bool     `json:"is_live"`
	Socials      []string `json:"socials"`
	LocationName string   `json:"location_name,omitempty"`

	GPS      protocol.GPSPosition    `json:"gps"`
	Hardware protocol.HardwareReport `json:"hardware"`
	Network  []protocol.NetworkLink  `json:"network_links"`
	Starlink protocol.StarlinkReport `json:"starlink"`
	Health   health.Status           `json:"health"`

	UpdatedAt time.Time `json:"updated_at"`
}
