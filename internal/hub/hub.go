// Package hub implements the WebSocket fan-out: field agents uplink
// telemetry (at most one connection per streamer), browsers subscribe to a
// snapshot-then-broadcast feed. Grounded on ConnectionManager in
// ws_handler.py and the eviction/broadcast idiom in hub.go.
package hub

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"broadcastd/internal/geocode"
	"broadcastd/internal/health"
	"broadcastd/internal/pipeline"
	"broadcastd/internal/protocol"
	"broadcastd/internal/relay"
	"broadcastd/internal/srt"
)

// PipelineStatus aggregates one streamer's SRT, relay, and health status for
// the /status/pipelines endpoint.
type PipelineStatus struct {
	SRT    srt.GroupStatus `json:"srt"`
	Relays []relay.Status  `json:"relays"`
	Health health.Status   `json:"health"`
}

// StreamerRecord is the persisted streamer metadata needed to bring a field
// connection live.
type StreamerRecord struct {
	ID           string
	Name         string
	AvatarURL    string
	Color        string
	IsCrown      bool
	Socials      []string
	Destinations []relay.Destination
}

// CredentialStatus distinguishes why a field credential did or didn't pass,
// since an unknown/wrong key and a correct-but-unapproved key close the
// socket with different codes (4001 vs 4003).
type CredentialStatus int

const (
	CredentialInvalid CredentialStatus = iota
	CredentialUnapproved
	CredentialValid
)

// Store abstracts the persistence adapter (C12) dependency the hub needs:
// credential verification and streamer metadata lookup.
type Store interface {
	ValidateFieldCredential(ctx context.Context, streamerID, apiKey string) (CredentialStatus, error)
	GetStreamerRecord(ctx context.Context, streamerID string) (StreamerRecord, error)
	DeleteLiveSnapshot(ctx context.Context, streamerID string) error
}

// EventPublisher mirrors pkg/redis.TypedPubSub's Publish method, so a second
// dashboard-facing process can subscribe to the same channel and fan out
// streamer events without touching the ingest/relay core. Optional: a nil
// EventPublisher simply skips the extra publish.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event protocol.DashboardEvent) error
}

// DashboardEventsChannel is the Redis pub/sub channel name dashboard events
// are mirrored onto when an EventPublisher is configured.
const DashboardEventsChannel = "broadcastd:dashboard-events"

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Hub owns dashboard subscribers, field agent connections, and the live
// streamer map, plus the per-streamer pipelines it creates on field connect.
type Hub struct {
	logger *logrus.Logger
	store  Store
	geo    geocode.Lookup

	pipelineCfg    pipeline.Config
	relays         *relay.StreamerManager
	rawTransitions chan health.Transition
	obsTransitions chan<- health.Transition
	validator      *protocol.Validator

	publisher EventPublisher

	mu               sync.RWMutex
	dashboardClients map[*dashboardClient]bool
	fieldAgents      map[string]*fieldClient
	streamers        map[string]*LiveStreamer
	pipelines        map[string]*pipeline.Pipeline
	crownedID        string
}

// SetPublisher wires an optional EventPublisher; every dashboard broadcast
// is additionally mirrored onto DashboardEventsChannel. Call before Run.
func (h *Hub) SetPublisher(p EventPublisher) {
	h.publisher = p
}

// New constructs a Hub. obsTransitions, if non-nil, receives health
// transitions from whichever streamer currently holds the crown (§9 design
// decision: one OBS actuator per deployment, fed by the crowned streamer).
// Every pipeline the hub creates is wired to report into the hub's own
// internal transitions channel, which Run filters by crown before
// forwarding to obsTransitions.
func New(store Store, geo geocode.Lookup, pipelineCfg pipeline.Config, relays *relay.StreamerManager, obsTransitions chan<- health.Transition, logger *logrus.Logger) *Hub {
	rawTransitions := make(chan health.Transition, 64)
	pipelineCfg.Transitions = rawTransitions
	return &Hub{
		logger:           logger,
		store:            store,
		geo:              geo,
		pipelineCfg:      pipelineCfg,
		relays:           relays,
		rawTransitions:   rawTransitions,
		obsTransitions:   obsTransitions,
		validator:        protocol.NewValidator(),
		dashboardClients: make(map[*dashboardClient]bool),
		fieldAgents:      make(map[string]*fieldClient),
		streamers:        make(map[string]*LiveStreamer),
		pipelines:        make(map[string]*pipeline.Pipeline),
	}
}

// Run drives the hub's background loops: periodic per-pipeline health
// recompute, and forwarding of the crowned streamer's transitions to the
// shared OBS actuator. Blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, healthInterval time.Duration) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			h.recomputeAllHealth()

		case tr, ok := <-h.rawTransitions:
			if !ok {
				return
			}
			h.mu.RLock()
			isCrowned := tr.StreamerID == h.crownedID
			if s, exists := h.streamers[tr.StreamerID]; exists {
				s.Health.State = tr.NewState
				s.Health.Score = tr.Score
			}
			h.mu.RUnlock()

			if isCrowned && h.obsTransitions != nil {
				select {
				case h.obsTransitions <- tr:
				default:
				}
			}
		}
	}
}

func (h *Hub) recomputeAllHealth() {
	h.mu.RLock()
	pipelines := make(map[string]*pipeline.Pipeline, len(h.pipelines))
	for id, p := range h.pipelines {
		pipelines[id] = p
	}
	h.mu.RUnlock()

	for id, p := range pipelines {
		status := p.RecomputeHealth()
		h.mu.Lock()
		if s, ok := h.streamers[id]; ok {
			s.Health = status
		}
		h.mu.Unlock()
	}
}

func (h *Hub) log() *logrus.Entry {
	logger := h.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("component", "hub")
}

// broadcastToDashboards sends an event to every dashboard subscriber,
// evicting any whose send buffer is full rather than blocking or buffering
// (§4.9 backpressure policy).
func (h *Hub) broadcastToDashboards(event protocol.DashboardEvent) {
	h.mu.RLock()
	clients := make([]*dashboardClient, 0, len(h.dashboardClients))
	for c := range h.dashboardClients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- event:
		default:
			h.evictDashboard(c)
		}
	}

	if h.publisher != nil {
		go func() {
			if err := h.publisher.Publish(context.Background(), DashboardEventsChannel, event); err != nil {
				h.log().WithError(err).Warn("redis publish failed")
			}
		}()
	}
}

func (h *Hub) evictDashboard(c *dashboardClient) {
	h.mu.Lock()
	if _, ok := h.dashboardClients[c]; ok {
		delete(h.dashboardClients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) registerDashboard(c *dashboardClient) {
	h.mu.Lock()
	h.dashboardClients[c] = true
	h.mu.Unlock()
	h.sendFullSync(c)
}

func (h *Hub) unregisterDashboard(c *dashboardClient) {
	h.evictDashboard(c)
}

func (h *Hub) sendFullSync(c *dashboardClient) {
	h.mu.RLock()
	snapshot := make([]*LiveStreamer, 0, len(h.streamers))
	for _, s := range h.streamers {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	event := protocol.DashboardEvent{
		Type: protocol.EventFullSync,
		Data: map[string]any{"streamers": snapshot},
	}
	select {
	case c.send <- event:
	default:
		h.evictDashboard(c)
	}
}

// StatusSummary is the system-wide counters exposed at GET /api/status.
type StatusSummary struct {
	DashboardClients int `json:"dashboard_clients"`
	FieldAgents      int `json:"field_agents"`
	StreamersOnline  int `json:"streamers_online"`
}

// Status reports current subscriber/agent counts for status endpoints.
func (h *Hub) Status() StatusSummary {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return StatusSummary{
		DashboardClients: len(h.dashboardClients),
		FieldAgents:      len(h.fieldAgents),
		StreamersOnline:  len(h.streamers),
	}
}

// Streamers returns a snapshot of every live streamer, for the REST listing
// endpoint.
func (h *Hub) Streamers() []*LiveStreamer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*LiveStreamer, 0, len(h.streamers))
	for _, s := range h.streamers {
		cp := *s
		out = append(out, &cp)
	}
	return out
}

// PipelineStatuses returns a per-streamer snapshot of SRT and relay status
// for the /status/pipelines endpoint.
func (h *Hub) PipelineStatuses() map[string]PipelineStatus {
	h.mu.RLock()
	pipelines := make(map[string]*pipeline.Pipeline, len(h.pipelines))
	for id, p := range h.pipelines {
		pipelines[id] = p
	}
	h.mu.RUnlock()

	out := make(map[string]PipelineStatus, len(pipelines))
	for id, p := range pipelines {
		relayStatus, _ := p.RelayStatus()
		out[id] = PipelineStatus{
			SRT:    p.SRTStatus(),
			Relays: relayStatus,
			Health: p.HealthStatus(),
		}
	}
	return out
}

// StreamerSnapshot returns a copy of one live streamer's state, if present.
func (h *Hub) StreamerSnapshot(streamerID string) (LiveStreamer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.streamers[streamerID]
	if !ok {
		return LiveStreamer{}, false
	}
	return *s, true
}

// Pipeline returns the running pipeline for streamerID, if any.
func (h *Hub) Pipeline(streamerID string) (*pipeline.Pipeline, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.pipelines[streamerID]
	return p, ok
}

// SetCrown toggles which streamer's health transitions feed the shared OBS
// actuator. Only one streamer can hold the crown at a time.
func (h *Hub) SetCrown(streamerID string, crowned bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.streamers[streamerID]; ok {
		s.IsCrown = crowned
	}
	if crowned {
		h.crownedID = streamerID
	} else if h.crownedID == streamerID {
		h.crownedID = ""
	}
}
