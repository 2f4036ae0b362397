// Package health implements the per-streamer health state machine: a
// composite score derived from link metrics, smoothed over a sliding
// window, mapped onto HEALTHY/DEGRADED/CRITICAL/DOWN. Grounded on
// HealthMonitor in health.py.
package health

import (
	"sync"
	"time"
)

// State is one of the four health states a streamer's pipeline can be in.
type State string

const (
	Healthy  State = "healthy"
	Degraded State = "degraded"
	Critical State = "critical"
	Down     State = "down"
)

func (s State) message() string {
	switch s {
	case Healthy:
		return "stream stable"
	case Degraded:
		return "quality degraded, monitoring"
	case Critical:
		return "connection critical, fallback may trigger"
	case Down:
		return "stream offline"
	default:
		return ""
	}
}

// Transition describes a state change dispatched to listeners (notably the
// OBS actuator).
type Transition struct {
	StreamerID string
	OldState   State
	NewState   State
	Score      int
}

// Thresholds controls where the score lands in the state machine.
type Thresholds struct {
	Degraded int // score <= this and > Critical => Degraded
	Critical int
	Down     int
}

// DefaultThresholds matches HEALTH_THRESHOLD_DEGRADED/CRITICAL/DOWN defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{Degraded: 70, Critical: 40, Down: 10}
}

const historySize = 5

// Metrics is the raw input to one scoring pass.
type Metrics struct {
	ActiveLinks    int
	TotalLinks     int
	BitrateKbps    float64
	RTTAvgMs       float64
	PacketLossAvg  float64
	LinkScores     []int
}

// Monitor owns one streamer's health state. NewMonitor starts it in the Down
// state, matching health.py's HealthMonitor.__init__.
type Monitor struct {
	StreamerID string
	Thresholds Thresholds

	mu         sync.Mutex
	state      State
	score      int
	lastUpdate time.Time
	metrics    Metrics
	history    []int

	transitions chan<- Transition
}

// NewMonitor constructs a Monitor in the Down state. transitions, if
// non-nil, receives a Transition every time the state changes; sends are
// non-blocking dispatch (§9 design note) so a slow consumer never stalls
// scoring.
func NewMonitor(streamerID string, thresholds Thresholds, transitions chan<- Transition) *Monitor {
	return &Monitor{
		StreamerID:  streamerID,
		Thresholds:  thresholds,
		state:       Down,
		transitions: transitions,
	}
}

// UpdateMetrics recalculates the score from fresh metrics, smooths it over
// the last five samples with an integer floor mean, and evaluates whether
// the state should transition.
func (m *Monitor) UpdateMetrics(metrics Metrics) {
	m.mu.Lock()

	m.metrics = metrics
	m.lastUpdate = time.Now()

	raw := m.calculateScore()
	m.history = append(m.history, raw)
	if len(m.history) > historySize {
		m.history = m.history[1:]
	}

	sum := 0
	for _, s := range m.history {
		sum += s
	}
	smoothed := sum / len(m.history) // integer floor division, matches `//` in health.py
	m.score = smoothed

	oldState := m.state
	m.state = m.evaluateState(m.score)
	newState := m.state
	score := m.score
	m.mu.Unlock()

	if oldState != newState && m.transitions != nil {
		t := Transition{StreamerID: m.StreamerID, OldState: oldState, NewState: newState, Score: score}
		select {
		case m.transitions <- t:
		default:
		}
	}
}

// calculateScore must be called with mu held.
func (m *Monitor) calculateScore() int {
	if m.metrics.ActiveLinks == 0 {
		return 0
	}

	score := 100

	if m.metrics.TotalLinks > 0 {
		ratio := float64(m.metrics.ActiveLinks) / float64(m.metrics.TotalLinks)
		switch {
		case ratio < 0.5:
			score -= 30
		case ratio < 1.0:
			score -= 10
		}
	}

	switch {
	case m.metrics.BitrateKbps < 1000:
		score -= 30
	case m.metrics.BitrateKbps < 2000:
		score -= 15
	}

	switch {
	case m.metrics.RTTAvgMs > 200:
		score -= 20
	case m.metrics.RTTAvgMs > 100:
		score -= 10
	}

	switch {
	case m.metrics.PacketLossAvg > 5:
		score -= 25
	case m.metrics.PacketLossAvg > 1:
		score -= 10
	}

	if len(m.metrics.LinkScores) > 0 {
		best := m.metrics.LinkScores[0]
		for _, s := range m.metrics.LinkScores[1:] {
			if s > best {
				best = s
			}
		}
		if best < 50 {
			score -= 15
		}
	}

	staleness := time.Since(m.lastUpdate).Seconds()
	switch {
	case staleness > 10:
		score -= 30
	case staleness > 5:
		score -= 15
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

func (m *Monitor) evaluateState(score int) State {
	switch {
	case score <= m.Thresholds.Down:
		return Down
	case score <= m.Thresholds.Critical:
		return Critical
	case score <= m.Thresholds.Degraded:
		return Degraded
	default:
		return Healthy
	}
}

// Status is a point-in-time snapshot for API/telemetry consumers.
type Status struct {
	Score       int     `json:"score"`
	State       State   `json:"state"`
	ActiveLinks int     `json:"active_links"`
	TotalLinks  int     `json:"total_links"`
	BitrateKbps float64 `json:"bitrate_kbps"`
	Message     string  `json:"message"`
}

// GetStatus returns the current status snapshot.
func (m *Monitor) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Score:       m.score,
		State:       m.state,
		ActiveLinks: m.metrics.ActiveLinks,
		TotalLinks:  m.metrics.TotalLinks,
		BitrateKbps: m.metrics.BitrateKbps,
		Message:     m.state.message(),
	}
}
