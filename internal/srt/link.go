// Package srt implements bonded SRT ingest: one Link per listener port, and
// a Group that owns N links and selects the best one.
package srt

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"broadcastd/internal/supervisor"
)

// Link owns one SRT listener on one port, grounded on SRTLink/SRTReceiver in
// srt_receiver.py.
type Link struct {
	ID         int
	Port       int
	LatencyMs  int
	Passphrase string
	Logger     *logrus.Logger

	sup *supervisor.Supervisor

	mu           sync.Mutex
	active       bool
	lastSeen     time.Time
	bitrateKbps  float64
	rttMs        float64
	packetLossPct float64
}

// NewLink constructs a Link bound to port, not yet started.
func NewLink(id, port, latencyMs int, passphrase string, logger *logrus.Logger) *Link {
	l := &Link{
		ID:         id,
		Port:       port,
		LatencyMs:  latencyMs,
		Passphrase: passphrase,
		Logger:     logger,
	}
	l.sup = supervisor.New(supervisor.Config{
		Name:        fmt.Sprintf("srt-link-%d", id),
		Build:       l.buildArgv,
		MaxRestarts: 10,
		Backoff:     1 * time.Second,
		GracePeriod: 5 * time.Second,
		Logger:      logger,
	})
	return l
}

func (l *Link) buildArgv() ([]string, bool) {
	bin, err := exec.LookPath("srt-live-transmit")
	if err != nil {
		return nil, false
	}
	srtURL := fmt.Sprintf("srt://0.0.0.0:%d?mode=listener&latency=%d", l.Port, l.LatencyMs*1000)
	if l.Passphrase != "" {
		srtURL += "&passphrase=" + l.Passphrase
	}
	udpSink := fmt.Sprintf("udp://127.0.0.1:%d", l.Port+1000)
	return []string{bin, srtURL, udpSink, "-v"}, true
}

// Start transitions the link to listening, launching the child process (or
// simulated mode if srt-live-transmit is unavailable).
func (l *Link) Start(ctx context.Context) error {
	if err := l.sup.Start(ctx); err != nil {
		return fmt.Errorf("srt link %d: %w", l.ID, err)
	}
	l.mu.Lock()
	l.active = l.sup.Running()
	l.mu.Unlock()
	return nil
}

// Stop terminates the child process per the supervisor's grace period.
func (l *Link) Stop() {
	l.sup.Stop()
	l.mu.Lock()
	l.active = false
	l.mu.Unlock()
}

// UpdateStats records fresh statistics, typically parsed from the child's
// verbose output by a caller, or left untouched in simulated mode.
func (l *Link) UpdateStats(bitrateKbps, rttMs, packetLossPct float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSeen = time.Now()
	l.bitrateKbps = bitrateKbps
	l.rttMs = rttMs
	l.packetLossPct = packetLossPct
	l.active = l.sup.Running()
}

// Status is a point-in-time snapshot of one link.
type Status struct {
	ID            int     `json:"id"`
	Port          int     `json:"port"`
	Active        bool    `json:"active"`
	Score         int     `json:"score"`
	BitrateKbps   float64 `json:"bitrate_kbps"`
	RTTMs         float64 `json:"rtt_ms"`
	PacketLossPct float64 `json:"packet_loss_pct"`
	StalenessS    float64 `json:"staleness_s"`
}

// Score computes the link quality score (0-100), matching the rubric in
// SRTLink.calculate_score in srt_receiver.py.
func (l *Link) Score() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.score()
}

func (l *Link) score() int {
	if !l.active {
		return 0
	}
	staleness := time.Since(l.lastSeen).Seconds()
	if l.lastSeen.IsZero() {
		staleness = 0
	}

	score := 100.0
	switch {
	case staleness > 10:
		return 0
	case staleness > 5:
		score -= 30
	}
	switch {
	case l.rttMs > 200:
		score -= 30
	case l.rttMs > 100:
		score -= 15
	}
	switch {
	case l.packetLossPct > 5:
		score -= 30
	case l.packetLossPct > 1:
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// GetStatus returns a snapshot of this link's state.
func (l *Link) GetStatus() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	staleness := 0.0
	if !l.lastSeen.IsZero() {
		staleness = time.Since(l.lastSeen).Seconds()
	}
	return Status{
		ID:            l.ID,
		Port:          l.Port,
		Active:        l.active,
		Score:         l.score(),
		BitrateKbps:   l.bitrateKbps,
		RTTMs:         l.rttMs,
		PacketLossPct: l.packetLossPct,
		StalenessS:    staleness,
	}
}
