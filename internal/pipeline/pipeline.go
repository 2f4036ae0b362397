// Package pipeline assembles one streamer's ingest → relay → health chain,
// created by the telemetry hub when a field agent connects. Grounded on the
// per-streamer orchestration in ws_handler.py's connect_field/disconnect_field,
// generalized into a standalone type the hub manages per streamer.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"broadcastd/internal/health"
	"broadcastd/internal/ports"
	"broadcastd/internal/relay"
	"broadcastd/internal/srt"
)

// Destination mirrors relay.Destination for callers that don't want to
// import the relay package directly.
type Destination = relay.Destination

// Config carries the shared infrastructure a Pipeline is built from.
type Config struct {
	Allocator   *ports.Allocator
	MaxLinks    int
	LatencyMs   int
	Passphrase  string
	Thresholds  health.Thresholds
	Logger      *logrus.Logger
	Transitions chan<- health.Transition
}

// Pipeline is one streamer's SRT ingest group, relay group, and health
// monitor, lifecycle-managed together.
type Pipeline struct {
	StreamerID string
	Port       int

	cfg     Config
	srtGrp  *srt.Group
	relays  *relay.StreamerManager
	monitor *health.Monitor

	mu      sync.Mutex
	started bool
}

// Start allocates a port, starts the SRT link group, starts the health
// monitor, and — if destinations are configured — starts the relay group.
// A streamer with no enabled destinations still gets ingest; see
// relay.StreamerManager.StartForStreamer.
func Start(ctx context.Context, cfg Config, streamerID string, destinations []Destination, relays *relay.StreamerManager) (*Pipeline, error) {
	port := cfg.Allocator.Allocate(streamerID)

	srtGrp := srt.NewGroup(port, cfg.MaxLinks, cfg.LatencyMs, cfg.Passphrase, cfg.Logger)
	if err := srtGrp.StartAll(ctx); err != nil {
		cfg.Allocator.Release(streamerID)
		return nil, fmt.Errorf("pipeline %s: start srt group: %w", streamerID, err)
	}

	monitor := health.NewMonitor(streamerID, cfg.Thresholds, cfg.Transitions)

	// A relay failing to start is not fatal to the pipeline: ingest stays up
	// as long as the SRT group is open (§4.6). Failures surface only via
	// each relay's own Status.
	if err := relays.StartForStreamer(ctx, streamerID, destinations, port); err != nil {
		logger := cfg.Logger
		if logger == nil {
			logger = logrus.StandardLogger()
		}
		logger.WithError(err).WithField("streamer_id", streamerID).Warn("relay group failed to start")
	}

	p := &Pipeline{
		StreamerID: streamerID,
		Port:       port,
		cfg:        cfg,
		srtGrp:     srtGrp,
		relays:     relays,
		monitor:    monitor,
		started:    true,
	}
	return p, nil
}

// Stop tears down the relay group, SRT link group, and releases the port.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()

	p.relays.StopForStreamer(p.StreamerID)
	p.srtGrp.StopAll()
	p.cfg.Allocator.Release(p.StreamerID)
}

// RecomputeHealth pulls the current SRT group status and feeds it through
// the health monitor, matching the periodic recompute loop in health.py's
// deployment (§4.3/§4.7 interaction).
func (p *Pipeline) RecomputeHealth() health.Status {
	st := p.srtGrp.Status()
	linkScores := make([]int, 0, len(st.Links))
	var bitrateSum, rttSum, lossSum float64
	for _, l := range st.Links {
		linkScores = append(linkScores, l.Score)
		bitrateSum += l.BitrateKbps
		rttSum += l.RTTMs
		lossSum += l.PacketLossPct
	}
	n := float64(len(st.Links))
	avg := func(sum float64) float64 {
		if n == 0 {
			return 0
		}
		return sum / n
	}

	p.monitor.UpdateMetrics(health.Metrics{
		ActiveLinks:   st.Active,
		TotalLinks:    st.Total,
		BitrateKbps:   bitrateSum,
		RTTAvgMs:      avg(rttSum),
		PacketLossAvg: avg(lossSum),
		LinkScores:    linkScores,
	})
	return p.monitor.GetStatus()
}

// HealthStatus returns the pipeline's current health snapshot without
// recomputing it.
func (p *Pipeline) HealthStatus() health.Status {
	return p.monitor.GetStatus()
}

// SRTStatus returns the pipeline's current SRT link group snapshot.
func (p *Pipeline) SRTStatus() srt.GroupStatus {
	return p.srtGrp.Status()
}

// RelayStatus returns the pipeline's relay status, if any relay group is
// registered for this streamer.
func (p *Pipeline) RelayStatus() ([]relay.Status, bool) {
	return p.relays.Status(p.StreamerID)
}
