package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// StreamerManager owns one relay Group per live streamer, grounded on
// StreamerRelayManager in relay.py.
type StreamerManager struct {
	Logger *logrus.Logger

	mu     sync.Mutex
	groups map[string]*Group
}

// NewStreamerManager constructs an empty StreamerManager.
func NewStreamerManager(logger *logrus.Logger) *StreamerManager {
	return &StreamerManager{Logger: logger, groups: make(map[string]*Group)}
}

// StartForStreamer builds a relay Group for streamerID fed by the given SRT
// port, filters destinations to only the enabled ones, and starts them. If
// no destination is enabled, it logs and returns without starting a relay —
// ingest still runs without a relay group registered. A relay that fails to
// start is not fatal to the pipeline: it's left inactive (visible via
// Status) while ingest and any other relay continue.
func (m *StreamerManager) StartForStreamer(ctx context.Context, streamerID string, destinations []Destination, srtPort int) error {
	enabled := make([]Destination, 0, len(destinations))
	for _, d := range destinations {
		if d.Enabled {
			enabled = append(enabled, d)
		}
	}
	if len(enabled) == 0 {
		m.log(streamerID).Info("no enabled destinations, ingest continues without relay")
		return nil
	}

	inputURL := fmt.Sprintf("srt://127.0.0.1:%d?mode=listener", srtPort)
	group := NewGroup(inputURL, m.Logger)
	for _, d := range enabled {
		group.AddDestination(d.Name, d.URL, d.Transmux)
	}

	m.mu.Lock()
	m.groups[streamerID] = group
	m.mu.Unlock()

	group.StartAll(ctx)
	return nil
}

// StopForStreamer stops and forgets the relay Group for streamerID, if any.
func (m *StreamerManager) StopForStreamer(streamerID string) {
	m.mu.Lock()
	group, ok := m.groups[streamerID]
	delete(m.groups, streamerID)
	m.mu.Unlock()

	if ok {
		group.StopAll()
	}
}

// StopAll stops every registered streamer's relay group.
func (m *StreamerManager) StopAll() {
	m.mu.Lock()
	groups := make([]*Group, 0, len(m.groups))
	for _, g := range m.groups {
		groups = append(groups, g)
	}
	m.groups = make(map[string]*Group)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, g := range groups {
		wg.Add(1)
		go func(g *Group) {
			defer wg.Done()
			g.StopAll()
		}(g)
	}
	wg.Wait()
}

// Status returns the relay status for streamerID, if a group is registered.
func (m *StreamerManager) Status(streamerID string) ([]Status, bool) {
	m.mu.Lock()
	group, ok := m.groups[streamerID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return group.Status(), true
}

func (m *StreamerManager) log(streamerID string) *logrus.Entry {
	logger := m.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logger.WithField("streamer_id", streamerID)
}
